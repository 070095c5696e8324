// Package pipeline runs keyword research end to end: ingest, dedup, roots,
// brand filtering, relevance scoring, categorization, listing optimization
// and result files.
//
// Stages run strictly in order within one run. Each run owns its state; the
// only objects shared between runs are the batch limiter, the optional
// verdict cache and the output directory.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/internal/metrics"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ai"
	"github.com/cognicore/kwresearch/pkg/kwresearch/batch"
	"github.com/cognicore/kwresearch/pkg/kwresearch/categorize"
	"github.com/cognicore/kwresearch/pkg/kwresearch/config"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ingest"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/output"
	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
	"github.com/cognicore/kwresearch/pkg/kwresearch/progress"
	"github.com/cognicore/kwresearch/pkg/kwresearch/roots"
	"github.com/cognicore/kwresearch/pkg/kwresearch/seo"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
)

// Request is one research job.
type Request struct {
	// ID is the caller's request id. It is logged next to the run id.
	ID          string
	Design      ingest.Table
	Revenue     ingest.Table
	AsinOrURL   string
	Marketplace string

	// OptimizeListing adds the seo_optimization payload.
	OptimizeListing bool
	// Current overrides the listing text taken from the product page.
	Current    *seo.Draft
	MainRoot   string
	DesignRoot string
}

// Metadata summarizes a run for the complete payload.
type Metadata struct {
	AsinOrURL              string   `json:"asin_or_url"`
	Marketplace            string   `json:"marketplace"`
	KeywordsFinal          int      `json:"keywords_final"`
	BrandedKeywordsRemoved int      `json:"branded_keywords_removed"`
	DesignRowsFiltered     int      `json:"design_rows_filtered"`
	RevenueRowsFiltered    int      `json:"revenue_rows_filtered"`
	Top10Roots             []string `json:"top_10_roots"`
	Warning                string   `json:"warning,omitempty"`

	RunID               string `json:"run_id"`
	DesignRowsOriginal  int    `json:"design_rows_original"`
	RevenueRowsOriginal int    `json:"revenue_rows_original"`
	KeywordsEvaluated   int    `json:"keywords_evaluated"`
	BatchesProcessed    int    `json:"batches_processed"`
}

// Result is the data of the complete event.
type Result struct {
	Success            bool             `json:"success"`
	Metadata           Metadata         `json:"metadata"`
	KeywordEvaluations []map[string]any `json:"keyword_evaluations"`
	ProductSummary     []string         `json:"product_summary"`
	CSVFilename        string           `json:"csv_filename"`
	BrandFilename      string           `json:"brand_filename"`
	LogFile            string           `json:"log_file,omitempty"`
	SEO                *seo.Result      `json:"seo_optimization,omitempty"`

	// Rows are the evaluated keywords in output order.
	Rows []keyword.Row `json:"-"`
	// Classified holds every keyword with its brand verdict.
	Classified []keyword.Row `json:"-"`
}

// Pipeline holds the collaborators shared by runs.
type Pipeline struct {
	Capabilities ai.Capabilities
	Products     productinfo.Resolver
	Limiter      *batch.Limiter
	Retry        batch.Retry
	Cache        store.Cache
	Output       *output.Writer

	Ingestor ingest.Ingestor
	Roots    *roots.Extractor
	Tagger   *categorize.Tagger

	DetectBatch    int
	VerifyBatch    int
	RelevanceBatch int

	SEO           seo.Options
	SEOCategories []keyword.Category
	// MinRelevanceScore drops lower-scored non-branded rows from the output.
	MinRelevanceScore int
	Marketplace       string
	// RunLogs writes a JSON log file per run next to the artifacts.
	RunLogs bool

	Metrics *metrics.Metrics
	Log     *logger.Logger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New assembles a pipeline from configuration.
func New(cfg config.Config, caps ai.Capabilities, products productinfo.Resolver, cache store.Cache, m *metrics.Metrics, log *logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	comp, err := cfg.Components()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	retry := batch.Retry{
		Attempts:   cfg.Retry.Attempts,
		Backoff:    cfg.Retry.Backoff,
		MaxBackoff: cfg.Retry.MaxBackoff,
		Metrics:    m,
	}
	return &Pipeline{
		Capabilities: caps,
		Products:     products,
		Limiter:      batch.NewLimiter(cfg.Concurrency, cfg.LLM.Timeout, m),
		Retry:        retry,
		Cache:        cache,
		Output:       &output.Writer{Dir: cfg.Output.Dir},
		Ingestor: ingest.Ingestor{
			MinCompetitorHits:    cfg.Ingest.MinCompetitorHits,
			CompetitorRankCutoff: cfg.Ingest.CompetitorRankCutoff,
		},
		Roots:          roots.NewExtractor(comp.Tokenizer),
		Tagger:         comp.Tagger,
		DetectBatch:    cfg.Batch.BrandDetect,
		VerifyBatch:    cfg.Batch.BrandVerify,
		RelevanceBatch: cfg.Batch.Relevance,
		SEO: seo.Options{
			TitleBudget:       cfg.SEO.TitleBudget,
			MobileBudget:      cfg.SEO.MobileBudget,
			BulletBudget:      cfg.SEO.BulletBudget,
			BulletCount:       cfg.SEO.BulletCount,
			IncludeDesignRoot: cfg.SEO.IncludeDesignRoot,
		},
		SEOCategories:     cfg.SEOCategories(),
		MinRelevanceScore: cfg.Pipeline.MinRelevanceScore,
		Marketplace:       cfg.Pipeline.Marketplace,
		RunLogs:           cfg.Output.RunLogs,
		Metrics:           m,
		Log:               log,
	}, nil
}

func (p *Pipeline) newRunID() string {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	if p.entropy == nil {
		p.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return ulid.MustNew(ulid.Now(), p.entropy).String()
}

// Run executes one request, reporting progress on ch. It always ends the
// stream with a complete or an error event, unless the consumer detached.
// When writing the result files fails, the in-memory result is returned
// together with the error.
func (p *Pipeline) Run(ctx context.Context, req Request, ch progress.Channel) (*Result, error) {
	r := p.newRun(req, ch)
	defer r.close()

	start := time.Now()
	res, err := r.execute(ctx)
	if err != nil {
		r.log.Error("run failed", "error", err, "elapsed", time.Since(start).String())
		r.rep.Fail(ctx, err)
		p.Metrics.ObserveRun("error")
		return res, fmt.Errorf("run %s: %w", r.id, err)
	}
	r.log.Info("run complete",
		"keywords_final", res.Metadata.KeywordsFinal,
		"branded", res.Metadata.BrandedKeywordsRemoved,
		"elapsed", time.Since(start).String(),
	)
	r.rep.Complete(ctx, res)
	p.Metrics.ObserveRun("ok")
	return res, nil
}
