package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ai"
	"github.com/cognicore/kwresearch/pkg/kwresearch/brand"
	"github.com/cognicore/kwresearch/pkg/kwresearch/categorize"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ingest"
	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/output"
	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
	"github.com/cognicore/kwresearch/pkg/kwresearch/progress"
	"github.com/cognicore/kwresearch/pkg/kwresearch/relevance"
	"github.com/cognicore/kwresearch/pkg/kwresearch/roots"
	"github.com/cognicore/kwresearch/pkg/kwresearch/seo"
)

const (
	rationaleBranded   = "branded keyword, not evaluated for relevance"
	rationaleNoSummary = "not evaluated: product summary unavailable"
)

// Progress checkpoints.
const (
	pctStart      = 5
	pctIngest     = 10
	pctDedup      = 20
	pctRoots      = 30
	pctDetected   = 35
	pctVerified   = 45
	pctProduct    = 50
	pctSummary    = 60
	pctScoreStart = 70
	pctScoreEnd   = 90
	pctCategorize = 92
	pctSEO        = 96
	pctArtifacts  = 98
)

// run is the state of one Pipeline.Run call.
type run struct {
	p   *Pipeline
	req Request
	id  string
	rep *progress.Reporter
	log *logger.Logger

	logFile  string
	closeLog func() error
	names    output.Files

	columns  []string
	records  []keyword.Record
	ex       *roots.Extractor
	ranked   []roots.Root
	brands   brand.Result
	product  productinfo.Product
	summary  []string
	scores   relevance.Result
	scored   bool
	rows     []keyword.Row
	warnings []string
	meta     Metadata
}

func (p *Pipeline) newRun(req Request, ch progress.Channel) *run {
	log := p.Log
	if log == nil {
		log = logger.Nop()
	}
	r := &run{
		p:   p,
		req: req,
		id:  p.newRunID(),
		rep: progress.NewReporter(ch),
	}
	if req.Marketplace == "" {
		r.req.Marketplace = p.Marketplace
	}
	if r.req.Marketplace == "" {
		r.req.Marketplace = "US"
	}
	r.names = p.writer().Names(productinfo.FileToken(req.AsinOrURL), r.id)

	if p.RunLogs {
		name := strings.TrimSuffix(r.names.Brands, ".csv")
		name = "run_" + strings.TrimPrefix(name, "brand_classification_") + ".log"
		fl, closeFn, err := log.WithFile(filepath.Join(p.writer().Dir, name))
		if err != nil {
			r.warn(fmt.Sprintf("run log unavailable: %v", err))
		} else {
			log, r.closeLog, r.logFile = fl, closeFn, name
		}
	}
	r.log = log.With("run_id", r.id, "request_id", req.ID)
	return r
}

func (p *Pipeline) writer() *output.Writer {
	if p.Output == nil {
		return &output.Writer{}
	}
	return p.Output
}

func (r *run) close() {
	if r.closeLog != nil {
		_ = r.closeLog()
	}
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// step times fn, reports pct and stops the run when the consumer left or the
// context ended.
func (r *run) step(ctx context.Context, name string, pct float64, msg string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.p.Metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		return err
	}
	r.log.Debug("stage finished", "stage", name, "elapsed", time.Since(start).String())
	r.rep.Progress(ctx, pct, msg)
	return r.checkpoint(ctx)
}

func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.rep.Detached() {
		return progress.ErrDetached
	}
	return nil
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	r.log.Info("run started", "asin_or_url", r.req.AsinOrURL, "marketplace", r.req.Marketplace)
	r.meta = Metadata{AsinOrURL: r.req.AsinOrURL, Marketplace: r.req.Marketplace, RunID: r.id}

	r.rep.Progress(ctx, pctStart, "Starting keyword research")
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	if _, err := productinfo.ProductURL(r.req.AsinOrURL, r.req.Marketplace); err != nil {
		return nil, err
	}
	caps := r.p.Capabilities
	if caps.Detector == nil || caps.Verifier == nil || caps.Evaluator == nil {
		return nil, fmt.Errorf("model capabilities not configured: %w", internalerr.ErrInvalidConfig)
	}

	steps := []struct {
		name string
		pct  float64
		msg  string
		fn   func(context.Context) error
	}{
		{"ingest", pctIngest, "Parsed keyword reports", r.ingest},
		{"dedup", pctDedup, "Merged duplicate keywords", r.dedup},
		{"roots", pctRoots, "Ranked keyword roots", r.rankRoots},
		{"brand", pctVerified, "Brand classification verified", r.classifyBrands},
		{"product", pctProduct, "Resolved product data", r.resolveProduct},
		{"summary", pctSummary, "Summarized product", r.summarize},
		{"relevance", pctScoreEnd, "Scored keyword relevance", r.score},
		{"categorize", pctCategorize, "Categorized keywords", r.categorize},
		{"seo", pctSEO, "Optimized listing", nil},
	}
	var seoResult *seo.Result
	for _, s := range steps {
		fn := s.fn
		if s.name == "seo" {
			if !r.req.OptimizeListing {
				continue
			}
			fn = func(context.Context) error {
				seoResult = r.optimize()
				return nil
			}
		}
		if err := r.step(ctx, s.name, s.pct, s.msg, func() error { return fn(ctx) }); err != nil {
			return nil, err
		}
	}

	res := r.result(seoResult)
	err := r.step(ctx, "artifacts", pctArtifacts, "Saved result files", func() error {
		return r.p.writer().Write(r.names, r.columns, res.Rows, res.Classified)
	})
	if err != nil {
		if errors.Is(err, internalerr.ErrOutputWrite) {
			res.CSVFilename, res.BrandFilename = "", ""
			return res, err
		}
		return nil, err
	}
	return res, nil
}

func (r *run) ingest(context.Context) error {
	reports := []struct {
		name     string
		src      keyword.Source
		tbl      ingest.Table
		original *int
		filtered *int
	}{
		{"design", keyword.SourceDesign, r.req.Design, &r.meta.DesignRowsOriginal, &r.meta.DesignRowsFiltered},
		{"revenue", keyword.SourceRevenue, r.req.Revenue, &r.meta.RevenueRowsOriginal, &r.meta.RevenueRowsFiltered},
	}
	seen := make(map[string]bool)
	for _, rep := range reports {
		res, err := r.p.Ingestor.Ingest(ingest.Report{Name: rep.name, Source: rep.src, Table: rep.tbl})
		if err != nil {
			return err
		}
		*rep.original = res.Total
		*rep.filtered = res.Filtered
		r.records = append(r.records, res.Candidates...)
		for _, h := range rep.tbl.Header {
			if h != "" && !seen[h] {
				seen[h] = true
				r.columns = append(r.columns, h)
			}
		}
		r.log.Info("report ingested", "report", rep.name, "rows", res.Total, "filtered", res.Filtered)
	}
	return nil
}

func (r *run) dedup(context.Context) error {
	r.records = ingest.Deduplicate(r.records)
	if len(r.records) == 0 {
		return fmt.Errorf("design and revenue reports: %w", internalerr.ErrEmptyKeywordSet)
	}
	return nil
}

func (r *run) rankRoots(context.Context) error {
	r.ranked = r.extractor().Rank(r.records)
	r.meta.Top10Roots = roots.Top(r.ranked, roots.TopN)
	return nil
}

func (r *run) extractor() *roots.Extractor {
	if r.ex == nil {
		r.ex = r.p.Roots
	}
	if r.ex == nil {
		r.ex = roots.NewExtractor(nil)
	}
	return r.ex
}

func (r *run) classifyBrands(ctx context.Context) error {
	c := &brand.Classifier{
		Detector:    r.p.Capabilities.Detector,
		Verifier:    r.p.Capabilities.Verifier,
		Limiter:     r.p.Limiter,
		Retry:       r.p.Retry,
		Cache:       r.p.Cache,
		DetectBatch: r.p.DetectBatch,
		VerifyBatch: r.p.VerifyBatch,
		Log:         r.log,
	}
	phrases := make([]string, len(r.records))
	for i, rec := range r.records {
		phrases[i] = rec.Phrase
	}
	res, err := c.Classify(ctx, phrases, func(s keyword.Stage) {
		if s == keyword.Detected {
			r.rep.Progress(ctx, pctDetected, "Brand detection complete")
		}
	})
	if err != nil {
		return err
	}
	r.brands = res
	r.meta.BrandedKeywordsRemoved = res.Branded()
	for _, w := range res.Warnings {
		r.warn(w)
	}
	return nil
}

func (r *run) resolveProduct(ctx context.Context) error {
	if r.p.Products == nil {
		r.warn("product data unavailable: no resolver configured")
		return nil
	}
	p, err := r.p.Products.Resolve(ctx, r.req.AsinOrURL, r.req.Marketplace)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("product resolution failed", "error", err)
		r.warn(fmt.Sprintf("product data unavailable: %v", err))
		return nil
	}
	r.product = p
	return nil
}

func (r *run) summarize(ctx context.Context) error {
	if r.product.Empty() {
		return nil
	}
	s := r.p.Capabilities.Summarizer
	if s == nil {
		r.warn("product summary unavailable: no summarizer configured")
		return nil
	}
	var summary []string
	err := r.p.Retry.Run(ctx, r.p.Limiter, ai.CapSummary, func(ctx context.Context) error {
		out, err := s.Summarize(ctx, r.product)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return fmt.Errorf("summary: empty: %w", internalerr.ErrCapability)
		}
		summary = out
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("product summary failed", "error", err)
		r.warn(fmt.Sprintf("product summary unavailable: %v", err))
		return nil
	}
	r.summary = summary
	return nil
}

func (r *run) score(ctx context.Context) error {
	if len(r.summary) == 0 {
		r.warn("relevance evaluation skipped; keywords left uncategorized")
		return nil
	}
	var phrases []string
	for _, rec := range r.records {
		if !r.brands.Verdicts[rec.Key].IsBranded() {
			phrases = append(phrases, rec.Phrase)
		}
	}
	if len(phrases) == 0 {
		r.scored = true
		return nil
	}
	s := &relevance.Scorer{
		Evaluator: r.p.Capabilities.Evaluator,
		Limiter:   r.p.Limiter,
		Retry:     r.p.Retry,
		BatchSize: r.p.RelevanceBatch,
		Cache:     r.p.Cache,
		Log:       r.log,
	}
	r.rep.Progress(ctx, pctScoreStart, "Scoring keyword relevance")
	res, err := s.Score(ctx, r.productKey(), r.summary, phrases, func(done, total int) {
		pct := pctScoreStart + float64(pctScoreEnd-pctScoreStart)*float64(done)/float64(total)
		r.rep.Progress(ctx, pct, fmt.Sprintf("Scored batch %d of %d", done, total))
	})
	if err != nil {
		return err
	}
	r.scores, r.scored = res, true
	r.meta.KeywordsEvaluated = len(res.Verdicts)
	r.meta.BatchesProcessed = res.Batches
	for _, w := range res.Warnings {
		r.warn(w)
	}
	return nil
}

// productKey scopes cached relevance verdicts.
func (r *run) productKey() string {
	if asin := productinfo.ASIN(r.req.AsinOrURL); asin != "" {
		return r.req.Marketplace + ":" + asin
	}
	return r.req.Marketplace + ":" + strings.TrimSpace(r.req.AsinOrURL)
}

func (r *run) categorize(context.Context) error {
	ex := r.extractor()
	tagger := r.p.Tagger
	if tagger == nil {
		tagger = categorize.NewTagger(nil)
	}

	stems := make([][]string, len(r.records))
	for i, rec := range r.records {
		stems[i] = ex.Roots(rec.Key)
	}
	vocab := categorize.NewVocabulary(stems)

	r.rows = make([]keyword.Row, len(r.records))
	for i, rec := range r.records {
		row := keyword.Row{Record: rec}
		verdict, ok := r.brands.Verdicts[rec.Key]
		if !ok {
			verdict = keyword.BrandClassification{Status: keyword.Branded, Rationale: "no brand verdict; kept as branded"}
		}
		row.Brand = verdict

		switch {
		case verdict.IsBranded():
			row.Eval = keyword.Evaluation{Category: keyword.CategoryBranded, Rationale: rationaleBranded}
		case r.scored:
			v, ok := r.scores.Verdicts[rec.Key]
			if !ok {
				v = relevance.Verdict{Score: relevance.MidpointScore, Rationale: "evaluator failure: no verdict", Failed: true}
			}
			row.Eval = keyword.Evaluation{
				Score:     v.Score,
				Rationale: v.Rationale,
				Category:  categorize.ForScore(v.Score),
				Failed:    v.Failed,
			}
		default:
			row.Eval = keyword.Evaluation{Category: keyword.CategoryUncategorized, Rationale: rationaleNoSummary}
		}
		row.Eval.Tags = tagger.Tag(rec.Phrase, stems[i], vocab)
		r.rows[i] = row
	}

	sort.SliceStable(r.rows, func(i, j int) bool {
		if r.rows[i].SearchVolume != r.rows[j].SearchVolume {
			return r.rows[i].SearchVolume > r.rows[j].SearchVolume
		}
		return r.rows[i].Key < r.rows[j].Key
	})
	return nil
}

// listed applies the minimum score to non-branded evaluated rows.
func (r *run) listed() []keyword.Row {
	if r.p.MinRelevanceScore <= 0 {
		return r.rows
	}
	out := make([]keyword.Row, 0, len(r.rows))
	for _, row := range r.rows {
		if s, ok := output.Score(row); ok && !row.Brand.IsBranded() && s < r.p.MinRelevanceScore {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (r *run) optimize() *seo.Result {
	current := seo.Draft{Title: r.product.Title, Bullets: r.product.Bullets}
	if r.req.Current != nil {
		current = *r.req.Current
	}
	opts := r.p.SEO
	opts.MainRoot = r.req.MainRoot
	opts.DesignRoot = r.req.DesignRoot

	pool := seo.Pool(r.rows, r.p.SEOCategories)
	res := seo.New(opts, r.extractor()).Optimize(current, pool)
	if len(pool) == 0 {
		r.warn("listing optimization: no keywords in the selected categories")
	}
	r.log.Info("listing optimized",
		"pool", len(pool),
		"main_root", res.MainRoot,
		"search_volume_delta", res.Improvements.SearchVolume.Improvement.Improvement,
		"compliant", res.Validation.Optimized.Compliant,
		"guideline_issues", len(res.Validation.Optimized.Issues),
	)
	return &res
}

func (r *run) result(seoResult *seo.Result) *Result {
	rows := r.listed()
	r.meta.KeywordsFinal = len(rows)
	if len(r.warnings) > 0 {
		r.meta.Warning = strings.Join(r.warnings, "; ")
	}
	if r.meta.Top10Roots == nil {
		r.meta.Top10Roots = []string{}
	}

	objects := make([]map[string]any, len(rows))
	for i, row := range rows {
		objects[i] = output.Object(row, r.columns)
	}
	summary := r.summary
	if summary == nil {
		summary = []string{}
	}

	classified := append([]keyword.Row(nil), r.rows...)
	sort.SliceStable(classified, func(i, j int) bool { return classified[i].Key < classified[j].Key })

	return &Result{
		Success:            true,
		Metadata:           r.meta,
		KeywordEvaluations: objects,
		ProductSummary:     summary,
		CSVFilename:        r.names.Evaluations,
		BrandFilename:      r.names.Brands,
		LogFile:            r.logFile,
		SEO:                seoResult,
		Rows:               rows,
		Classified:         classified,
	}
}
