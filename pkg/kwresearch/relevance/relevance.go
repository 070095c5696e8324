// Package relevance scores non-branded keywords 1-10 against a product
// summary.
//
// Every verdict is validated on receipt: the score must be an integer in
// [1,10] and the rationale non-empty. Keywords with an invalid or missing
// verdict are resubmitted once; after that the midpoint score is used and the
// verdict is marked failed. Zero is never a valid score.
package relevance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ai"
	"github.com/cognicore/kwresearch/pkg/kwresearch/batch"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
)

const (
	DefaultBatchSize = 20
	// MidpointScore is used when the evaluator cannot produce a valid score.
	MidpointScore = 5
	MinScore      = 1
	MaxScore      = 10
)

// Verdict is the validated score of one keyword.
type Verdict struct {
	Score     int
	Rationale string
	Failed    bool
}

// Result holds a verdict for every submitted keyword, keyed by normalized
// phrase.
type Result struct {
	Verdicts  map[string]Verdict
	Warnings  []string
	Batches   int
	Failed    int
	CacheHits int
}

// Scorer dispatches keyword batches to a RelevanceEvaluator.
type Scorer struct {
	Evaluator ai.RelevanceEvaluator
	Limiter   *batch.Limiter
	Retry     batch.Retry
	BatchSize int
	// Cache is optional; verdicts are scoped by product.
	Cache store.Cache
	Log   *logger.Logger
}

// Score evaluates phrases against summary. product scopes cached verdicts.
// onBatch, if set, is called after each batch with the number of finished
// batches and the total.
func (s *Scorer) Score(ctx context.Context, product string, summary []string, phrases []string, onBatch func(done, total int)) (Result, error) {
	log := s.Log
	if log == nil {
		log = logger.Nop()
	}

	names := make(map[string]string, len(phrases))
	keys := make([]string, 0, len(phrases))
	for _, p := range phrases {
		k := keyword.Normalize(p)
		if k == "" {
			continue
		}
		if _, dup := names[k]; dup {
			continue
		}
		names[k] = p
		keys = append(keys, k)
	}
	sort.Strings(keys)

	run := &scoring{verdicts: make(map[string]Verdict, len(keys))}

	pending := keys
	if s.Cache != nil && product != "" && len(keys) > 0 {
		hits, err := s.Cache.GetRelevance(ctx, product, keys)
		if err != nil {
			run.warnings = append(run.warnings, fmt.Sprintf("relevance cache unavailable: %v", err))
		} else {
			pending = make([]string, 0, len(keys))
			for _, k := range keys {
				if e, ok := hits[k]; ok && e.Score >= MinScore && e.Score <= MaxScore {
					run.verdicts[k] = Verdict{Score: e.Score, Rationale: e.Rationale}
					run.cacheHits++
					continue
				}
				pending = append(pending, k)
			}
		}
	}

	display := make([]string, len(pending))
	for i, k := range pending {
		display[i] = names[k]
	}
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := batch.Split(display, size)

	var (
		doneMu sync.Mutex
		done   int
	)
	err := batch.Each(ctx, batches, func(ctx context.Context, i int, b []string) error {
		s.scoreBatch(ctx, run, summary, b)
		if onBatch != nil {
			doneMu.Lock()
			done++
			onBatch(done, len(batches))
			doneMu.Unlock()
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	if s.Cache != nil && product != "" {
		var entries []store.RelevanceEntry
		for _, k := range pending {
			if v := run.verdicts[k]; !v.Failed {
				entries = append(entries, store.RelevanceEntry{Product: product, Key: k, Score: v.Score, Rationale: v.Rationale})
			}
		}
		if len(entries) > 0 {
			if err := s.Cache.PutRelevance(ctx, entries); err != nil {
				run.warnings = append(run.warnings, fmt.Sprintf("relevance cache write failed: %v", err))
			}
		}
	}

	res := Result{
		Verdicts:  run.verdicts,
		Warnings:  run.warnings,
		Batches:   len(batches),
		CacheHits: run.cacheHits,
	}
	for _, v := range res.Verdicts {
		if v.Failed {
			res.Failed++
		}
	}
	sort.Strings(res.Warnings)
	log.Info("relevance scoring finished",
		"keywords", len(keys),
		"batches", res.Batches,
		"failed", res.Failed,
		"cache_hits", res.CacheHits,
	)
	return res, nil
}

type scoring struct {
	mu        sync.Mutex
	verdicts  map[string]Verdict
	warnings  []string
	cacheHits int
}

func (s *Scorer) scoreBatch(ctx context.Context, run *scoring, summary []string, phrases []string) {
	answers, err := s.evaluate(ctx, summary, phrases)
	if err != nil {
		run.mu.Lock()
		run.warnings = append(run.warnings, fmt.Sprintf("relevance evaluation failed for %d keywords: %v", len(phrases), err))
		for _, p := range phrases {
			run.verdicts[keyword.Normalize(p)] = failure(err.Error())
		}
		run.mu.Unlock()
		return
	}

	accepted := make(map[string]Verdict, len(phrases))
	var retry []string
	for _, p := range phrases {
		k := keyword.Normalize(p)
		if v, ok := validate(answers[k], false); ok {
			accepted[k] = v
			continue
		}
		retry = append(retry, p)
	}

	if len(retry) > 0 {
		second, err := s.evaluate(ctx, summary, retry)
		for _, p := range retry {
			k := keyword.Normalize(p)
			if err != nil {
				accepted[k] = failure(err.Error())
				continue
			}
			ans, answered := second[k]
			if v, ok := validate(ans, true); answered && ok {
				accepted[k] = v
				continue
			}
			accepted[k] = failure(describe(ans, answered))
		}
	}

	run.mu.Lock()
	for k, v := range accepted {
		run.verdicts[k] = v
	}
	run.mu.Unlock()
}

func (s *Scorer) evaluate(ctx context.Context, summary, phrases []string) (map[string]ai.RelevanceVerdict, error) {
	var verdicts []ai.RelevanceVerdict
	err := s.Retry.Run(ctx, s.Limiter, ai.CapRelevance, func(ctx context.Context) error {
		var err error
		verdicts, err = s.Evaluator.EvaluateRelevance(ctx, summary, phrases)
		return err
	})
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		want[keyword.Normalize(p)] = struct{}{}
	}
	out := make(map[string]ai.RelevanceVerdict, len(verdicts))
	for _, v := range verdicts {
		k := keyword.Normalize(v.Keyword)
		if _, ok := want[k]; !ok {
			continue
		}
		// First valid answer wins over an earlier invalid one.
		if prev, seen := out[k]; seen {
			if _, ok := validate(prev, false); ok {
				continue
			}
		}
		out[k] = v
	}
	return out, nil
}

// validate checks a raw verdict. With clamp set, integer scores outside
// [1,10] are pulled into range instead of rejected.
func validate(v ai.RelevanceVerdict, clamp bool) (Verdict, bool) {
	if v.Keyword == "" || v.Rationale == "" {
		return Verdict{}, false
	}
	if math.IsNaN(v.Score) || math.IsInf(v.Score, 0) || v.Score != math.Trunc(v.Score) {
		return Verdict{}, false
	}
	f := v.Score
	if f < MinScore || f > MaxScore {
		if !clamp {
			return Verdict{}, false
		}
		f = math.Min(math.Max(f, MinScore), MaxScore)
	}
	return Verdict{Score: int(f), Rationale: v.Rationale}, true
}

func failure(reason string) Verdict {
	return Verdict{Score: MidpointScore, Rationale: "evaluator failure: " + reason, Failed: true}
}

func describe(v ai.RelevanceVerdict, answered bool) string {
	switch {
	case !answered:
		return "no verdict returned"
	case v.Rationale == "":
		return "empty rationale"
	default:
		return fmt.Sprintf("invalid score %v", v.Score)
	}
}
