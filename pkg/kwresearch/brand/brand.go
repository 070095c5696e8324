// Package brand labels keywords as branded or non-branded in two passes.
//
// Detection sees every keyword and is expected to over-flag. Verification
// sees only the flagged keywords and may clear them. A keyword cleared by
// detection is never sent to verification, so verification can lower the
// branded count but never raise it.
package brand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ai"
	"github.com/cognicore/kwresearch/pkg/kwresearch/batch"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
)

// Default batch sizes.
const (
	DefaultDetectBatch = 100
	DefaultVerifyBatch = 50
)

const (
	rationaleMissing      = "no verdict from brand detection; kept as branded"
	rationaleDetectFailed = "brand detection failed; kept as branded"
	rationaleUnverified   = "flagged by brand detection; verification unavailable"
)

// Classifier runs the two passes.
type Classifier struct {
	Detector ai.BrandDetector
	Verifier ai.BrandVerifier
	Limiter  *batch.Limiter
	Retry    batch.Retry
	// Cache is optional. Hits skip both passes.
	Cache       store.Cache
	DetectBatch int
	VerifyBatch int
	Log         *logger.Logger
}

// Result holds the classification of every submitted keyword, keyed by
// normalized phrase.
type Result struct {
	Verdicts      map[string]keyword.BrandClassification
	Warnings      []string
	DetectBatches int
	VerifyBatches int
	CacheHits     int
}

// Branded counts branded verdicts.
func (r Result) Branded() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.IsBranded() {
			n++
		}
	}
	return n
}

// Classify returns a verdict for every phrase. Capability failures never
// fail the call; they are recorded as warnings and resolved to branded.
// onStage, if set, is called after each pass finishes.
func (c *Classifier) Classify(ctx context.Context, phrases []string, onStage func(keyword.Stage)) (Result, error) {
	log := c.Log
	if log == nil {
		log = logger.Nop()
	}
	run := &classification{
		verdicts:  make(map[string]keyword.BrandClassification, len(phrases)),
		cacheable: make(map[string]bool),
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

	pending := keys
	if c.Cache != nil && len(keys) > 0 {
		hits, err := c.Cache.GetBrands(ctx, keys)
		if err != nil {
			run.warn(fmt.Sprintf("brand cache unavailable: %v", err))
		} else {
			pending = make([]string, 0, len(keys))
			for _, k := range keys {
				if e, ok := hits[k]; ok {
					run.verdicts[k] = e.Classification()
					run.cacheHits++
					continue
				}
				pending = append(pending, k)
			}
		}
	}

	// Pass 1.
	detectBatches := batch.Split(display(pending, names), size(c.DetectBatch, DefaultDetectBatch))
	err := batch.Each(ctx, detectBatches, func(ctx context.Context, i int, b []string) error {
		c.detect(ctx, run, b)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if onStage != nil {
		onStage(keyword.Detected)
	}

	// Pass 2 sees only what pass 1 flagged.
	var flagged []string
	for _, k := range pending {
		if run.verdicts[k].IsBranded() {
			flagged = append(flagged, names[k])
		}
	}
	verifyBatches := batch.Split(flagged, size(c.VerifyBatch, DefaultVerifyBatch))
	err = batch.Each(ctx, verifyBatches, func(ctx context.Context, i int, b []string) error {
		c.verify(ctx, run, b)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if onStage != nil {
		onStage(keyword.Verified)
	}

	if c.Cache != nil {
		var entries []store.BrandEntry
		for _, k := range pending {
			if !run.cacheable[k] {
				continue
			}
			v := run.verdicts[k]
			entries = append(entries, store.BrandEntry{Key: k, Status: v.Status, Rationale: v.Rationale, Stage: v.Stage})
		}
		if len(entries) > 0 {
			if err := c.Cache.PutBrands(ctx, entries); err != nil {
				run.warn(fmt.Sprintf("brand cache write failed: %v", err))
			}
		}
	}

	res := Result{
		Verdicts:      run.verdicts,
		Warnings:      run.sortedWarnings(),
		DetectBatches: len(detectBatches),
		VerifyBatches: len(verifyBatches),
		CacheHits:     run.cacheHits,
	}
	log.Info("brand classification finished",
		"keywords", len(keys),
		"branded", res.Branded(),
		"cache_hits", res.CacheHits,
		"detect_batches", res.DetectBatches,
		"verify_batches", res.VerifyBatches,
	)
	return res, nil
}

// classification is the shared state of one Classify call.
type classification struct {
	mu        sync.Mutex
	verdicts  map[string]keyword.BrandClassification
	cacheable map[string]bool
	warnings  []string
	cacheHits int
}

func (r *classification) warn(msg string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
}

func (r *classification) sortedWarnings() []string {
	sort.Strings(r.warnings)
	return r.warnings
}

func (c *Classifier) detect(ctx context.Context, run *classification, phrases []string) {
	var verdicts []ai.BrandVerdict
	err := c.Retry.Run(ctx, c.Limiter, ai.CapBrandDetect, func(ctx context.Context) error {
		var err error
		verdicts, err = c.Detector.DetectBrands(ctx, phrases)
		return err
	})

	run.mu.Lock()
	defer run.mu.Unlock()

	if err != nil {
		run.warnings = append(run.warnings, fmt.Sprintf("brand detection failed for %d keywords: %v", len(phrases), err))
		for _, p := range phrases {
			run.verdicts[keyword.Normalize(p)] = keyword.BrandClassification{
				Status: keyword.Branded, Rationale: rationaleDetectFailed, Stage: keyword.Detected,
			}
		}
		return
	}

	answers := collect(phrases, verdicts)
	for _, p := range phrases {
		k := keyword.Normalize(p)
		v, ok := answers[k]
		if !ok {
			run.verdicts[k] = keyword.BrandClassification{Status: keyword.Branded, Rationale: rationaleMissing, Stage: keyword.Detected}
			continue
		}
		status := keyword.NonBranded
		if v.Branded {
			status = keyword.Branded
		} else {
			// Verification never sees this keyword; the detection answer is final.
			run.cacheable[k] = true
		}
		run.verdicts[k] = keyword.BrandClassification{Status: status, Rationale: rationale(v.Rationale, status), Stage: keyword.Detected}
	}
}

func (c *Classifier) verify(ctx context.Context, run *classification, phrases []string) {
	var verdicts []ai.BrandVerdict
	err := c.Retry.Run(ctx, c.Limiter, ai.CapBrandVerify, func(ctx context.Context) error {
		var err error
		verdicts, err = c.Verifier.VerifyBrands(ctx, phrases)
		return err
	})

	run.mu.Lock()
	defer run.mu.Unlock()

	if err != nil {
		run.warnings = append(run.warnings, fmt.Sprintf("brand verification failed for %d keywords: %v", len(phrases), err))
		for _, p := range phrases {
			k := keyword.Normalize(p)
			v := run.verdicts[k]
			v.Rationale = joinRationale(v.Rationale, rationaleUnverified)
			run.verdicts[k] = v
		}
		return
	}

	answers := collect(phrases, verdicts)
	for _, p := range phrases {
		k := keyword.Normalize(p)
		v, ok := answers[k]
		if !ok {
			// Kept as detected; still branded.
			continue
		}
		status := keyword.Branded
		if !v.Branded {
			status = keyword.NonBranded
		}
		run.verdicts[k] = keyword.BrandClassification{Status: status, Rationale: rationale(v.Rationale, status), Stage: keyword.Verified}
		run.cacheable[k] = true
	}
}

// collect maps answers onto submitted keys. Answers for keywords that were
// not submitted are dropped; when a keyword is answered twice, branded wins.
func collect(submitted []string, verdicts []ai.BrandVerdict) map[string]ai.BrandVerdict {
	want := make(map[string]struct{}, len(submitted))
	for _, p := range submitted {
		want[keyword.Normalize(p)] = struct{}{}
	}
	out := make(map[string]ai.BrandVerdict, len(verdicts))
	for _, v := range verdicts {
		k := keyword.Normalize(v.Keyword)
		if _, ok := want[k]; !ok {
			continue
		}
		if prev, seen := out[k]; seen && prev.Branded {
			continue
		}
		out[k] = v
	}
	return out
}

func rationale(text string, status keyword.BrandStatus) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	if status == keyword.Branded {
		return "Contains brand name"
	}
	return "Generic term"
}

func joinRationale(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func display(keys []string, names map[string]string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = names[k]
	}
	return out
}

func size(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
