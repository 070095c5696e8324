// Package store caches capability verdicts across runs.
//
// The cache only short-circuits model calls. Run results are never stored
// here; each run still writes its own flat output files.
package store

import (
	"context"
	"time"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// Cache is the verdict cache used by the brand and relevance stages.
type Cache interface {
	Close() error

	// GetBrands returns cached brand verdicts for the given keyword keys.
	// Keys without an entry are absent from the map.
	GetBrands(ctx context.Context, keys []string) (map[string]BrandEntry, error)
	PutBrands(ctx context.Context, entries []BrandEntry) error

	// GetRelevance returns cached scores of keyword keys for one product.
	GetRelevance(ctx context.Context, product string, keys []string) (map[string]RelevanceEntry, error)
	PutRelevance(ctx context.Context, entries []RelevanceEntry) error
}

// BrandEntry is a final brand verdict for a keyword key.
type BrandEntry struct {
	Key       string
	Status    keyword.BrandStatus
	Rationale string
	Stage     keyword.Stage
	UpdatedAt time.Time
}

// Classification converts the entry back to a classification.
func (e BrandEntry) Classification() keyword.BrandClassification {
	return keyword.BrandClassification{Status: e.Status, Rationale: e.Rationale, Stage: e.Stage}
}

// RelevanceEntry is a validated score of a keyword for a product.
type RelevanceEntry struct {
	Product   string
	Key       string
	Score     int
	Rationale string
	UpdatedAt time.Time
}
