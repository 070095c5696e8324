// Package ai defines the model-backed capabilities the pipeline consumes.
//
// Each capability takes a batch and returns a batch. Responses are not
// trusted: callers validate every verdict and decide what to do with
// keywords the capability skipped.
package ai

import (
	"context"

	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
)

// Capability names used in logs and metrics.
const (
	CapBrandDetect = "brand_detect"
	CapBrandVerify = "brand_verify"
	CapRelevance   = "relevance"
	CapSummary     = "summary"
)

// BrandVerdict is the answer for one keyword.
type BrandVerdict struct {
	Keyword   string
	Branded   bool
	Rationale string
}

// RelevanceVerdict is the raw score of one keyword. Score is NaN when the
// capability returned something that is not a number.
type RelevanceVerdict struct {
	Keyword   string
	Score     float64
	Rationale string
}

// BrandDetector flags keywords that reference a brand. It should lean
// towards branded when unsure.
type BrandDetector interface {
	DetectBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error)
}

// BrandVerifier re-checks keywords flagged as branded.
type BrandVerifier interface {
	VerifyBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error)
}

// RelevanceEvaluator scores keywords 1-10 against a product summary.
type RelevanceEvaluator interface {
	EvaluateRelevance(ctx context.Context, summary []string, keywords []string) ([]RelevanceVerdict, error)
}

// ProductSummarizer condenses product content into summary bullets.
type ProductSummarizer interface {
	Summarize(ctx context.Context, p productinfo.Product) ([]string, error)
}

// Capabilities bundles the four capabilities a run needs.
type Capabilities struct {
	Detector   BrandDetector
	Verifier   BrandVerifier
	Evaluator  RelevanceEvaluator
	Summarizer ProductSummarizer
}
