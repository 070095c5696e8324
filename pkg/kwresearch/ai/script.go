package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
)

// Script is a deterministic stand-in for the model capabilities. Keys of the
// maps are lowercase keywords.
type Script struct {
	// Detected keywords are answered as branded by DetectBrands; every other
	// keyword is answered as not branded.
	Detected map[string]bool
	// Generic keywords are downgraded by VerifyBrands.
	Generic map[string]bool
	// Scores answers EvaluateRelevance; keywords without a score are left
	// out of the response.
	Scores  map[string]float64
	Summary []string

	DetectErr    error
	VerifyErr    error
	EvaluateErr  error
	SummarizeErr error

	// FailFirst makes the first N calls of each capability return its error
	// and succeed afterwards.
	FailFirst int

	mu    sync.Mutex
	calls map[string]int
	seen  map[string][][]string
}

// Calls reports how many times a capability was invoked.
func (s *Script) Calls(capability string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[capability]
}

// Batches returns the keyword batches a capability received.
func (s *Script) Batches(capability string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.seen[capability]...)
}

// Capabilities returns s as all four capabilities.
func (s *Script) Capabilities() Capabilities {
	return Capabilities{Detector: s, Verifier: s, Evaluator: s, Summarizer: s}
}

func (s *Script) record(capability string, keywords []string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
		s.seen = make(map[string][][]string)
	}
	s.calls[capability]++
	if keywords != nil {
		s.seen[capability] = append(s.seen[capability], append([]string(nil), keywords...))
	}
	if err == nil {
		return nil
	}
	if s.FailFirst > 0 && s.calls[capability] > s.FailFirst {
		return nil
	}
	return err
}

func (s *Script) DetectBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error) {
	if err := s.record(CapBrandDetect, keywords, s.DetectErr); err != nil {
		return nil, err
	}
	out := make([]BrandVerdict, 0, len(keywords))
	for _, kw := range keywords {
		if s.Detected[strings.ToLower(kw)] {
			out = append(out, BrandVerdict{Keyword: kw, Branded: true, Rationale: "contains a brand name"})
			continue
		}
		out = append(out, BrandVerdict{Keyword: kw, Branded: false, Rationale: "generic term"})
	}
	return out, ctx.Err()
}

func (s *Script) VerifyBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error) {
	if err := s.record(CapBrandVerify, keywords, s.VerifyErr); err != nil {
		return nil, err
	}
	out := make([]BrandVerdict, 0, len(keywords))
	for _, kw := range keywords {
		if s.Generic[strings.ToLower(kw)] {
			out = append(out, BrandVerdict{Keyword: kw, Branded: false, Rationale: "generic term after review"})
			continue
		}
		out = append(out, BrandVerdict{Keyword: kw, Branded: true, Rationale: "confirmed brand"})
	}
	return out, ctx.Err()
}

func (s *Script) EvaluateRelevance(ctx context.Context, _ []string, keywords []string) ([]RelevanceVerdict, error) {
	if err := s.record(CapRelevance, keywords, s.EvaluateErr); err != nil {
		return nil, err
	}
	out := make([]RelevanceVerdict, 0, len(keywords))
	for _, kw := range keywords {
		score, ok := s.Scores[strings.ToLower(kw)]
		if !ok {
			continue
		}
		out = append(out, RelevanceVerdict{Keyword: kw, Score: score, Rationale: "scripted score"})
	}
	return out, ctx.Err()
}

func (s *Script) Summarize(ctx context.Context, _ productinfo.Product) ([]string, error) {
	if err := s.record(CapSummary, nil, s.SummarizeErr); err != nil {
		return nil, err
	}
	return append([]string(nil), s.Summary...), ctx.Err()
}
