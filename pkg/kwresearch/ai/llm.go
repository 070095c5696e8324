package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
)

// Chatter is the part of internal/llm.Client the capabilities use.
type Chatter interface {
	ChatJSON(ctx context.Context, system, user string, out any) error
}

// LLM implements every capability on a chat completion model.
type LLM struct {
	client Chatter
}

// NewLLM wraps a chat client.
func NewLLM(c Chatter) *LLM {
	return &LLM{client: c}
}

// Capabilities returns l as all four capabilities.
func (l *LLM) Capabilities() Capabilities {
	return Capabilities{Detector: l, Verifier: l, Evaluator: l, Summarizer: l}
}

type brandReply struct {
	Classifications []struct {
		Keyword   string `json:"keyword"`
		IsBranded *bool  `json:"is_branded"`
		Reasoning string `json:"reasoning"`
	} `json:"classifications"`
	// Older prompt variants answered with the branded subset only.
	BrandedKeywords []string `json:"branded_keywords"`
	Reasoning       string   `json:"reasoning"`
}

func (l *LLM) DetectBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error) {
	return l.brands(ctx, brandDetectionPrompt, "Classify these keywords", keywords)
}

func (l *LLM) VerifyBrands(ctx context.Context, keywords []string) ([]BrandVerdict, error) {
	return l.brands(ctx, brandVerificationPrompt, "Verify these keywords flagged as branded", keywords)
}

func (l *LLM) brands(ctx context.Context, system, lead string, keywords []string) ([]BrandVerdict, error) {
	user, err := jsonPrompt(lead, map[string]any{"keywords": keywords})
	if err != nil {
		return nil, err
	}
	var reply brandReply
	if err := l.client.ChatJSON(ctx, system, user, &reply); err != nil {
		return nil, fmt.Errorf("%v: %w", err, internalerr.ErrCapability)
	}
	out := make([]BrandVerdict, 0, len(keywords))
	for _, c := range reply.Classifications {
		// A classification without a verdict is left out; the caller
		// treats missing keywords conservatively.
		if c.IsBranded == nil {
			continue
		}
		out = append(out, BrandVerdict{Keyword: c.Keyword, Branded: *c.IsBranded, Rationale: c.Reasoning})
	}
	for _, kw := range reply.BrandedKeywords {
		out = append(out, BrandVerdict{Keyword: kw, Branded: true, Rationale: reply.Reasoning})
	}
	return out, nil
}

type relevanceReply struct {
	KeywordEvaluations []struct {
		Keyword        string `json:"keyword"`
		RelevanceScore any    `json:"relevance_score"`
		Rationale      string `json:"rationale"`
	} `json:"keyword_evaluations"`
	Error string `json:"error"`
}

func (l *LLM) EvaluateRelevance(ctx context.Context, summary []string, keywords []string) ([]RelevanceVerdict, error) {
	user, err := jsonPrompt("Evaluate the relevance of these keywords to the product", map[string]any{
		"product_summary": summary,
		"keywords":        keywords,
	})
	if err != nil {
		return nil, err
	}
	var reply relevanceReply
	if err := l.client.ChatJSON(ctx, relevancePrompt, user, &reply); err != nil {
		return nil, fmt.Errorf("%v: %w", err, internalerr.ErrCapability)
	}
	if reply.Error != "" && len(reply.KeywordEvaluations) == 0 {
		return nil, fmt.Errorf("evaluator: %s: %w", reply.Error, internalerr.ErrCapability)
	}
	out := make([]RelevanceVerdict, 0, len(reply.KeywordEvaluations))
	for _, e := range reply.KeywordEvaluations {
		out = append(out, RelevanceVerdict{
			Keyword:   e.Keyword,
			Score:     parseScore(e.RelevanceScore),
			Rationale: strings.TrimSpace(e.Rationale),
		})
	}
	return out, nil
}

type summaryReply struct {
	ProductSummary []string `json:"product_summary"`
}

func (l *LLM) Summarize(ctx context.Context, p productinfo.Product) ([]string, error) {
	user, err := jsonPrompt("Product data", map[string]any{
		"title":       p.Title,
		"bullets":     p.Bullets,
		"description": p.Description,
	})
	if err != nil {
		return nil, err
	}
	var reply summaryReply
	if err := l.client.ChatJSON(ctx, summaryPrompt, user, &reply); err != nil {
		return nil, fmt.Errorf("%v: %w", err, internalerr.ErrCapability)
	}
	var out []string
	for _, b := range reply.ProductSummary {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("summary: empty: %w", internalerr.ErrCapability)
	}
	return out, nil
}

func jsonPrompt(lead string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return lead + ":\n\n" + string(data), nil
}

// parseScore accepts JSON numbers and numeric strings; anything else is NaN.
func parseScore(v any) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
