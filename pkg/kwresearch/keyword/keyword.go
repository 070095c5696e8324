// Package keyword holds the records that flow through the research pipeline.
package keyword

import (
	"sort"
	"strings"
)

// Source marks which report a record was seen in.
type Source uint8

const (
	SourceDesign Source = 1 << iota
	SourceRevenue
)

// Has reports whether s includes other.
func (s Source) Has(other Source) bool { return s&other != 0 }

func (s Source) String() string {
	switch s {
	case SourceDesign:
		return "design"
	case SourceRevenue:
		return "revenue"
	case SourceDesign | SourceRevenue:
		return "design+revenue"
	default:
		return ""
	}
}

// Column names of the seller keyword reports.
const (
	ColPhrase       = "Keyword Phrase"
	ColSearchVolume = "Search Volume"
	ColRank         = "Position (Rank)"
	ColTitleDensity = "Title Density"
	ASINPrefix      = "B0"
)

// Record is one keyword phrase with its report metrics.
type Record struct {
	Phrase         string
	Key            string
	SearchVolume   int
	Rank           int // 0 when the report had no rank
	TitleDensity   float64
	Sources        Source
	ASINs          []string // B0 column names holding a value, sorted
	CompetitorHits int      // B0 columns ranking the phrase under the cutoff
	Columns        map[string]string
}

// HasRank reports whether the record carries a rank.
func (r Record) HasRank() bool { return r.Rank > 0 }

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.ASINs = append([]string(nil), r.ASINs...)
	if r.Columns != nil {
		out.Columns = make(map[string]string, len(r.Columns))
		for k, v := range r.Columns {
			out.Columns[k] = v
		}
	}
	return out
}

// Normalize case-folds a phrase and collapses whitespace.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// BrandStatus is the outcome of brand classification.
type BrandStatus int

const (
	NonBranded BrandStatus = iota
	Branded
)

func (s BrandStatus) String() string {
	if s == Branded {
		return "Branded"
	}
	return "Non-Branded"
}

// Stage is the brand classifier state a verdict reached.
type Stage int

const (
	Unclassified Stage = iota
	Detected
	Verified
)

func (s Stage) String() string {
	switch s {
	case Detected:
		return "detected"
	case Verified:
		return "verified"
	default:
		return "unclassified"
	}
}

// BrandClassification is attached to every record after brand filtering.
type BrandClassification struct {
	Status    BrandStatus
	Rationale string
	Stage     Stage
}

// IsBranded is shorthand for Status == Branded.
func (b BrandClassification) IsBranded() bool { return b.Status == Branded }

// Category is the relevance bucket of a keyword.
type Category string

const (
	CategoryBranded        Category = "branded"
	CategoryIrrelevant     Category = "irrelevant"
	CategoryOutlier        Category = "outlier"
	CategoryRelevant       Category = "relevant"
	CategoryDesignSpecific Category = "design_specific"
	CategoryUncategorized  Category = "uncategorized"
)

// ParseCategory maps a config string to a Category.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryBranded, CategoryIrrelevant, CategoryOutlier, CategoryRelevant,
		CategoryDesignSpecific, CategoryUncategorized:
		return c, true
	}
	return "", false
}

// Tag is a language or spelling marker independent of category.
type Tag string

const TagMisspelled Tag = "misspelled"

// LanguageTag builds a "language:<code>" tag.
func LanguageTag(code string) Tag { return Tag("language:" + strings.ToLower(code)) }

// FormatTags renders a tag set for CSV output; "none" when empty.
func FormatTags(tags []Tag) string {
	if len(tags) == 0 {
		return "none"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ";")
}

// NormalizeTags deduplicates and sorts tags.
func NormalizeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Evaluation is the relevance outcome of a keyword.
type Evaluation struct {
	Score     int // 1-10; 0 for branded or uncategorized rows
	Rationale string
	Category  Category
	Tags      []Tag
	Failed    bool // evaluator failed and the midpoint was used
}

// Row is one fully processed keyword.
type Row struct {
	Record
	Brand BrandClassification
	Eval  Evaluation
}
