package seo

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// Candidate is one keyword eligible for listing text.
type Candidate struct {
	Phrase         string
	Key            string
	SearchVolume   int
	Score          int
	DesignSpecific bool
}

// DefaultCategories are the pool categories used when none are configured.
var DefaultCategories = []keyword.Category{keyword.CategoryRelevant, keyword.CategoryDesignSpecific}

// Pool selects non-branded rows in categories and ranks them by search
// volume, then score, then phrase.
func Pool(rows []keyword.Row, categories []keyword.Category) []Candidate {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	allowed := make(map[keyword.Category]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}

	seen := make(map[string]struct{}, len(rows))
	var out []Candidate
	for _, r := range rows {
		if r.Brand.IsBranded() || !allowed[r.Eval.Category] {
			continue
		}
		key := r.Key
		if key == "" {
			key = keyword.Normalize(r.Phrase)
		}
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{
			Phrase:         r.Phrase,
			Key:            key,
			SearchVolume:   r.SearchVolume,
			Score:          r.Eval.Score,
			DesignSpecific: r.Eval.Category == keyword.CategoryDesignSpecific,
		})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].SearchVolume != c[j].SearchVolume {
			return c[i].SearchVolume > c[j].SearchVolume
		}
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Key < c[j].Key
	})
}

// words splits text into lowercase letter/digit runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// indexOf returns the first position of needle as a contiguous word
// sequence in hay, or -1.
func indexOf(hay, needle []string) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, w := range needle {
			if hay[i+j] != w {
				continue outer
			}
		}
		return i
	}
	return -1
}
