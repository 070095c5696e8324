package seo

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

// Match is a pool keyword found in listing text.
type Match struct {
	Keyword        string `json:"keyword"`
	SearchVolume   int    `json:"search_volume"`
	DesignSpecific bool   `json:"is_design_specific"`
}

// Duplicate is a root stem used more than once.
type Duplicate struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Analysis describes one side of a listing. It is computed from the text and
// never updated afterwards.
type Analysis struct {
	Text              string
	Characters        int
	KeywordCount      int
	TotalSearchVolume int
	Keywords          []Match
	// Duplicates maps a stem to its occurrence count; only counts above one.
	Duplicates map[string]int
	// Roots are the distinct roots of the matched keywords, sorted.
	Roots []string
}

// DuplicateList returns Duplicates ordered by count descending, then stem.
func (a Analysis) DuplicateList() []Duplicate {
	out := make([]Duplicate, 0, len(a.Duplicates))
	for k, n := range a.Duplicates {
		out = append(out, Duplicate{Keyword: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	keywords := a.Keywords
	if keywords == nil {
		keywords = []Match{}
	}
	roots := a.Roots
	if roots == nil {
		roots = []string{}
	}
	return json.Marshal(struct {
		Text              string      `json:"text"`
		Characters        int         `json:"characters"`
		KeywordCount      int         `json:"keyword_count"`
		TotalSearchVolume int         `json:"total_search_volume"`
		Keywords          []Match     `json:"keywords"`
		Duplicates        []Duplicate `json:"duplicates"`
		Roots             []string    `json:"roots"`
	}{a.Text, a.Characters, a.KeywordCount, a.TotalSearchVolume, keywords, a.DuplicateList(), roots})
}

// Analyze matches pool keywords in each part independently: a keyword counts
// once per part it appears in, and never across a part boundary. Parts are
// measured as-is, whatever their length.
func (o *Optimizer) Analyze(pool []Candidate, parts ...string) Analysis {
	a := Analysis{
		Text:       strings.Join(parts, "\n"),
		Duplicates: make(map[string]int),
	}
	stemCounts := make(map[string]int)
	rootSet := make(map[string]struct{})

	for _, part := range parts {
		a.Characters += utf8.RuneCountInString(part)
		hay := words(part)

		type hit struct {
			pos int
			c   Candidate
		}
		var hits []hit
		for _, c := range pool {
			if pos := indexOf(hay, words(c.Key)); pos >= 0 {
				hits = append(hits, hit{pos, c})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
		for _, h := range hits {
			a.Keywords = append(a.Keywords, Match{
				Keyword:        h.c.Phrase,
				SearchVolume:   h.c.SearchVolume,
				DesignSpecific: h.c.DesignSpecific,
			})
			a.TotalSearchVolume += h.c.SearchVolume
			for _, r := range o.roots.Roots(h.c.Key) {
				rootSet[r] = struct{}{}
			}
		}

		for _, w := range o.roots.Tokens(part) {
			stemCounts[w]++
		}
	}

	a.KeywordCount = len(a.Keywords)
	for stem, n := range stemCounts {
		if n > 1 {
			a.Duplicates[stem] = n
		}
	}
	a.Roots = make([]string, 0, len(rootSet))
	for r := range rootSet {
		a.Roots = append(a.Roots, r)
	}
	sort.Strings(a.Roots)
	return a
}
