// Package roots derives root tokens from keyword phrases and ranks them by
// the search volume of the keywords that contain them.
package roots

import (
	"sort"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// TopN is the number of roots reported in run metadata.
const TopN = 10

// Root is one aggregated root token.
type Root struct {
	Token    string
	Volume   int
	Keywords int
}

// Extractor maps phrases to root tokens.
type Extractor struct {
	tok *Tokenizer
}

// NewExtractor returns an extractor using tok. A nil tokenizer selects the
// default stop list.
func NewExtractor(tok *Tokenizer) *Extractor {
	if tok == nil {
		tok = NewTokenizer(nil)
	}
	return &Extractor{tok: tok}
}

// Roots returns the distinct stems of phrase in first-seen order.
func (e *Extractor) Roots(phrase string) []string {
	words := e.tok.Tokenize(phrase)
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		s := Stem(w)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Tokens returns the stem of every significant word in text, repeats
// included.
func (e *Extractor) Tokens(text string) []string {
	words := e.tok.Tokenize(text)
	for i, w := range words {
		words[i] = Stem(w)
	}
	return words
}

// Rank aggregates search volume per root. A keyword contributes its volume
// once to every root it contains. The result is sorted by volume descending,
// ties broken by root string, so any ordering of the same records yields the
// same ranking.
func (e *Extractor) Rank(records []keyword.Record) []Root {
	// Duplicate keys count once, at their highest volume.
	volumes := make(map[string]int, len(records))
	for _, r := range records {
		key := r.Key
		if key == "" {
			key = keyword.Normalize(r.Phrase)
		}
		if v, ok := volumes[key]; !ok || r.SearchVolume > v {
			volumes[key] = r.SearchVolume
		}
	}

	agg := make(map[string]*Root)
	for key, volume := range volumes {
		for _, root := range e.Roots(key) {
			cur, ok := agg[root]
			if !ok {
				cur = &Root{Token: root}
				agg[root] = cur
			}
			cur.Volume += volume
			cur.Keywords++
		}
	}

	out := make([]Root, 0, len(agg))
	for _, r := range agg {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Top returns the tokens of the first n roots.
func Top(ranked []Root, n int) []string {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.Token)
	}
	return out
}
