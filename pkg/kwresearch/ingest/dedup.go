package ingest

import (
	"sort"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// Deduplicate merges records sharing a normalized phrase: max search volume,
// min rank (absent ranks lose), max title density, union of sources and ASIN
// columns. The result is sorted by key so repeated runs agree.
func Deduplicate(records []keyword.Record) []keyword.Record {
	merged := make(map[string]*keyword.Record, len(records))
	order := make([]string, 0, len(records))

	for _, r := range records {
		key := r.Key
		if key == "" {
			key = keyword.Normalize(r.Phrase)
		}
		if key == "" {
			continue
		}
		cur, ok := merged[key]
		if !ok {
			c := r.Clone()
			c.Key = key
			merged[key] = &c
			order = append(order, key)
			continue
		}
		mergeInto(cur, r)
	}

	sort.Strings(order)
	out := make([]keyword.Record, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

func mergeInto(dst *keyword.Record, src keyword.Record) {
	if src.SearchVolume > dst.SearchVolume {
		dst.SearchVolume = src.SearchVolume
	}
	if src.HasRank() && (!dst.HasRank() || src.Rank < dst.Rank) {
		dst.Rank = src.Rank
	}
	if src.TitleDensity > dst.TitleDensity {
		dst.TitleDensity = src.TitleDensity
	}
	if src.CompetitorHits > dst.CompetitorHits {
		dst.CompetitorHits = src.CompetitorHits
	}
	dst.Sources |= src.Sources
	dst.ASINs = unionSorted(dst.ASINs, src.ASINs)

	if dst.Columns == nil && len(src.Columns) > 0 {
		dst.Columns = make(map[string]string, len(src.Columns))
	}
	for k, v := range src.Columns {
		if existing, ok := dst.Columns[k]; !ok || existing == "" {
			dst.Columns[k] = v
		}
	}
}

func unionSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
