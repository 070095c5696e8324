package categorize

import (
	"strings"
	"unicode"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// DefaultMarkers are words that identify a non-English keyword written in
// Latin script.
var DefaultMarkers = map[string][]string{
	"es": {"mujer", "hombre", "niños", "niña", "niño", "regalo", "regalos", "camiseta", "taza", "para"},
	"de": {"für", "damen", "herren", "kinder", "geschenk", "geschenke", "tasse", "und"},
	"fr": {"femme", "homme", "enfant", "cadeau", "cadeaux", "tasse", "avec"},
	"it": {"donna", "uomo", "bambini", "regalo", "regali", "tazza"},
	"pt": {"mulher", "homem", "crianças", "presente", "presentes", "caneca", "para"},
}

const (
	// minMisspellLen is the shortest stem considered for misspelling detection.
	minMisspellLen = 4
	// minCommonCount is how many keywords must use the correct stem before a
	// one-keyword neighbour is taken for its misspelling.
	minCommonCount = 3
)

// Vocabulary counts how many keywords use each stem.
type Vocabulary map[string]int

// NewVocabulary counts stems across a keyword set. Each keyword counts once
// per stem.
func NewVocabulary(stemSets [][]string) Vocabulary {
	v := make(Vocabulary)
	for _, stems := range stemSets {
		seen := make(map[string]struct{}, len(stems))
		for _, s := range stems {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			v[s]++
		}
	}
	return v
}

// Tagger attaches language and spelling tags.
type Tagger struct {
	// markers maps a lowercase word to the language codes it marks.
	markers map[string][]string
}

// NewTagger builds a tagger from marker lists keyed by language code. A nil
// map selects DefaultMarkers.
func NewTagger(markers map[string][]string) *Tagger {
	if markers == nil {
		markers = DefaultMarkers
	}
	t := &Tagger{markers: make(map[string][]string)}
	for code, words := range markers {
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			t.markers[w] = append(t.markers[w], strings.ToLower(code))
		}
	}
	return t
}

// Tag returns the sorted tag set of a phrase. stems are the phrase's roots
// and vocab the stem counts of the whole keyword set.
func (t *Tagger) Tag(phrase string, stems []string, vocab Vocabulary) []keyword.Tag {
	var tags []keyword.Tag
	for _, code := range scriptLanguages(phrase) {
		tags = append(tags, keyword.LanguageTag(code))
	}
	for _, code := range t.markerLanguages(phrase) {
		tags = append(tags, keyword.LanguageTag(code))
	}
	if misspelled(stems, vocab) {
		tags = append(tags, keyword.TagMisspelled)
	}
	return keyword.NormalizeTags(tags)
}

var scripts = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Han, "zh"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Greek, "el"},
	{unicode.Hebrew, "he"},
	{unicode.Devanagari, "hi"},
	{unicode.Thai, "th"},
}

// scriptLanguages detects languages from non-Latin scripts. Kana wins over
// Han so Japanese text is not also tagged Chinese.
func scriptLanguages(phrase string) []string {
	found := make(map[string]bool)
	for _, r := range phrase {
		if r < 0x80 {
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				found[s.code] = true
				break
			}
		}
	}
	if found["ja"] {
		delete(found, "zh")
	}
	out := make([]string, 0, len(found))
	for code := range found {
		out = append(out, code)
	}
	return out
}

// markerLanguages needs two marker words when a word is ambiguous between
// languages ("para" is es and pt); a single unambiguous marker is enough.
func (t *Tagger) markerLanguages(phrase string) []string {
	hits := make(map[string]int)
	unique := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(phrase), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		codes := t.markers[w]
		for _, c := range codes {
			hits[c]++
			if len(codes) == 1 {
				unique[c] = true
			}
		}
	}
	var out []string
	for code, n := range hits {
		if unique[code] || n >= 2 {
			out = append(out, code)
		}
	}
	return out
}

// misspelled reports a stem used by one keyword sitting one edit away from a
// stem used by at least minCommonCount keywords.
func misspelled(stems []string, vocab Vocabulary) bool {
	for _, s := range stems {
		if len([]rune(s)) < minMisspellLen || vocab[s] != 1 {
			continue
		}
		for other, n := range vocab {
			if n < minCommonCount || other == s {
				continue
			}
			if withinOneEdit(s, other) {
				return true
			}
		}
	}
	return false
}

// withinOneEdit reports an optimal-string-alignment distance of at most 1:
// one insertion, deletion, substitution or adjacent transposition.
func withinOneEdit(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la-lb > 1 || lb-la > 1 {
		return false
	}
	if la == lb {
		first := -1
		diffs := 0
		for i := range ra {
			if ra[i] != rb[i] {
				if diffs == 0 {
					first = i
				}
				diffs++
			}
		}
		switch diffs {
		case 0, 1:
			return true
		case 2:
			return first+1 < la && ra[first] == rb[first+1] && ra[first+1] == rb[first] && string(ra[first+2:]) == string(rb[first+2:])
		default:
			return false
		}
	}
	if la < lb {
		ra, rb = rb, ra
	}
	// ra is one rune longer than rb.
	i, j, skipped := 0, 0, false
	for i < len(ra) && j < len(rb) {
		if ra[i] == rb[j] {
			i++
			j++
			continue
		}
		if skipped {
			return false
		}
		skipped = true
		i++
	}
	return true
}
