package roots

import (
	"strings"
	"unicode"
)

// DefaultStopwords is the English stop list applied to keyword phrases.
var DefaultStopwords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"from", "up", "about", "into", "through", "during", "before", "after", "above", "below",
	"between", "among", "against", "without", "within", "is", "are", "was", "were", "be",
	"been", "being", "have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "can", "must", "shall",
}

// Tokenizer splits keyword phrases into lowercase significant words.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given stopword list. A nil list
// selects DefaultStopwords.
func NewTokenizer(stopwords []string) *Tokenizer {
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// Tokenize returns the significant words of text in order. Duplicates are
// kept.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '\'' {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// processToken cleans a raw token and filters it.
func (t *Tokenizer) processToken(token string) string {
	word := cleanToken(token)
	if len([]rune(word)) <= 1 {
		return ""
	}
	// "2024" or "3-4" carry no meaning as a root; "4k" or "usb-c" do.
	if isNumericOnly(word) {
		return ""
	}
	if t.IsStopword(word) {
		return ""
	}
	return word
}

// cleanToken drops possessives, strips edge hyphens and collapses hyphen runs.
func cleanToken(token string) string {
	token = strings.TrimSuffix(token, "'s")
	token = strings.ReplaceAll(token, "'", "")
	token = strings.Trim(token, "-")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// IsStopword reports whether word is on the stop list.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[strings.ToLower(word)]
	return ok
}

// AddStopword adds a word to the stop list.
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword removes a word from the stop list.
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, strings.ToLower(word))
}
