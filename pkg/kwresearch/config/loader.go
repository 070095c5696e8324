package config

import (
	"fmt"

	"github.com/cognicore/kwresearch/pkg/kwresearch/categorize"
	"github.com/cognicore/kwresearch/pkg/kwresearch/roots"
)

// Components are the text helpers built from configuration files.
type Components struct {
	Tokenizer *roots.Tokenizer
	Tagger    *categorize.Tagger
}

// Components builds the tokenizer and tagger. Stoplist terms extend the
// default stop words.
func (c Config) Components() (*Components, error) {
	comp := &Components{Tokenizer: roots.NewTokenizer(nil)}

	if c.Stoplist != "" {
		sl, err := LoadStoplist(c.Stoplist)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		for _, term := range sl.Terms {
			comp.Tokenizer.AddStopword(term)
		}
	}

	comp.Tagger = categorize.NewTagger(c.LanguageMarkers)
	return comp, nil
}
