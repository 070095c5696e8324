package roots

import (
	"strings"
	"unicode/utf8"
)

// Stem reduces a lowercase word to its singular form using plain English
// suffix rules: berries→berry, boxes→box, dresses→dress, shoes→shoe,
// mugs→mug. Words ending in "ss" or "us" are left alone.
func Stem(word string) string {
	n := utf8.RuneCountInString(word)
	switch {
	case strings.HasSuffix(word, "ies") && n > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "es") && n > 3:
		for _, suf := range []string{"ses", "ches", "shes", "xes"} {
			if strings.HasSuffix(word, suf) {
				return word[:len(word)-2]
			}
		}
		return word[:len(word)-1]
	case strings.HasSuffix(word, "s") && n > 2:
		if strings.HasSuffix(word, "ss") || strings.HasSuffix(word, "us") {
			return word
		}
		return word[:len(word)-1]
	}
	return word
}
