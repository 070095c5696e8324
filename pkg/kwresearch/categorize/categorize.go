// Package categorize maps relevance scores to categories and tags keyword
// phrases with language and spelling markers.
package categorize

import "github.com/cognicore/kwresearch/pkg/kwresearch/keyword"

// ForScore maps a 1-10 score to its category. Scores outside the range are
// uncategorized.
func ForScore(score int) keyword.Category {
	switch {
	case score >= 1 && score <= 4:
		return keyword.CategoryIrrelevant
	case score >= 5 && score <= 6:
		return keyword.CategoryOutlier
	case score >= 7 && score <= 8:
		return keyword.CategoryRelevant
	case score >= 9 && score <= 10:
		return keyword.CategoryDesignSpecific
	default:
		return keyword.CategoryUncategorized
	}
}

// ForRow applies the branded override before the score mapping.
func ForRow(branded bool, score int) keyword.Category {
	if branded {
		return keyword.CategoryBranded
	}
	return ForScore(score)
}
