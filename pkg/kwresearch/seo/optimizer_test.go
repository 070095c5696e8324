package seo

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

func cand(phrase string, volume, score int) Candidate {
	return Candidate{
		Phrase:         phrase,
		Key:            keyword.Normalize(phrase),
		SearchVolume:   volume,
		Score:          score,
		DesignSpecific: score >= 9,
	}
}

func TestOptimizeOverBudgetCurrentTitle(t *testing.T) {
	current := strings.Repeat("Funny Cat Lover Shirt For Women, ", 8)[:250]
	main := "funny cat lovers shirt for women and men"
	require.Len(t, main, 40)

	pool := []Candidate{cand(main, 2000, 8), cand("cat mug", 300, 7)}
	o := New(DefaultOptions(), nil)
	res := o.Optimize(Draft{Title: current}, pool)

	assert.Equal(t, "cat", res.MainRoot)
	assert.Equal(t, "Funny Cat Lovers Shirt For Women And Men", res.Optimized.Title)
	assert.LessOrEqual(t, runeLen(res.Optimized.Title), DefaultTitleBudget)
	assert.Empty(t, res.KeptCurrent)

	cur := res.Comparison.Title.Current
	assert.Equal(t, 250, cur.Characters)
	assert.Equal(t, current, cur.Text)
	assert.Equal(t, current, res.Current.Title)
}

func TestOptimizeStaysWithinBudgets(t *testing.T) {
	vocab := []string{"cat", "dog", "funny", "vintage", "retro", "shirt", "mug", "gift", "lover", "mom",
		"dad", "christmas", "birthday", "halloween", "sweatshirt", "hoodie", "tee", "cute", "kawaii", "hiking"}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		var pool []Candidate
		for i := 0; i < 60; i++ {
			n := 1 + rng.Intn(5)
			w := make([]string, n)
			for j := range w {
				w[j] = vocab[rng.Intn(len(vocab))]
			}
			pool = append(pool, cand(strings.Join(w, " "), rng.Intn(5000), 7+rng.Intn(4)))
		}
		pool = dedupe(pool)
		sortCandidates(pool)

		o := New(DefaultOptions(), nil)
		res := o.Optimize(Draft{}, pool)

		title := res.Optimized.Title
		require.LessOrEqual(t, runeLen(title), DefaultTitleBudget, "run %d: %q", run, title)
		require.True(t, contains(o.roots.Roots(prefix(title, DefaultMobileBudget)), res.MainRoot),
			"run %d: main root %q missing from %q", run, res.MainRoot, title)

		require.LessOrEqual(t, len(res.Optimized.Bullets), DefaultBulletCount)
		for _, b := range res.Optimized.Bullets {
			require.LessOrEqual(t, runeLen(b), DefaultBulletBudget)
		}
		require.GreaterOrEqual(t, res.Comparison.Overall.Optimized.TotalSearchVolume,
			res.Comparison.Overall.Current.TotalSearchVolume)
	}
}

func dedupe(pool []Candidate) []Candidate {
	seen := make(map[string]bool)
	out := pool[:0]
	for _, c := range pool {
		if seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		out = append(out, c)
	}
	return out
}

func TestOptimizeKeepsStrongerCurrentTitle(t *testing.T) {
	pool := []Candidate{cand("dog collar", 1000, 8), cand("collar leather", 900, 8)}
	current := Draft{Title: "Dog Collar Leather"}

	res := New(DefaultOptions(), nil).Optimize(current, pool)

	assert.Equal(t, "collar", res.MainRoot)
	assert.Equal(t, current.Title, res.Optimized.Title)
	assert.Equal(t, []string{"title"}, res.KeptCurrent)
	assert.Equal(t, []string{"Dog Collar", "Collar Leather"}, res.Optimized.Bullets)

	overall := res.Comparison.Overall
	assert.Equal(t, 1900, overall.Current.TotalSearchVolume)
	assert.Equal(t, 3800, overall.Optimized.TotalSearchVolume)
	assert.Equal(t, 1900, res.Improvements.SearchVolume.Improvement.Improvement)
	assert.Equal(t, 100.0, res.Improvements.SearchVolume.Percent)
	assert.Equal(t, 2, res.Improvements.KeywordCount.Improvement)
}

func TestOptimizeEmptyPool(t *testing.T) {
	current := Draft{Title: "Cat Shirt", Bullets: []string{"Soft cotton", "Machine washable"}}
	res := New(DefaultOptions(), nil).Optimize(current, nil)

	assert.True(t, res.Success)
	assert.Equal(t, current, res.Optimized)
	assert.Zero(t, res.Improvements.SearchVolume)
	assert.Zero(t, res.Improvements.KeywordCount)
	assert.Empty(t, res.Improvements.Summary)
	assert.Equal(t, res.Validation.Current, res.Validation.Optimized)
	assert.Equal(t, res.Comparison.Overall.Current, res.Comparison.Overall.Optimized)
}

func TestOptimizeForcesDesignRoot(t *testing.T) {
	pool := []Candidate{
		cand("dog collar", 1000, 8),
		cand("large dog leash", 900, 8),
		cand("puppy harness vest", 800, 7),
		cand("tartan pattern", 10, 10),
	}
	opts := Options{TitleBudget: 30, MobileBudget: 20}

	res := New(opts, nil).Optimize(Draft{}, pool)
	assert.Equal(t, "dog", res.MainRoot)
	assert.Empty(t, res.DesignRoot)
	assert.Equal(t, "Dog Collar, Puppy Harness Vest", res.Optimized.Title)

	opts.IncludeDesignRoot = true
	res = New(opts, nil).Optimize(Draft{}, pool)
	assert.Equal(t, "pattern", res.DesignRoot)
	assert.Equal(t, "Dog Collar, Tartan Pattern", res.Optimized.Title)
}

func TestOptimizeMainRootFitsMobilePrefix(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("vintage ", 12)) + " shirts"
	pool := []Candidate{cand(long, 5000, 8), cand("shirt gift", 100, 8)}
	opts := DefaultOptions()
	opts.MainRoot = "Shirts"

	res := New(opts, nil).Optimize(Draft{}, pool)
	assert.Equal(t, "shirt", res.MainRoot)
	assert.Equal(t, "Shirt Gift", res.Optimized.Title)

	// no candidate fits the prefix: the override is placed as written
	res = New(opts, nil).Optimize(Draft{}, pool[:1])
	assert.Equal(t, "Shirts", res.Optimized.Title)
}

func TestOptimizeMultiWordMainRoot(t *testing.T) {
	pool := []Candidate{
		cand("funny cat shirt", 900, 8),
		cand("cat mug", 800, 8),
		cand("funny gift", 500, 8),
		cand("kitten tee", 400, 8),
	}
	opts := DefaultOptions()
	opts.MainRoot = "funny cats"

	res := New(opts, nil).Optimize(Draft{}, pool)
	assert.Equal(t, "funny", res.MainRoot)
	assert.Equal(t, "Funny Cat Shirt, Kitten Tee", res.Optimized.Title)
	assert.Empty(t, res.Comparison.Title.Optimized.Duplicates)

	// without a fitting candidate every root of the override counts as used
	long := "funny " + strings.TrimSpace(strings.Repeat("vintage ", 12))
	pool = []Candidate{cand(long, 5000, 8), cand("cat mug", 800, 8), cand("kitten tee", 400, 8)}
	res = New(opts, nil).Optimize(Draft{}, pool)
	assert.Equal(t, "Funny Cats, Kitten Tee", res.Optimized.Title)
	assert.Empty(t, res.Comparison.Title.Optimized.Duplicates)
}

func TestOptimizeDropsCurrentTitleWithoutMainRootUpFront(t *testing.T) {
	pool := []Candidate{
		cand("mens gift", 5000, 8),
		cand("birthday present", 4000, 8),
		cand("mens wallet", 3000, 8),
		cand("leather wallet", 900, 8),
	}
	opts := DefaultOptions()
	opts.MainRoot = "wallet"
	current := Draft{Title: "Mens Gift, Birthday Present, " + strings.Repeat("Classic ", 8) + "Leather Wallet, Mens Wallet"}
	require.LessOrEqual(t, runeLen(current.Title), DefaultTitleBudget)
	require.Greater(t, strings.Index(current.Title, "Wallet"), DefaultMobileBudget)

	res := New(opts, nil).Optimize(current, pool)
	assert.NotContains(t, res.KeptCurrent, "title")
	assert.Equal(t, "Mens Wallet, Birthday Present", res.Optimized.Title)
	// the current title carries more volume but loses the main root slot
	assert.Greater(t, res.Comparison.Title.Current.TotalSearchVolume, res.Comparison.Title.Optimized.TotalSearchVolume)
}

func TestOptimizeSummaryAndValidation(t *testing.T) {
	pool := []Candidate{
		cand("dog collar", 1000, 8),
		cand("leather leash", 900, 8),
		cand("tartan pattern", 10, 10),
	}
	current := Draft{Title: "DOG COLLAR WITH FREE SHIPPING!", Bullets: []string{"Dog collar"}}

	res := New(DefaultOptions(), nil).Optimize(current, pool)
	require.Equal(t, "pattern", res.DesignRoot)
	assert.Equal(t, []string{
		"Increased search volume by 1,820 (91.0%)",
		"Added 4 more keywords",
		"Covered 4 more keyword roots",
		"Maintained design-specific positioning",
	}, res.Improvements.Summary)

	cur := res.Validation.Current
	assert.False(t, cur.Compliant)
	rules := make(map[Rule]bool)
	for _, is := range cur.Issues {
		rules[is.Rule] = true
	}
	for _, r := range []Rule{RuleProhibited, RulePromotional, RuleAllCaps, RuleBulletCount} {
		assert.True(t, rules[r], "current listing should fail %s", r)
	}
	for _, is := range res.Validation.Optimized.Issues {
		assert.NotEqual(t, RuleProhibited, is.Rule)
		assert.NotEqual(t, RuleAllCaps, is.Rule)
	}
}


func TestBulletsDoNotRepeatRootsOrKeywords(t *testing.T) {
	pool := []Candidate{
		cand("cat shirt", 900, 8),
		cand("cat mug", 800, 8),
		cand("kitten tee", 700, 8),
		cand("pet lover gift", 600, 8),
	}
	opts := DefaultOptions()
	opts.BulletBudget = 30
	res := New(opts, nil).Optimize(Draft{}, pool)

	assert.Equal(t, []string{
		"Cat Shirt, Kitten Tee",
		"Cat Mug, Pet Lover Gift",
	}, res.Optimized.Bullets)
	// title keywords stay eligible for bullets
	assert.Contains(t, res.Optimized.Title, "Cat Shirt")
}

func TestAnalyzeWholeWordsAndDuplicates(t *testing.T) {
	pool := []Candidate{
		cand("red shoes", 500, 8),
		cand("shoe lovers", 50, 9),
		cand("hoes", 999, 8),
	}
	a := New(DefaultOptions(), nil).Analyze(pool, "Red Shoes for red shoe lovers")

	require.Equal(t, []Match{
		{Keyword: "red shoes", SearchVolume: 500},
		{Keyword: "shoe lovers", SearchVolume: 50, DesignSpecific: true},
	}, a.Keywords)
	assert.Equal(t, 2, a.KeywordCount)
	assert.Equal(t, 550, a.TotalSearchVolume)
	assert.Equal(t, 29, a.Characters)
	assert.Equal(t, map[string]int{"red": 2, "shoe": 2}, a.Duplicates)
	assert.Equal(t, []string{"lover", "red", "shoe"}, a.Roots)
}

func TestAnalyzeCountsPerPart(t *testing.T) {
	pool := []Candidate{cand("cat mug", 100, 8)}
	a := New(DefaultOptions(), nil).Analyze(pool, "cat mug", "big cat", "mug cat mug")
	assert.Equal(t, 2, a.KeywordCount)
	assert.Equal(t, 200, a.TotalSearchVolume)
	assert.Equal(t, "cat mug\nbig cat\nmug cat mug", a.Text)
}

func TestPoolFiltersAndRanks(t *testing.T) {
	row := func(phrase string, volume, score int, cat keyword.Category, branded bool) keyword.Row {
		r := keyword.Row{Record: keyword.Record{Phrase: phrase, Key: keyword.Normalize(phrase), SearchVolume: volume}}
		r.Eval = keyword.Evaluation{Score: score, Category: cat}
		if branded {
			r.Brand.Status = keyword.Branded
		}
		return r
	}
	rows := []keyword.Row{
		row("b shirt", 500, 7, keyword.CategoryRelevant, false),
		row("a shirt", 500, 7, keyword.CategoryRelevant, false),
		row("c shirt", 500, 9, keyword.CategoryDesignSpecific, false),
		row("nike shirt", 9000, 0, keyword.CategoryBranded, true),
		row("odd shirt", 8000, 5, keyword.CategoryOutlier, false),
		row("big shirt", 700, 8, keyword.CategoryRelevant, false),
	}

	var got []string
	for _, c := range Pool(rows, nil) {
		got = append(got, c.Key)
	}
	assert.Equal(t, []string{"big shirt", "c shirt", "a shirt", "b shirt"}, got)

	outliers := Pool(rows, []keyword.Category{keyword.CategoryOutlier})
	require.Len(t, outliers, 1)
	assert.Equal(t, "odd shirt", outliers[0].Key)
}

func TestResultJSONShape(t *testing.T) {
	pool := []Candidate{cand("cat mug", 100, 8)}
	res := New(DefaultOptions(), nil).Optimize(Draft{Title: "Mug"}, pool)
	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, path := range []string{"success", "improvements", "detailed_comparison", "validation"} {
		assert.Contains(t, m, path)
	}
	imp := m["improvements"].(map[string]any)
	assert.IsType(t, []any{}, imp["summary"])
	for _, side := range []string{"current", "optimized"} {
		v := m["validation"].(map[string]any)[side].(map[string]any)
		for _, k := range []string{"is_compliant", "issues", "warnings"} {
			assert.Contains(t, v, k)
		}
	}
	sv := imp["search_volume"].(map[string]any)
	assert.Contains(t, sv, "improvement")
	assert.Contains(t, sv, "improvement_percent")

	title := m["detailed_comparison"].(map[string]any)["title"].(map[string]any)
	opt := title["optimized"].(map[string]any)
	for _, k := range []string{"text", "characters", "keyword_count", "total_search_volume", "keywords", "duplicates"} {
		assert.Contains(t, opt, k, fmt.Sprintf("optimized side missing %s", k))
	}
	overall := m["detailed_comparison"].(map[string]any)["overall"].(map[string]any)
	assert.Contains(t, overall, "improvement")
	assert.Contains(t, overall, "current")
}
