package seo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var goodBullets = []string{
	"Soft cotton blend that keeps its shape",
	"Printed in vivid colors that last",
	"Machine wash cold with like colors",
}

func rulesOf(is []Issue) map[Rule]int {
	out := make(map[Rule]int)
	for _, i := range is {
		out[i.Rule]++
	}
	return out
}

func TestValidateCompliantDraft(t *testing.T) {
	r := Validate(Draft{Title: "Funny Cat Shirt for Women", Bullets: goodBullets})
	assert.True(t, r.Compliant, "%+v", r.Issues)
	assert.Empty(t, r.Issues)
	assert.Empty(t, r.Warnings)
}

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		issues  []Rule
		warning []Rule
	}{
		{"prohibited", "Cat Shirt $20 Deal", []Rule{RuleProhibited}, nil},
		{"limited", "Cat Shirt Pack of 2 #1", nil, []Rule{RuleLimited}},
		{"emoji", "Cat Shirt 😺", []Rule{RuleEmoji}, nil},
		{"repetition", "Cat Shirt Cat Mug Cat Tee", []Rule{RuleRepetition}, nil},
		{"repeated exempt words", "Shirt for Dad and Mom and Kids and Aunts", nil, nil},
		{"promotional", "Cat Shirt Best Seller", []Rule{RulePromotional}, nil},
		{"all caps", "FUNNY CAT SHIRT", []Rule{RuleAllCaps}, nil},
		{"lowercase", "funny cat shirt", nil, []Rule{RuleLowercase, RuleCapitalize}},
		{"capitalized article", "Cat Shirt For Women", nil, []Rule{RuleCapitalize}},
		{"too long", strings.Repeat("Cat Shirt ", 21), []Rule{RuleLength, RuleRepetition}, nil},
		{"mobile", strings.Repeat("Vintage Retro Cat ", 5), []Rule{RuleRepetition}, []Rule{RuleMobileLength}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(Draft{Title: tt.title, Bullets: goodBullets})
			for _, rule := range tt.issues {
				assert.Contains(t, rulesOf(r.Issues), rule)
			}
			for _, rule := range tt.warning {
				assert.Contains(t, rulesOf(r.Warnings), rule)
			}
			assert.Equal(t, len(tt.issues) == 0, r.Compliant, "%+v", r.Issues)
		})
	}
}

func TestValidateBullets(t *testing.T) {
	tests := []struct {
		name   string
		bullet string
		rule   Rule
	}{
		{"short", "Soft", RuleLength},
		{"long", "A" + strings.Repeat("a", MaxBulletLength), RuleLength},
		{"lowercase start", "soft cotton blend fabric", RuleCapitalize},
		{"prohibited", "Official Cat™ design print", RuleProhibited},
		{"emoji", "Soft cotton ✅ every time", RuleEmoji},
		{"placeholder", "Size chart N/A for this item", RulePlaceholder},
		{"claim", "Made from Bamboo fibers", RuleClaim},
		{"guarantee", "Money back guarantee included", RuleGuarantee},
		{"link", "See www.example.com for sizes", RuleLink},
		{"asin", "Matches our mug B08N5WRWNW", RuleASIN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bullets := append([]string{tt.bullet}, goodBullets...)
			r := Validate(Draft{Title: "Cat Shirt", Bullets: bullets})
			assert.False(t, r.Compliant)
			assert.Contains(t, rulesOf(r.Issues), tt.rule)
			for _, is := range r.Issues {
				assert.Equal(t, "bullet 1", is.Part)
			}
		})
	}
}

func TestValidatePlaceholderWholeWord(t *testing.T) {
	r := Validate(Draft{Title: "Banana Shirt", Bullets: []string{"Banana print on soft cotton", goodBullets[1], goodBullets[2]}})
	assert.NotContains(t, rulesOf(r.Issues), RulePlaceholder)
	assert.True(t, r.Compliant, "%+v", r.Issues)
}

func TestValidateBulletSet(t *testing.T) {
	r := Validate(Draft{Title: "Cat Shirt"})
	assert.Equal(t, 1, rulesOf(r.Issues)[RuleBulletCount])

	dup := goodBullets[0]
	r = Validate(Draft{Title: "Cat Shirt", Bullets: []string{dup, goodBullets[1], dup + " "}})
	assert.Equal(t, 1, rulesOf(r.Issues)[RuleDuplicate])
	assert.Equal(t, 1, rulesOf(r.Issues)[RuleSimilarBullet])

	r = Validate(Draft{Title: "Cat Shirt", Bullets: []string{
		"Soft cotton blend that keeps its shape after every single wash",
		"Soft cotton blend that keeps its shape after every gentle wash",
		goodBullets[1],
	}})
	assert.Zero(t, rulesOf(r.Issues)[RuleDuplicate])
	assert.Equal(t, 1, rulesOf(r.Issues)[RuleSimilarBullet])

	r = Validate(Draft{Title: "Cat Shirt", Bullets: append(goodBullets[:2:2], "Machine wash cold.")})
	assert.True(t, r.Compliant)
	assert.Equal(t, 1, rulesOf(r.Warnings)[RulePunctuation])
}
