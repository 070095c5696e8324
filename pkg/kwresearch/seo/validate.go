package seo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Listing guideline limits.
const (
	MinBullets      = 3
	MinBulletLength = 10
	MaxBulletLength = 255
	// MaxWordRepeats is how often a non-exempt word may appear in a title.
	MaxWordRepeats = 2
	// capsMinLength is the title length from which case rules apply.
	capsMinLength = 10
	// similarBullets is the word overlap above which two bullets are near
	// duplicates.
	similarBullets = 0.8
)

// Rule names an Issue's guideline.
type Rule string

const (
	RuleLength        Rule = "length"
	RuleMobileLength  Rule = "mobile_length"
	RuleProhibited    Rule = "prohibited_characters"
	RuleLimited       Rule = "limited_characters"
	RuleEmoji         Rule = "emoji"
	RuleRepetition    Rule = "word_repetition"
	RulePromotional   Rule = "promotional_phrase"
	RuleAllCaps       Rule = "all_caps"
	RuleLowercase     Rule = "all_lowercase"
	RuleCapitalize    Rule = "capitalization"
	RuleBulletCount   Rule = "bullet_count"
	RulePunctuation   Rule = "end_punctuation"
	RulePlaceholder   Rule = "placeholder"
	RuleClaim         Rule = "prohibited_claim"
	RuleGuarantee     Rule = "guarantee"
	RuleLink          Rule = "link"
	RuleASIN          Rule = "asin"
	RuleDuplicate     Rule = "duplicate_bullet"
	RuleSimilarBullet Rule = "similar_bullets"
)

// Issue is one guideline finding. Part is "title", "bullets" or "bullet N".
type Issue struct {
	Part    string `json:"part"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// Report lists the findings for one draft. Issues make the draft
// non-compliant; warnings do not.
type Report struct {
	Compliant bool    `json:"is_compliant"`
	Issues    []Issue `json:"issues"`
	Warnings  []Issue `json:"warnings"`
}

// Validation pairs the reports of the current and optimized listing.
type Validation struct {
	Current   Report `json:"current"`
	Optimized Report `json:"optimized"`
}

var (
	titleProhibited  = "!$?_{}^¬¦"
	titleLimited     = "~#<>*"
	bulletProhibited = "™®€…†‡º¢£¥©±~"

	promotional  = []string{"free shipping", "100% guaranteed", "best seller", "hot item"}
	placeholders = []string{"not applicable", "na", "n/a", "not eligible", "tbd", "copy pending"}
	claims       = []string{"eco-friendly", "environmentally friendly", "anti-microbial", "anti-bacterial", "bamboo", "soy"}
	guarantees   = []string{"full refund", "unconditional guarantee", "satisfaction guarantee", "money back guarantee"}

	// exempt words may repeat and are written lowercase inside a title.
	exempt = map[string]bool{
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
		"from": true, "as": true, "and": true, "or": true, "but": true, "the": true, "a": true, "an": true,
	}

	asinPattern = regexp.MustCompile(`B[0-9]{2}[A-Z0-9]{7}`)
)

type findings struct {
	issues, warnings []Issue
}

func (f *findings) issue(part string, rule Rule, format string, args ...any) {
	f.issues = append(f.issues, Issue{Part: part, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (f *findings) warn(part string, rule Rule, format string, args ...any) {
	f.warnings = append(f.warnings, Issue{Part: part, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a draft against the marketplace title and bullet
// guidelines.
func Validate(d Draft) Report {
	var f findings
	validateTitle(&f, d.Title)
	validateBullets(&f, d.Bullets)
	return Report{Compliant: len(f.issues) == 0, Issues: nonNil(f.issues), Warnings: nonNil(f.warnings)}
}

func validateTitle(f *findings, title string) {
	const part = "title"
	switch n := runeLen(title); {
	case n > DefaultTitleBudget:
		f.issue(part, RuleLength, "title exceeds %d characters (%d)", DefaultTitleBudget, n)
	case n > DefaultMobileBudget:
		f.warn(part, RuleMobileLength, "title exceeds %d characters (%d) and may be truncated on mobile", DefaultMobileBudget, n)
	}
	if found := charsIn(title, titleProhibited); found != "" {
		f.issue(part, RuleProhibited, "contains prohibited characters: %s", found)
	}
	if found := charsIn(title, titleLimited); found != "" {
		f.warn(part, RuleLimited, "contains limited-use characters: %s; use them only for measurements or identifiers", found)
	}
	if hasEmoji(title) {
		f.issue(part, RuleEmoji, "contains emojis")
	}

	counts := make(map[string]int)
	for _, w := range words(title) {
		if !exempt[w] {
			counts[w]++
		}
	}
	repeated := make([]string, 0, len(counts))
	for w, n := range counts {
		if n > MaxWordRepeats {
			repeated = append(repeated, w)
		}
	}
	sort.Strings(repeated)
	for _, w := range repeated {
		f.issue(part, RuleRepetition, "word %q repeated %d times (max %d)", w, counts[w], MaxWordRepeats)
	}

	lower := strings.ToLower(title)
	for _, p := range promotional {
		if strings.Contains(lower, p) {
			f.issue(part, RulePromotional, "contains promotional phrase %q", p)
		}
	}

	if runeLen(title) > capsMinLength {
		switch {
		case isCase(title, unicode.IsUpper):
			f.issue(part, RuleAllCaps, "title is in all caps")
		case isCase(title, unicode.IsLower):
			f.warn(part, RuleLowercase, "title is in all lowercase; use title case")
		}
	}

	for i, w := range strings.Fields(title) {
		first, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsLetter(first) {
			continue
		}
		upper := unicode.IsUpper(first)
		switch {
		case i == 0:
			if !upper {
				f.warn(part, RuleCapitalize, "first word %q should be capitalized", w)
			}
		case exempt[strings.ToLower(w)]:
			if upper {
				f.warn(part, RuleCapitalize, "word %q should be lowercase", w)
			}
		case !upper:
			f.warn(part, RuleCapitalize, "word %q should be capitalized", w)
		}
	}
}

func validateBullets(f *findings, bullets []string) {
	if len(bullets) < MinBullets {
		f.issue("bullets", RuleBulletCount, "at least %d bullets required (found %d)", MinBullets, len(bullets))
	}
	for i, b := range bullets {
		part := fmt.Sprintf("bullet %d", i+1)
		switch n := runeLen(b); {
		case n < MinBulletLength:
			f.issue(part, RuleLength, "too short (%d characters, minimum %d)", n, MinBulletLength)
		case n > MaxBulletLength:
			f.issue(part, RuleLength, "too long (%d characters, maximum %d)", n, MaxBulletLength)
		}
		if first, _ := utf8.DecodeRuneInString(b); b != "" && !unicode.IsUpper(first) {
			f.issue(part, RuleCapitalize, "must start with a capital letter")
		}
		if last, _ := utf8.DecodeLastRuneInString(b); b != "" && strings.ContainsRune(".!?", last) {
			f.warn(part, RulePunctuation, "should not end with punctuation")
		}
		if found := charsIn(b, bulletProhibited); found != "" {
			f.issue(part, RuleProhibited, "contains prohibited characters: %s", found)
		}
		if hasEmoji(b) {
			f.issue(part, RuleEmoji, "contains emojis")
		}

		lower := strings.ToLower(b)
		ws := words(b)
		for _, p := range placeholders {
			if containsPhrase(lower, ws, p) {
				f.issue(part, RulePlaceholder, "contains placeholder text %q", p)
			}
		}
		for _, c := range claims {
			if strings.Contains(lower, c) {
				f.issue(part, RuleClaim, "contains prohibited claim %q", c)
			}
		}
		for _, g := range guarantees {
			if strings.Contains(lower, g) {
				f.issue(part, RuleGuarantee, "contains guarantee language %q", g)
			}
		}
		if strings.Contains(lower, "http") || strings.Contains(lower, "www.") {
			f.issue(part, RuleLink, "contains a link")
		}
		if asinPattern.MatchString(b) {
			f.issue(part, RuleASIN, "contains an ASIN")
		}
	}

	seen := make(map[string]bool, len(bullets))
	for i, b := range bullets {
		key := strings.ToLower(strings.TrimSpace(b))
		if seen[key] {
			f.issue(fmt.Sprintf("bullet %d", i+1), RuleDuplicate, "duplicates an earlier bullet")
		}
		seen[key] = true
	}
	for i := range bullets {
		for j := i + 1; j < len(bullets); j++ {
			if s := similarity(bullets[i], bullets[j]); s > similarBullets {
				f.issue("bullets", RuleSimilarBullet, "bullets %d and %d are %d%% similar", i+1, j+1, int(s*100))
			}
		}
	}
}

// containsPhrase matches single words whole and longer phrases as
// substrings, so "na" does not match "banana".
func containsPhrase(lower string, ws []string, p string) bool {
	if strings.ContainsAny(p, " /") {
		return strings.Contains(lower, p)
	}
	for _, w := range ws {
		if w == p {
			return true
		}
	}
	return false
}

// similarity is the Jaccard overlap of the two texts' word sets.
func similarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	return float64(inter) / float64(len(wa)+len(wb)-inter)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range words(s) {
		out[w] = true
	}
	return out
}

// charsIn returns the distinct runes of set found in s, in set order.
func charsIn(s, set string) string {
	var found []string
	for _, r := range set {
		if strings.ContainsRune(s, r) {
			found = append(found, string(r))
		}
	}
	return strings.Join(found, " ")
}

// hasEmoji reports pictographs and the dingbat and symbol blocks, which
// hold the smileys and check marks.
func hasEmoji(s string) bool {
	for _, r := range s {
		if (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) {
			return true
		}
	}
	return false
}

// isCase reports whether s has a cased letter and every cased letter passes
// is.
func isCase(s string, is func(rune) bool) bool {
	cased := false
	for _, r := range s {
		if !unicode.IsUpper(r) && !unicode.IsLower(r) {
			continue
		}
		if !is(r) {
			return false
		}
		cased = true
	}
	return cased
}

func nonNil(is []Issue) []Issue {
	if is == nil {
		return []Issue{}
	}
	return is
}
