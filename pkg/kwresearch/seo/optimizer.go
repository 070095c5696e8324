// Package seo builds an optimized listing title and bullet set from the
// scored keyword pool and compares it with the current listing.
//
// Selection is greedy in pool order under rune budgets. A candidate is
// skipped when it would overflow the budget or repeat a root already present
// in the same piece of text. The main root is placed first so it lands in
// the mobile-critical prefix of the title.
package seo

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/roots"
)

const (
	DefaultTitleBudget  = 200
	DefaultMobileBudget = 80
	DefaultBulletBudget = 250
	DefaultBulletCount  = 5

	separator = ", "
)

// Draft is a listing title plus bullets.
type Draft struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Options configures the optimizer. Zero budgets select the defaults.
type Options struct {
	TitleBudget  int
	MobileBudget int
	BulletBudget int
	BulletCount  int
	// MainRoot overrides the highest-volume root of the pool.
	MainRoot string
	// DesignRoot is forced into the title after MainRoot. When empty and
	// IncludeDesignRoot is set, the top root among design-specific pool
	// keywords is used.
	DesignRoot        string
	IncludeDesignRoot bool
}

// DefaultOptions returns the listing budgets used by the marketplace.
func DefaultOptions() Options {
	return Options{
		TitleBudget:       DefaultTitleBudget,
		MobileBudget:      DefaultMobileBudget,
		BulletBudget:      DefaultBulletBudget,
		BulletCount:       DefaultBulletCount,
		IncludeDesignRoot: true,
	}
}

func (o Options) withDefaults() Options {
	if o.TitleBudget <= 0 {
		o.TitleBudget = DefaultTitleBudget
	}
	if o.MobileBudget <= 0 || o.MobileBudget > o.TitleBudget {
		o.MobileBudget = min(DefaultMobileBudget, o.TitleBudget)
	}
	if o.BulletBudget <= 0 {
		o.BulletBudget = DefaultBulletBudget
	}
	if o.BulletCount <= 0 {
		o.BulletCount = DefaultBulletCount
	}
	return o
}

// Optimizer selects keywords into listing text.
type Optimizer struct {
	opts  Options
	roots *roots.Extractor
}

// New returns an optimizer. A nil extractor uses the default stop list.
func New(opts Options, ex *roots.Extractor) *Optimizer {
	if ex == nil {
		ex = roots.NewExtractor(nil)
	}
	return &Optimizer{opts: opts.withDefaults(), roots: ex}
}

// Improvement is the difference between the optimized and current value of a
// metric.
type Improvement struct {
	Current     int `json:"current"`
	Optimized   int `json:"optimized"`
	Improvement int `json:"improvement"`
}

// VolumeImprovement adds the relative change, rounded to one decimal.
type VolumeImprovement struct {
	Improvement
	Percent float64 `json:"improvement_percent"`
}

type Improvements struct {
	SearchVolume VolumeImprovement `json:"search_volume"`
	KeywordCount Improvement       `json:"keyword_count"`
	RootCoverage Improvement       `json:"root_coverage"`
	// Summary states each gain in words.
	Summary []string `json:"summary"`
}

// Side pairs the analyses of the current and optimized version of one part.
type Side struct {
	Current   Analysis `json:"current"`
	Optimized Analysis `json:"optimized"`
}

type Overall struct {
	Side
	Improvement Improvements `json:"improvement"`
}

type Comparison struct {
	Title   Side    `json:"title"`
	Bullets Side    `json:"bullets"`
	Overall Overall `json:"overall"`
}

// Result is the outcome of one optimization.
type Result struct {
	Success      bool         `json:"success"`
	Current      Draft        `json:"current"`
	Optimized    Draft        `json:"optimized"`
	MainRoot     string       `json:"main_root"`
	DesignRoot   string       `json:"design_root,omitempty"`
	PoolSize     int          `json:"pool_size"`
	KeptCurrent  []string     `json:"kept_current,omitempty"`
	Improvements Improvements `json:"improvements"`
	Comparison   Comparison   `json:"detailed_comparison"`
	Validation   Validation   `json:"validation"`
}

// Optimize builds an optimized draft from pool and compares it with current.
// pool must be ranked, as returned by Pool. An empty pool returns current
// unchanged.
func (o *Optimizer) Optimize(current Draft, pool []Candidate) Result {
	res := Result{Success: true, Current: current, Optimized: current, PoolSize: len(pool)}
	if len(pool) == 0 {
		res.Comparison = o.compare(current, current, nil)
		res.Improvements = res.Comparison.Overall.Improvement
		res.Validation = Validation{Current: Validate(current), Optimized: Validate(current)}
		return res
	}

	caser := cases.Title(language.English, cases.NoLower)
	cands := o.prepare(pool, caser)
	res.MainRoot, res.DesignRoot = o.pickRoots(pool)

	opt := Draft{
		Title:   o.buildTitle(cands, res.MainRoot, res.DesignRoot),
		Bullets: o.buildBullets(cands),
	}

	// Keep a current part that fits its budget and carries more volume.
	if o.titleFits(current.Title, res.MainRoot) &&
		o.Analyze(pool, current.Title).TotalSearchVolume > o.Analyze(pool, opt.Title).TotalSearchVolume {
		opt.Title = current.Title
		res.KeptCurrent = append(res.KeptCurrent, "title")
	}
	if len(current.Bullets) > 0 && o.bulletsFit(current.Bullets) &&
		o.Analyze(pool, current.Bullets...).TotalSearchVolume > o.Analyze(pool, opt.Bullets...).TotalSearchVolume {
		opt.Bullets = append([]string(nil), current.Bullets...)
		res.KeptCurrent = append(res.KeptCurrent, "bullets")
	}

	res.Optimized = opt
	res.Comparison = o.compare(current, opt, pool)
	if res.DesignRoot != "" && contains(o.roots.Roots(opt.Title), res.DesignRoot) {
		imp := &res.Comparison.Overall.Improvement
		imp.Summary = append(imp.Summary, "Maintained design-specific positioning")
	}
	res.Improvements = res.Comparison.Overall.Improvement
	res.Validation = Validation{Current: Validate(current), Optimized: Validate(opt)}
	return res
}

type prepared struct {
	Candidate
	text  string // display form
	size  int    // runes in text
	roots []string
}

func (o *Optimizer) prepare(pool []Candidate, caser cases.Caser) []prepared {
	out := make([]prepared, 0, len(pool))
	for _, c := range pool {
		rs := o.roots.Roots(c.Key)
		if len(rs) == 0 {
			continue
		}
		text := caser.String(strings.Join(strings.Fields(c.Phrase), " "))
		out = append(out, prepared{Candidate: c, text: text, size: runeLen(text), roots: rs})
	}
	return out
}

func (o *Optimizer) pickRoots(pool []Candidate) (main, design string) {
	main = o.rootOf(o.opts.MainRoot)
	if main == "" {
		recs := make([]keyword.Record, 0, len(pool))
		for _, c := range pool {
			recs = append(recs, keyword.Record{Phrase: c.Phrase, Key: c.Key, SearchVolume: c.SearchVolume})
		}
		if ranked := o.roots.Rank(recs); len(ranked) > 0 {
			main = ranked[0].Token
		}
	}

	design = o.rootOf(o.opts.DesignRoot)
	if design == "" && o.opts.IncludeDesignRoot {
		var recs []keyword.Record
		for _, c := range pool {
			if c.DesignSpecific {
				recs = append(recs, keyword.Record{Phrase: c.Phrase, Key: c.Key, SearchVolume: c.SearchVolume})
			}
		}
		for _, r := range o.roots.Rank(recs) {
			if r.Token != main {
				design = r.Token
				break
			}
		}
	}
	if design == main {
		design = ""
	}
	return main, design
}

// rootOf returns the first root of an override phrase. A multi-word
// override such as "funny cats" leads with "funny".
func (o *Optimizer) rootOf(s string) string {
	if rs := o.roots.Roots(s); len(rs) > 0 {
		return rs[0]
	}
	return ""
}

// bare is the title text used when no candidate carries root. A caller
// override is written out whole so its roots are all marked as used.
func (o *Optimizer) bare(caser cases.Caser, root, override string) (string, []string) {
	if o.rootOf(override) == root {
		text := caser.String(strings.Join(strings.Fields(override), " "))
		return text, o.roots.Roots(text)
	}
	return caser.String(root), []string{root}
}

// piece accumulates keyword text under a rune budget.
type piece struct {
	parts  []string
	size   int
	budget int
	roots  map[string]bool
	used   map[string]bool
}

func newPiece(budget int) *piece {
	return &piece{budget: budget, roots: make(map[string]bool), used: make(map[string]bool)}
}

// sizeWith is the rune length after appending n runes.
func (p *piece) sizeWith(n int) int {
	if len(p.parts) == 0 {
		return n
	}
	return p.size + utf8.RuneCountInString(separator) + n
}

func (p *piece) repeats(rs []string) bool {
	for _, r := range rs {
		if p.roots[r] {
			return true
		}
	}
	return false
}

func (p *piece) add(text, key string, rs []string) {
	p.size = p.sizeWith(runeLen(text))
	p.parts = append(p.parts, text)
	if key != "" {
		p.used[key] = true
	}
	for _, r := range rs {
		p.roots[r] = true
	}
}

func (p *piece) String() string { return strings.Join(p.parts, separator) }

func contains(rs []string, root string) bool {
	for _, r := range rs {
		if r == root {
			return true
		}
	}
	return false
}

func (o *Optimizer) buildTitle(cands []prepared, main, design string) string {
	t := newPiece(o.opts.TitleBudget)
	caser := cases.Title(language.English, cases.NoLower)

	if main != "" {
		placed := false
		for _, c := range cands {
			if contains(c.roots, main) && c.size <= o.opts.MobileBudget {
				t.add(c.text, c.Key, c.roots)
				placed = true
				break
			}
		}
		if !placed {
			if text, rs := o.bare(caser, main, o.opts.MainRoot); runeLen(text) <= t.budget {
				t.add(text, "", rs)
			}
		}
	}

	if design != "" && !t.roots[design] {
		placed := false
		for _, c := range cands {
			if contains(c.roots, design) && !t.repeats(c.roots) && t.sizeWith(c.size) <= t.budget {
				t.add(c.text, c.Key, c.roots)
				placed = true
				break
			}
		}
		if !placed {
			text, rs := o.bare(caser, design, o.opts.DesignRoot)
			if t.repeats(rs) {
				text, rs = caser.String(design), []string{design}
			}
			if t.sizeWith(runeLen(text)) <= t.budget {
				t.add(text, "", rs)
			}
		}
	}

	for _, c := range cands {
		if t.used[c.Key] || t.repeats(c.roots) || t.sizeWith(c.size) > t.budget {
			continue
		}
		t.add(c.text, c.Key, c.roots)
	}
	return t.String()
}

// buildBullets fills each bullet from candidates not used by an earlier
// bullet. Title keywords stay eligible.
func (o *Optimizer) buildBullets(cands []prepared) []string {
	used := make(map[string]bool)
	var out []string
	for len(out) < o.opts.BulletCount {
		b := newPiece(o.opts.BulletBudget)
		for _, c := range cands {
			if used[c.Key] || b.repeats(c.roots) || b.sizeWith(c.size) > b.budget {
				continue
			}
			b.add(c.text, c.Key, c.roots)
		}
		if len(b.parts) == 0 {
			break
		}
		for k := range b.used {
			used[k] = true
		}
		out = append(out, b.String())
	}
	return out
}

// titleFits reports whether title is within budget and, when the main root
// itself fits the mobile prefix, carries it there.
func (o *Optimizer) titleFits(title, main string) bool {
	if title == "" || runeLen(title) > o.opts.TitleBudget {
		return false
	}
	if main == "" || runeLen(main) > o.opts.MobileBudget {
		return true
	}
	return contains(o.roots.Roots(prefix(title, o.opts.MobileBudget)), main)
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (o *Optimizer) bulletsFit(bullets []string) bool {
	if len(bullets) > o.opts.BulletCount {
		return false
	}
	for _, b := range bullets {
		if runeLen(b) > o.opts.BulletBudget {
			return false
		}
	}
	return true
}

func (o *Optimizer) compare(current, opt Draft, pool []Candidate) Comparison {
	var cmp Comparison
	cmp.Title = Side{Current: o.Analyze(pool, current.Title), Optimized: o.Analyze(pool, opt.Title)}
	cmp.Bullets = Side{Current: o.Analyze(pool, current.Bullets...), Optimized: o.Analyze(pool, opt.Bullets...)}
	cmp.Overall.Side = Side{
		Current:   o.Analyze(pool, append([]string{current.Title}, current.Bullets...)...),
		Optimized: o.Analyze(pool, append([]string{opt.Title}, opt.Bullets...)...),
	}
	cmp.Overall.Improvement = improvements(cmp.Overall.Current, cmp.Overall.Optimized)
	return cmp
}

func improvements(cur, opt Analysis) Improvements {
	sv := VolumeImprovement{Improvement: delta(cur.TotalSearchVolume, opt.TotalSearchVolume)}
	if cur.TotalSearchVolume > 0 {
		pct := float64(sv.Improvement.Improvement) / float64(cur.TotalSearchVolume) * 100
		sv.Percent = math.Round(pct*10) / 10
	}
	imp := Improvements{
		SearchVolume: sv,
		KeywordCount: delta(cur.KeywordCount, opt.KeywordCount),
		RootCoverage: delta(len(cur.Roots), len(opt.Roots)),
		Summary:      []string{},
	}
	p := message.NewPrinter(language.English)
	if d := imp.SearchVolume.Improvement.Improvement; d > 0 {
		imp.Summary = append(imp.Summary, p.Sprintf("Increased search volume by %d (%.1f%%)", d, sv.Percent))
	}
	if d := imp.KeywordCount.Improvement; d > 0 {
		imp.Summary = append(imp.Summary, p.Sprintf("Added %d more keywords", d))
	}
	if d := imp.RootCoverage.Improvement; d > 0 {
		imp.Summary = append(imp.Summary, p.Sprintf("Covered %d more keyword roots", d))
	}
	return imp
}

func delta(cur, opt int) Improvement {
	return Improvement{Current: cur, Optimized: opt, Improvement: opt - cur}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
