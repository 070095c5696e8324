// Package ingest turns seller keyword reports into keyword records.
//
// A report row is kept when it has a phrase and a numeric, non-negative
// search volume. Everything else about a row is best effort: a garbled rank
// is treated as absent and a garbled title density as zero.
package ingest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// DefaultCompetitorRankCutoff is the rank under which a competitor ASIN
// column counts as a hit for the phrase.
const DefaultCompetitorRankCutoff = 11

var requiredColumns = []string{
	keyword.ColPhrase,
	keyword.ColSearchVolume,
	keyword.ColRank,
	keyword.ColTitleDensity,
}

// Report is one uploaded dataset and the source it came from.
type Report struct {
	Name   string
	Source keyword.Source
	Table  Table
}

// Result holds the candidate records of one report.
type Result struct {
	Candidates []keyword.Record
	Total      int
	Filtered   int
}

// Ingestor parses reports into candidate records.
type Ingestor struct {
	// MinCompetitorHits drops rows ranked by fewer competitor ASINs. Zero
	// disables the filter.
	MinCompetitorHits int
	// CompetitorRankCutoff defaults to DefaultCompetitorRankCutoff.
	CompetitorRankCutoff int
}

// Ingest parses a report. It fails only when a required column is absent.
func (in *Ingestor) Ingest(rep Report) (Result, error) {
	idx := rep.Table.index()
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return Result{}, fmt.Errorf("%s report: %q: %w", rep.Name, col, internalerr.ErrMissingColumn)
		}
	}
	asinCols := rep.Table.ASINColumns()
	if len(asinCols) == 0 {
		return Result{}, fmt.Errorf("%s report: %s* columns: %w", rep.Name, keyword.ASINPrefix, internalerr.ErrMissingColumn)
	}

	cutoff := in.CompetitorRankCutoff
	if cutoff <= 0 {
		cutoff = DefaultCompetitorRankCutoff
	}

	res := Result{Total: len(rep.Table.Rows)}
	for _, row := range rep.Table.Rows {
		rec, ok := in.parseRow(rep, idx, asinCols, cutoff, row)
		if !ok {
			res.Filtered++
			continue
		}
		res.Candidates = append(res.Candidates, rec)
	}
	return res, nil
}

func (in *Ingestor) parseRow(rep Report, idx map[string]int, asinCols []string, cutoff int, row []string) (keyword.Record, bool) {
	phrase := strings.Join(strings.Fields(cell(row, idx[keyword.ColPhrase])), " ")
	if phrase == "" {
		return keyword.Record{}, false
	}
	volume, ok := parseVolume(cell(row, idx[keyword.ColSearchVolume]))
	if !ok {
		return keyword.Record{}, false
	}

	rec := keyword.Record{
		Phrase:       phrase,
		Key:          keyword.Normalize(phrase),
		SearchVolume: volume,
		Rank:         parseRank(cell(row, idx[keyword.ColRank])),
		TitleDensity: parseFloat(cell(row, idx[keyword.ColTitleDensity])),
		Sources:      rep.Source,
		Columns:      make(map[string]string, len(rep.Table.Header)),
	}
	for i, h := range rep.Table.Header {
		if h == "" {
			continue
		}
		if _, seen := rec.Columns[h]; !seen {
			rec.Columns[h] = cell(row, i)
		}
	}
	for _, col := range asinCols {
		v := cell(row, idx[col])
		if v == "" {
			continue
		}
		rec.ASINs = append(rec.ASINs, col)
		if f, err := strconv.ParseFloat(v, 64); err == nil && f < float64(cutoff) {
			rec.CompetitorHits++
		}
	}
	sort.Strings(rec.ASINs)

	if in.MinCompetitorHits > 0 && rec.CompetitorHits < in.MinCompetitorHits {
		return keyword.Record{}, false
	}
	return rec, true
}

// maxIntFloat is the first float64 that no longer converts to an int.
const maxIntFloat = float64(math.MaxInt)

// parseVolume accepts "1,234", "1234" and "1234.0".
func parseVolume(s string) (int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || f >= maxIntFloat {
		return 0, false
	}
	return int(f), true
}

func parseRank(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 1 || f >= maxIntFloat {
		return 0
	}
	return int(f)
}

func parseFloat(s string) float64 {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
