package output

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

func fixedNow() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func rows() []keyword.Row {
	red := keyword.Row{
		Record: keyword.Record{Phrase: "red shoes", Key: "red shoes", Columns: map[string]string{"Keyword Phrase": "red shoes", "Search Volume": "500"}},
		Brand:  keyword.BrandClassification{Status: keyword.NonBranded, Rationale: "generic", Stage: keyword.Detected},
		Eval:   keyword.Evaluation{Score: 8, Category: keyword.CategoryRelevant, Rationale: "fits", Tags: []keyword.Tag{keyword.TagMisspelled}},
	}
	nike := keyword.Row{
		Record: keyword.Record{Phrase: "Nike shoes", Key: "nike shoes", Columns: map[string]string{"Keyword Phrase": "Nike shoes", "Search Volume": "800"}},
		Brand:  keyword.BrandClassification{Status: keyword.Branded, Rationale: "Nike is a brand", Stage: keyword.Verified},
		Eval:   keyword.Evaluation{Category: keyword.CategoryBranded, Rationale: "branded keyword, not evaluated"},
	}
	return []keyword.Row{nike, red}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestNames(t *testing.T) {
	w := &Writer{Now: fixedNow}
	names := w.Names("B0TEST1234", "01J0000000000000000000000")
	assert.Equal(t, "keyword_evaluations_B0TEST1234_20260304_050607_01J0000000000000000000000.csv", names.Evaluations)
	assert.Equal(t, "brand_classification_20260304_050607_01J0000000000000000000000.csv", names.Brands)
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Now: fixedNow}
	names := w.Names("B0X", "run1")
	cols := []string{"Keyword Phrase", "Search Volume", "keyword"}

	require.NoError(t, w.Write(names, cols, rows(), rows()))

	eval := readCSV(t, filepath.Join(dir, names.Evaluations))
	require.Len(t, eval, 3)
	assert.Equal(t, []string{"Keyword Phrase", "Search Volume", "keyword", "category", "relevance_score",
		"tag", "rationale", "brand_status", "brand_rationale"}, eval[0])
	assert.Equal(t, []string{"Nike shoes", "800", "Nike shoes", "branded", "0", "none",
		"branded keyword, not evaluated", "Branded", "Nike is a brand"}, eval[1])
	assert.Equal(t, []string{"red shoes", "500", "red shoes", "relevant", "8", "misspelled",
		"fits", "Non-Branded", "generic"}, eval[2])

	brands := readCSV(t, filepath.Join(dir, names.Brands))
	require.Len(t, brands, 3)
	assert.Equal(t, []string{"keyword", "brand_status", "brand_rationale", "classification_stage"}, brands[0])
	assert.Equal(t, []string{"Nike shoes", "Branded", "Nike is a brand", "verified"}, brands[1])

	// no temporary files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := &Writer{Dir: filepath.Join(blocker, "out"), Now: fixedNow}
	err := w.Write(w.Names("B0X", "run1"), nil, rows(), rows())
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrOutputWrite), err.Error())
}

func TestObjectScores(t *testing.T) {
	rs := rows()
	nike := Object(rs[0], []string{"Search Volume"})
	assert.Equal(t, 0, nike[FieldRelevanceScore])
	assert.Equal(t, "800", nike["Search Volume"])
	assert.Equal(t, "branded", nike[FieldCategory])

	unscored := rs[1]
	unscored.Eval = keyword.Evaluation{Category: keyword.CategoryUncategorized}
	obj := Object(unscored, nil)
	assert.Nil(t, obj[FieldRelevanceScore])
	assert.Equal(t, "none", obj[FieldTag])
}
