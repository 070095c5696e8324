// Package output writes the per-run result files and builds the row objects
// of the complete payload.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// TimestampLayout is embedded in every artifact name.
const TimestampLayout = "20060102_150405"

// Fields appended after the original report columns.
const (
	FieldKeyword        = "keyword"
	FieldCategory       = "category"
	FieldRelevanceScore = "relevance_score"
	FieldTag            = "tag"
	FieldRationale      = "rationale"
	FieldBrandStatus    = "brand_status"
	FieldBrandRationale = "brand_rationale"
	FieldStage          = "classification_stage"
)

var evalFields = []string{
	FieldKeyword, FieldCategory, FieldRelevanceScore, FieldTag,
	FieldRationale, FieldBrandStatus, FieldBrandRationale,
}

var brandFields = []string{FieldKeyword, FieldBrandStatus, FieldBrandRationale, FieldStage}

// Files names the artifacts of one run, relative to the writer directory.
type Files struct {
	Evaluations string
	Brands      string
}

// Writer writes artifacts into Dir.
type Writer struct {
	Dir string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Names returns the artifact names for a run. Names embed the timestamp and
// the run id so concurrent runs never collide.
func (w *Writer) Names(productToken, runID string) Files {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(TimestampLayout)
	return Files{
		Evaluations: fmt.Sprintf("keyword_evaluations_%s_%s_%s.csv", productToken, ts, runID),
		Brands:      fmt.Sprintf("brand_classification_%s_%s.csv", ts, runID),
	}
}

// Write stores the evaluation rows and the brand classification of every
// keyword. columns are the original report columns in output order.
func (w *Writer) Write(names Files, columns []string, evaluations, classified []keyword.Row) error {
	if err := os.MkdirAll(w.dir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %v: %w", w.dir(), err, internalerr.ErrOutputWrite)
	}

	cols := originalColumns(columns)
	header := append(append([]string(nil), cols...), evalFields...)
	err := w.writeCSV(names.Evaluations, header, len(evaluations), func(i int) []string {
		return evaluationRecord(evaluations[i], cols)
	})
	if err != nil {
		return err
	}

	return w.writeCSV(names.Brands, brandFields, len(classified), func(i int) []string {
		r := classified[i]
		return []string{r.Phrase, r.Brand.Status.String(), r.Brand.Rationale, r.Brand.Stage.String()}
	})
}

func (w *Writer) dir() string {
	if w.Dir == "" {
		return "."
	}
	return w.Dir
}

// writeCSV writes to a temporary file and renames it into place, so a
// reader never sees a partial artifact.
func (w *Writer) writeCSV(name string, header []string, n int, record func(int) []string) error {
	f, err := os.CreateTemp(w.dir(), ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create %s: %v: %w", name, err, internalerr.ErrOutputWrite)
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %v: %w", name, err, internalerr.ErrOutputWrite)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fail(err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return fail(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %v: %w", name, err, internalerr.ErrOutputWrite)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir(), name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %v: %w", name, err, internalerr.ErrOutputWrite)
	}
	return nil
}

// originalColumns drops report columns that clash with appended fields.
func originalColumns(columns []string) []string {
	reserved := make(map[string]bool, len(evalFields))
	for _, f := range evalFields {
		reserved[f] = true
	}
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "" || reserved[c] || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func evaluationRecord(r keyword.Row, cols []string) []string {
	rec := make([]string, 0, len(cols)+len(evalFields))
	for _, c := range cols {
		rec = append(rec, r.Columns[c])
	}
	score := ""
	if s, ok := Score(r); ok {
		score = strconv.Itoa(s)
	}
	return append(rec,
		r.Phrase,
		string(r.Eval.Category),
		score,
		keyword.FormatTags(r.Eval.Tags),
		r.Eval.Rationale,
		r.Brand.Status.String(),
		r.Brand.Rationale,
	)
}

// Score returns the relevance score of a row. Rows that were never
// evaluated have none.
func Score(r keyword.Row) (int, bool) {
	if r.Brand.IsBranded() {
		return 0, true
	}
	if r.Eval.Category == keyword.CategoryUncategorized || r.Eval.Category == "" {
		return 0, false
	}
	return r.Eval.Score, true
}

// Object renders a row for the complete payload: original columns plus the
// appended fields. relevance_score is nil for rows never evaluated.
func Object(r keyword.Row, columns []string) map[string]any {
	cols := originalColumns(columns)
	obj := make(map[string]any, len(cols)+len(evalFields))
	for _, c := range cols {
		obj[c] = r.Columns[c]
	}
	var score any
	if s, ok := Score(r); ok {
		score = s
	}
	obj[FieldKeyword] = r.Phrase
	obj[FieldCategory] = string(r.Eval.Category)
	obj[FieldRelevanceScore] = score
	obj[FieldTag] = keyword.FormatTags(r.Eval.Tags)
	obj[FieldRationale] = r.Eval.Rationale
	obj[FieldBrandStatus] = r.Brand.Status.String()
	obj[FieldBrandRationale] = r.Brand.Rationale
	return obj
}
