package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// Table is a decoded report: a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV decodes a seller report. Header names are trimmed and a leading
// UTF-8 BOM is removed; short or long rows are kept as-is.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("read header: %w", internalerr.ErrInvalidInput)
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	tbl := Table{Header: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", len(tbl.Rows)+2, err)
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

// index maps column names to their position.
func (t Table) index() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// ASINColumns returns the header names that identify competitor ASINs.
func (t Table) ASINColumns() []string {
	var cols []string
	for _, h := range t.Header {
		if strings.HasPrefix(h, keyword.ASINPrefix) {
			cols = append(cols, h)
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
