// Package dataset owns the unified dataset file: loading, additive schema
// extension, appends, and the atomic write-back cycle.
package dataset

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// LoadError indicates the dataset or reference file is missing or malformed.
// Fatal: the run aborts without touching anything.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return "dataset: load " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Table is the in-memory unified dataset: a header and raw rows aligned to
// it. Existing rows are kept as loaded so a write-back reproduces them
// byte-for-byte; only additive column extension pads them with empty cells.
type Table struct {
	Header []string
	Rows   [][]string

	colIdx map[string]int
}

// New returns an empty table with the canonical column set.
func New() *Table {
	header := make([]string, len(model.CanonicalColumns))
	copy(header, model.CanonicalColumns)
	t := &Table{Header: header}
	t.reindex()
	return t
}

// Load reads the unified dataset CSV. Every row must have the header's
// column count; encoding/csv enforces that, and any violation surfaces as a
// LoadError.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Path: path, Err: eris.New("missing header row")}
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
	}
	if _, ok := indexOf(header, "record_id"); !ok {
		return nil, &LoadError{Path: path, Err: eris.New(`missing required column "record_id"`)}
	}

	t := &Table{Header: header, Rows: records[1:]}
	t.reindex()
	return t, nil
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	idx, ok := t.colIdx[name]
	if !ok {
		return -1
	}
	return idx
}

// Cell returns the value of the named column in row i, or "" when the
// column is absent (older schema).
func (t *Table) Cell(i int, name string) string {
	idx, ok := t.colIdx[name]
	if !ok || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

// EnsureColumns appends any missing columns to the schema, padding every
// existing row with empty cells. Existing columns are never reordered or
// rewritten. Returns the columns that were added.
func (t *Table) EnsureColumns(cols []string) []string {
	var added []string
	for _, col := range cols {
		if _, ok := t.colIdx[col]; ok {
			continue
		}
		t.Header = append(t.Header, col)
		t.colIdx[col] = len(t.Header) - 1
		added = append(added, col)
	}
	if len(added) > 0 {
		for i, row := range t.Rows {
			for len(row) < len(t.Header) {
				row = append(row, "")
			}
			t.Rows[i] = row
		}
	}
	return added
}

// Append serializes a record into the current column order and adds it as a
// new row. Record fields with no matching column are dropped; callers must
// extend the schema first via EnsureColumns.
func (t *Table) Append(rec model.Record) {
	row := make([]string, len(t.Header))
	for i, col := range t.Header {
		row[i] = rec.Value(col)
	}
	t.Rows = append(t.Rows, row)
}

// IDs returns the set of all record ids present in the table.
func (t *Table) IDs() map[string]bool {
	out := make(map[string]bool, len(t.Rows))
	for i := range t.Rows {
		if id := t.Cell(i, "record_id"); id != "" {
			out[id] = true
		}
	}
	return out
}

// EventIDs returns the set of event record ids, the valid targets for an
// impact link's parent_id.
func (t *Table) EventIDs() map[string]bool {
	out := make(map[string]bool)
	for i := range t.Rows {
		id := t.Cell(i, "record_id")
		if model.KindForID(id) == model.TypeEvent {
			out[id] = true
		}
	}
	return out
}

// CountByType returns row counts keyed by record_type. Rows without a
// record_type cell fall back to the id prefix.
func (t *Table) CountByType() map[string]int {
	out := make(map[string]int)
	for i := range t.Rows {
		rt := t.Cell(i, "record_type")
		if rt == "" {
			rt = string(model.KindForID(t.Cell(i, "record_id")))
		}
		out[rt]++
	}
	return out
}

// CountByPillar returns row counts keyed by pillar, skipping rows without one.
func (t *Table) CountByPillar() map[string]int {
	out := make(map[string]int)
	for i := range t.Rows {
		if p := t.Cell(i, "pillar"); p != "" {
			out[p]++
		}
	}
	return out
}

// LatestObservationDates returns, per indicator_code, the most recent
// observation_date among observation rows. ISO dates compare lexically.
func (t *Table) LatestObservationDates() map[string]string {
	out := make(map[string]string)
	for i := range t.Rows {
		if model.KindForID(t.Cell(i, "record_id")) != model.TypeObservation {
			continue
		}
		code := t.Cell(i, "indicator_code")
		date := t.Cell(i, "observation_date")
		if code == "" || date == "" {
			continue
		}
		if date > out[code] {
			out[code] = date
		}
	}
	return out
}

// Records parses every row into a model.Record. Columns outside the
// canonical set are ignored.
func (t *Table) Records() []model.Record {
	recs := make([]model.Record, 0, len(t.Rows))
	for i := range t.Rows {
		var rec model.Record
		for _, col := range t.Header {
			rec.SetValue(col, t.Cell(i, col))
		}
		recs = append(recs, rec)
	}
	return recs
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) reindex() {
	t.colIdx = make(map[string]int, len(t.Header))
	for i, col := range t.Header {
		t.colIdx[col] = i
	}
}

func indexOf(cols []string, name string) (int, bool) {
	for i, c := range cols {
		if c == name {
			return i, true
		}
	}
	return 0, false
}
