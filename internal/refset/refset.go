// Package refset loads the reference-code file: the authoritative list of
// indicator codes used for foreign-key validation of candidate records.
package refset

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
)

// Indicator holds the metadata for one reference code.
type Indicator struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Pillar string `json:"pillar"`
	Unit   string `json:"unit,omitempty"`
	Source string `json:"source,omitempty"`
}

// ReferenceSet is the loaded reference-code file, keyed by indicator code.
type ReferenceSet struct {
	indicators map[string]Indicator
	order      []string
}

// Load reads a reference-code CSV. Required columns: code, name, pillar.
// Optional: unit, source. Duplicate codes are rejected. A missing or
// malformed file surfaces as a dataset.LoadError, same as the unified
// dataset itself.
func Load(path string) (*ReferenceSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dataset.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &dataset.LoadError{Path: path, Err: err}
	}
	if len(records) < 2 {
		return nil, &dataset.LoadError{Path: path, Err: eris.New("refset: csv has no data rows")}
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range []string{"code", "name", "pillar"} {
		if _, ok := colIdx[col]; !ok {
			return nil, &dataset.LoadError{Path: path, Err: eris.Errorf("refset: missing required column %q", col)}
		}
	}

	rs := &ReferenceSet{indicators: make(map[string]Indicator, len(records)-1)}
	for i, row := range records[1:] {
		code := getCol(row, colIdx, "code")
		if code == "" {
			continue
		}
		if _, dup := rs.indicators[code]; dup {
			return nil, &dataset.LoadError{Path: path, Err: eris.Errorf("refset: duplicate code %q at row %d", code, i+2)}
		}
		rs.indicators[code] = Indicator{
			Code:   code,
			Name:   getCol(row, colIdx, "name"),
			Pillar: getCol(row, colIdx, "pillar"),
			Unit:   getCol(row, colIdx, "unit"),
			Source: getCol(row, colIdx, "source"),
		}
		rs.order = append(rs.order, code)
	}

	if len(rs.indicators) == 0 {
		return nil, &dataset.LoadError{Path: path, Err: eris.New("refset: no valid codes found in csv")}
	}

	return rs, nil
}

// Has reports whether code exists in the reference set.
func (rs *ReferenceSet) Has(code string) bool {
	_, ok := rs.indicators[code]
	return ok
}

// Get returns the indicator metadata for code.
func (rs *ReferenceSet) Get(code string) (Indicator, bool) {
	ind, ok := rs.indicators[code]
	return ind, ok
}

// Codes returns all codes in file order.
func (rs *ReferenceSet) Codes() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of reference codes.
func (rs *ReferenceSet) Len() int {
	return len(rs.indicators)
}

// getCol safely retrieves a column value from a CSV row.
func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
