// Package batch loads enrichment batch files: candidate records submitted by
// a curator for merging into the unified dataset.
package batch

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// Load reads a batch file. CSV files must carry the unified-dataset header
// columns; YAML files are a batch document with curator, note, and records.
func Load(path string) (model.Batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".csv":
		return loadCSV(path)
	default:
		return model.Batch{}, eris.Errorf("batch: unsupported file extension %q (want .csv, .yaml, or .yml)", filepath.Ext(path))
	}
}

func loadYAML(path string) (model.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Batch{}, eris.Wrap(err, "batch: read yaml")
	}

	var b model.Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return model.Batch{}, eris.Wrap(err, "batch: parse yaml")
	}
	if len(b.Records) == 0 {
		return model.Batch{}, eris.New("batch: no records in yaml file")
	}
	return b, nil
}

func loadCSV(path string) (model.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Batch{}, eris.Wrap(err, "batch: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return model.Batch{}, eris.Wrap(err, "batch: read csv")
	}
	if len(rows) < 2 {
		return model.Batch{}, eris.New("batch: csv has no data rows")
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.TrimSpace(col)
	}
	if !contains(header, "record_id") {
		return model.Batch{}, eris.New(`batch: missing required column "record_id"`)
	}

	var b model.Batch
	for _, row := range rows[1:] {
		var rec model.Record
		for i, col := range header {
			if i < len(row) {
				rec.SetValue(col, strings.TrimSpace(row[i]))
			}
		}
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
