package model

import "time"

// MergeMode controls how a batch reacts to invalid records.
type MergeMode string

const (
	// ModeStrict rejects the entire batch on the first invalid record.
	ModeStrict MergeMode = "strict"
	// ModeLenient skips invalid records and appends the rest, reporting
	// every skip in the summary.
	ModeLenient MergeMode = "lenient"
)

// Batch is one enrichment submission: a dated, attributed set of candidate
// records.
type Batch struct {
	Records     []Record  `json:"records" yaml:"records"`
	Curator     string    `json:"curator,omitempty" yaml:"curator,omitempty"`
	Note        string    `json:"note,omitempty" yaml:"note,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
}

// Rejection names one rejected record, the field that failed, and why.
type Rejection struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field,omitempty"`
	Reason   string `json:"reason"`
	Dangling bool   `json:"dangling,omitempty"` // broken foreign-key reference
}

// MergeReport is the outcome of one merge run.
type MergeReport struct {
	RunID        string      `json:"run_id,omitempty"`
	DatasetPath  string      `json:"dataset_path"`
	Mode         MergeMode   `json:"mode"`
	BatchSize    int         `json:"batch_size"`
	Accepted     int         `json:"accepted"`
	Rejections   []Rejection `json:"rejections,omitempty"`
	ColumnsAdded []string    `json:"columns_added,omitempty"`
	DatasetRows  int         `json:"dataset_rows"`
	DryRun       bool        `json:"dry_run,omitempty"`
	DurationMS   int64       `json:"duration_ms"`
}

// Rejected returns the number of rejected records.
func (r MergeReport) Rejected() int {
	return len(r.Rejections)
}

// Applied reports whether the run changed the dataset file.
func (r MergeReport) Applied() bool {
	return !r.DryRun && r.Accepted > 0
}

// MergeRun is the audit-log row persisted per merge run.
type MergeRun struct {
	ID           string      `json:"id"`
	DatasetPath  string      `json:"dataset_path"`
	Curator      string      `json:"curator,omitempty"`
	Note         string      `json:"note,omitempty"`
	Mode         MergeMode   `json:"mode"`
	BatchSize    int         `json:"batch_size"`
	Accepted     int         `json:"accepted"`
	Rejections   []Rejection `json:"rejections,omitempty"`
	ColumnsAdded []string    `json:"columns_added,omitempty"`
	DatasetRows  int         `json:"dataset_rows"`
	CreatedAt    time.Time   `json:"created_at"`
}
