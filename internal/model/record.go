package model

import (
	"regexp"
	"strings"
)

// RecordType discriminates the three record kinds sharing the unified file.
type RecordType string

const (
	TypeObservation RecordType = "observation"
	TypeEvent       RecordType = "event"
	TypeImpactLink  RecordType = "impact_link"
)

// Confidence grades the provenance quality of a record.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ImpactDirection is the claimed direction of an event's effect on an indicator.
type ImpactDirection string

const (
	DirectionIncrease  ImpactDirection = "increase"
	DirectionDecrease  ImpactDirection = "decrease"
	DirectionStabilize ImpactDirection = "stabilize"
	DirectionMixed     ImpactDirection = "mixed"
)

// ImpactMagnitude is the claimed size of an event's effect.
type ImpactMagnitude string

const (
	MagnitudeNegligible ImpactMagnitude = "negligible"
	MagnitudeLow        ImpactMagnitude = "low"
	MagnitudeMedium     ImpactMagnitude = "medium"
	MagnitudeHigh       ImpactMagnitude = "high"
)

// EvidenceBasis describes what kind of evidence backs an impact link.
type EvidenceBasis string

const (
	EvidenceEmpirical   EvidenceBasis = "empirical"
	EvidenceTheoretical EvidenceBasis = "theoretical"
	EvidenceLiterature  EvidenceBasis = "literature"
)

// Gender segments observation rows. Empty is allowed on non-observation rows.
type Gender string

const (
	GenderAll    Gender = "all"
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Record is a single row of the unified dataset. All values are kept as
// strings, matching the CSV cells; typed accessors live in the merge
// validators so that raw rows round-trip byte-for-byte.
type Record struct {
	RecordID         string `json:"record_id" yaml:"record_id" csv:"record_id"`
	RecordType       string `json:"record_type" yaml:"record_type" csv:"record_type"`
	Pillar           string `json:"pillar,omitempty" yaml:"pillar,omitempty" csv:"pillar"`
	IndicatorCode    string `json:"indicator_code,omitempty" yaml:"indicator_code,omitempty" csv:"indicator_code"`
	RelatedIndicator string `json:"related_indicator,omitempty" yaml:"related_indicator,omitempty" csv:"related_indicator"`
	ParentID         string `json:"parent_id,omitempty" yaml:"parent_id,omitempty" csv:"parent_id"`
	ObservationDate  string `json:"observation_date,omitempty" yaml:"observation_date,omitempty" csv:"observation_date"`
	PeriodStart      string `json:"period_start,omitempty" yaml:"period_start,omitempty" csv:"period_start"`
	PeriodEnd        string `json:"period_end,omitempty" yaml:"period_end,omitempty" csv:"period_end"`
	Gender           string `json:"gender,omitempty" yaml:"gender,omitempty" csv:"gender"`
	ValueNumeric     string `json:"value_numeric,omitempty" yaml:"value_numeric,omitempty" csv:"value_numeric"`
	Unit             string `json:"unit,omitempty" yaml:"unit,omitempty" csv:"unit"`
	ImpactDirection  string `json:"impact_direction,omitempty" yaml:"impact_direction,omitempty" csv:"impact_direction"`
	ImpactMagnitude  string `json:"impact_magnitude,omitempty" yaml:"impact_magnitude,omitempty" csv:"impact_magnitude"`
	LagMonths        string `json:"lag_months,omitempty" yaml:"lag_months,omitempty" csv:"lag_months"`
	EvidenceBasis    string `json:"evidence_basis,omitempty" yaml:"evidence_basis,omitempty" csv:"evidence_basis"`
	SourceURL        string `json:"source_url,omitempty" yaml:"source_url,omitempty" csv:"source_url"`
	Confidence       string `json:"confidence,omitempty" yaml:"confidence,omitempty" csv:"confidence"`
	OriginalText     string `json:"original_text,omitempty" yaml:"original_text,omitempty" csv:"original_text"`
	Notes            string `json:"notes,omitempty" yaml:"notes,omitempty" csv:"notes"`
}

// CanonicalColumns is the full unified-dataset schema in write order.
// The loader accepts older files missing trailing additions; the writer
// extends them additively with empty defaults.
var CanonicalColumns = []string{
	"record_id",
	"record_type",
	"pillar",
	"indicator_code",
	"related_indicator",
	"parent_id",
	"observation_date",
	"period_start",
	"period_end",
	"gender",
	"value_numeric",
	"unit",
	"impact_direction",
	"impact_magnitude",
	"lag_months",
	"evidence_basis",
	"source_url",
	"confidence",
	"original_text",
	"notes",
}

var idPattern = regexp.MustCompile(`^(REC|EVT|LNK)_\d{4}$`)

// ValidID reports whether id matches the REC_####/EVT_####/LNK_#### format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// KindForID maps a record id prefix to its record type.
// Returns "" when the prefix is not recognized.
func KindForID(id string) RecordType {
	switch {
	case strings.HasPrefix(id, "REC_"):
		return TypeObservation
	case strings.HasPrefix(id, "EVT_"):
		return TypeEvent
	case strings.HasPrefix(id, "LNK_"):
		return TypeImpactLink
	default:
		return ""
	}
}

// ValidConfidence reports whether s is a known confidence grade.
func ValidConfidence(s string) bool {
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// ValidDirection reports whether s is a known impact direction.
func ValidDirection(s string) bool {
	switch ImpactDirection(s) {
	case DirectionIncrease, DirectionDecrease, DirectionStabilize, DirectionMixed:
		return true
	}
	return false
}

// ValidMagnitude reports whether s is a known impact magnitude.
func ValidMagnitude(s string) bool {
	switch ImpactMagnitude(s) {
	case MagnitudeNegligible, MagnitudeLow, MagnitudeMedium, MagnitudeHigh:
		return true
	}
	return false
}

// ValidEvidenceBasis reports whether s is a known evidence basis.
func ValidEvidenceBasis(s string) bool {
	switch EvidenceBasis(s) {
	case EvidenceEmpirical, EvidenceTheoretical, EvidenceLiterature:
		return true
	}
	return false
}

// ValidGender reports whether s is a known gender segment. Empty is valid
// here; observation-specific requirements are enforced by the validator.
func ValidGender(s string) bool {
	switch Gender(s) {
	case "", GenderAll, GenderMale, GenderFemale:
		return true
	}
	return false
}

// Value returns the record's cell for the named canonical column.
func (r Record) Value(column string) string {
	switch column {
	case "record_id":
		return r.RecordID
	case "record_type":
		return r.RecordType
	case "pillar":
		return r.Pillar
	case "indicator_code":
		return r.IndicatorCode
	case "related_indicator":
		return r.RelatedIndicator
	case "parent_id":
		return r.ParentID
	case "observation_date":
		return r.ObservationDate
	case "period_start":
		return r.PeriodStart
	case "period_end":
		return r.PeriodEnd
	case "gender":
		return r.Gender
	case "value_numeric":
		return r.ValueNumeric
	case "unit":
		return r.Unit
	case "impact_direction":
		return r.ImpactDirection
	case "impact_magnitude":
		return r.ImpactMagnitude
	case "lag_months":
		return r.LagMonths
	case "evidence_basis":
		return r.EvidenceBasis
	case "source_url":
		return r.SourceURL
	case "confidence":
		return r.Confidence
	case "original_text":
		return r.OriginalText
	case "notes":
		return r.Notes
	default:
		return ""
	}
}

// SetValue sets the record's cell for the named canonical column.
// Unknown columns are ignored so that older files with extra curator
// columns do not break batch parsing.
func (r *Record) SetValue(column, v string) {
	switch column {
	case "record_id":
		r.RecordID = v
	case "record_type":
		r.RecordType = v
	case "pillar":
		r.Pillar = v
	case "indicator_code":
		r.IndicatorCode = v
	case "related_indicator":
		r.RelatedIndicator = v
	case "parent_id":
		r.ParentID = v
	case "observation_date":
		r.ObservationDate = v
	case "period_start":
		r.PeriodStart = v
	case "period_end":
		r.PeriodEnd = v
	case "gender":
		r.Gender = v
	case "value_numeric":
		r.ValueNumeric = v
	case "unit":
		r.Unit = v
	case "impact_direction":
		r.ImpactDirection = v
	case "impact_magnitude":
		r.ImpactMagnitude = v
	case "lag_months":
		r.LagMonths = v
	case "evidence_basis":
		r.EvidenceBasis = v
	case "source_url":
		r.SourceURL = v
	case "confidence":
		r.Confidence = v
	case "original_text":
		r.OriginalText = v
	case "notes":
		r.Notes = v
	}
}

// Columns returns the columns a record actually populates, in canonical order.
// Used to decide whether a batch introduces columns the target file lacks.
func (r Record) Columns() []string {
	var cols []string
	for _, c := range CanonicalColumns {
		if r.Value(c) != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
