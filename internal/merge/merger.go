// Package merge implements the dataset merger: batch validation of candidate
// observation, event, and impact-link records against the unified dataset and
// the reference-code set, followed by an all-or-nothing append.
package merge

import (
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
	"github.com/addis-analytics/fi-dataset-cli/internal/refset"
)

// Options tunes merger behavior.
type Options struct {
	Mode    model.MergeMode // defaults to strict
	Pillars []string        // accepted pillar tokens; empty means any non-empty uppercase token
}

// Merger validates enrichment batches and appends accepted records.
type Merger struct {
	refs    *refset.ReferenceSet
	mode    model.MergeMode
	pillars map[string]bool
}

// New builds a Merger over the given reference-code set.
func New(refs *refset.ReferenceSet, opts Options) *Merger {
	mode := opts.Mode
	if mode == "" {
		mode = model.ModeStrict
	}
	var pillars map[string]bool
	if len(opts.Pillars) > 0 {
		pillars = make(map[string]bool, len(opts.Pillars))
		for _, p := range opts.Pillars {
			pillars[p] = true
		}
	}
	return &Merger{refs: refs, mode: mode, pillars: pillars}
}

// Merge validates the batch against the table and, when accepted, appends the
// records, extending the schema additively if the batch introduces columns the
// file lacks. In strict mode any invalid record rejects the whole batch and
// the table is left untouched; in lenient mode offending records are skipped
// and everything else is appended. Every rejection appears in the report in
// either mode. The caller persists the table afterwards.
func (m *Merger) Merge(tbl *dataset.Table, batch model.Batch) *model.MergeReport {
	start := time.Now()

	report := &model.MergeReport{
		Mode:      m.mode,
		BatchSize: len(batch.Records),
	}

	existing := tbl.IDs()
	parents := tbl.EventIDs()
	batchSeen := make(map[string]bool, len(batch.Records))

	// Events are validated first so an impact link may reference an event
	// submitted in the same batch.
	order := make([]int, 0, len(batch.Records))
	for i, rec := range batch.Records {
		if model.KindForID(rec.RecordID) == model.TypeEvent {
			order = append(order, i)
		}
	}
	for i, rec := range batch.Records {
		if model.KindForID(rec.RecordID) != model.TypeEvent {
			order = append(order, i)
		}
	}

	var accepted []model.Record
	for _, i := range order {
		rec := batch.Records[i]

		err := m.validate(rec, existing, batchSeen, parents)
		if rec.RecordID != "" {
			batchSeen[rec.RecordID] = true
		}
		if err != nil {
			report.Rejections = append(report.Rejections, toRejection(rec, err))
			continue
		}

		accepted = append(accepted, rec)
		if model.KindForID(rec.RecordID) == model.TypeEvent {
			parents[rec.RecordID] = true
		}
	}

	if m.mode == model.ModeStrict && len(report.Rejections) > 0 {
		// All-or-nothing: the whole batch is rejected, nothing appended.
		report.Accepted = 0
		report.DatasetRows = tbl.Len()
		report.DurationMS = time.Since(start).Milliseconds()
		zap.L().Warn("merge: batch rejected",
			zap.Int("batch_size", report.BatchSize),
			zap.Int("rejections", len(report.Rejections)),
		)
		return report
	}

	// Extend the schema for any column the accepted records populate that
	// the file does not carry yet (e.g. parent_id on an older file).
	var newCols []string
	for _, rec := range accepted {
		newCols = append(newCols, rec.Columns()...)
	}
	report.ColumnsAdded = tbl.EnsureColumns(newCols)

	for _, rec := range accepted {
		tbl.Append(rec)
	}

	report.Accepted = len(accepted)
	report.DatasetRows = tbl.Len()
	report.DurationMS = time.Since(start).Milliseconds()

	zap.L().Info("merge: batch processed",
		zap.Int("batch_size", report.BatchSize),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected()),
		zap.Strings("columns_added", report.ColumnsAdded),
	)
	return report
}

// validate applies the rule chain to one record: schema shape, uniqueness,
// referential integrity, then enum/range checks. The first failing check
// determines the rejection reason.
func (m *Merger) validate(rec model.Record, existing, batchSeen, parents map[string]bool) error {
	// Schema shape.
	if rec.RecordID == "" {
		return invalid("", "record_id", "record_id is required")
	}
	if !model.ValidID(rec.RecordID) {
		return invalid(rec.RecordID, "record_id", "record_id %q does not match REC_####/EVT_####/LNK_####", rec.RecordID)
	}
	kind := model.KindForID(rec.RecordID)
	if rec.RecordType == "" {
		return invalid(rec.RecordID, "record_type", "record_type is required")
	}
	if rec.RecordType != string(kind) {
		return invalid(rec.RecordID, "record_type", "record_type %q does not match id prefix (want %s)", rec.RecordType, kind)
	}

	// Uniqueness.
	if existing[rec.RecordID] {
		return invalid(rec.RecordID, "record_id", "duplicate record_id: already present in dataset")
	}
	if batchSeen[rec.RecordID] {
		return invalid(rec.RecordID, "record_id", "duplicate record_id: repeated within batch")
	}

	switch kind {
	case model.TypeObservation:
		return m.validateObservation(rec)
	case model.TypeEvent:
		return m.validateEvent(rec)
	case model.TypeImpactLink:
		return m.validateImpactLink(rec, parents)
	}
	return invalid(rec.RecordID, "record_id", "unknown record kind")
}

func (m *Merger) validateObservation(rec model.Record) error {
	// Referential integrity.
	if rec.IndicatorCode == "" {
		return invalid(rec.RecordID, "indicator_code", "indicator_code is required")
	}
	if !m.refs.Has(rec.IndicatorCode) {
		return dangling(rec.RecordID, "indicator_code", rec.IndicatorCode,
			"unknown indicator_code %q: not in reference set", rec.IndicatorCode)
	}

	// Enum/range.
	if rec.ObservationDate == "" {
		return invalid(rec.RecordID, "observation_date", "observation_date is required")
	}
	if !validDate(rec.ObservationDate) {
		return invalid(rec.RecordID, "observation_date", "unparsable observation_date %q (want YYYY-MM-DD)", rec.ObservationDate)
	}
	for _, p := range []struct{ field, v string }{
		{"period_start", rec.PeriodStart},
		{"period_end", rec.PeriodEnd},
	} {
		if p.v != "" && !validDate(p.v) {
			return invalid(rec.RecordID, p.field, "unparsable %s %q (want YYYY-MM-DD)", p.field, p.v)
		}
	}
	if rec.ValueNumeric == "" {
		return invalid(rec.RecordID, "value_numeric", "value_numeric is required")
	}
	if _, err := strconv.ParseFloat(rec.ValueNumeric, 64); err != nil {
		return invalid(rec.RecordID, "value_numeric", "non-numeric value_numeric %q", rec.ValueNumeric)
	}
	if rec.Gender == "" {
		return invalid(rec.RecordID, "gender", "gender is required on observations (all|male|female)")
	}
	if !model.ValidGender(rec.Gender) {
		return invalid(rec.RecordID, "gender", "gender %q outside enum (all|male|female)", rec.Gender)
	}
	if err := m.checkPillar(rec, false); err != nil {
		return err
	}
	return m.checkConfidence(rec)
}

func (m *Merger) validateEvent(rec model.Record) error {
	if rec.ObservationDate == "" {
		return invalid(rec.RecordID, "observation_date", "event date is required")
	}
	if !validDate(rec.ObservationDate) {
		return invalid(rec.RecordID, "observation_date", "unparsable event date %q (want YYYY-MM-DD)", rec.ObservationDate)
	}
	if err := m.checkPillar(rec, false); err != nil {
		return err
	}
	return m.checkConfidence(rec)
}

func (m *Merger) validateImpactLink(rec model.Record, parents map[string]bool) error {
	// Referential integrity.
	if rec.ParentID == "" {
		return invalid(rec.RecordID, "parent_id", "parent_id is required")
	}
	if !parents[rec.ParentID] {
		return dangling(rec.RecordID, "parent_id", rec.ParentID,
			"parent_id %q does not reference a known event", rec.ParentID)
	}
	if rec.RelatedIndicator == "" {
		return invalid(rec.RecordID, "related_indicator", "related_indicator is required")
	}
	if !m.refs.Has(rec.RelatedIndicator) {
		return dangling(rec.RecordID, "related_indicator", rec.RelatedIndicator,
			"unknown related_indicator %q: not in reference set", rec.RelatedIndicator)
	}

	// Enum/range.
	if err := m.checkPillar(rec, true); err != nil {
		return err
	}
	if !model.ValidDirection(rec.ImpactDirection) {
		return invalid(rec.RecordID, "impact_direction", "impact_direction %q outside enum", rec.ImpactDirection)
	}
	if !model.ValidMagnitude(rec.ImpactMagnitude) {
		return invalid(rec.RecordID, "impact_magnitude", "impact_magnitude %q outside enum", rec.ImpactMagnitude)
	}
	if rec.LagMonths == "" {
		return invalid(rec.RecordID, "lag_months", "lag_months is required")
	}
	if n, err := strconv.Atoi(rec.LagMonths); err != nil || n < 0 {
		return invalid(rec.RecordID, "lag_months", "lag_months %q must be a non-negative integer", rec.LagMonths)
	}
	if !model.ValidEvidenceBasis(rec.EvidenceBasis) {
		return invalid(rec.RecordID, "evidence_basis", "evidence_basis %q outside enum", rec.EvidenceBasis)
	}
	return m.checkConfidence(rec)
}

// checkPillar validates the pillar token. Links must always carry one;
// observations and events may omit it.
func (m *Merger) checkPillar(rec model.Record, required bool) error {
	if rec.Pillar == "" {
		if required {
			return invalid(rec.RecordID, "pillar", "pillar is required")
		}
		return nil
	}
	if m.pillars != nil && !m.pillars[rec.Pillar] {
		return invalid(rec.RecordID, "pillar", "unknown pillar %q", rec.Pillar)
	}
	return nil
}

func (m *Merger) checkConfidence(rec model.Record) error {
	if !model.ValidConfidence(rec.Confidence) {
		return invalid(rec.RecordID, "confidence", "confidence %q outside enum (low|medium|high)", rec.Confidence)
	}
	return nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func toRejection(rec model.Record, err error) model.Rejection {
	rej := model.Rejection{RecordID: rec.RecordID, Reason: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		rej.RecordID = ve.RecordID
		rej.Field = ve.Field
		rej.Reason = ve.Reason
	}
	var de *DanglingReferenceError
	if errors.As(err, &de) {
		rej.Dangling = true
	}
	return rej
}
