package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
	"github.com/addis-analytics/fi-dataset-cli/internal/refset"
)

func testRefs(t *testing.T) *refset.ReferenceSet {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.csv")
	content := `code,name,pillar
ACC_OWNERSHIP,Account ownership,ACCESS
ACC_MM_ACCOUNT,Mobile money account rate,ACCESS
ACC_BRANCH_DENSITY,Bank branch density,ACCESS
ACC_AGENT_COUNT,Agent network size,ACCESS
USG_P2P_COUNT,P2P transaction count,USAGE
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	rs, err := refset.Load(path)
	require.NoError(t, err)
	return rs
}

func testMerger(t *testing.T, mode model.MergeMode) *Merger {
	t.Helper()
	return New(testRefs(t), Options{Mode: mode, Pillars: []string{"ACCESS", "USAGE", "QUALITY"}})
}

func obs(id, code, date, value, confidence string) model.Record {
	return model.Record{
		RecordID:        id,
		RecordType:      string(model.TypeObservation),
		IndicatorCode:   code,
		ObservationDate: date,
		Gender:          "all",
		ValueNumeric:    value,
		Confidence:      confidence,
	}
}

func event(id, date string) model.Record {
	return model.Record{
		RecordID:        id,
		RecordType:      string(model.TypeEvent),
		ObservationDate: date,
		Confidence:      "high",
	}
}

func link(id, parent, indicator string) model.Record {
	return model.Record{
		RecordID:         id,
		RecordType:       string(model.TypeImpactLink),
		Pillar:           "ACCESS",
		ParentID:         parent,
		RelatedIndicator: indicator,
		ImpactDirection:  "increase",
		ImpactMagnitude:  "medium",
		LagMonths:        "6",
		EvidenceBasis:    "empirical",
		Confidence:       "medium",
	}
}

// accessBatch is the four ACCESS observations from the enrichment log
// (REC_0034-REC_0037), all medium confidence.
func accessBatch() model.Batch {
	return model.Batch{Records: []model.Record{
		obs("REC_0034", "ACC_OWNERSHIP", "2024-12-31", "46.5", "medium"),
		obs("REC_0035", "ACC_MM_ACCOUNT", "2024-12-31", "9.2", "medium"),
		obs("REC_0036", "ACC_BRANCH_DENSITY", "2024-06-30", "6.1", "medium"),
		obs("REC_0037", "ACC_AGENT_COUNT", "2024-06-30", "188000", "medium"),
	}}
}

func TestMerge_EmptyDatasetAcceptsBatch(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	report := m.Merge(tbl, accessBatch())

	assert.Equal(t, 4, report.Accepted)
	assert.Empty(t, report.Rejections)
	assert.Equal(t, 4, report.DatasetRows)
	require.Equal(t, 4, tbl.Len())
	for i := 0; i < 4; i++ {
		assert.Equal(t, "medium", tbl.Cell(i, "confidence"))
	}
}

func TestMerge_SecondIdenticalBatchRejected(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	first := m.Merge(tbl, accessBatch())
	require.Equal(t, 4, first.Accepted)
	rowsAfterFirst := tbl.Len()

	second := m.Merge(tbl, accessBatch())
	assert.Equal(t, 0, second.Accepted)
	assert.Len(t, second.Rejections, 4)
	for _, rej := range second.Rejections {
		assert.Contains(t, rej.Reason, "duplicate record_id")
	}
	assert.Equal(t, rowsAfterFirst, tbl.Len(), "dataset must be unchanged after rejected rerun")
}

func TestMerge_DuplicateSingleRecordSecondRun(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	require.Equal(t, 1, m.Merge(tbl, model.Batch{Records: []model.Record{
		obs("REC_0034", "ACC_OWNERSHIP", "2024-12-31", "46.5", "medium"),
	}}).Accepted)

	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		obs("REC_0034", "ACC_OWNERSHIP", "2024-12-31", "46.5", "medium"),
	}})
	assert.Equal(t, 0, report.Accepted)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "REC_0034", report.Rejections[0].RecordID)
	assert.Equal(t, "record_id", report.Rejections[0].Field)
	assert.Equal(t, 1, tbl.Len())
}

func TestMerge_DanglingParentRejected(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		link("LNK_0001", "EVT_9999", "ACC_OWNERSHIP"),
	}})

	assert.Equal(t, 0, report.Accepted)
	require.Len(t, report.Rejections, 1)
	assert.True(t, report.Rejections[0].Dangling)
	assert.Equal(t, "parent_id", report.Rejections[0].Field)
	assert.Contains(t, report.Rejections[0].Reason, "EVT_9999")
	assert.Equal(t, 0, tbl.Len())
}

func TestMerge_StrictRejectsWholeBatchOnSingleBadRecord(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	batch := accessBatch()
	batch.Records = append(batch.Records, link("LNK_0001", "EVT_9999", "ACC_OWNERSHIP"))

	report := m.Merge(tbl, batch)
	assert.Equal(t, 0, report.Accepted)
	assert.Len(t, report.Rejections, 1)
	assert.Equal(t, 0, tbl.Len(), "strict mode must leave the table untouched")
}

func TestMerge_LenientSkipsOnlyOffenders(t *testing.T) {
	m := testMerger(t, model.ModeLenient)
	tbl := dataset.New()

	batch := accessBatch()
	batch.Records = append(batch.Records,
		link("LNK_0001", "EVT_9999", "ACC_OWNERSHIP"),
		obs("REC_0038", "UNKNOWN_CODE", "2024-12-31", "1.0", "medium"),
	)

	report := m.Merge(tbl, batch)
	assert.Equal(t, 4, report.Accepted)
	assert.Len(t, report.Rejections, 2)
	assert.Equal(t, 4, tbl.Len())
}

func TestMerge_IntraBatchParentAllowed(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	// The link precedes its event in submission order; events are
	// validated first so the reference resolves.
	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP"),
		event("EVT_0001", "2021-05-11"),
	}})

	assert.Equal(t, 2, report.Accepted)
	assert.Empty(t, report.Rejections)
}

func TestMerge_LenientRejectedEventRejectsItsLinks(t *testing.T) {
	m := testMerger(t, model.ModeLenient)
	tbl := dataset.New()

	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		event("EVT_0001", "not-a-date"),
		link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP"),
	}})

	assert.Equal(t, 0, report.Accepted)
	require.Len(t, report.Rejections, 2)
	assert.Equal(t, "EVT_0001", report.Rejections[0].RecordID)
	assert.Equal(t, "LNK_0001", report.Rejections[1].RecordID)
	assert.True(t, report.Rejections[1].Dangling)
}

func TestMerge_SchemaExtendedForParentID(t *testing.T) {
	m := testMerger(t, model.ModeStrict)

	// Older file without parent_id or record_type beyond the basics.
	path := filepath.Join(t.TempDir(), "unified.csv")
	content := `record_id,record_type,indicator_code,observation_date,gender,value_numeric,confidence
REC_0001,observation,ACC_OWNERSHIP,2021-12-31,all,34.9,high
EVT_0001,event,,2021-05-11,,,high
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	tbl, err := dataset.Load(path)
	require.NoError(t, err)

	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP"),
	}})

	require.Equal(t, 1, report.Accepted)
	assert.Contains(t, report.ColumnsAdded, "parent_id")

	// Pre-existing rows keep their values; new column reads empty on them.
	assert.Equal(t, "34.9", tbl.Cell(0, "value_numeric"))
	assert.Equal(t, "", tbl.Cell(0, "parent_id"))
	assert.Equal(t, "EVT_0001", tbl.Cell(2, "parent_id"))
}

func TestMerge_ValidationOrder(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()
	require.Equal(t, 1, m.Merge(tbl, model.Batch{Records: []model.Record{
		obs("REC_0001", "ACC_OWNERSHIP", "2024-12-31", "1.0", "high"),
	}}).Accepted)

	cases := []struct {
		name   string
		rec    model.Record
		field  string
		reason string
	}{
		{
			name:  "missing id",
			rec:   model.Record{RecordType: "observation"},
			field: "record_id", reason: "record_id is required",
		},
		{
			name:  "bad id format",
			rec:   obs("REC_12", "ACC_OWNERSHIP", "2024-12-31", "1.0", "high"),
			field: "record_id", reason: "does not match",
		},
		{
			name: "type prefix mismatch",
			rec: model.Record{
				RecordID:   "REC_0099",
				RecordType: "event",
			},
			field: "record_type", reason: "does not match id prefix",
		},
		{
			// Duplicate wins over the unknown indicator: uniqueness is
			// checked before referential integrity.
			name:  "uniqueness before referential",
			rec:   obs("REC_0001", "UNKNOWN", "2024-12-31", "1.0", "high"),
			field: "record_id", reason: "duplicate record_id",
		},
		{
			// Unknown indicator wins over the bad confidence: referential
			// integrity is checked before enums.
			name:  "referential before enums",
			rec:   obs("REC_0055", "UNKNOWN", "2024-12-31", "1.0", "certainly"),
			field: "indicator_code", reason: "unknown indicator_code",
		},
		{
			name:  "bad date",
			rec:   obs("REC_0056", "ACC_OWNERSHIP", "31/12/2024", "1.0", "high"),
			field: "observation_date", reason: "unparsable",
		},
		{
			name:  "non-numeric value",
			rec:   obs("REC_0057", "ACC_OWNERSHIP", "2024-12-31", "forty-six", "high"),
			field: "value_numeric", reason: "non-numeric",
		},
		{
			name:  "bad confidence",
			rec:   obs("REC_0058", "ACC_OWNERSHIP", "2024-12-31", "1.0", "certain"),
			field: "confidence", reason: "outside enum",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := m.Merge(tbl, model.Batch{Records: []model.Record{tc.rec}})
			require.Len(t, report.Rejections, 1)
			assert.Equal(t, tc.field, report.Rejections[0].Field)
			assert.Contains(t, report.Rejections[0].Reason, tc.reason)
		})
	}
}

func TestMerge_ObservationGenderRequired(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()

	missing := obs("REC_0040", "ACC_OWNERSHIP", "2024-12-31", "46.5", "medium")
	missing.Gender = ""

	report := m.Merge(tbl, model.Batch{Records: []model.Record{missing}})
	assert.Equal(t, 0, report.Accepted)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "gender", report.Rejections[0].Field)
	assert.Contains(t, report.Rejections[0].Reason, "required")
	assert.Equal(t, 0, tbl.Len())

	unknown := obs("REC_0041", "ACC_OWNERSHIP", "2024-12-31", "46.5", "medium")
	unknown.Gender = "other"

	report = m.Merge(tbl, model.Batch{Records: []model.Record{unknown}})
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "gender", report.Rejections[0].Field)
	assert.Contains(t, report.Rejections[0].Reason, "outside enum")
}

func TestMerge_ImpactLinkFieldChecks(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()
	require.Equal(t, 1, m.Merge(tbl, model.Batch{Records: []model.Record{
		event("EVT_0001", "2021-05-11"),
	}}).Accepted)

	mutate := func(f func(*model.Record)) model.Record {
		rec := link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP")
		f(&rec)
		return rec
	}

	cases := []struct {
		name  string
		rec   model.Record
		field string
	}{
		{"negative lag", mutate(func(r *model.Record) { r.LagMonths = "-3" }), "lag_months"},
		{"non-integer lag", mutate(func(r *model.Record) { r.LagMonths = "6.5" }), "lag_months"},
		{"bad direction", mutate(func(r *model.Record) { r.ImpactDirection = "up" }), "impact_direction"},
		{"bad magnitude", mutate(func(r *model.Record) { r.ImpactMagnitude = "massive" }), "impact_magnitude"},
		{"bad evidence basis", mutate(func(r *model.Record) { r.EvidenceBasis = "vibes" }), "evidence_basis"},
		{"missing pillar", mutate(func(r *model.Record) { r.Pillar = "" }), "pillar"},
		{"unknown pillar", mutate(func(r *model.Record) { r.Pillar = "VELOCITY" }), "pillar"},
		{"unknown related indicator", mutate(func(r *model.Record) { r.RelatedIndicator = "NOPE" }), "related_indicator"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := m.Merge(tbl, model.Batch{Records: []model.Record{tc.rec}})
			require.Len(t, report.Rejections, 1)
			assert.Equal(t, tc.field, report.Rejections[0].Field)
		})
	}

	// A fully valid link still passes.
	report := m.Merge(tbl, model.Batch{Records: []model.Record{link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP")}})
	assert.Equal(t, 1, report.Accepted)
}

func TestMerge_ZeroLagMonthsAccepted(t *testing.T) {
	m := testMerger(t, model.ModeStrict)
	tbl := dataset.New()
	require.Equal(t, 1, m.Merge(tbl, model.Batch{Records: []model.Record{
		event("EVT_0001", "2021-05-11"),
	}}).Accepted)

	rec := link("LNK_0001", "EVT_0001", "ACC_OWNERSHIP")
	rec.LagMonths = "0"
	report := m.Merge(tbl, model.Batch{Records: []model.Record{rec}})
	assert.Equal(t, 1, report.Accepted)
}

func TestMerge_DuplicateWithinBatch(t *testing.T) {
	m := testMerger(t, model.ModeLenient)
	tbl := dataset.New()

	report := m.Merge(tbl, model.Batch{Records: []model.Record{
		obs("REC_0001", "ACC_OWNERSHIP", "2024-12-31", "1.0", "high"),
		obs("REC_0001", "ACC_OWNERSHIP", "2024-12-31", "2.0", "high"),
	}})

	assert.Equal(t, 1, report.Accepted)
	require.Len(t, report.Rejections, 1)
	assert.Contains(t, report.Rejections[0].Reason, "repeated within batch")
}

func TestValidationErrorTypes(t *testing.T) {
	t.Parallel()

	err := dangling("LNK_0001", "parent_id", "EVT_9999", "parent_id %q does not reference a known event", "EVT_9999")

	var de *DanglingReferenceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "EVT_9999", de.Ref)

	// A dangling reference is also a plain validation error.
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "LNK_0001", ve.RecordID)
	assert.Equal(t, "parent_id", ve.Field)

	plain := invalid("REC_0001", "confidence", "confidence %q outside enum (low|medium|high)", "certain")
	assert.Contains(t, plain.Error(), "REC_0001")
	assert.Contains(t, plain.Error(), "confidence")
}
