package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidID(t *testing.T) {
	t.Parallel()

	valid := []string{"REC_0001", "REC_0034", "EVT_0007", "LNK_0142"}
	for _, id := range valid {
		assert.True(t, ValidID(id), "expected %s to be valid", id)
	}

	invalid := []string{"", "REC_34", "rec_0034", "REC_00345", "OBS_0001", "REC0034", "REC_abcd"}
	for _, id := range invalid {
		assert.False(t, ValidID(id), "expected %s to be invalid", id)
	}
}

func TestKindForID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TypeObservation, KindForID("REC_0034"))
	assert.Equal(t, TypeEvent, KindForID("EVT_0001"))
	assert.Equal(t, TypeImpactLink, KindForID("LNK_0003"))
	assert.Equal(t, RecordType(""), KindForID("XYZ_0001"))
}

func TestEnumValidators(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidConfidence("medium"))
	assert.False(t, ValidConfidence("maybe"))
	assert.False(t, ValidConfidence(""))

	assert.True(t, ValidDirection("increase"))
	assert.True(t, ValidDirection("stabilize"))
	assert.False(t, ValidDirection("up"))

	assert.True(t, ValidMagnitude("negligible"))
	assert.False(t, ValidMagnitude("huge"))

	assert.True(t, ValidEvidenceBasis("literature"))
	assert.False(t, ValidEvidenceBasis("hunch"))

	assert.True(t, ValidGender(""))
	assert.True(t, ValidGender("female"))
	assert.False(t, ValidGender("unknown"))
}

func TestRecordValueRoundTrip(t *testing.T) {
	t.Parallel()

	r := Record{
		RecordID:        "REC_0034",
		RecordType:      string(TypeObservation),
		IndicatorCode:   "ACC_OWNERSHIP",
		ObservationDate: "2024-12-31",
		Gender:          "all",
		ValueNumeric:    "46.5",
		Confidence:      "medium",
	}

	for _, col := range CanonicalColumns {
		var copied Record
		copied.SetValue(col, r.Value(col))
		assert.Equal(t, r.Value(col), copied.Value(col), "column %s", col)
	}

	// Unknown columns are ignored, not an error.
	r.SetValue("curator_initials", "ab")
	assert.Equal(t, "", r.Value("curator_initials"))
}

func TestRecordColumns(t *testing.T) {
	t.Parallel()

	r := Record{
		RecordID:   "LNK_0001",
		RecordType: string(TypeImpactLink),
		ParentID:   "EVT_0001",
	}
	assert.Equal(t, []string{"record_id", "record_type", "parent_id"}, r.Columns())
}
