package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkLogRecord_Keys(t *testing.T) {
	tests := []struct {
		name       string
		record     WorkLogRecord
		wantWorker string
		wantSite   string
		wantMonth  string
	}{
		{
			name:       "id preferred over name",
			record:     WorkLogRecord{WorkerID: "W01", WorkerName: "Sato", SiteID: "A", WorkDate: "2025-08-01"},
			wantWorker: "W01",
			wantSite:   "A",
			wantMonth:  "2025-08",
		},
		{
			name:       "name when id missing",
			record:     WorkLogRecord{WorkerName: "Sato"},
			wantWorker: "Sato",
			wantSite:   UnsetSite,
			wantMonth:  "",
		},
		{
			name:       "nothing set",
			record:     WorkLogRecord{},
			wantWorker: "",
			wantSite:   UnsetSite,
			wantMonth:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantWorker, tt.record.WorkerKey())
			assert.Equal(t, tt.wantSite, tt.record.SiteKey())
			assert.Equal(t, tt.wantMonth, tt.record.Month())
		})
	}
}

func TestWorkLogRecord_RawCoversEveryColumn(t *testing.T) {
	r := WorkLogRecord{WorkDate: "2025-08-01", WorkTimeMin: 480, KYCheck: true, Note: "x"}
	raw := r.Raw()

	require.Len(t, raw, len(Columns))
	for _, col := range Columns {
		_, ok := raw[col]
		assert.True(t, ok, "missing column %s", col)
	}
	assert.Equal(t, 480.0, raw["work_time_min"])
	assert.Equal(t, true, raw["ky_check"])
}

func TestWorkLogRecord_Hours(t *testing.T) {
	r := WorkLogRecord{WorkTimeMin: 90, MachineTimeMin: 30}
	assert.InDelta(t, 1.5, r.WorkerHours(), 1e-9)
	assert.InDelta(t, 0.5, r.MachineHours(), 1e-9)
}

func TestDefaultUnit(t *testing.T) {
	unit, ok := DefaultUnit("間伐")
	assert.True(t, ok)
	assert.Equal(t, "本", unit)

	_, ok = DefaultUnit("unknown")
	assert.False(t, ok)
}

func TestRateConfig(t *testing.T) {
	rates := RateConfig{HourlyWage: 1500, UnitPrices: map[string]float64{"ha": 50000}}

	assert.Equal(t, 50000.0, rates.UnitPrice("ha"))
	assert.Equal(t, 0.0, rates.UnitPrice("本"))
	assert.Equal(t, 0.0, RateConfig{}.UnitPrice("ha"))

	clone := rates.Clone()
	clone.UnitPrices["ha"] = 1
	assert.Equal(t, 50000.0, rates.UnitPrice("ha"))

	require.NoError(t, rates.Validate())

	err := RateConfig{HourlyWage: -1}.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "hourly_wage", verr.Field)
	assert.False(t, verr.IsTransient())

	err = RateConfig{UnitPrices: map[string]float64{"m": -5}}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unit_prices", verr.Field)
}

func TestSchemaMismatchError(t *testing.T) {
	err := &SchemaMismatchError{Expected: []string{"a", "b"}, Got: []string{"b", "a"}}
	assert.Contains(t, err.Error(), "header mismatch")
	assert.False(t, err.IsTransient())

	err = &SchemaMismatchError{Missing: []string{"amount"}}
	assert.Equal(t, "header mismatch: missing columns amount", err.Error())
}

func TestCostLedgerEntry_Month(t *testing.T) {
	assert.Equal(t, "2025-08", CostLedgerEntry{Date: "2025-08-15"}.Month())
	assert.Equal(t, "", CostLedgerEntry{}.Month())
}

func TestCostLedgerEntry_SiteKey(t *testing.T) {
	assert.Equal(t, "A", CostLedgerEntry{SiteID: "A"}.SiteKey())
	assert.Equal(t, UnsetSite, CostLedgerEntry{}.SiteKey())
}
