package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog-platform/internal/models"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"nil", nil, 0},
		{"float", 2.5, 2.5},
		{"int", 480, 480},
		{"int64", int64(12), 12},
		{"numeric string", " 240 ", 240},
		{"decimal string", "1.25", 1.25},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
		{"NaN float", math.NaN(), 0},
		{"Inf float", math.Inf(1), 0},
		{"NaN string", "NaN", 0},
		{"Inf string", "-Inf", 0},
		{"json number", json.Number("7.5"), 7.5},
		{"bool true", true, 1},
		{"map", map[string]interface{}{"a": 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToNumber(tt.in))
		})
	}
}

func TestToBool(t *testing.T) {
	truthy := []interface{}{true, "true", "TRUE", "1", "yes", "Y", " on ", "はい", 1, 1.0}
	for _, v := range truthy {
		assert.True(t, ToBool(v), "%#v should be true", v)
	}

	falsy := []interface{}{nil, false, "", "false", "0", "no", "off", "maybe", 0, 2}
	for _, v := range falsy {
		assert.False(t, ToBool(v), "%#v should be false", v)
	}
}

func TestNormalizeUnit(t *testing.T) {
	assert.Equal(t, "m³", NormalizeUnit("m3"))
	assert.Equal(t, "m³", NormalizeUnit("  m3 "))
	assert.Equal(t, "m³", NormalizeUnit("m³"))
	assert.Equal(t, "ha", NormalizeUnit(" ha"))
	assert.Equal(t, "", NormalizeUnit(nil))
}

func TestNormalizeIncident(t *testing.T) {
	assert.Equal(t, models.IncidentNone, NormalizeIncident(nil))
	assert.Equal(t, models.IncidentNone, NormalizeIncident(""))
	assert.Equal(t, models.IncidentNone, NormalizeIncident("無"))
	assert.Equal(t, models.IncidentMinor, NormalizeIncident("軽微"))
	assert.Equal(t, models.IncidentSevere, NormalizeIncident("事故"))
	assert.Equal(t, models.IncidentMinor, NormalizeIncident("Minor"))
	assert.Equal(t, "near-miss", NormalizeIncident(" near-miss "))
}

func TestResolveDate(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want string
	}{
		{
			name: "explicit work_date",
			raw:  map[string]interface{}{"work_date": "2025-08-01"},
			want: "2025-08-01",
		},
		{
			name: "ISO datetime truncated",
			raw:  map[string]interface{}{"work_date": "2025-08-01T23:10:00+09:00"},
			want: "2025-08-01",
		},
		{
			name: "work_date wins over created_at",
			raw: map[string]interface{}{
				"work_date":  "2025-08-01",
				"created_at": map[string]interface{}{"seconds": float64(0)},
			},
			want: "2025-08-01",
		},
		{
			name: "timestamp object in created_at",
			raw: map[string]interface{}{
				"created_at": map[string]interface{}{"seconds": float64(1754006400), "nanoseconds": float64(0)},
			},
			want: "2025-08-01",
		},
		{
			name: "empty work_date falls back to createdAt",
			raw: map[string]interface{}{
				"work_date": "",
				"createdAt": "2025-07-31T10:00:00Z",
			},
			want: "2025-07-31",
		},
		{
			name: "slash layout",
			raw:  map[string]interface{}{"work_date": "2025/8/2"},
			want: "2025-08-02",
		},
		{
			name: "time value",
			raw:  map[string]interface{}{"work_date": time.Date(2025, 8, 3, 12, 0, 0, 0, time.UTC)},
			want: "2025-08-03",
		},
		{
			name: "epoch milliseconds",
			raw:  map[string]interface{}{"timestamp": float64(1754006400000)},
			want: "2025-08-01",
		},
		{
			name: "unparseable",
			raw:  map[string]interface{}{"work_date": "someday"},
			want: "",
		},
		{
			name: "invalid ISO day",
			raw:  map[string]interface{}{"work_date": "2025-13-45"},
			want: "",
		},
		{
			name: "timestamp object without seconds",
			raw:  map[string]interface{}{"created_at": map[string]interface{}{"foo": 1}},
			want: "",
		},
		{
			name: "absent",
			raw:  map[string]interface{}{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDate(tt.raw))
		})
	}
}

func TestFromRaw_Defaults(t *testing.T) {
	r := FromRaw(map[string]interface{}{})

	assert.Equal(t, models.WorkLogRecord{Incident: models.IncidentNone}, r)
}

func TestFromRaw_Document(t *testing.T) {
	var doc map[string]interface{}
	body := `{
		"created_at": {"seconds": 1754092800},
		"worker_name": "Suzuki",
		"site_id": "B",
		"task_code": "間伐",
		"work_time_min": "480",
		"output_value": 10,
		"output_unit": " 本 ",
		"ky_check": "yes",
		"incident": "軽微"
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &doc))

	r := FromRaw(doc)

	assert.Equal(t, "2025-08-02", r.WorkDate)
	assert.Equal(t, "Suzuki", r.WorkerName)
	assert.Equal(t, 480.0, r.WorkTimeMin)
	assert.Equal(t, 10.0, r.OutputValue)
	assert.Equal(t, "本", r.OutputUnit)
	assert.True(t, r.KYCheck)
	assert.Equal(t, models.IncidentMinor, r.Incident)
}

func TestFromRow_ShortRow(t *testing.T) {
	r := FromRow(models.Columns, []string{"2025-08-01", "W01"})

	assert.Equal(t, "2025-08-01", r.WorkDate)
	assert.Equal(t, "W01", r.WorkerID)
	assert.Equal(t, "", r.Note)
	assert.Equal(t, 0.0, r.WorkTimeMin)
}

func TestNormalize_FixedPoint(t *testing.T) {
	raws := []map[string]interface{}{
		{"work_date": "2025-08-01T08:00:00Z", "work_time_min": "480", "output_unit": "m3", "ky_check": "1", "incident": "事故"},
		{"createdAt": map[string]interface{}{"seconds": 1754092800}, "output_value": "x", "note": "a,b\"c"},
		{},
	}

	once := Normalize(raws)
	again := make([]map[string]interface{}, 0, len(once))
	for _, r := range once {
		again = append(again, r.Raw())
	}
	twice := Normalize(again)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("normalization is not a fixed point (-once +twice):\n%s", diff)
	}
	assert.Len(t, once, 3)
}
