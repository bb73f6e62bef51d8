package tabular

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog-platform/internal/models"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", ""},
		{"a,b", `"a,b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{"a,b\"c\nd", "\"a,b\"\"c\nd\""},
		{" leading space", " leading space"},
		{"a\rb", "\"a\rb\""},
		{"crlf\r\nline", "\"crlf\r\nline\""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Escape(tt.in), "Escape(%q)", tt.in)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "simple rows",
			in:   "a,b\nc,d\n",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "no trailing newline",
			in:   "a,b\nc,d",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "trailing empty field flushed",
			in:   "a,",
			want: [][]string{{"a", ""}},
		},
		{
			name: "CRLF line endings",
			in:   "a,b\r\nc,d\r\n",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "quoted field with escapes",
			in:   "\"a,b\"\"c\nd\",e\n",
			want: [][]string{{"a,b\"c\nd", "e"}},
		},
		{
			name: "BOM stripped from first cell",
			in:   BOM + "x,y\n",
			want: [][]string{{"x", "y"}},
		},
		{
			name: "unterminated quote consumes rest",
			in:   "a,\"b,c\nd",
			want: [][]string{{"a", "b,c\nd"}},
		},
		{
			name: "quote in the middle of a field toggles quoting",
			in:   "ab\"c,d\"e,f\n",
			want: [][]string{{"abc,de", "f"}},
		},
		{
			name: "blank line",
			in:   "a\n\nb\n",
			want: [][]string{{"a"}, {""}, {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Decode(tt.in)); diff != "" {
				t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestEncodeTable(t *testing.T) {
	out := EncodeTable([]string{"site", "note"}, [][]string{{"A", "x,y"}})

	assert.True(t, strings.HasPrefix(out, BOM))
	assert.Equal(t, BOM+"site,note\nA,\"x,y\"\n", out)
	assert.Equal(t, [][]string{{"site", "note"}, {"A", "x,y"}}, Decode(out))
}

func TestQuotingRoundTrip(t *testing.T) {
	field := "a,b\"c\nd"
	encoded := EncodeTable([]string{"note"}, [][]string{{field}})

	assert.Contains(t, encoded, "\"a,b\"\"c\nd\"")

	rows := Decode(encoded)
	require.Len(t, rows, 2)
	assert.Equal(t, field, rows[1][0])
}

func sampleRecords() []models.WorkLogRecord {
	return []models.WorkLogRecord{
		{
			WorkDate: "2025-08-01", WorkerID: "W01", WorkerName: "Sato", Team: "T1",
			SiteID: "A", StandID: "A-3", TaskCode: "下刈り",
			WorkTimeMin: 480, OutputValue: 2, OutputUnit: "ha",
			MachineID: "M-7", MachineTimeMin: 90.5, Weather: "晴",
			KYCheck: true, Incident: models.IncidentNone,
			Photo1: "https://example.com/p1.jpg", Note: "a,b\"c\nd",
		},
		{
			WorkDate: "2025-08-02", WorkerName: "Suzuki", SiteID: "B",
			TaskCode: "間伐", WorkTimeMin: 0.1 + 0.2, OutputValue: 10, OutputUnit: "本",
			Incident: models.IncidentSevere, Note: "  keeps spaces  ",
		},
		{
			Incident: models.IncidentMinor,
		},
		{
			WorkDate: "2025-08-03", SiteID: "C", Incident: models.IncidentNone,
			Note: "a\rb", Photo1: "crlf\r\nline",
		},
	}
}

func TestEncodeDecodeWorkLogs_RoundTrip(t *testing.T) {
	records := sampleRecords()

	encoded := Encode(records)
	require.True(t, strings.HasPrefix(encoded, BOM))

	decoded, err := DecodeWorkLogs(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(records, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_HeaderOrder(t *testing.T) {
	encoded := Encode(nil)
	rows := Decode(encoded)

	require.Len(t, rows, 1)
	assert.Equal(t, models.Columns, rows[0])
	assert.Len(t, rows[0], 19)
}

func TestDecodeWorkLogs_HeaderGate(t *testing.T) {
	swapped := append([]string(nil), models.Columns...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	renamed := append([]string(nil), models.Columns...)
	renamed[18] = "notes"

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"exact header, no body", strings.Join(models.Columns, ",") + "\n", false},
		{"exact header with BOM", BOM + strings.Join(models.Columns, ","), false},
		{"exact header, junk body", strings.Join(models.Columns, ",") + "\n\"unterminated,,\nzz", false},
		{"swapped columns", strings.Join(swapped, ",") + "\n", true},
		{"renamed column", strings.Join(renamed, ",") + "\n", true},
		{"missing column", strings.Join(models.Columns[:18], ",") + "\n", true},
		{"extra column", strings.Join(models.Columns, ",") + ",extra\n", true},
		{"empty input", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWorkLogs(tt.text)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var mismatch *models.SchemaMismatchError
			assert.ErrorAs(t, err, &mismatch)
		})
	}
}

func TestDecodeWorkLogs_CoercesBadCells(t *testing.T) {
	text := strings.Join(models.Columns, ",") + "\n" +
		"2025-08-01,W01,,,A,,間伐,abc,5,m3,,,晴,はい,軽微,,,,\n" +
		"\n"

	records, err := DecodeWorkLogs(text)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 0.0, r.WorkTimeMin)
	assert.Equal(t, 5.0, r.OutputValue)
	assert.Equal(t, "m³", r.OutputUnit)
	assert.True(t, r.KYCheck)
	assert.Equal(t, models.IncidentMinor, r.Incident)
}
