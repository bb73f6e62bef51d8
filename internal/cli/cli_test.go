package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog-platform/internal/models"
	"worklog-platform/internal/services"
	"worklog-platform/internal/tabular"
)

type fixture struct {
	dir      string
	worklogs string
	docs     string
	ledger   string
	rates    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		worklogs: filepath.Join(dir, "august.csv"),
		docs:     filepath.Join(dir, "docs.json"),
		ledger:   filepath.Join(dir, "ledger.csv"),
		rates:    filepath.Join(dir, "rates.yaml"),
	}

	csv := tabular.Encode([]models.WorkLogRecord{
		{WorkDate: "2025-08-01", WorkerID: "W01", SiteID: "A", TaskCode: "下刈り", OutputUnit: "ha", OutputValue: 2, WorkTimeMin: 480},
		{WorkDate: "2025-08-02", WorkerID: "W01", SiteID: "A", TaskCode: "下刈り", OutputUnit: "ha", OutputValue: 1, WorkTimeMin: 240},
	})
	require.NoError(t, os.WriteFile(f.worklogs, []byte(csv), 0o600))
	require.NoError(t, os.WriteFile(f.docs, []byte(`[{"work_date":"2025-08-03","worker_name":"Sato","site_id":"B","task_code":"間伐","output_value":"12","output_unit":"本","work_time_min":"360"}]`), 0o600))
	require.NoError(t, os.WriteFile(f.ledger, []byte("date,site_id,account,amount,note\n2025-08-10,A,fuel,\"6,000\",\n2025-09-01,A,fuel,999,\n"), 0o600))
	require.NoError(t, os.WriteFile(f.rates, []byte("hourly_wage: 2000\nmachine_rate: 3000\nunit_prices:\n  ha: 50000\n"), 0o600))
	return f
}

func (f fixture) inputs() []string {
	return []string{"--worklogs", f.worklogs, "--ledger", f.ledger, "--rates", f.rates}
}

// executeCmd runs the root command and captures stdout
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKPICmd(t *testing.T) {
	f := newFixture(t)

	out, err := executeCmd(t, append([]string{"kpi", "--month", "2025-08", "--documents", f.docs}, f.inputs()...)...)
	require.NoError(t, err)

	var dashboard services.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &dashboard))
	assert.Equal(t, 3, dashboard.KPI.Count)
	assert.Equal(t, 18.0, dashboard.KPI.WorkerHours)
	assert.Equal(t, 2, dashboard.KPI.SiteCount)
	assert.Empty(t, dashboard.KPI.SingleUnit)
}

func TestKPICmd_TaskFilter(t *testing.T) {
	f := newFixture(t)

	out, err := executeCmd(t, "kpi", "-m", "2025-08", "-t", "間伐", "--documents", f.docs, "-w", f.worklogs)
	require.NoError(t, err)

	var dashboard services.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &dashboard))
	assert.Equal(t, 1, dashboard.KPI.Count)
	assert.Equal(t, "本", dashboard.KPI.SingleUnit)
}

func TestPnLCmd(t *testing.T) {
	f := newFixture(t)

	out, err := executeCmd(t, append([]string{"pnl", "--month", "2025-08"}, f.inputs()...)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "revenue")
	assert.Regexp(t, `^\s*A\s+150000\s+24000\s+0\s+6000\s+120000\s+80\.0%`, lines[1])
	assert.Regexp(t, `^\s*total\s+150000`, lines[2])
}

func TestPnLCmd_RequiresMonth(t *testing.T) {
	f := newFixture(t)

	_, err := executeCmd(t, append([]string{"pnl"}, f.inputs()...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month")
}

func TestExportCmd(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.dir, "billing.csv")

	out, err := executeCmd(t, append([]string{"export", "billing", "--month", "2025-08", "--out", target}, f.inputs()...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, tabular.BOM+"site_id,unit,quantity,unit_price,amount\nA,ha,3.0,50000,150000\n", string(data))
}

func TestExportCmd_Stdout(t *testing.T) {
	f := newFixture(t)

	out, err := executeCmd(t, "export", "timesheet", "-m", "2025-08", "-o", "-", "-w", f.worklogs)
	require.NoError(t, err)
	assert.Equal(t, tabular.BOM+"worker,worker_name,work_date,hours\nW01,,2025-08-01,8.00\nW01,,2025-08-02,4.00\n", out)
}

func TestExportCmd_UnknownKind(t *testing.T) {
	_, err := executeCmd(t, "export", "payroll", "-m", "2025-08")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payroll")
}

func TestWorkLogsCmd_RoundTrip(t *testing.T) {
	f := newFixture(t)

	out, err := executeCmd(t, "worklogs", "-o", "-", "-w", f.worklogs, "--documents", f.docs)
	require.NoError(t, err)

	records, err := tabular.DecodeWorkLogs(out)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "B", records[2].SiteID)
	assert.Equal(t, 12.0, records[2].OutputValue)
}

func TestChartCmd(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.dir, "dashboard.html")

	_, err := executeCmd(t, "chart", "-m", "2025-08", "-o", target, "-w", f.worklogs)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Work log 2025-08")
}

func TestLoadApp_Errors(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(f.dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("date,worker\n"), 0o600))

	_, err := executeCmd(t, "kpi", "-w", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")

	_, err = executeCmd(t, "kpi", "-w", filepath.Join(f.dir, "missing.csv"))
	assert.Error(t, err)

	_, err = executeCmd(t, "kpi", "--log-level", "loud")
	assert.Error(t, err)
}
