package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		NewCollector("worklog", prometheus.NewRegistry())
		NewCollector("worklog", prometheus.NewRegistry())
	})
}

func TestCollector_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("worklog", reg)

	c.RecordIngested("tabular", 3)
	c.RecordIngested("tabular", 2)
	c.RecordIngested("document", 1)
	c.RecordAPIRequest("/api/v1/dashboard", "GET", "200")
	c.RecordIngestionError("schema_mismatch")
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.IngestionRecordsTotal.WithLabelValues("tabular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestionRecordsTotal.WithLabelValues("document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/v1/dashboard", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestionErrorsTotal.WithLabelValues("schema_mismatch")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))

	count, err := testutil.GatherAndCount(reg, "worklog_ingestion_batch_size")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewNop()
	timer := c.NewTimer(c.ReportDuration.WithLabelValues("dashboard"))
	assert.GreaterOrEqual(t, int64(timer.ObserveDuration()), int64(0))

	assert.NotPanics(t, func() { (&Timer{}).ObserveDuration() })
}
