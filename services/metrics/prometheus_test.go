package metricsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremz/black/core"
)

func TestPrometheus(t *testing.T) {
	m := NewPrometheus()

	m.SyncOutcome("sync_assessment", core.OutcomeOK)
	m.SyncOutcome("sync_assessment", core.OutcomeOK)
	m.SyncOutcome("sync_grade", core.OutcomeError)
	m.JobRun("readiness", "decay", 4, 3, 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.syncs.WithLabelValues("sync_assessment", core.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues("sync_grade", core.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("readiness", "decay")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.jobRows.WithLabelValues("readiness", "decay", "processed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.jobRows.WithLabelValues("readiness", "decay", "updated")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `black_sync_total{op="sync_assessment",outcome="ok"} 2`)
	assert.Contains(t, string(body), "black_job_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
