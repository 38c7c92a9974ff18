package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepSamples(t *testing.T, labels ...string) (uint64, float64) {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, StepDuration.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestNewCollector_CreatesCollectorWithWorkspace(t *testing.T) {
	collector := NewCollector("test-ws")

	assert.NotNil(t, collector)
	assert.Equal(t, "test-ws", collector.workspace)
}

func TestCollector_ObserveStep(t *testing.T) {
	collector := NewCollector("test-ws-coll-1")

	beforeCount, beforeSum := stepSamples(t, "test-ws-coll-1", "migrate", "tracker", OutcomeOK)
	collector.ObserveStep("migrate", "tracker", OutcomeOK, 1500*time.Millisecond)
	afterCount, afterSum := stepSamples(t, "test-ws-coll-1", "migrate", "tracker", OutcomeOK)

	assert.Equal(t, beforeCount+1, afterCount)
	assert.InDelta(t, beforeSum+1.5, afterSum, 1e-9)

	failed, _ := stepSamples(t, "test-ws-coll-1", "migrate", "tracker", OutcomeError)
	assert.Zero(t, failed)
}

func TestCollector_IncRuns(t *testing.T) {
	collector := NewCollector("test-ws-coll-2")

	okBefore := testutil.ToFloat64(RunsTotal.WithLabelValues("test-ws-coll-2", "upgrade", OutcomeOK))
	errBefore := testutil.ToFloat64(RunsTotal.WithLabelValues("test-ws-coll-2", "upgrade", OutcomeError))

	collector.IncRuns("upgrade", nil)
	collector.IncRuns("upgrade", nil)
	collector.IncRuns("upgrade", errors.New("boom"))

	assert.Equal(t, okBefore+2, testutil.ToFloat64(RunsTotal.WithLabelValues("test-ws-coll-2", "upgrade", OutcomeOK)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(RunsTotal.WithLabelValues("test-ws-coll-2", "upgrade", OutcomeError)))
}

func TestHandler_ServesMetrics(t *testing.T) {
	collector := NewCollector("test-ws-coll-3")
	collector.IncRuns("init", nil)
	collector.ObserveStep("init", "first-tx", OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `coven_migrate_runs_total{kind="init",outcome="ok",workspace="test-ws-coll-3"} 1`)
	assert.Contains(t, body, `coven_migrate_step_duration_seconds_count{operation="first-tx",outcome="ok",phase="init",workspace="test-ws-coll-3"} 1`)
}
