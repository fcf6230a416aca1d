package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.runTotal.WithLabelValues("forensics", "succeeded"))

	RecordRun("forensics", "succeeded", 2*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(m.runTotal.WithLabelValues("forensics", "succeeded")))
}

func TestRecordTurn(t *testing.T) {
	m := getMetrics()
	ok := testutil.ToFloat64(m.turnTotal.WithLabelValues("qa", "success"))
	failed := testutil.ToFloat64(m.turnTotal.WithLabelValues("qa", "failed"))

	RecordTurn("qa", time.Millisecond, true)
	RecordTurn("qa", time.Millisecond, false)
	RecordTurn("qa", time.Millisecond, false)

	assert.Equal(t, ok+1, testutil.ToFloat64(m.turnTotal.WithLabelValues("qa", "success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(m.turnTotal.WithLabelValues("qa", "failed")))
}

func TestCountersByLabel(t *testing.T) {
	m := getMetrics()

	abort := testutil.ToFloat64(m.runAborts.WithLabelValues("research"))
	RecordRunAbort("research")
	assert.Equal(t, abort+1, testutil.ToFloat64(m.runAborts.WithLabelValues("research")))

	rev := testutil.ToFloat64(m.planRevisions.WithLabelValues("qa_low_score"))
	RecordPlanRevision("qa_low_score")
	assert.Equal(t, rev+1, testutil.ToFloat64(m.planRevisions.WithLabelValues("qa_low_score")))

	attempts := testutil.ToFloat64(m.executorAttempts.WithLabelValues("research", "retry"))
	RecordExecutorAttempt("research", "retry")
	assert.Equal(t, attempts+1, testutil.ToFloat64(m.executorAttempts.WithLabelValues("research", "retry")))

	llmErrors := testutil.ToFloat64(m.llmErrorsTotal.WithLabelValues("static"))
	RecordLLMCall("static", time.Millisecond, true)
	RecordLLMCall("static", time.Millisecond, false)
	assert.Equal(t, llmErrors+1, testutil.ToFloat64(m.llmErrorsTotal.WithLabelValues("static")))
}

func TestSetCircuitOpen(t *testing.T) {
	m := getMetrics()

	SetCircuitOpen("ingestion", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.circuitOpen.WithLabelValues("ingestion")))

	SetCircuitOpen("ingestion", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.circuitOpen.WithLabelValues("ingestion")))
}

func TestMetricsHandler(t *testing.T) {
	RecordMemoryPersist("file", 10*time.Millisecond)
	RecordRun("base", "succeeded", time.Second)

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "session_runs_total")
	assert.Contains(t, string(body), "memory_persist_duration_seconds")
}
