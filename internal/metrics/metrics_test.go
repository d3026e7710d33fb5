package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorderDisabledWithoutGateway(t *testing.T) {
	rec := NewRecorder("", "demo")
	assert.Nil(t, rec, "empty gateway should disable metrics")

	// All methods must be safe on the disabled recorder.
	assert.NotPanics(t, func() {
		rec.AllocationStarted(true)
		rec.InterruptionReceived()
		rec.ContinuationSubmitted()
		rec.WorkloadFinished(time.Second)
		rec.Push()
	}, "nil recorder methods should be no-ops")
}

func TestRecorderCounts(t *testing.T) {
	rec := NewRecorder("http://localhost:9091", "demo")
	require.NotNil(t, rec)

	rec.AllocationStarted(true)
	rec.AllocationStarted(false)
	rec.AllocationStarted(false)
	rec.InterruptionReceived()
	rec.ContinuationSubmitted()
	rec.WorkloadFinished(90 * time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.allocations.WithLabelValues("first")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.allocations.WithLabelValues("resume")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.interruptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.resubmissions))
	assert.Equal(t, 90.0, testutil.ToFloat64(rec.workloadDuration))
}

func TestRecorderIsolation(t *testing.T) {
	// Recorders keep private registries, so several may coexist in one
	// process without duplicate-registration panics.
	assert.NotPanics(t, func() {
		first := NewRecorder("http://localhost:9091", "a")
		second := NewRecorder("http://localhost:9091", "b")
		require.NotNil(t, first)
		require.NotNil(t, second)
		first.InterruptionReceived()
		assert.Equal(t, 0.0, testutil.ToFloat64(second.interruptions))
	})
}

func TestPushDeliversToGateway(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := NewRecorder(server.URL, "demo job")
	require.NotNil(t, rec)
	rec.AllocationStarted(true)
	rec.Push()

	select {
	case path := <-received:
		assert.Contains(t, path, "/metrics/job/easy_slurm", "push path should carry the push job name")
		assert.Contains(t, path, "job_name", "push path should carry the grouping label")
	case <-time.After(5 * time.Second):
		t.Fatal("gateway never received a push")
	}
}

func TestPushFailureDoesNotPanic(t *testing.T) {
	rec := NewRecorder("http://localhost:1", "demo")
	require.NotNil(t, rec)
	assert.NotPanics(t, func() { rec.Push() }, "unreachable gateway should only log")
}
