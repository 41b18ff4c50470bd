package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthChecker_Healthy(t *testing.T) {
	h := NewHealthChecker()
	h.SetRunning(true)
	h.SetState("RUNNING")
	h.RecordTick(10000, 0.02)

	code, status := probe(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "RUNNING", status.State)
	assert.InDelta(t, 10000, status.Equity, 1e-9)
	assert.True(t, h.Healthy())
}

func TestHealthChecker_DegradedWhenStopped(t *testing.T) {
	h := NewHealthChecker()
	h.SetRunning(false)

	code, status := probe(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, h.Healthy())
}

func TestHealthChecker_UnhealthyWithErrors(t *testing.T) {
	h := NewHealthChecker()
	h.SetRunning(true)
	h.AddError("executor timeout")

	code, status := probe(t, h)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Len(t, status.Errors, 1)
}

func TestHealthChecker_ErrorWindowCapped(t *testing.T) {
	h := NewHealthChecker()
	for i := 0; i < 15; i++ {
		h.AddError("fault")
	}

	_, status := probe(t, h)
	assert.Len(t, status.Errors, 10)
}
