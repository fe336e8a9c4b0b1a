package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthDegradedWithoutGateway(t *testing.T) {
	h := NewHealthChecker()

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthHealthyWhenConnected(t *testing.T) {
	h := NewHealthChecker()
	h.SetGatewayConnected(true)
	h.SetActiveOrders(3)
	h.SetTradingHalted(true)

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 3, status.ActiveOrders)
	assert.True(t, status.TradingHalted)
	assert.NotEmpty(t, status.Uptime)
}

func TestHealthUnhealthyAfterFailures(t *testing.T) {
	h := NewHealthChecker()
	h.SetGatewayConnected(true)
	h.RecordFailure("poll cycle failed")

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Len(t, status.Errors, 1)

	h.ClearFailures()
	code, _ = getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
}
