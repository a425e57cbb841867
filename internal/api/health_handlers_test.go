package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "0 games indexed", health.Components["search"].Message)
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
	assert.Empty(t, health.Components["database"].Message)
}

func TestHealthCheck_ReportsLastWrite(t *testing.T) {
	ts := setupTestServer(t)
	ts.createUser(t, "alice", false)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Contains(t, health.Components["database"].Message, "last write ")
}

func TestHealthCheck_DegradedWithoutComponents(t *testing.T) {
	s := &Server{}

	assert.Equal(t, "degraded", s.checkSearchIndex().Status)
	assert.Equal(t, "degraded", s.checkSSEManager().Status)
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "12 connected clients", formatSSEStatus(12))
}
