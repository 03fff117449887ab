package health_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/health"
)

func TestDrainingInstanceSkipsDependencyPings(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	deps := &fakeDeps{}
	h := health.Handler{Checker: deps}

	health.SetReady(true)
	status, _ := ready(t, h)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, deps.pings)

	health.SetReady(false)
	status, body := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "draining", body["status"])
	require.Equal(t, 2, deps.pings)

	health.SetReady(true)
	status, _ = ready(t, h)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 4, deps.pings)
}
