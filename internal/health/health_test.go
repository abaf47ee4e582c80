package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/circuitbreaker"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newBreaker(t *testing.T) *circuitbreaker.CircuitBreaker {
	config := circuitbreaker.DefaultConfig()
	config.FailureThreshold = 1
	config.Timeout = time.Hour
	return circuitbreaker.NewCircuitBreaker("oracle-health-test", config, zaptest.NewLogger(t))
}

func TestOverallStatus(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	ctx := context.Background()
	assert.Equal(t, StatusUnknown, m.GetOverallHealth(ctx).Status)
	assert.False(t, m.IsReady(ctx))

	breaker := newBreaker(t)
	require.NoError(t, m.RegisterChecker(NewOracleChecker(breaker)))
	require.NoError(t, m.RegisterChecker(NewCacheChecker(fakePinger{err: errors.New("dial tcp: refused")})))
	assert.Error(t, m.RegisterChecker(NewOracleChecker(breaker)))

	overall := m.GetOverallHealth(ctx)
	assert.Equal(t, StatusDegraded, overall.Status)
	assert.True(t, overall.Ready)

	_ = breaker.Execute(ctx, func() error { return errors.New("upstream 503") })
	detailed := m.GetDetailedHealth(ctx)
	assert.Equal(t, StatusUnhealthy, detailed.Overall.Status)
	assert.False(t, detailed.Overall.Ready)
	assert.True(t, detailed.Overall.Live)
	assert.Equal(t, 2, detailed.Summary.Unhealthy)
	assert.Equal(t, 1, detailed.Summary.Critical)
	assert.Len(t, m.GetLastResults(), 2)
}

func TestHTTPHandler(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	breaker := newBreaker(t)
	require.NoError(t, m.RegisterChecker(NewOracleChecker(breaker)))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zaptest.NewLogger(t)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_ = breaker.Execute(context.Background(), func() error { return errors.New("boom") })

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body["status"])

	resp, err = http.Get(srv.URL + "/health/detailed")
	require.NoError(t, err)
	defer resp.Body.Close()
	var detailed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detailed))
	assert.Contains(t, detailed["components"], "oracle")
}
