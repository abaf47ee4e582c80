package circuitbreaker

import (
	"net/http"

	"go.uber.org/zap"
)

// Transport is an http.RoundTripper guarded by a circuit breaker. Transport
// errors and 5xx responses count as failures; 4xx responses, including 429,
// pass through without tripping the breaker so quota handling stays with the
// caller's retry policy.
type Transport struct {
	Base    http.RoundTripper
	cb      *CircuitBreaker
	name    string
	service string
}

// NewTransport registers a breaker named name for service and wraps base.
// A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, name, service string, config Config, logger *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	cb := NewCircuitBreaker(name, config, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(name, service, cb)
	return &Transport{Base: base, cb: cb, name: name, service: service}
}

// Breaker exposes the underlying breaker for health checks.
func (t *Transport) Breaker() *CircuitBreaker { return t.cb }

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.cb.Execute(req.Context(), func() error {
		var rtErr error
		resp, rtErr = t.Base.RoundTrip(req)
		if rtErr != nil {
			return rtErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	})

	GlobalMetricsCollector.RecordRequest(t.name, t.service, t.cb.State(), err == nil)

	// 5xx only marks the breaker; the caller still reads the response body.
	if _, ok := err.(*statusError); ok {
		return resp, nil
	}
	return resp, err
}

type statusError struct{ code int }

func (e *statusError) Error() string { return http.StatusText(e.code) }
