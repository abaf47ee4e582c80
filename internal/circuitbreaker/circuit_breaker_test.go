package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(t *testing.T, mutate func(*Config)) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	config := DefaultConfig()
	config.FailureThreshold = 3
	config.SuccessThreshold = 2
	config.MaxRequests = 2
	config.Timeout = 10 * time.Second
	config.Interval = time.Minute
	config.Now = clock.Now
	if mutate != nil {
		mutate(&config)
	}
	return NewCircuitBreaker("test", config, zaptest.NewLogger(t)), clock
}

func TestCircuitBreakerStates(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	assert.Equal(t, StateClosed, cb.State())
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return boom }), boom)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return nil }), ErrCircuitBreakerOpen)

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, func(c *Config) { c.FailureThreshold = 1 })
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(11 * time.Second)
	_ = cb.Execute(ctx, func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerMaxRequests(t *testing.T) {
	cb, clock := newTestBreaker(t, func(c *Config) {
		c.FailureThreshold = 1
		c.SuccessThreshold = 5
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("down") })
	clock.Advance(11 * time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return nil }), ErrTooManyRequests)
}

func TestCircuitBreakerIsFailureFilter(t *testing.T) {
	ignored := errors.New("not my fault")
	cb, _ := newTestBreaker(t, func(c *Config) {
		c.FailureThreshold = 1
		c.IsFailure = func(err error) bool { return !errors.Is(err, ignored) }
	})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func() error { return ignored }), ignored)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}

func TestCircuitBreakerCountsResetAfterInterval(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errors.New("x") })
	counts := cb.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)

	clock.Advance(2 * time.Minute)
	_ = cb.Execute(ctx, func() error { return nil })
	assert.Equal(t, uint32(1), cb.Counts().Requests)
}

func TestStateChangeCallback(t *testing.T) {
	var transitions [][2]State
	cb, _ := newTestBreaker(t, func(c *Config) {
		c.FailureThreshold = 2
		c.OnStateChange = func(_ string, from, to State) {
			transitions = append(transitions, [2]State{from, to})
		}
	})
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("x") })
	}
	require.Len(t, transitions, 1)
	assert.Equal(t, [2]State{StateClosed, StateOpen}, transitions[0])
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTransportTripsOnServerErrorsOnly(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.FailureThreshold = 2
	tr := NewTransport(nil, "oracle-test", "test", config, zaptest.NewLogger(t))
	client := &http.Client{Transport: tr}

	for i := 0; i < 4; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	}
	assert.Equal(t, StateClosed, tr.Breaker().State())

	status = http.StatusBadGateway
	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}
	assert.Equal(t, StateOpen, tr.Breaker().State())

	_, err := client.Get(srv.URL)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestRedisWrapperMissDoesNotTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rw := NewRedisWrapper(client, zaptest.NewLogger(t))
	defer rw.Close()
	ctx := context.Background()

	require.NoError(t, rw.Ping(ctx))
	require.NoError(t, rw.Set(ctx, "hunter:test", []byte("v"), time.Minute))

	val, err := rw.Get(ctx, "hunter:test")
	require.NoError(t, err)
	assert.Equal(t, "v", string(val))

	for i := 0; i < 10; i++ {
		_, err = rw.Get(ctx, "hunter:missing")
		assert.ErrorIs(t, err, redis.Nil)
	}
	assert.False(t, rw.IsCircuitBreakerOpen())

	require.NoError(t, rw.Del(ctx, "hunter:test"))
	_, err = rw.Get(ctx, "hunter:test")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisWrapperOpensWhenServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	rw := NewRedisWrapper(client, zaptest.NewLogger(t))
	defer rw.Close()
	s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.Error(t, rw.Ping(ctx))
	}
	assert.True(t, rw.IsCircuitBreakerOpen())
	assert.ErrorIs(t, rw.Ping(ctx), ErrCircuitBreakerOpen)
}
