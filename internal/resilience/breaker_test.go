package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBreakerTransitions(t *testing.T) {
	resilience.MustRegisterMetrics("test", prometheus.NewRegistry())
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	b := resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("redis").WithClock(clk.now)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
	require.Equal(t, float64(1), testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis")))

	clk.t = clk.t.Add(time.Minute)
	require.True(t, b.Allow(ctx), "one trial call after cool-off")
	require.False(t, b.Allow(ctx), "second caller waits for the trial call")
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	b := resilience.NewBreaker(1, 1, time.Second).WithClock(clk.now)
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	clk.t = clk.t.Add(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerDo(t *testing.T) {
	b := resilience.NewBreaker(1, 1, time.Hour)
	ctx := context.Background()
	notFound := errors.New("not found")
	benign := func(err error) bool { return err == nil || errors.Is(err, notFound) }

	err := b.Do(ctx, func(context.Context) error { return notFound }, benign)
	require.ErrorIs(t, err, notFound)
	require.Equal(t, resilience.Closed, b.State())

	err = b.Do(ctx, func(context.Context) error { return errors.New("dial tcp") }, benign)
	require.Error(t, err)
	require.Equal(t, resilience.Open, b.State())

	called := false
	err = b.Do(ctx, func(context.Context) error { called = true; return nil }, nil)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)
}

func TestNilBreakerAllows(t *testing.T) {
	var b *resilience.Breaker
	require.True(t, b.Allow(context.Background()))
	require.NoError(t, b.Do(context.Background(), func(context.Context) error { return nil }, nil))
	require.Equal(t, resilience.Closed, b.State())
}
