package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Threshold: threshold, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for range 3 {
		assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, Open, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	assert.Equal(t, 2, b.Failures())
	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()
	var transitions []string
	b.cfg.OnChange = func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }

	_ = b.Execute(ctx, fail)
	*now = now.Add(2 * time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	*now = now.Add(2 * time.Minute)
	_ = b.Execute(ctx, fail)

	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Execute(ctx, ok), ErrOpen)
}

func TestBreaker_SingleProbe(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()
	_ = b.Execute(ctx, fail)
	*now = now.Add(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Execute(ctx, ok), ErrOpen)
	close(release)
	assert.Eventually(t, func() bool { return b.State() == Closed }, time.Second, time.Millisecond)
}

func TestBreaker_CancellationDoesNotCount(t *testing.T) {
	b, _ := newTestBreaker(1)
	_ = b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, Closed, b.State())
}

func TestCountsFailure(t *testing.T) {
	assert.False(t, CountsFailure(nil))
	assert.False(t, CountsFailure(context.Canceled))
	assert.True(t, CountsFailure(errBoom))
	assert.True(t, CountsFailure(context.DeadlineExceeded))
}
