package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_TripsAndRecovers(t *testing.T) {
	t.Parallel()

	var transitions []string
	b := NewBreaker("redis", BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange:    func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	now := time.Now()
	b.now = func() time.Time { return now }

	fail := func() error { return errFlaky }
	assert.ErrorIs(t, b.Execute(fail), errFlaky)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Execute(fail), errFlaky)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, b.Execute(fail), errFlaky)
	assert.Equal(t, StateOpen, b.State(), "failed probe reopens")

	now = now.Add(time.Minute)
	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed",
	}, transitions)
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1})
	_ = b.Execute(func() error { return errFlaky })
	assert.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Execute(func() error { return nil }))
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	v, err := WithTimeout(context.Background(), time.Second, "quick", func(context.Context) (int, error) {
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = WithTimeout(context.Background(), time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "slow")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
