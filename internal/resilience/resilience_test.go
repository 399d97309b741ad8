package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/config"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	t.Parallel()

	var calls, retries int
	p := fastPolicy(3)
	p.OnRetry = func(int, error) { retries++ }

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("503"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("502"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, fastPolicy(5), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryVal(t *testing.T) {
	t.Parallel()

	calls := 0
	v, err := RetryVal(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("connection reset by peer")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDelay_CappedAndNonNegative(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 300*time.Millisecond, p.Delay(5))

	p.JitterFraction = 0.5
	for i := 0; i < 20; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestPolicyFrom(t *testing.T) {
	t.Parallel()

	p := PolicyFrom(config.RetryConfig{MaxAttempts: 5, InitialBackoffMs: 100, JitterFraction: -1})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 10*time.Second, p.MaxBackoff)
	assert.InDelta(t, 0.25, p.JitterFraction, 0.001)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped", errors.Join(errors.New("ctx"), NewTransientError(errors.New("x"), 429)), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"permanent", errors.New("invalid email"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckStatus(http.StatusOK, "postback"))
	assert.NoError(t, CheckStatus(http.StatusFound, "postback"))

	err := CheckStatus(http.StatusServiceUnavailable, "postback")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "postback: status 503")

	err = CheckStatus(http.StatusBadRequest, "postback")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, "permanent", Classify(err))
}

func TestBreaker(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }
	ctx := context.Background()
	fail := func(context.Context) error { return errors.New("down") }
	ok := func(context.Context) error { return nil }

	assert.Error(t, b.Call(ctx, fail))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Error(t, b.Call(ctx, fail))
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.Error(t, b.Call(ctx, fail))
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(time.Minute)
	require.NoError(t, b.Call(ctx, ok))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestDeadLetter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d, err := NewDeadLetter("postback", map[string]string{"email": "a@b.c"}, NewTransientError(errors.New("503"), 503), 3, now)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.JSONEq(t, `{"email":"a@b.c"}`, string(d.Payload))
	assert.Equal(t, "transient", d.ErrorType)
	assert.True(t, d.CanRetry())

	d.Failed(NewTransientError(errors.New("503"), 503), fastPolicy(3), now)
	assert.Equal(t, 2, d.Attempts)
	assert.True(t, d.CanRetry())
	d.Failed(errors.New("400"), fastPolicy(3), now)
	assert.Equal(t, "permanent", d.ErrorType)
	assert.False(t, d.CanRetry())

	_, err = NewDeadLetter("postback", make(chan int), errors.New("x"), 3, now)
	assert.Error(t, err)
}
