package salesforce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn func(ctx context.Context, soql string, out any) error
	queries []string
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	m.queries = append(m.queries, soql)
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func TestMockClientImplementsInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*mockClient)(nil)
}

func TestNewClientReturnsClient(t *testing.T) {
	var _ Client = (*sfClient)(nil)

	client := NewClient(nil)
	require.NotNil(t, client)
}

func TestConnect_RequiresClientID(t *testing.T) {
	_, err := Connect(Creds{Username: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id is required")
}

func TestWithRateLimit(t *testing.T) {
	t.Run("sets limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(10)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, rate.Limit(10), c.limiter.Limit())
		assert.Equal(t, 10, c.limiter.Burst())
	})

	t.Run("zero rate skips limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0)).(*sfClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("negative rate skips limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(-5)).(*sfClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("fractional rate gets burst of 1", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0.5)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, 1, c.limiter.Burst())
	})
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	// Zero burst so Wait always blocks.
	c := &sfClient{
		limiter: rate.NewLimiter(rate.Every(time.Hour), 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.wait(ctx)
	assert.Error(t, err)

	err = c.Query(ctx, "SELECT Id FROM Lead", &[]Deal{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: rate limit")
}
