package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("passes results through when closed", func(t *testing.T) {
		cb := NewCircuitBreaker()

		res, err := cb.Execute(ctx, func() (*Result, error) {
			return &Result{Content: "ok"}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", res.Content)
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			MaxFailures:          3,
			Timeout:              time.Minute,
			HalfOpenMaxSuccesses: 1,
		})
		boom := errors.New("backend down")

		for i := 0; i < 3; i++ {
			_, err := cb.Execute(ctx, func() (*Result, error) {
				return nil, boom
			})
			require.ErrorIs(t, err, boom)
		}

		assert.Equal(t, "open", cb.State())

		_, err := cb.Execute(ctx, func() (*Result, error) {
			t.Fatal("fn should not run while circuit is open")
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("recovers through half-open", func(t *testing.T) {
		cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			MaxFailures:          1,
			Timeout:              20 * time.Millisecond,
			HalfOpenMaxSuccesses: 1,
		})

		_, err := cb.Execute(ctx, func() (*Result, error) {
			return nil, errors.New("fail")
		})
		require.Error(t, err)
		require.Equal(t, "open", cb.State())

		time.Sleep(30 * time.Millisecond)

		res, err := cb.Execute(ctx, func() (*Result, error) {
			return &Result{Content: "back"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "back", res.Content)
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := NewCircuitBreaker()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := cb.Execute(cancelled, func() (*Result, error) {
			t.Fatal("fn should not run with a cancelled context")
			return nil, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
