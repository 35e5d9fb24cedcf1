package processor

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jvmScope/config"
)

func TestInterval_Constant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for range 100 {
		d, err := Interval(2*time.Second, 2*time.Second, rng)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestInterval_InclusiveBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	lo, hi := 10*time.Nanosecond, 12*time.Nanosecond

	seen := map[time.Duration]bool{}
	for range 1000 {
		d, err := Interval(lo, hi, rng)
		require.NoError(t, err)
		require.GreaterOrEqual(t, d, lo)
		require.LessOrEqual(t, d, hi)
		seen[d] = true
	}
	assert.Len(t, seen, 3, "both bounds and the midpoint are reachable")
}

func TestInterval_Deterministic(t *testing.T) {
	draw := func() []time.Duration {
		rng := rand.New(rand.NewPCG(42, 99))
		out := make([]time.Duration, 5)
		for i := range out {
			out[i], _ = Interval(time.Second, 5*time.Second, rng)
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestInterval_InvalidBounds(t *testing.T) {
	_, err := Interval(3*time.Second, time.Second, nil)
	assert.ErrorIs(t, err, config.ErrInvalidInterval)

	_, err = Interval(-time.Second, time.Second, nil)
	assert.ErrorIs(t, err, config.ErrInvalidInterval)
}

func TestEstimatedDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), EstimatedDuration(1, time.Second, 3*time.Second))
	assert.Equal(t, 8*time.Second, EstimatedDuration(5, time.Second, 3*time.Second))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
