package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"jvmScope/config"
)

// Interval draws a wait uniformly from [lo, hi], both bounds inclusive, at
// nanosecond resolution. lo == hi yields lo.
func Interval(lo, hi time.Duration, rng *rand.Rand) (time.Duration, error) {
	if err := checkBounds(lo, hi); err != nil {
		return 0, err
	}
	if lo == hi {
		return lo, nil
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1)), nil
}

func checkBounds(lo, hi time.Duration) error {
	if lo < 0 || hi < 0 {
		return fmt.Errorf("%w: negative bound (min=%v max=%v)", config.ErrInvalidInterval, lo, hi)
	}
	if lo > hi {
		return fmt.Errorf("%w: min %v exceeds max %v", config.ErrInvalidInterval, lo, hi)
	}
	return nil
}

// EstimatedDuration is the expected wall time of a run: the first sample is
// taken immediately and every further one waits the mean interval.
func EstimatedDuration(samples int, lo, hi time.Duration) time.Duration {
	if samples <= 1 {
		return 0
	}
	return time.Duration(samples-1) * (lo + (hi-lo)/2)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
