package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"jvmScope/aggregator"
	"jvmScope/filter"
)

// Fetcher returns one raw thread dump per call.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds the configuration for the sampling loop
type Config struct {
	Samples     int            // Number of fetch attempts
	MinInterval time.Duration  // Lower bound of the wait between attempts
	MaxInterval time.Duration  // Upper bound of the wait between attempts
	Filter      filter.Spec    // Frames and threads in scope
	Rand        *rand.Rand     // Interval source, randomly seeded when nil
	Sleep       SleepFunc      // Wait implementation, Sleep when nil
	Logger      zerolog.Logger // Progress and warnings
}

// Processor drives the fetch-parse-record cycle.
// It is strictly sequential: one cycle completes before the next wait begins.
type Processor struct {
	config     Config
	fetcher    Fetcher
	aggregator *aggregator.Aggregator
	state      State
}

// State is a step of the sampling loop
type State int

const (
	Idle State = iota
	Waiting
	Fetching
	Parsing
	Recording
	Done
	Aborted
)

var stateNames = [...]string{
	Idle:      "idle",
	Waiting:   "waiting",
	Fetching:  "fetching",
	Parsing:   "parsing",
	Recording: "recording",
	Done:      "done",
	Aborted:   "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result summarizes a finished run. Rows hold whatever was aggregated, also
// for aborted runs.
type Result struct {
	State      State
	Configured int // Samples requested
	Attempts   int // Fetches started
	Collected  int // Samples parsed and recorded
	Dropped    int // Attempts lost to malformed dumps or recoverable fetch errors
	Started    time.Time
	Finished   time.Time
	Err        error // Why the run was aborted, nil when Done
	Rows       []aggregator.Row
	Total      int64 // Occurrences recorded across all methods
}
