package converter

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/pprof/profile"

	"jvmScope/aggregator"
)

// ConvertRowsToPprof converts an aggregator snapshot to pprof format.
// Parameters:
//   - rows: Snapshot rows, one per method
//   - start, end: Wall-clock span of the sampling run
//   - comments: Free-form notes stored in the profile, e.g. the active filter
//
// Every method becomes a single-location sample valued [count, cumulative
// depth], which is enough for `pprof -top`. Returns nil if rows is empty.
func ConvertRowsToPprof(rows []aggregator.Row, start, end time.Time, comments ...string) *profile.Profile {
	if len(rows) == 0 {
		return nil
	}

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "depth", Unit: "frames"},
		},
		DefaultSampleType: "samples",
		TimeNanos:         start.UnixNano(),
		DurationNanos:     end.Sub(start).Nanoseconds(),
		PeriodType: &profile.ValueType{
			Type: "samples",
			Unit: "count",
		},
		Period:   1,
		Comments: comments,
	}

	for i, row := range rows {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:         id,
			Name:       row.Method,
			SystemName: row.Method,
		}
		loc := &profile.Location{
			ID:   id,
			Line: []profile.Line{{Function: fn}},
		}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)

		cumulative := int64(math.Round(row.AverageDepth * float64(row.Count)))
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{row.Count, cumulative},
		})
	}

	return prof
}

// WriteFile validates prof and writes it gzip-compressed to path.
func WriteFile(path string, prof *profile.Profile) (err error) {
	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	//nolint:gosec // G304: path comes from the operator's configuration.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing profile: %w", cerr)
		}
	}()

	if err := prof.Write(f); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
