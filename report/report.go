// Package report renders an aggregator snapshot as a CSV file and as a short
// console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"jvmScope/aggregator"
)

// Header is the first CSV row.
var Header = []string{"Method", "Count", "Average Depth"}

// Write renders rows as CSV in the given order. Average depth is rounded to
// the nearest integer, halves to even. No rows yields a header-only document.
func Write(w io.Writer, rows []aggregator.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Method,
			strconv.FormatInt(row.Count, 10),
			FormatDepth(row.AverageDepth),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %s: %w", row.Method, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV report to path, creating parent directories.
func WriteFile(path string, rows []aggregator.Row) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		//nolint:gosec // G301: report directories are meant to be shared.
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	//nolint:gosec // G304: path comes from the operator's configuration.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing report: %w", cerr)
		}
	}()

	return Write(f, rows)
}

// FormatDepth renders an average depth the way the report does.
func FormatDepth(avg float64) string {
	return strconv.FormatFloat(math.RoundToEven(avg), 'f', 0, 64)
}

// Summary logs the top hotspots with their share of all recorded occurrences.
func Summary(logger zerolog.Logger, rows []aggregator.Row, top int) {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	if total == 0 {
		logger.Info().Msg("No methods recorded")
		return
	}

	if top <= 0 || top > len(rows) {
		top = len(rows)
	}
	for i, row := range rows[:top] {
		logger.Info().
			Int("rank", i+1).
			Str("method", row.Method).
			Int64("count", row.Count).
			Str("share", fmt.Sprintf("%.2f%%", 100*float64(row.Count)/float64(total))).
			Str("avg_depth", strconv.FormatFloat(row.AverageDepth, 'f', 2, 64)).
			Msg("Hotspot")
	}
}
