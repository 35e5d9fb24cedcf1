// Package aggregator accumulates per-method occurrence counts and call depths
// across thread dump samples.
package aggregator

import (
	"cmp"
	"slices"
)

// Stats is the running total for one method. Values only ever grow.
type Stats struct {
	Count           int64
	CumulativeDepth int64
}

// AverageDepth returns CumulativeDepth / Count, or 0 when nothing was recorded.
func (s Stats) AverageDepth() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.CumulativeDepth) / float64(s.Count)
}

// Row is one line of a snapshot.
type Row struct {
	Method       string
	Count        int64
	AverageDepth float64
}

// Aggregator maps method identifiers to their statistics. It is owned by the
// sampling loop and is not safe for concurrent use.
type Aggregator struct {
	stats map[string]*Stats
	total int64
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{stats: make(map[string]*Stats)}
}

// Record adds one occurrence of method at the given depth. Repeated
// occurrences within one stack are recorded independently.
func (a *Aggregator) Record(method string, depth int) {
	s, ok := a.stats[method]
	if !ok {
		s = &Stats{}
		a.stats[method] = s
	}
	s.Count++
	s.CumulativeDepth += int64(depth)
	a.total++
}

// Get returns the statistics of one method.
func (a *Aggregator) Get(method string) (Stats, bool) {
	s, ok := a.stats[method]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Len returns the number of distinct methods recorded.
func (a *Aggregator) Len() int {
	return len(a.stats)
}

// Total returns the number of occurrences recorded across all methods.
func (a *Aggregator) Total() int64 {
	return a.total
}

// Snapshot returns one row per method sorted by descending count, ties broken
// by method name ascending.
func (a *Aggregator) Snapshot() []Row {
	rows := make([]Row, 0, len(a.stats))
	for method, s := range a.stats {
		rows = append(rows, Row{
			Method:       method,
			Count:        s.Count,
			AverageDepth: s.AverageDepth(),
		})
	}

	slices.SortFunc(rows, func(x, y Row) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Method, y.Method)
	})
	return rows
}
