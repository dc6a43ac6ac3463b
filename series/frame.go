// Package series provides the columnar, time-indexed bar series that flows
// through the zone analysis pipeline: a parent Frame for the whole run and
// positional slices of it per zone.
package series

import (
	"sort"
	"time"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
)

// Required OHLCV column names.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColATR    = "atr"
)

// Frame is a columnar, time-indexed bar series. It never owns a mutable
// view of another Frame's backing arrays once sliced; Slice copies.
type Frame struct {
	Time    []time.Time
	Columns map[string][]float64
	// Attrs carries propagated metadata such as symbol/timeframe/source.
	Attrs map[string]string
}

// New builds a Frame from a time index and named columns. All columns must
// have the same length as Time.
func New(t []time.Time, columns map[string][]float64) (*Frame, error) {
	f := &Frame{Time: t, Columns: columns, Attrs: map[string]string{}}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the non-empty, monotonic-unique-time, equal-length
// invariants required by spec.md §6.
func (f *Frame) Validate() error {
	if f == nil || len(f.Time) == 0 {
		return zerr.New(zerr.DataError, "series is empty")
	}
	for i := 1; i < len(f.Time); i++ {
		if !f.Time[i].After(f.Time[i-1]) {
			return zerr.New(zerr.DataError, "time index is not monotonic and unique").WithField("time")
		}
	}
	for name, col := range f.Columns {
		if len(col) != len(f.Time) {
			return zerr.Newf(zerr.DataError, "column %q length %d does not match time index length %d", name, len(col), len(f.Time))
		}
	}
	return nil
}

// RequireColumns returns a DataError naming the first missing column, or
// nil if all are present.
func (f *Frame) RequireColumns(names ...string) error {
	for _, n := range names {
		if !f.HasColumn(n) {
			return zerr.Newf(zerr.DataError, "required column missing").WithField(n)
		}
	}
	return nil
}

// RequireOHLC validates the presence of open/high/low/close.
func (f *Frame) RequireOHLC() error {
	return f.RequireColumns(ColOpen, ColHigh, ColLow, ColClose)
}

// Len returns the number of bars.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Time)
}

// HasColumn reports whether a column exists (regardless of content).
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.Columns[name]
	return ok
}

// Column returns a column by name, or nil if absent.
func (f *Frame) Column(name string) []float64 {
	return f.Columns[name]
}

func (f *Frame) Open() []float64   { return f.Columns[ColOpen] }
func (f *Frame) High() []float64   { return f.Columns[ColHigh] }
func (f *Frame) Low() []float64    { return f.Columns[ColLow] }
func (f *Frame) Close() []float64  { return f.Columns[ColClose] }
func (f *Frame) Volume() []float64 { return f.Columns[ColVolume] }
func (f *Frame) ATR() []float64    { return f.Columns[ColATR] }

// ColumnNames returns the sorted list of column names, used wherever a
// stable, order-insensitive view of the column set is required (e.g. the
// pipeline cache key).
func (f *Frame) ColumnNames() []string {
	names := make([]string, 0, len(f.Columns))
	for n := range f.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NumericColumnNames returns sorted column names excluding a caller-supplied
// exclusion set (used by the feature orchestrator's indicator fallback).
func (f *Frame) NumericColumnNames(exclude map[string]bool) []string {
	var names []string
	for _, n := range f.ColumnNames() {
		if !exclude[n] {
			names = append(names, n)
		}
	}
	return names
}

// Slice returns a new Frame covering the inclusive positional range
// [start, end]. It copies data so the slice is safe to retain independently
// of the parent and of other slices.
func (f *Frame) Slice(start, end int) *Frame {
	if f == nil || start < 0 || end >= f.Len() || start > end {
		return &Frame{Attrs: map[string]string{}}
	}
	n := end - start + 1
	t := make([]time.Time, n)
	copy(t, f.Time[start:end+1])
	cols := make(map[string][]float64, len(f.Columns))
	for name, col := range f.Columns {
		c := make([]float64, n)
		copy(c, col[start:end+1])
		cols[name] = c
	}
	attrs := make(map[string]string, len(f.Attrs))
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	return &Frame{Time: t, Columns: cols, Attrs: attrs}
}

// WithColumn returns a new Frame with the given column set (added or
// replaced), leaving the receiver untouched.
func (f *Frame) WithColumn(name string, values []float64) *Frame {
	cols := make(map[string][]float64, len(f.Columns)+1)
	for k, v := range f.Columns {
		cols[k] = v
	}
	cols[name] = values
	attrs := make(map[string]string, len(f.Attrs))
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	return &Frame{Time: f.Time, Columns: cols, Attrs: attrs}
}
