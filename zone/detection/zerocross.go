package detection

import (
	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// Zone type vocabulary for ZeroCrossing.
const (
	TypeBull = "bull"
	TypeBear = "bear"
)

// ZeroCrossing emits bull zones where indicator_col is positive and bear
// zones where it is negative. Rules: indicator_col (string, required),
// smooth_window (int, optional low-pass applied before classification).
type ZeroCrossing struct{}

func (ZeroCrossing) Name() string { return "zero_crossing" }

func (s ZeroCrossing) Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	col, err := ruleString(cfg.Rules, "indicator_col")
	if err != nil {
		return nil, err
	}
	if !data.HasColumn(col) {
		return nil, zerr.Newf(zerr.DataError, "indicator column not found in data").WithField(col)
	}
	values := append([]float64(nil), data.Column(col)...)
	smoothWindow := ruleIntOrDefault(cfg.Rules, "smooth_window", 0)
	if smoothWindow > 1 {
		values = movingAverage(values, smoothWindow)
	}

	labels := make([]string, len(values))
	for i, v := range values {
		if v >= 0 {
			labels[i] = TypeBull
		} else {
			labels[i] = TypeBear
		}
	}

	ctxFor := func(label string) zone.Context {
		return zone.Context{
			"detection_strategy":  s.Name(),
			"detection_indicator": col,
			"signal_line":         nil,
		}
	}

	zones := runsToZones(data, labels, minDurationOrDefault(cfg), ctxFor)
	return filterZoneTypes(zones, cfg.ZoneTypes), nil
}

// movingAverage applies a simple centered moving average over window/2 bars
// on each side (window+1 bars for an even window), truncated at the series
// edges.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	half := window / 2
	for i := range values {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(values) {
			hi = len(values) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
