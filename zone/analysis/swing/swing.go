// Package swing implements the three swing-structure detection algorithms
// (ZigZag, peak-finding, pivot points) that share one metrics record shape,
// plus Context (context.go) for the global swing-scope mode.
package swing

import (
	"math"
	"time"

	"github.com/kogriv/bquant-sub003/series"
)

// Kind labels a SwingPoint as a local high or low.
type Kind string

const (
	Peak   Kind = "peak"
	Trough Kind = "trough"
)

// SwingPoint is one local extreme identified by a swing algorithm.
type SwingPoint struct {
	Idx   int
	Time  time.Time
	Price float64
	Kind  Kind
}

// Metrics is the universal swing metric bundle returned by all three
// implementations, per spec.md §4.3.1.
type Metrics struct {
	NumSwings int
	RallyCount int
	DropCount  int

	AvgRallyPct, AvgDropPct           *float64
	MaxRallyPct, MaxDropPct           *float64
	MinRallyPct, MinDropPct           *float64
	MedianRallyPct, MedianDropPct     *float64
	StdRallyPct, StdDropPct           *float64

	AvgRallyDurationBars, AvgDropDurationBars *float64
	MaxRallyDurationBars, MaxDropDurationBars *float64

	AvgRallySpeedPctPerBar, AvgDropSpeedPctPerBar *float64
	MaxRallySpeedPctPerBar, MaxDropSpeedPctPerBar *float64

	RallyToDropRatio  *float64
	DurationSymmetry  *float64

	StrategyName   string
	StrategyParams map[string]any
}

type leg struct {
	kind       Kind // Peak if this leg is a rally ending at a peak, Trough if a drop ending at a trough
	amplitude  float64
	durationBr int
}

// alternate merges a (possibly non-alternating) slice of swing points,
// ordered by Idx, into a strictly alternating peak/trough sequence by
// keeping the more extreme point whenever two of the same kind are
// adjacent.
func alternate(points []SwingPoint) []SwingPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]SwingPoint, 0, len(points))
	for _, p := range points {
		if len(out) == 0 {
			out = append(out, p)
			continue
		}
		last := &out[len(out)-1]
		if last.Kind == p.Kind {
			if (p.Kind == Peak && p.Price > last.Price) || (p.Kind == Trough && p.Price < last.Price) {
				*last = p
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

// FromPoints computes the universal swing metrics record from an
// alternating sequence of swing points, applying minAmplitudePct as a
// post-filter on leg amplitude.
func FromPoints(points []SwingPoint, name string, params map[string]any, minAmplitudePct float64) Metrics {
	m := Metrics{StrategyName: name, StrategyParams: params}
	points = alternate(points)

	var legs []leg
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		duration := b.Idx - a.Idx
		if duration <= 0 {
			continue
		}
		var amp float64
		var kind Kind
		if a.Kind == Trough && b.Kind == Peak {
			amp = (b.Price - a.Price) / a.Price * 100
			kind = Peak // rally
		} else if a.Kind == Peak && b.Kind == Trough {
			amp = (b.Price - a.Price) / a.Price * 100 // negative
			kind = Trough // drop
		} else {
			continue
		}
		if math.Abs(amp) < minAmplitudePct {
			continue
		}
		legs = append(legs, leg{kind: kind, amplitude: amp, durationBr: duration})
	}

	var rallyAmps, dropAmps []float64
	var rallyDur, dropDur []float64
	var rallySpeed, dropSpeed []float64
	for _, l := range legs {
		speed := l.amplitude / float64(l.durationBr)
		if l.kind == Peak {
			rallyAmps = append(rallyAmps, l.amplitude)
			rallyDur = append(rallyDur, float64(l.durationBr))
			rallySpeed = append(rallySpeed, speed)
		} else {
			dropAmps = append(dropAmps, l.amplitude)
			dropDur = append(dropDur, float64(l.durationBr))
			dropSpeed = append(dropSpeed, speed)
		}
	}

	m.NumSwings = len(legs)
	m.RallyCount = len(rallyAmps)
	m.DropCount = len(dropAmps)

	m.AvgRallyPct, m.MaxRallyPct, m.MinRallyPct, m.MedianRallyPct, m.StdRallyPct = summarize(rallyAmps)
	m.AvgDropPct, m.MaxDropPct, m.MinDropPct, m.MedianDropPct, m.StdDropPct = summarize(dropAmps)
	m.AvgRallyDurationBars, m.MaxRallyDurationBars, _, _, _ = summarize(rallyDur)
	m.AvgDropDurationBars, m.MaxDropDurationBars, _, _, _ = summarize(dropDur)
	m.AvgRallySpeedPctPerBar, m.MaxRallySpeedPctPerBar, _, _, _ = summarize(rallySpeed)
	m.AvgDropSpeedPctPerBar, m.MaxDropSpeedPctPerBar, _, _, _ = summarize(dropSpeed)

	if m.AvgRallyPct != nil && m.AvgDropPct != nil && *m.AvgDropPct != 0 {
		ratio := math.Abs(*m.AvgRallyPct / *m.AvgDropPct)
		m.RallyToDropRatio = &ratio
	}
	if m.AvgRallyDurationBars != nil && m.AvgDropDurationBars != nil {
		a, b := *m.AvgRallyDurationBars, *m.AvgDropDurationBars
		maxv := math.Max(a, b)
		if maxv > 0 {
			sym := 1 - math.Abs(a-b)/maxv
			m.DurationSymmetry = &sym
		}
	}
	return m
}

func summarize(vals []float64) (avg, max, min, median, std *float64) {
	if len(vals) == 0 {
		return nil, nil, nil, nil, nil
	}
	sorted := append([]float64(nil), vals...)
	sortFloats(sorted)
	var sum float64
	mx, mn := sorted[0], sorted[0]
	for _, v := range vals {
		sum += v
		if v > mx {
			mx = v
		}
		if v < mn {
			mn = v
		}
	}
	a := sum / float64(len(vals))
	var med float64
	n := len(sorted)
	if n%2 == 1 {
		med = sorted[n/2]
	} else {
		med = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	var variance float64
	if len(vals) > 1 {
		for _, v := range vals {
			variance += (v - a) * (v - a)
		}
		variance /= float64(len(vals) - 1)
	}
	sd := math.Sqrt(variance)
	return &a, &mx, &mn, &med, &sd
}

func sortFloats(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

// autoProminence returns ~1% of the price range, used when the caller
// leaves Prominence unset (nil/zero).
func autoProminence(data *series.Frame) float64 {
	high, low := data.High(), data.Low()
	if len(high) == 0 {
		return 0
	}
	mx, mn := high[0], low[0]
	for i := range high {
		if high[i] > mx {
			mx = high[i]
		}
		if low[i] < mn {
			mn = low[i]
		}
	}
	return (mx - mn) * 0.01
}
