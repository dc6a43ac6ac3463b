package swing

import (
	"github.com/kogriv/bquant-sub003/series"
)

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

// CalculateZigZag runs the ZigZag swing algorithm over a zone slice.
// Params: legs (int, default 3), deviation (float64, percent, default 1.0),
// min_amplitude_pct (float64, default 0).
func CalculateZigZag(slice *series.Frame, params map[string]any) (Metrics, error) {
	if err := slice.RequireOHLC(); err != nil {
		return Metrics{}, err
	}
	legs := intParam(params, "legs", 3)
	deviation := floatParam(params, "deviation", 1.0)
	minAmp := floatParam(params, "min_amplitude_pct", 0)
	points := ZigZag(slice, legs, deviation)
	return FromPoints(points, "zigzag", params, minAmp), nil
}

// CalculatePeaks runs local-extrema peak-finding over a zone slice.
// Params: prominence (float64, 0 = auto), distance (int, default 1),
// min_amplitude_pct (float64, default 0).
func CalculatePeaks(slice *series.Frame, params map[string]any) (Metrics, error) {
	if err := slice.RequireOHLC(); err != nil {
		return Metrics{}, err
	}
	prominence := floatParam(params, "prominence", 0)
	distance := intParam(params, "distance", 1)
	minAmp := floatParam(params, "min_amplitude_pct", 0)
	points := Peaks(slice, prominence, distance)
	return FromPoints(points, "peak_finding", params, minAmp), nil
}

// CalculatePivots runs N-bar pivot-point detection over a zone slice.
// Params: left_bars, right_bars (int, default 2), min_amplitude_pct
// (float64, default 0).
func CalculatePivots(slice *series.Frame, params map[string]any) (Metrics, error) {
	if err := slice.RequireOHLC(); err != nil {
		return Metrics{}, err
	}
	left := intParam(params, "left_bars", 2)
	right := intParam(params, "right_bars", 2)
	minAmp := floatParam(params, "min_amplitude_pct", 0)
	points := Pivots(slice, left, right)
	return FromPoints(points, "pivot_points", params, minAmp), nil
}

// ZigZagStrategy, PeakStrategy, and PivotStrategy adapt the three functions
// above to zone/analysis's Strategy interface without introducing an import
// cycle (zone/analysis registers them by name).
type ZigZagStrategy struct{}

func (ZigZagStrategy) Name() string { return "swing_zigzag" }
func (ZigZagStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	return CalculateZigZag(slice, params)
}

type PeakStrategy struct{}

func (PeakStrategy) Name() string { return "swing_peak" }
func (PeakStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	return CalculatePeaks(slice, params)
}

type PivotStrategy struct{}

func (PivotStrategy) Name() string { return "swing_pivot" }
func (PivotStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	return CalculatePivots(slice, params)
}
