// Package features implements the per-zone feature extraction orchestrator
// (C4): given a Zone and its parent series, it reads the zone's
// indicator_context, resolves primary/signal columns with a generic
// fallback, computes universal price and indicator primitives, and
// dispatches to the configured analytical strategies in zone/analysis.
package features

import (
	"math"

	"github.com/kogriv/bquant-sub003/pkg/zlog"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/kogriv/bquant-sub003/zone/analysis"
	"github.com/kogriv/bquant-sub003/zone/analysis/swing"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// excludedColumns is the generic-fallback exclusion set: the primary-column
// heuristic must never hard-code an indicator name, only this OHLCV/derived
// set.
var excludedColumns = map[string]bool{
	series.ColOpen:   true,
	series.ColHigh:   true,
	series.ColLow:    true,
	series.ColClose:  true,
	series.ColVolume: true,
	series.ColATR:    true,
}

// SwingScope selects how swing metrics are computed relative to a zone.
const (
	SwingScopePerZone = "per_zone"
	SwingScopeGlobal  = "global"
)

// Options configures which analytical strategies run and with what
// parameters. A strategy runs only when its *Enabled flag is set (swing:
// when SwingStrategy is non-empty); a nil *Params map means its defaults.
type Options struct {
	SwingStrategy string // registry name in zone/analysis/swing, "" disables
	SwingParams   map[string]any
	SwingScope    string // SwingScopePerZone (default) or SwingScopeGlobal

	ShapeEnabled bool
	ShapeParams  map[string]any

	DivergenceEnabled bool
	DivergenceParams  map[string]any

	VolatilityEnabled bool
	VolatilityParams  map[string]any

	VolumeEnabled bool
	VolumeParams  map[string]any

	MinSwingAmplitudePct float64
}

// Orchestrator runs the per-zone feature extraction algorithm of spec §4.4.
type Orchestrator struct {
	Logger zlog.Logger
	// GlobalSwing is the full-series swing index used when SwingScope is
	// global. Populated once at pipeline level, shared read-only across
	// zones.
	GlobalSwing *swing.Context
}

// NewOrchestrator returns an Orchestrator with a no-op logger if log is nil.
func NewOrchestrator(log zlog.Logger) *Orchestrator {
	if log == nil {
		log = zlog.NewNop()
	}
	return &Orchestrator{Logger: log}
}

// Extract computes and writes z.Features exactly once, per spec §4.4.
func (o *Orchestrator) Extract(z *zone.Zone, opts Options) {
	f := zone.Features{}
	slice := z.Data

	o.primitives(z, slice, f)

	primary, signal := o.resolveColumns(z, slice)
	f["primary_column"] = primary
	f["signal_column"] = signal

	metadata := zone.Features{}
	f["metadata"] = metadata

	if primary != "" {
		o.indicatorMetrics(slice, primary, f)
		o.macdAliases(z, slice, primary, f)
	}

	if opts.SwingStrategy != "" {
		metadata["swing_metrics"] = o.swingMetrics(z, opts)
	}
	if opts.ShapeEnabled && primary != "" {
		metadata["shape_metrics"] = o.dispatch("shape", slice, withIndicatorCol(opts.ShapeParams, primary))
	}
	if opts.DivergenceEnabled && primary != "" {
		params := withIndicatorCol(opts.DivergenceParams, primary)
		if signal != "" {
			params = withKey(params, "indicator_line_col", signal)
		}
		metadata["divergence_metrics"] = o.dispatch("divergence", slice, params)
	}
	if opts.VolatilityEnabled {
		metadata["volatility_metrics"] = o.dispatch("volatility", slice, opts.VolatilityParams)
	}
	if opts.VolumeEnabled {
		params := opts.VolumeParams
		if primary != "" {
			params = withIndicatorCol(params, primary)
		}
		metadata["volume_metrics"] = o.dispatch("volume", slice, params)
	}

	z.Features = f
}

// dispatch invokes a registered analytical strategy, degrading gracefully
// per spec §4.4.7: any failure is logged at debug and recorded as nil,
// never propagated out of feature extraction.
func (o *Orchestrator) dispatch(name string, slice *series.Frame, params map[string]any) (result any) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Debug("analytical strategy panicked", zap.String("strategy", name), zap.Any("panic", r))
			result = nil
		}
	}()
	strategy, err := analysis.Get(name)
	if err != nil {
		o.Logger.Debug("unknown analytical strategy", zap.String("strategy", name), zap.Error(err))
		return nil
	}
	res, err := strategy.Calculate(slice, params)
	if err != nil {
		o.Logger.Debug("analytical strategy failed", zap.String("strategy", name), zap.Error(err))
		return nil
	}
	return res
}

func (o *Orchestrator) swingMetrics(z *zone.Zone, opts Options) any {
	if opts.SwingScope == SwingScopeGlobal && o.GlobalSwing != nil {
		m := o.GlobalSwing.Metrics(z.StartIdx, z.EndIdx, opts.MinSwingAmplitudePct)
		return m
	}
	params := opts.SwingParams
	if params == nil {
		params = map[string]any{}
	}
	if _, ok := params["min_amplitude_pct"]; !ok && opts.MinSwingAmplitudePct != 0 {
		params = withKey(params, "min_amplitude_pct", opts.MinSwingAmplitudePct)
	}
	return o.dispatch(opts.SwingStrategy, z.Data, params)
}

// resolveColumns implements spec §4.4.2: primary prefers
// indicator_context.detection_indicator when present in data, else the
// first numeric column outside the OHLCV/time exclusion set. signal prefers
// indicator_context.signal_line when present in data.
func (o *Orchestrator) resolveColumns(z *zone.Zone, slice *series.Frame) (primary, signal string) {
	primary = z.PrimaryIndicatorColumn()
	if primary == "" || !slice.HasColumn(primary) {
		primary = ""
		for _, name := range slice.NumericColumnNames(excludedColumns) {
			primary = name
			break
		}
	}
	signal = z.SignalLineColumn()
	if signal != "" && !slice.HasColumn(signal) {
		signal = ""
	}
	return primary, signal
}

// macdAliases populates legacy macd_* aliases when the detection result has
// explicitly named a MACD-style column via indicator_context — never via
// string matching against the column name itself.
func (o *Orchestrator) macdAliases(z *zone.Zone, slice *series.Frame, primary string, f zone.Features) {
	macdCol, _ := z.IndicatorContext["macd_histogram_column"].(string)
	if macdCol == "" || !slice.HasColumn(macdCol) {
		return
	}
	values := slice.Column(macdCol)
	if len(values) == 0 {
		return
	}
	amp, slope := amplitudeAndSlope(values)
	f["macd_amplitude"] = amp
	f["macd_slope"] = slope
	if closes := slice.Close(); len(closes) == len(values) {
		f["macd_correlation"] = safeCorrelation(closes, values)
	}
}

func (o *Orchestrator) indicatorMetrics(slice *series.Frame, primary string, f zone.Features) {
	values := slice.Column(primary)
	if len(values) == 0 {
		return
	}
	amp, slope := amplitudeAndSlope(values)
	f["hist_amplitude"] = amp
	f["hist_slope"] = slope
	if closes := slice.Close(); len(closes) == len(values) {
		f["correlation_price_hist"] = safeCorrelation(closes, values)
	}
}

func amplitudeAndSlope(values []float64) (amplitude, slope float64) {
	vals := validOnly(values)
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	amplitude = hi - lo
	for i := 1; i < len(vals); i++ {
		d := math.Abs(vals[i] - vals[i-1])
		if d > slope {
			slope = d
		}
	}
	return amplitude, slope
}

func safeCorrelation(a, b []float64) float64 {
	va, vb := pairwiseValid(a, b)
	if len(va) < 2 {
		return 0
	}
	c := stat.Correlation(va, vb, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

func pairwiseValid(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	outA := make([]float64, 0, n)
	outB := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		outA = append(outA, a[i])
		outB = append(outB, b[i])
	}
	return outA, outB
}

func validOnly(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// primitives computes the indicator-independent basics of spec §4.4.1.
func (o *Orchestrator) primitives(z *zone.Zone, slice *series.Frame, f zone.Features) {
	f["duration"] = z.Duration()
	closes := slice.Close()
	n := len(closes)
	if n == 0 {
		return
	}
	startPrice, endPrice := closes[0], closes[n-1]
	f["start_price"] = startPrice
	f["end_price"] = endPrice
	if startPrice != 0 {
		f["price_return"] = (endPrice - startPrice) / startPrice
	} else {
		f["price_return"] = 0.0
	}

	lo, hi := closes[0], closes[0]
	peakIdx, troughIdx := 0, 0
	for i, v := range closes {
		if v > hi {
			hi = v
			peakIdx = i
		}
		if v < lo {
			lo = v
			troughIdx = i
		}
	}
	if lo != 0 {
		f["price_range_pct"] = (hi - lo) / lo * 100
	} else {
		f["price_range_pct"] = 0.0
	}

	peaks := swing.LocalExtremeIndices(closes, 1, true)
	troughs := swing.LocalExtremeIndices(closes, 1, false)
	f["num_peaks"] = len(peaks)
	f["num_troughs"] = len(troughs)

	switch z.Type {
	case "bull":
		if hi != 0 {
			f["drawdown_from_peak"] = (hi - endPrice) / hi
		} else {
			f["drawdown_from_peak"] = 0.0
		}
		if n > 1 {
			f["peak_time_ratio"] = float64(peakIdx) / float64(n-1)
		} else {
			f["peak_time_ratio"] = 0.0
		}
	case "bear":
		if lo != 0 {
			f["rally_from_trough"] = (endPrice - lo) / lo
		} else {
			f["rally_from_trough"] = 0.0
		}
		if n > 1 {
			f["trough_time_ratio"] = float64(troughIdx) / float64(n-1)
		} else {
			f["trough_time_ratio"] = 0.0
		}
	}
}

func withIndicatorCol(params map[string]any, col string) map[string]any {
	return withKey(params, "indicator_col", col)
}

func withKey(params map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}
