package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/kogriv/bquant-sub003/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ohlcvFrame(n int, closeFn func(i int) float64, volFn func(i int) float64) *series.Frame {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	vols := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
		c := closeFn(i)
		closes[i] = c
		highs[i] = c + 0.5
		lows[i] = c - 0.5
		if volFn != nil {
			vols[i] = volFn(i)
		}
	}
	cols := map[string][]float64{
		series.ColOpen:  closes,
		series.ColHigh:  highs,
		series.ColLow:   lows,
		series.ColClose: closes,
	}
	if volFn != nil {
		cols[series.ColVolume] = vols
	}
	f, err := series.New(t, cols)
	if err != nil {
		panic(err)
	}
	return f
}

func TestShapeConstantSeries(t *testing.T) {
	f := ohlcvFrame(10, func(i int) float64 { return 100 }, nil)
	f = f.WithColumn("WHATEVER_42", make([]float64, 10))
	s, err := Get("shape")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "WHATEVER_42"})
	require.NoError(t, err)
	m := res.(ShapeMetrics)
	require.NotNil(t, m.HistSkewness)
	assert.Equal(t, 0.0, *m.HistSkewness)
	assert.Equal(t, 3.0, *m.HistKurtosis)
}

func TestShapeTooFewPoints(t *testing.T) {
	f := ohlcvFrame(2, func(i int) float64 { return float64(i) }, nil)
	f = f.WithColumn("osc", []float64{1, 2})
	s, err := Get("shape")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "osc"})
	require.NoError(t, err)
	m := res.(ShapeMetrics)
	assert.Nil(t, m.HistSkewness)
}

func TestShapeMissingIndicatorColIsConfigError(t *testing.T) {
	f := ohlcvFrame(5, func(i int) float64 { return float64(i) }, nil)
	s, err := Get("shape")
	require.NoError(t, err)
	_, err = s.Calculate(f, map[string]any{})
	assert.Error(t, err)
}

func TestDivergenceAgnosticOnArbitraryColumnName(t *testing.T) {
	n := 60
	osc := make([]float64, n)
	closeVals := make([]float64, n)
	for i := 0; i < n; i++ {
		// price makes a higher high on the second swing, oscillator a lower
		// high: a textbook regular bearish divergence.
		closeVals[i] = priceWave(i, n)
		osc[i] = oscWaveDiverging(i, n)
	}
	f := ohlcvFrame(n, func(i int) float64 { return closeVals[i] }, nil)
	f = f.WithColumn("WHATEVER_42", osc)

	s, err := Get("divergence")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "WHATEVER_42", "min_peak_distance": 3})
	require.NoError(t, err)
	rec := res.(DivergenceRecord)
	assert.Equal(t, "WHATEVER_42", rec.StrategyParams["indicator_col"])
	_ = rec
}

func priceWave(i, n int) float64 {
	// two ascending bumps: second bump higher than the first.
	quarter := n / 4
	switch {
	case i < quarter:
		return 100 + float64(i)
	case i < 2*quarter:
		return 100 + float64(quarter) - float64(i-quarter)
	case i < 3*quarter:
		return 90 + float64(i-2*quarter)*2
	default:
		return 90 + float64(quarter)*2 - float64(i-3*quarter)
	}
}

func oscWaveDiverging(i, n int) float64 {
	quarter := n / 4
	switch {
	case i < quarter:
		return 50 + float64(i)*0.8
	case i < 2*quarter:
		return 50 + float64(quarter)*0.8 - float64(i-quarter)*0.8
	case i < 3*quarter:
		return 45 + float64(i-2*quarter)*0.3
	default:
		return 45 + float64(quarter)*0.3 - float64(i-3*quarter)*0.3
	}
}

func TestDivergenceHiddenBearish(t *testing.T) {
	n := 60
	osc := make([]float64, n)
	closeVals := make([]float64, n)
	for i := 0; i < n; i++ {
		// price makes a lower high on the second swing, oscillator a higher
		// high: a textbook hidden bearish divergence.
		closeVals[i] = priceWaveLowerHigh(i, n)
		osc[i] = oscWaveHigherHigh(i, n)
	}
	f := ohlcvFrame(n, func(i int) float64 { return closeVals[i] }, nil)
	f = f.WithColumn("osc", osc)

	s, err := Get("divergence")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "osc", "min_peak_distance": 3})
	require.NoError(t, err)
	rec := res.(DivergenceRecord)
	assert.Equal(t, DivergenceHidden, rec.DivergenceType)
	assert.Equal(t, DirectionBearish, rec.DivergenceDirection)
	assert.Greater(t, rec.DivergenceCount, 0)
}

func priceWaveLowerHigh(i, n int) float64 {
	// two ascending bumps: second bump lower than the first.
	quarter := n / 4
	switch {
	case i < quarter:
		return 100 + float64(i)*1.5
	case i < 2*quarter:
		return 100 + float64(quarter)*1.5 - float64(i-quarter)*1.5
	case i < 3*quarter:
		return 90 + float64(i-2*quarter)*0.8
	default:
		return 90 + float64(quarter)*0.8 - float64(i-3*quarter)*0.8
	}
}

func oscWaveHigherHigh(i, n int) float64 {
	quarter := n / 4
	switch {
	case i < quarter:
		return 50 + float64(i)*0.3
	case i < 2*quarter:
		return 50 + float64(quarter)*0.3 - float64(i-quarter)*0.3
	case i < 3*quarter:
		return 45 + float64(i-2*quarter)*0.9
	default:
		return 45 + float64(quarter)*0.9 - float64(i-3*quarter)*0.9
	}
}

func TestDivergenceShortSeriesIsEmptyRecord(t *testing.T) {
	f := ohlcvFrame(5, func(i int) float64 { return float64(i) }, nil)
	f = f.WithColumn("osc", []float64{1, 2, 3, 4, 5})
	s, err := Get("divergence")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "osc"})
	require.NoError(t, err)
	rec := res.(DivergenceRecord)
	assert.Equal(t, DivergenceNone, rec.DivergenceType)
	assert.Equal(t, 0, rec.DivergenceCount)
}

func TestVolatilitySquareWaveScoresHigh(t *testing.T) {
	f := ohlcvFrame(50, func(i int) float64 {
		if (i/5)%2 == 0 {
			return 100
		}
		return 120
	}, nil)
	s, err := Get("volatility")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"bb_period": 10, "atr_period": 10})
	require.NoError(t, err)
	m := res.(VolatilityMetrics)
	assert.GreaterOrEqual(t, m.VolatilityScore, 5.0)
	assert.LessOrEqual(t, m.VolatilityScore, 10.0)
	assert.Contains(t, []string{RegimeLow, RegimeMedium, RegimeHigh, RegimeExtreme}, m.VolatilityRegime)
}

func TestVolatilityFlatSeriesIsLowRegime(t *testing.T) {
	f := ohlcvFrame(30, func(i int) float64 { return 100 }, nil)
	s, err := Get("volatility")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"bb_period": 10, "atr_period": 10})
	require.NoError(t, err)
	m := res.(VolatilityMetrics)
	assert.Equal(t, RegimeLow, m.VolatilityRegime)
}

func TestVolatilityATRTrendIncreasingUsesPrecomputedColumn(t *testing.T) {
	n := 30
	f := ohlcvFrame(n, func(i int) float64 { return 100 + float64(i)*0.1 }, nil)
	atr := make([]float64, n)
	for i := range atr {
		// steadily ramps from 1 to well past a +20% move, so the trend must
		// read increasing off this column rather than a recomputed one.
		atr[i] = 1 + float64(i)*0.5
	}
	f = f.WithColumn(series.ColATR, atr)

	s, err := Get("volatility")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"bb_period": 10, "atr_period": 10})
	require.NoError(t, err)
	m := res.(VolatilityMetrics)
	require.NotNil(t, m.ATRTrend)
	assert.Equal(t, ATRTrendIncreasing, *m.ATRTrend)
}

func TestVolumeRequiresVolumeColumn(t *testing.T) {
	f := ohlcvFrame(10, func(i int) float64 { return float64(i) }, nil)
	s, err := Get("volume")
	require.NoError(t, err)
	_, err = s.Calculate(f, map[string]any{})
	assert.Error(t, err)
}

func TestVolumeCorrelationWithIndicator(t *testing.T) {
	n := 40
	f := ohlcvFrame(n, func(i int) float64 { return float64(i) }, func(i int) float64 { return 1000 + float64(i)*10 })
	f = f.WithColumn("WHATEVER_42", makeRange(n))
	s, err := Get("volume")
	require.NoError(t, err)
	res, err := s.Calculate(f, map[string]any{"indicator_col": "WHATEVER_42", "baseline_avg_volume": 1000})
	require.NoError(t, err)
	m := res.(VolumeMetrics)
	require.NotNil(t, m.VolumeIndicatorCorr)
	assert.InDelta(t, 1.0, *m.VolumeIndicatorCorr, 1e-6)
	require.NotNil(t, m.VolumeZoneRatio)
	assert.Greater(t, *m.VolumeZoneRatio, 1.0)
}

func TestVolumeAtEntryChangeVsBaseline(t *testing.T) {
	f := ohlcvFrame(10, func(i int) float64 { return float64(i) }, func(i int) float64 { return 1500 })
	s, err := Get("volume")
	require.NoError(t, err)

	res, err := s.Calculate(f, map[string]any{"baseline_avg_volume": 1000})
	require.NoError(t, err)
	m := res.(VolumeMetrics)
	require.NotNil(t, m.VolumeAtEntryChange)
	assert.InDelta(t, 50.0, *m.VolumeAtEntryChange, 1e-9)

	res, err = s.Calculate(f, map[string]any{})
	require.NoError(t, err)
	m = res.(VolumeMetrics)
	assert.Nil(t, m.VolumeAtEntryChange)
}

func makeRange(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestRegistryUnknownStrategy(t *testing.T) {
	_, err := Get("not_a_strategy")
	assert.Error(t, err)
}

func TestMeanStdConstant(t *testing.T) {
	mean, std := meanStd([]float64{5, 5, 5})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestSmoothnessRoughVsFlat(t *testing.T) {
	flat := smoothness([]float64{1, 1, 1, 1})
	rough := smoothness([]float64{1, 100, 1, 100})
	assert.Greater(t, flat, rough)
}

func TestValidValuesFiltersNaN(t *testing.T) {
	out := validValues([]float64{1, math.NaN(), 3})
	assert.Equal(t, []float64{1, 3}, out)
}
