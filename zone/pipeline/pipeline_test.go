package pipeline

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/kogriv/bquant-sub003/zone/analysis"
	"github.com/kogriv/bquant-sub003/zone/detection"
)

func syntheticFrame(n int, cols map[string][]float64) *series.Frame {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
	}
	ohlc := map[string][]float64{
		series.ColOpen:   make([]float64, n),
		series.ColHigh:   make([]float64, n),
		series.ColLow:    make([]float64, n),
		series.ColClose:  make([]float64, n),
		series.ColVolume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ohlc[series.ColOpen][i] = 100 + math.Sin(float64(i)/10)
		ohlc[series.ColHigh][i] = ohlc[series.ColOpen][i] + 1
		ohlc[series.ColLow][i] = ohlc[series.ColOpen][i] - 1
		ohlc[series.ColClose][i] = ohlc[series.ColOpen][i] + 0.3
		ohlc[series.ColVolume][i] = 1000
	}
	for k, v := range cols {
		ohlc[k] = v
	}
	f, err := series.New(t, ohlc)
	if err != nil {
		panic(err)
	}
	return f
}

func sineOsc(n int, period float64) []float64 {
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	return v
}

func TestBuildZeroCrossingEndToEnd(t *testing.T) {
	n := 200
	f := syntheticFrame(n, map[string][]float64{"osc": sineOsc(n, 50)})

	res, err := New().
		DetectZones("zero_crossing", map[string]any{"indicator_col": "osc"}).
		WithStrategies(StrategySelection{ShapeEnabled: true, VolatilityEnabled: true, VolumeEnabled: true}).
		Analyze(false, 0, false, false).
		Build(context.Background(), f)
	require.NoError(t, err)
	require.NotEmpty(t, res.Zones)

	for _, z := range res.Zones {
		require.NotNil(t, z.Features)
		assert.Equal(t, "zero_crossing", z.IndicatorContext.DetectionStrategy())
		amp, ok := z.Features["hist_amplitude"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, amp, 0.0)
	}
	assert.Equal(t, len(res.Zones), res.Metadata.TotalZones)
	assert.Equal(t, "column_order_insensitive", res.Metadata.CacheKeyPolicy)
}

// Universality property: an indicator column never referenced anywhere in
// the source must flow through detection and every analytical strategy
// purely via indicator_context.
func TestAgnosticismWithArbitraryColumnName(t *testing.T) {
	n := 150
	f := syntheticFrame(n, map[string][]float64{"WHATEVER_42": sineOsc(n, 30)})

	res, err := New().
		DetectZones("zero_crossing", map[string]any{"indicator_col": "WHATEVER_42"}).
		WithStrategies(StrategySelection{
			ShapeEnabled:      true,
			DivergenceEnabled: true,
			VolatilityEnabled: true,
			VolumeEnabled:     true,
			SwingStrategy:     "swing_peak",
		}).
		Build(context.Background(), f)
	require.NoError(t, err)
	require.NotEmpty(t, res.Zones)

	for _, z := range res.Zones {
		meta, ok := z.Features["metadata"].(zone.Features)
		require.True(t, ok)
		shape, ok := meta["shape_metrics"]
		require.True(t, ok)
		record, ok := shape.(analysis.ShapeMetrics)
		require.True(t, ok)
		assert.Equal(t, "WHATEVER_42", record.StrategyParams["indicator_col"])
	}
}

func TestSequenceAnalysisDeterminism(t *testing.T) {
	n := 250
	// five alternating zones of 50 bars each via a slow sine half-period.
	f := syntheticFrame(n, map[string][]float64{"osc": sineOsc(n, 100)})
	res, err := New().
		DetectZones("zero_crossing", map[string]any{"indicator_col": "osc"}).
		Build(context.Background(), f)
	require.NoError(t, err)
	require.NotNil(t, res.SequenceAnalysis)
	assert.Equal(t, res.SequenceAnalysis.Transitions["bull_to_bear"], res.SequenceAnalysis.Transitions["bear_to_bull"])
}

func TestCacheHitReturnsEqualResult(t *testing.T) {
	n := 120
	f := syntheticFrame(n, map[string][]float64{"osc": sineOsc(n, 40)})
	dir, err := os.MkdirTemp("", "zonecache")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cache := NewTieredCache(dir, time.Hour, nil)
	build := func() (*struct {
		zones int
	}, error) {
		b := New().
			DetectZones("zero_crossing", map[string]any{"indicator_col": "osc"}).
			WithCache(true, time.Hour).
			WithCacheStore(cache)
		res, err := b.Build(context.Background(), f)
		if err != nil {
			return nil, err
		}
		return &struct{ zones int }{len(res.Zones)}, nil
	}

	first, err := build()
	require.NoError(t, err)
	second, err := build()
	require.NoError(t, err)
	assert.Equal(t, first.zones, second.zones)
}

func TestCombinedStrategyWithCallableBypassesCache(t *testing.T) {
	n := 60
	f := syntheticFrame(n, nil)
	conditions := []detection.Condition{
		{
			Name: "close_above_open",
			Predicate: func(d *series.Frame) ([]bool, error) {
				out := make([]bool, d.Len())
				for i := range out {
					out[i] = d.Close()[i] > d.Open()[i]
				}
				return out, nil
			},
			Rule: nil, // not serializable: no Rule echo
		},
	}
	res, err := New().
		DetectZones("combined", map[string]any{"conditions": conditions, "logic": "AND"}).
		WithCache(true, time.Hour).
		Build(context.Background(), f)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Metadata.CacheBypassedReason)
}

func TestMissingDetectionStrategyIsConfigError(t *testing.T) {
	f := syntheticFrame(10, nil)
	_, err := New().Build(context.Background(), f)
	require.Error(t, err)
	assert.True(t, zerr.Is(err, zerr.ConfigError))
}
