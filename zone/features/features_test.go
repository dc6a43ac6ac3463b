package features

import (
	"math"
	"testing"
	"time"

	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineFrame(n int) (*series.Frame, []float64) {
	ts := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	osc := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = base.Add(time.Duration(i) * time.Hour)
		osc[i] = math.Sin(2 * math.Pi * float64(i) / 50)
		closes[i] = 100 + osc[i]
	}
	f, err := series.New(ts, map[string][]float64{
		series.ColOpen:  closes,
		series.ColHigh:  closes,
		series.ColLow:   closes,
		series.ColClose: closes,
		"osc":           osc,
	})
	if err != nil {
		panic(err)
	}
	return f, osc
}

func TestExtractGenericFallbackAgnosticism(t *testing.T) {
	f, _ := sineFrame(60)
	f = f.WithColumn("WHATEVER_42", f.Column("osc"))
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, zone.Context{
		"detection_strategy": "zero_crossing",
	})
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{ShapeEnabled: true})

	require.NotNil(t, z.Features)
	primary, _ := z.Features["primary_column"].(string)
	assert.NotEmpty(t, primary)

	metadata := z.Features["metadata"].(zone.Features)
	shapeResult := metadata["shape_metrics"]
	require.NotNil(t, shapeResult)
}

func TestExtractUsesDetectionIndicatorWhenPresent(t *testing.T) {
	f, _ := sineFrame(60)
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, zone.Context{
		"detection_strategy":  "zero_crossing",
		"detection_indicator": "osc",
	})
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{})
	assert.Equal(t, "osc", z.Features["primary_column"])
	require.Contains(t, z.Features, "hist_amplitude")
}

func TestExtractBullPrimitives(t *testing.T) {
	f, _ := sineFrame(60)
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, nil)
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{})

	assert.Equal(t, 25, z.Features["duration"])
	assert.Contains(t, z.Features, "drawdown_from_peak")
	assert.Contains(t, z.Features, "peak_time_ratio")
	assert.NotContains(t, z.Features, "rally_from_trough")
}

func TestExtractBearPrimitives(t *testing.T) {
	f, _ := sineFrame(60)
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bear", 0, 24, f.Time[0], f.Time[24], slice, nil)
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{})

	assert.Contains(t, z.Features, "rally_from_trough")
	assert.Contains(t, z.Features, "trough_time_ratio")
	assert.NotContains(t, z.Features, "drawdown_from_peak")
}

func TestExtractStrategyFailureDegradesGracefully(t *testing.T) {
	f, _ := sineFrame(60)
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, zone.Context{
		"detection_indicator": "osc",
	})
	orch := NewOrchestrator(nil)
	// volume metrics requires a volume column the frame doesn't have; must
	// degrade to nil rather than panicking or erroring out of Extract.
	orch.Extract(z, Options{VolumeEnabled: true})
	metadata := z.Features["metadata"].(zone.Features)
	assert.Nil(t, metadata["volume_metrics"])
}

func TestExtractMacdAliasViaExplicitContextKey(t *testing.T) {
	f, _ := sineFrame(60)
	f = f.WithColumn("macd_hist", f.Column("osc"))
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, zone.Context{
		"detection_indicator":   "osc",
		"macd_histogram_column": "macd_hist",
	})
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{})
	require.Contains(t, z.Features, "macd_amplitude")
}

func TestExtractNoMacdAliasWithoutContextKey(t *testing.T) {
	f, _ := sineFrame(60)
	f = f.WithColumn("macd_hist", f.Column("osc"))
	slice := f.Slice(0, 24)
	z := zone.New("z1", "bull", 0, 24, f.Time[0], f.Time[24], slice, zone.Context{
		"detection_indicator": "osc",
	})
	orch := NewOrchestrator(nil)
	orch.Extract(z, Options{})
	assert.NotContains(t, z.Features, "macd_amplitude")
}
