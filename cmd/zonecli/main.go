// Command zonecli is a thin smoke-test wrapper around the zone analysis
// builder: it runs the zero-crossing strategy against a synthetic sine
// oscillator and prints the resulting zone count, giving the library a
// runnable entry point for manual verification.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/kogriv/bquant-sub003/pkg/zlog"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone/pipeline"
)

func main() {
	f, err := syntheticSine(200, 50)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build synthetic series:", err)
		os.Exit(1)
	}

	res, err := pipeline.New().
		WithLogger(zlog.New()).
		DetectZones("zero_crossing", map[string]any{"indicator_col": "osc"}).
		WithStrategies(pipeline.StrategySelection{
			ShapeEnabled:      true,
			DivergenceEnabled: true,
			VolatilityEnabled: true,
			VolumeEnabled:     true,
			SwingStrategy:     "swing_zigzag",
		}).
		Analyze(true, 3, true, false).
		Build(context.Background(), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build failed:", err)
		os.Exit(1)
	}

	fmt.Printf("zones detected: %d\n", len(res.Zones))
	fmt.Printf("zone types: %v\n", res.Metadata.ZoneTypes)
	fmt.Printf("cache policy: %s\n", res.Metadata.CacheKeyPolicy)
}

func syntheticSine(n int, period float64) (*series.Frame, error) {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	osc := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
		price := 100 + math.Sin(float64(i)/10)
		open[i] = price
		high[i] = price + 1
		low[i] = price - 1
		cls[i] = price + 0.3
		vol[i] = 1000
		osc[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	return series.New(t, map[string][]float64{
		series.ColOpen:   open,
		series.ColHigh:   high,
		series.ColLow:    low,
		series.ColClose:  cls,
		series.ColVolume: vol,
		"osc":            osc,
	})
}
