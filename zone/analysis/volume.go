package analysis

import (
	"math"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"gonum.org/v1/gonum/stat"
)

// VolumeMetrics is the volume-confirmation statistical record, per spec.md
// §4.3.5.
type VolumeMetrics struct {
	AvgVolumeZone        float64
	VolumeZoneRatio      *float64
	VolumeAtEntryChange  *float64
	VolumeIndicatorCorr  *float64

	StrategyName   string
	StrategyParams map[string]any
}

type volumeStrategy struct{}

func (volumeStrategy) Name() string { return "volume" }

func (volumeStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	if !slice.HasColumn(series.ColVolume) {
		return nil, zerr.New(zerr.DataError, "volume strategy requires a volume column")
	}
	baselineAvg := floatParam(params, "baseline_avg_volume", 0)
	col := stringParam(params, "indicator_col")

	m := VolumeMetrics{
		StrategyName: "volume",
		StrategyParams: map[string]any{
			"baseline_avg_volume": baselineAvg,
			"indicator_col":       col,
		},
	}

	volume := slice.Volume()
	if len(volume) == 0 {
		return m, nil
	}

	var sum float64
	for _, v := range volume {
		sum += v
	}
	m.AvgVolumeZone = sum / float64(len(volume))

	if baselineAvg > 0 {
		ratio := m.AvgVolumeZone / baselineAvg
		m.VolumeZoneRatio = &ratio
	}

	if baselineAvg > 0 {
		change := (volume[0] - baselineAvg) / baselineAvg * 100
		m.VolumeAtEntryChange = &change
	}

	if col != "" && slice.HasColumn(col) && len(volume) >= 2 {
		indicator := slice.Column(col)
		v1, v2 := dropNaNPairs(volume, indicator)
		if len(v1) >= 2 {
			corr := stat.Correlation(v1, v2, nil)
			if !math.IsNaN(corr) {
				m.VolumeIndicatorCorr = &corr
			}
		}
	}

	return m, nil
}

// dropNaNPairs returns a, b filtered to indices where neither value is NaN.
func dropNaNPairs(a, b []float64) ([]float64, []float64) {
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
