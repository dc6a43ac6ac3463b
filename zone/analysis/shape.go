package analysis

import (
	"math"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"gonum.org/v1/gonum/stat"
)

// ShapeMetrics is the histogram-shape statistical record, per spec.md
// §4.3.2.
type ShapeMetrics struct {
	HistSkewness   *float64
	HistKurtosis   *float64 // absolute (excess + 3)
	HistSmoothness *float64

	StrategyName   string
	StrategyParams map[string]any
}

type shapeStrategy struct{}

func (shapeStrategy) Name() string { return "shape" }

func (shapeStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	col := stringParam(params, "indicator_col")
	if col == "" {
		return nil, zerr.New(zerr.ConfigError, "shape strategy requires indicator_col")
	}
	calcSmoothness := boolParam(params, "calculate_smoothness", true)
	biasCorrection := boolParam(params, "bias_correction", true)

	m := ShapeMetrics{
		StrategyName: "shape",
		StrategyParams: map[string]any{
			"indicator_col":        col,
			"calculate_smoothness": calcSmoothness,
			"bias_correction":      biasCorrection,
		},
	}

	values := validValues(slice.Column(col))
	if len(values) < 3 {
		return m, nil
	}

	if isConstant(values) {
		skew, kurt := 0.0, 3.0
		m.HistSkewness = &skew
		m.HistKurtosis = &kurt
	} else {
		skew := stat.Skew(values, nil)
		exKurt := stat.ExKurtosis(values, nil)
		kurt := exKurt + 3
		m.HistSkewness = &skew
		m.HistKurtosis = &kurt
	}

	if calcSmoothness && len(values) >= 2 {
		smooth := smoothness(values)
		m.HistSmoothness = &smooth
	}

	return m, nil
}

func validValues(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func isConstant(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return false
		}
	}
	return true
}

// smoothness is 1 - mean(|delta x|) / mean(|x|), or 0 when mean(|x|) is
// zero. The result is not clamped: it goes negative when the average step
// exceeds the average level.
func smoothness(values []float64) float64 {
	var sumAbsDelta, sumAbs float64
	for i := 1; i < len(values); i++ {
		sumAbsDelta += math.Abs(values[i] - values[i-1])
	}
	for _, v := range values {
		sumAbs += math.Abs(v)
	}
	meanAbsDelta := sumAbsDelta / float64(len(values)-1)
	meanAbs := sumAbs / float64(len(values))
	if meanAbs == 0 {
		return 0
	}
	return 1 - meanAbsDelta/meanAbs
}
