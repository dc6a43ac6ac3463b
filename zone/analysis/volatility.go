package analysis

import (
	"math"

	"github.com/kogriv/bquant-sub003/series"
	talib "github.com/markcheno/go-talib"
)

const (
	RegimeLow     = "low"
	RegimeMedium  = "medium"
	RegimeHigh    = "high"
	RegimeExtreme = "extreme"

	ATRTrendIncreasing = "increasing"
	ATRTrendDecreasing = "decreasing"
	ATRTrendStable     = "stable"
)

// VolatilityMetrics is the Bollinger/ATR volatility record, per spec.md
// §4.3.4.
type VolatilityMetrics struct {
	BollingerWidthPct     *float64
	BollingerWidthStd     *float64
	BollingerSqueezeRatio *float64
	BollingerUpperTouches int
	BollingerLowerTouches int

	ATRNormalizedRange *float64
	ATRTrend           *string
	AvgATR             *float64

	VolatilityScore float64
	VolatilityRegime string

	StrategyName   string
	StrategyParams map[string]any
}

type volatilityStrategy struct{}

func (volatilityStrategy) Name() string { return "volatility" }

func (volatilityStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	if err := slice.RequireOHLC(); err != nil {
		return nil, err
	}
	bbPeriod := intParam(params, "bb_period", 20)
	bbDev := floatParam(params, "bb_dev", 2.0)
	atrPeriod := intParam(params, "atr_period", 14)
	touchThreshold := floatParam(params, "touch_threshold", 0)

	m := VolatilityMetrics{
		StrategyName: "volatility",
		StrategyParams: map[string]any{
			"bb_period":       bbPeriod,
			"bb_dev":          bbDev,
			"atr_period":      atrPeriod,
			"touch_threshold": touchThreshold,
		},
	}

	closes := slice.Close()
	highs, lows := slice.High(), slice.Low()
	n := len(closes)
	if n < 2 {
		m.VolatilityRegime = RegimeLow
		return m, nil
	}

	upper, middle, lower := talib.BBands(closes, bbPeriod, bbDev, bbDev, talib.SMA)
	widths := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if middle[i] == 0 || math.IsNaN(middle[i]) || math.IsNaN(upper[i]) || math.IsNaN(lower[i]) {
			continue
		}
		widths = append(widths, (upper[i]-lower[i])/middle[i]*100)
		// A collapsed (zero-width) band is not touched.
		if upper[i] > lower[i] {
			tolerance := middle[i] * touchThreshold / 100
			if closes[i] >= upper[i]-tolerance {
				m.BollingerUpperTouches++
			}
			if closes[i] <= lower[i]+tolerance {
				m.BollingerLowerTouches++
			}
		}
	}
	if len(widths) > 0 {
		avgWidth, stdWidth := meanStd(widths)
		m.BollingerWidthPct = &avgWidth
		m.BollingerWidthStd = &stdWidth
		if avgWidth > 0 {
			squeeze := widths[len(widths)-1] / avgWidth
			m.BollingerSqueezeRatio = &squeeze
		}
	}

	var atr []float64
	if slice.HasColumn(series.ColATR) {
		atr = slice.ATR()
	} else if n >= atrPeriod+1 {
		atr = talib.Atr(highs, lows, closes, atrPeriod)
	}

	var atrNorm, avgATR *float64
	var atrTrend *string
	if len(atr) > 0 {
		validATR := make([]float64, 0, n)
		for i := 0; i < len(atr); i++ {
			if !math.IsNaN(atr[i]) {
				validATR = append(validATR, atr[i])
			}
		}
		if len(validATR) > 0 {
			avg, _ := meanStd(validATR)
			avgATR = &avg
			if closes[n-1] != 0 {
				norm := validATR[len(validATR)-1] / closes[n-1] * 100
				atrNorm = &norm
			}
			if len(validATR) >= 2 && validATR[0] != 0 {
				ratio := (validATR[len(validATR)-1] - validATR[0]) / validATR[0]
				trend := atrTrendLabel(ratio)
				atrTrend = &trend
			}
		}
	}
	m.ATRNormalizedRange = atrNorm
	m.ATRTrend = atrTrend
	m.AvgATR = avgATR

	m.VolatilityScore = volatilityScore(m)
	m.VolatilityRegime = volatilityRegime(m.VolatilityScore)
	return m, nil
}

// atrTrendLabel buckets the (last-first)/first ATR ratio into the three-way
// enum of spec.md §4.3.4: a move of 20% or more either way is
// increasing/decreasing, otherwise stable.
func atrTrendLabel(ratio float64) string {
	switch {
	case ratio >= 0.2:
		return ATRTrendIncreasing
	case ratio <= -0.2:
		return ATRTrendDecreasing
	default:
		return ATRTrendStable
	}
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(vals)-1))
	return mean, std
}

// volatilityScore blends normalized Bollinger width, ATR-normalized range,
// and band-touch frequency into a 0-10 composite, each contributing up to
// a fixed share scaled against a generous reference ceiling, clipped to
// [0, 10] overall.
func volatilityScore(m VolatilityMetrics) float64 {
	var score float64
	if m.BollingerWidthPct != nil {
		score += clamp(*m.BollingerWidthPct/10*4, 0, 4)
	}
	if m.ATRNormalizedRange != nil {
		score += clamp(*m.ATRNormalizedRange/5*4, 0, 4)
	}
	touches := m.BollingerUpperTouches + m.BollingerLowerTouches
	score += clamp(float64(touches)/10*2, 0, 2)
	return clamp(score, 0, 10)
}

func volatilityRegime(score float64) string {
	switch {
	case score < 2.5:
		return RegimeLow
	case score < 5:
		return RegimeMedium
	case score < 7.5:
		return RegimeHigh
	default:
		return RegimeExtreme
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
