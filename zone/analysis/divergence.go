package analysis

import (
	"math"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone/analysis/swing"
)

const (
	DivergenceNone    = "none"
	DivergenceRegular = "regular"
	DivergenceHidden  = "hidden"
	DivergenceMixed   = "mixed"

	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
	DirectionNone    = "none"
)

// DivergenceRecord is the classic price/indicator divergence record, per
// spec.md §4.3.3.
type DivergenceRecord struct {
	DivergenceType     string
	DivergenceCount    int
	DivergenceStrength float64
	DivergenceDirection string

	StrategyName   string
	StrategyParams map[string]any
}

type divergenceStrategy struct{}

func (divergenceStrategy) Name() string { return "divergence" }

func (divergenceStrategy) Calculate(slice *series.Frame, params map[string]any) (any, error) {
	col := stringParam(params, "indicator_col")
	if col == "" {
		return nil, zerr.New(zerr.ConfigError, "divergence strategy requires indicator_col")
	}
	lineCol := stringParam(params, "indicator_line_col")
	tolerance := intParam(params, "tolerance_bars", 10)
	minPeakDistance := intParam(params, "min_peak_distance", 3)
	minStrength := floatParam(params, "min_divergence_strength", 0)

	rec := DivergenceRecord{
		DivergenceType:      DivergenceNone,
		DivergenceDirection: DirectionNone,
		StrategyName:        "divergence",
		StrategyParams: map[string]any{
			"indicator_col":      col,
			"indicator_line_col": lineCol,
			"tolerance_bars":     tolerance,
		},
	}

	if err := slice.RequireOHLC(); err != nil {
		return nil, err
	}
	indicatorSeries := slice.Column(col)
	if lineCol != "" && slice.HasColumn(lineCol) {
		indicatorSeries = slice.Column(lineCol)
	}
	if slice.Len() < 10 || indicatorSeries == nil {
		return rec, nil
	}

	high, low := slice.High(), slice.Low()
	pricePeaks := swing.LocalExtremeIndices(high, minPeakDistance, true)
	priceTroughs := swing.LocalExtremeIndices(low, minPeakDistance, false)
	indPeaks := swing.LocalExtremeIndices(indicatorSeries, minPeakDistance, true)
	indTroughs := swing.LocalExtremeIndices(indicatorSeries, minPeakDistance, false)

	if len(pricePeaks) == 0 && len(priceTroughs) == 0 {
		return rec, nil
	}

	var strengths []float64
	var bearishRegular, bearishHidden, bullishRegular, bullishHidden int

	for k := 1; k < len(pricePeaks); k++ {
		prevIdx, curIdx := pricePeaks[k-1], pricePeaks[k]
		prevInd, okPrev := nearestWithin(indPeaks, prevIdx, tolerance)
		curInd, okCur := nearestWithin(indPeaks, curIdx, tolerance)
		if !okPrev || !okCur {
			continue
		}
		priceHigherHigh := high[curIdx] > high[prevIdx]
		indLowerHigh := indicatorSeries[curInd] < indicatorSeries[prevInd]
		indHigherHigh := indicatorSeries[curInd] > indicatorSeries[prevInd]
		strength := divergenceStrength(high[prevIdx], high[curIdx], curIdx-prevIdx, indicatorSeries[prevInd], indicatorSeries[curInd], curInd-prevInd)
		switch {
		case priceHigherHigh && indLowerHigh && strength >= minStrength:
			// regular bearish: price higher high, indicator lower high.
			strengths = append(strengths, strength)
			bearishRegular++
		case !priceHigherHigh && indHigherHigh && strength >= minStrength:
			// hidden bearish: price lower high, indicator higher high.
			strengths = append(strengths, strength)
			bearishHidden++
		}
	}

	for k := 1; k < len(priceTroughs); k++ {
		prevIdx, curIdx := priceTroughs[k-1], priceTroughs[k]
		prevInd, okPrev := nearestWithin(indTroughs, prevIdx, tolerance)
		curInd, okCur := nearestWithin(indTroughs, curIdx, tolerance)
		if !okPrev || !okCur {
			continue
		}
		priceLowerLow := low[curIdx] < low[prevIdx]
		indHigherLow := indicatorSeries[curInd] > indicatorSeries[prevInd]
		indLowerLow := indicatorSeries[curInd] < indicatorSeries[prevInd]
		strength := divergenceStrength(low[prevIdx], low[curIdx], curIdx-prevIdx, indicatorSeries[prevInd], indicatorSeries[curInd], curInd-prevInd)
		switch {
		case priceLowerLow && indHigherLow && strength >= minStrength:
			// regular bullish: price lower low, indicator higher low.
			strengths = append(strengths, strength)
			bullishRegular++
		case !priceLowerLow && indLowerLow && strength >= minStrength:
			// hidden bullish: price higher low, indicator lower low.
			strengths = append(strengths, strength)
			bullishHidden++
		}
	}

	bearish := bearishRegular + bearishHidden
	bullish := bullishRegular + bullishHidden
	rec.DivergenceCount = bearish + bullish
	if rec.DivergenceCount == 0 {
		return rec, nil
	}

	var sum float64
	for _, s := range strengths {
		sum += s
	}
	rec.DivergenceStrength = sum / float64(len(strengths))

	switch {
	case bearish > bullish:
		rec.DivergenceDirection = DirectionBearish
	case bullish > bearish:
		rec.DivergenceDirection = DirectionBullish
	default:
		rec.DivergenceDirection = DirectionNone
	}

	switch {
	case bearish > 0 && bullish > 0:
		rec.DivergenceType = DivergenceMixed
	case bearish > 0:
		rec.DivergenceType = kindOf(bearishRegular, bearishHidden)
	case bullish > 0:
		rec.DivergenceType = kindOf(bullishRegular, bullishHidden)
	}
	return rec, nil
}

// kindOf resolves the single-direction divergence type: regular or hidden
// when only one kind occurred, mixed when both occurred for that direction.
func kindOf(regular, hidden int) string {
	switch {
	case regular > 0 && hidden > 0:
		return DivergenceMixed
	case hidden > 0:
		return DivergenceHidden
	default:
		return DivergenceRegular
	}
}

// nearestWithin returns the candidate index in candidates nearest to idx,
// if within tolerance bars.
func nearestWithin(candidates []int, idx, tolerance int) (int, bool) {
	best := -1
	bestDist := tolerance + 1
	for _, c := range candidates {
		d := c - idx
		if d < 0 {
			d = -d
		}
		if d <= tolerance && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best >= 0
}

func divergenceStrength(prevPrice, curPrice float64, priceDur int, prevInd, curInd float64, indDur int) float64 {
	if priceDur == 0 || indDur == 0 || prevPrice == 0 || prevInd == 0 {
		return 0
	}
	slopePrice := (curPrice - prevPrice) / prevPrice / float64(priceDur)
	slopeInd := (curInd - prevInd) / math.Abs(prevInd) / float64(indDur)
	return math.Abs(slopePrice) * math.Abs(slopeInd)
}
