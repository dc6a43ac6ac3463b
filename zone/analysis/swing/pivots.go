package swing

import "github.com/kogriv/bquant-sub003/series"

// Pivots identifies N-bar pivot highs/lows: a pivot high at i satisfies
// high[i] > high[i-j] and high[i] > high[i+j] for every j in
// [1, leftBars]/[1, rightBars]; pivot lows are the mirror image on low.
func Pivots(data *series.Frame, leftBars, rightBars int) []SwingPoint {
	high, low := data.High(), data.Low()
	n := len(high)
	if n == 0 {
		return nil
	}
	if leftBars <= 0 {
		leftBars = 1
	}
	if rightBars <= 0 {
		rightBars = 1
	}

	var points []SwingPoint
	for i := leftBars; i < n-rightBars; i++ {
		if isPivotHigh(high, i, leftBars, rightBars) {
			points = append(points, SwingPoint{Idx: i, Time: data.Time[i], Price: high[i], Kind: Peak})
		}
		if isPivotLow(low, i, leftBars, rightBars) {
			points = append(points, SwingPoint{Idx: i, Time: data.Time[i], Price: low[i], Kind: Trough})
		}
	}
	return points
}

func isPivotHigh(high []float64, i, left, right int) bool {
	for j := 1; j <= left; j++ {
		if high[i] <= high[i-j] {
			return false
		}
	}
	for j := 1; j <= right; j++ {
		if high[i] <= high[i+j] {
			return false
		}
	}
	return true
}

func isPivotLow(low []float64, i, left, right int) bool {
	for j := 1; j <= left; j++ {
		if low[i] >= low[i-j] {
			return false
		}
	}
	for j := 1; j <= right; j++ {
		if low[i] >= low[i+j] {
			return false
		}
	}
	return true
}
