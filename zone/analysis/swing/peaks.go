package swing

import "github.com/kogriv/bquant-sub003/series"

// Peaks scans local maxima of high and local minima of low with a minimum
// separation of distance bars and a minimum prominence (auto ~1% of price
// range when prominence <= 0).
func Peaks(data *series.Frame, prominence float64, distance int) []SwingPoint {
	high, low := data.High(), data.Low()
	n := len(high)
	if n == 0 {
		return nil
	}
	if distance <= 0 {
		distance = 1
	}
	if prominence <= 0 {
		prominence = autoProminence(data)
	}

	var points []SwingPoint
	for i := 0; i < n; i++ {
		if isLocalExtreme(high, i, distance, true) && localProminence(high, i, distance, true) >= prominence {
			points = append(points, SwingPoint{Idx: i, Time: data.Time[i], Price: high[i], Kind: Peak})
		}
		if isLocalExtreme(low, i, distance, false) && localProminence(low, i, distance, false) >= prominence {
			points = append(points, SwingPoint{Idx: i, Time: data.Time[i], Price: low[i], Kind: Trough})
		}
	}
	return points
}

// LocalExtremeIndices returns the indices of local extrema of vals,
// separated by at least distance bars. Exported for reuse by the
// divergence strategy, which needs raw index lists rather than SwingPoints.
func LocalExtremeIndices(vals []float64, distance int, wantMax bool) []int {
	if distance <= 0 {
		distance = 1
	}
	var idx []int
	for i := range vals {
		if isLocalExtreme(vals, i, distance, wantMax) {
			idx = append(idx, i)
		}
	}
	return idx
}

func isLocalExtreme(vals []float64, i, distance int, wantMax bool) bool {
	lo := i - distance
	hi := i + distance
	if lo < 0 {
		lo = 0
	}
	if hi >= len(vals) {
		hi = len(vals) - 1
	}
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if wantMax && vals[j] > vals[i] {
			return false
		}
		if !wantMax && vals[j] < vals[i] {
			return false
		}
	}
	return true
}

// localProminence approximates prominence as the distance from vals[i] to
// the lowest value in its +/-distance window (the highest, for a minimum).
func localProminence(vals []float64, i, distance int, wantMax bool) float64 {
	lo := i - distance
	hi := i + distance
	if lo < 0 {
		lo = 0
	}
	if hi >= len(vals) {
		hi = len(vals) - 1
	}
	best := vals[lo]
	for j := lo; j <= hi; j++ {
		if wantMax && vals[j] < best {
			best = vals[j]
		}
		if !wantMax && vals[j] > best {
			best = vals[j]
		}
	}
	if wantMax {
		return vals[i] - best
	}
	return best - vals[i]
}
