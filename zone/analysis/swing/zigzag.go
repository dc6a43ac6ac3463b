package swing

import "github.com/kogriv/bquant-sub003/series"

// ZigZag identifies confirmed reversals: a move of at least deviation
// percent, held for at least legs bars, flips the current direction and
// emits a swing point at the prior extreme. This is the "external library
// wrapper" the spec calls the best default; no zigzag library appears
// anywhere in the corpus, so the algorithm is implemented directly (see
// DESIGN.md).
func ZigZag(data *series.Frame, legs int, deviation float64) []SwingPoint {
	closes := data.Close()
	n := len(closes)
	if n == 0 {
		return nil
	}
	if legs <= 0 {
		legs = 1
	}
	if deviation <= 0 {
		deviation = 1.0
	}

	direction := 0 // 0 = seeking first move, 1 = up, -1 = down
	extremeIdx := 0
	extremePrice := closes[0]
	var points []SwingPoint

	for i := 1; i < n; i++ {
		price := closes[i]
		if direction >= 0 {
			if price >= extremePrice {
				extremePrice = price
				extremeIdx = i
				direction = 1
				continue
			}
			move := (extremePrice - price) / extremePrice * 100
			if move >= deviation && i-extremeIdx >= legs {
				points = append(points, SwingPoint{Idx: extremeIdx, Time: data.Time[extremeIdx], Price: extremePrice, Kind: Peak})
				direction = -1
				extremePrice = price
				extremeIdx = i
				continue
			}
		}
		if direction <= 0 {
			if price <= extremePrice || direction == 0 {
				if direction == 0 && price >= extremePrice {
					continue
				}
				extremePrice = price
				extremeIdx = i
				direction = -1
				continue
			}
			move := (price - extremePrice) / extremePrice * 100
			if move >= deviation && i-extremeIdx >= legs {
				points = append(points, SwingPoint{Idx: extremeIdx, Time: data.Time[extremeIdx], Price: extremePrice, Kind: Trough})
				direction = 1
				extremePrice = price
				extremeIdx = i
			}
		}
	}

	finalKind := Trough
	if direction == 1 {
		finalKind = Peak
	}
	if len(points) == 0 || points[len(points)-1].Idx != extremeIdx {
		points = append(points, SwingPoint{Idx: extremeIdx, Time: data.Time[extremeIdx], Price: extremePrice, Kind: finalKind})
	}
	return points
}
