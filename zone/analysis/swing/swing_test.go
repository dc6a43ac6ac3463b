package swing

import (
	"math"
	"testing"
	"time"

	"github.com/kogriv/bquant-sub003/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zigzagFrame(n int) *series.Frame {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
		closes[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/20)
	}
	f, err := series.New(t, map[string][]float64{
		series.ColOpen:  closes,
		series.ColHigh:  closes,
		series.ColLow:   closes,
		series.ColClose: closes,
	})
	if err != nil {
		panic(err)
	}
	return f
}

func TestZigZagFindsAlternatingSwings(t *testing.T) {
	f := zigzagFrame(100)
	points := ZigZag(f, 2, 2.0)
	require.NotEmpty(t, points)
	for i := 1; i < len(points); i++ {
		assert.NotEqual(t, points[i-1].Kind, points[i].Kind)
	}
}

func TestFromPointsNoSwingsIsValidZeroRecord(t *testing.T) {
	m := FromPoints(nil, "zigzag", nil, 0)
	assert.Equal(t, 0, m.NumSwings)
	assert.Nil(t, m.AvgRallyPct)
}

func TestContextSliceNeighborAwareness(t *testing.T) {
	points := []SwingPoint{
		{Idx: 0, Kind: Trough, Price: 100},
		{Idx: 10, Kind: Peak, Price: 110},
		{Idx: 20, Kind: Trough, Price: 95},
		{Idx: 30, Kind: Peak, Price: 120},
	}
	ctx := NewContext(points, "zigzag", nil)
	sliced := ctx.Slice(12, 22)
	// zone covers only idx 20 strictly inside, but should include the
	// bracketing peak at 10 and peak at 30 for leg context.
	require.Len(t, sliced, 3)
	assert.Equal(t, 10, sliced[0].Idx)
	assert.Equal(t, 20, sliced[1].Idx)
	assert.Equal(t, 30, sliced[2].Idx)
}

func TestPivotsSymmetric(t *testing.T) {
	f := zigzagFrame(60)
	points := Pivots(f, 3, 3)
	require.NotEmpty(t, points)
}
