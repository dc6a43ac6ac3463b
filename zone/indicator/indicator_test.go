package indicator

import (
	"context"
	"testing"
	"time"

	"github.com/kogriv/bquant-sub003/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(n int) *series.Frame {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
		closes[i] = 100 + float64(i%7)
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

func TestComputeSMA(t *testing.T) {
	f := frame(50)
	out, err := TalibFactory{}.Compute(context.Background(), "", SMA, map[string]any{"period": 10}, f)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Len())
	assert.True(t, out.HasColumn("sma"))
}

func TestComputeMACDColumns(t *testing.T) {
	f := frame(100)
	out, err := TalibFactory{}.Compute(context.Background(), "", MACD, nil, f)
	require.NoError(t, err)
	assert.True(t, out.HasColumn("macd"))
	assert.True(t, out.HasColumn("macd_signal"))
	assert.True(t, out.HasColumn("macd_hist"))
}

func TestComputeATRProducesATRColumn(t *testing.T) {
	f := frame(30)
	out, err := TalibFactory{}.Compute(context.Background(), "", ATR, map[string]any{"period": 14}, f)
	require.NoError(t, err)
	assert.True(t, out.HasColumn(series.ColATR))
}

func TestComputeUnknownIndicatorErrors(t *testing.T) {
	f := frame(10)
	_, err := TalibFactory{}.Compute(context.Background(), "", "not_real", nil, f)
	assert.Error(t, err)
}

func TestComputeMissingSourceColumnErrors(t *testing.T) {
	f := frame(10)
	_, err := TalibFactory{}.Compute(context.Background(), "nonexistent", SMA, nil, f)
	assert.Error(t, err)
}
