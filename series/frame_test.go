package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(n int) []time.Time {
	t := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		t[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return t
}

func TestNewValidatesLength(t *testing.T) {
	_, err := New(bars(3), map[string][]float64{"close": {1, 2}})
	require.Error(t, err)
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestNewRejectsNonMonotonic(t *testing.T) {
	t1 := bars(3)
	t1[2] = t1[0]
	_, err := New(t1, map[string][]float64{"close": {1, 2, 3}})
	require.Error(t, err)
}

func TestSliceCopiesData(t *testing.T) {
	f, err := New(bars(5), map[string][]float64{"close": {1, 2, 3, 4, 5}})
	require.NoError(t, err)

	s := f.Slice(1, 3)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{2, 3, 4}, s.Close())

	s.Close()[0] = 999
	assert.Equal(t, float64(2), f.Close()[1], "slice must not alias parent storage")
}

func TestColumnNamesSorted(t *testing.T) {
	f, err := New(bars(2), map[string][]float64{"close": {1, 2}, "open": {1, 2}, "zscore": {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "open", "zscore"}, f.ColumnNames())
}

func TestRequireOHLC(t *testing.T) {
	f, _ := New(bars(2), map[string][]float64{"close": {1, 2}})
	assert.Error(t, f.RequireOHLC())
}
