package stats

import (
	"testing"
	"time"

	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticZones(n int) []*zone.Zone {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	zones := make([]*zone.Zone, n)
	for i := 0; i < n; i++ {
		typ := "bull"
		if i%2 == 1 {
			typ = "bear"
		}
		startPrice := 100.0 + float64(i)
		endPrice := startPrice * (1.0 + 0.01*float64(i%5-2))
		// Durations vary (10..14 bars) so duration-based tests see variance.
		length := 10 + (2*i)%5
		t := make([]time.Time, length)
		closes := make([]float64, length)
		for j := range t {
			t[j] = base.Add(time.Duration(i*20+j) * time.Hour)
			closes[j] = startPrice + (endPrice-startPrice)*float64(j)/float64(length-1)
		}
		f, err := series.New(t, map[string][]float64{
			series.ColOpen:  closes,
			series.ColHigh:  closes,
			series.ColLow:   closes,
			series.ColClose: closes,
			"osc":           closes,
		})
		if err != nil {
			panic(err)
		}
		z := zone.New("z"+string(rune('a'+i)), typ, 0, length-1, t[0], t[length-1], f, nil)
		z.Features = zone.Features{
			"duration":                length,
			"price_return":            (endPrice - startPrice) / startPrice,
			"start_price":             startPrice,
			"hist_amplitude":          5.0 + float64(i%3),
			"hist_slope":              0.5 + 0.1*float64(i%7),
			"correlation_price_hist":  0.9 - float64(i%4)*0.1,
		}
		if typ == "bull" {
			z.Features["drawdown_from_peak"] = 0.01 * float64(i%3)
		} else {
			z.Features["rally_from_trough"] = 0.02 * float64(i%3)
		}
		zones[i] = z
	}
	return zones
}

func TestSummarizeCounts(t *testing.T) {
	zones := syntheticZones(20)
	d := Summarize(zones)
	assert.Equal(t, 20, d.Total)
	assert.Equal(t, 10, d.CountByType["bull"])
	assert.Equal(t, 10, d.CountByType["bear"])
	require.NotNil(t, d.HistAmplitude)
}

func TestRunBatteryAllTestsRunWithEnoughZones(t *testing.T) {
	zones := syntheticZones(30)
	battery := RunBattery(zones, 0.05)
	assert.Len(t, battery.Tests, 7)
	for _, r := range battery.Tests {
		assert.False(t, r.Skipped, "test %s should not be skipped with 30 zones: %s", r.TestName, r.SkipReason)
	}
}

func TestRunBatterySkipsWithTooFewZones(t *testing.T) {
	zones := syntheticZones(2)
	battery := RunBattery(zones, 0.05)
	for _, r := range battery.Tests {
		assert.True(t, r.Skipped)
	}
}

func TestCountTransitions(t *testing.T) {
	zones := syntheticZones(6)
	trans := CountTransitions(zones)
	assert.Equal(t, 5, trans["bull_to_bear"]+trans["bear_to_bull"])
}

// Literal scenario from spec.md §8 scenario 5: zones [bull, bear, bull,
// bear, bull] must yield transitions {bull_to_bear: 2, bear_to_bull: 2}.
func TestCountTransitionsLiteralScenario(t *testing.T) {
	zones := syntheticZones(5)
	trans := CountTransitions(zones)
	assert.Equal(t, map[string]int{"bull_to_bear": 2, "bear_to_bull": 2}, trans)
}

func TestAnalyzeSequenceNilBelowThreshold(t *testing.T) {
	zones := syntheticZones(2)
	assert.Nil(t, AnalyzeSequence(zones))
}

func TestRunClusteringProducesLabelPerZone(t *testing.T) {
	zones := syntheticZones(12)
	result, err := RunClustering(zones, 3)
	require.NoError(t, err)
	assert.Len(t, result.Labels, 12)
	assert.Len(t, result.Centroids, 3)
}

func TestRunRegressionSkippedBelowThreshold(t *testing.T) {
	zones := syntheticZones(8)
	res := RunRegression(zones, TargetZoneDuration)
	assert.True(t, res.Skipped)
}

func TestRunRegressionProducesCoefficients(t *testing.T) {
	zones := syntheticZones(40)
	res := RunRegression(zones, TargetPriceReturn)
	require.False(t, res.Skipped, res.SkipReason)
	assert.NotEmpty(t, res.Coefficients)
	assert.GreaterOrEqual(t, res.RSquared, 0.0)
}

func TestRunOutOfSampleDegradation(t *testing.T) {
	zones := syntheticZones(40)
	res := RunOutOfSample(zones, TargetPriceReturn, 0.3)
	require.False(t, res.Skipped, res.SkipReason)
	assert.GreaterOrEqual(t, res.TrainRSquared, -1.0)
}

func TestRunMonteCarloComparisonPercentile(t *testing.T) {
	synthetic := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	res := RunMonteCarloComparison(20, synthetic)
	assert.True(t, res.Passed)
	res2 := RunMonteCarloComparison(1, synthetic)
	assert.False(t, res2.Passed)
}

func TestKMeans1DSeparatesClusters(t *testing.T) {
	values := []float64{1, 1.1, 0.9, 50, 50.2, 49.8}
	res, err := KMeans1D(values, 2, 25)
	require.NoError(t, err)
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
}

func TestShapiroFranciaOnNormalish(t *testing.T) {
	values := []float64{10, 11, 9, 10.5, 9.5, 10.2, 9.8, 10.1, 9.9, 10.3}
	w, p := shapiroFrancia(values)
	assert.Greater(t, w, 0.5)
	assert.GreaterOrEqual(t, p, 0.0)
}

func TestMannWhitneyUDetectsShift(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{10, 11, 12, 13, 14}
	_, p := mannWhitneyU(a, b)
	assert.Less(t, p, 0.05)
}
