// Package stats implements the statistical aggregation stage (C5): a
// distribution summary, a fixed hypothesis test battery, sequence/transition
// analysis, k-means clustering, OLS regression diagnostics, and optional
// out-of-sample/walk-forward/sensitivity/Monte-Carlo validation, all
// computed over a completed zone population.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kogriv/bquant-sub003/zone"
)

// PercentileSummary is the {min, p25, median, p75, max, mean, std} record
// required for every distribution-summary field in spec §4.5.
type PercentileSummary struct {
	Min    float64
	P25    float64
	Median float64
	P75    float64
	Max    float64
	Mean   float64
	Std    float64
}

// summarize computes a PercentileSummary over values. values need not be
// sorted; a sorted copy is made internally since stat.Quantile requires it.
func summarize(values []float64) PercentileSummary {
	if len(values) == 0 {
		return PercentileSummary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mean := stat.Mean(sorted, nil)
	std := stat.StdDev(sorted, nil)
	return PercentileSummary{
		Min:    sorted[0],
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Std:    std,
	}
}

// DistributionSummary is the population-level distribution record of spec
// §4.5 "Distribution summary".
type DistributionSummary struct {
	CountByType map[string]int
	Total       int

	Duration       PercentileSummary
	PriceReturn    PercentileSummary
	HistAmplitude  *PercentileSummary
	LegacyAlias    *PercentileSummary
	LegacyAliasKey string
}

// Summarize builds the DistributionSummary over a zone population. It reads
// duration, price_return, and (when present) hist_amplitude / a legacy
// amplitude alias (e.g. macd_amplitude) straight from each zone's Features.
func Summarize(zones []*zone.Zone) DistributionSummary {
	d := DistributionSummary{CountByType: map[string]int{}, Total: len(zones)}
	var durations, returns, amplitudes []float64
	var legacy []float64
	legacyKey := ""

	for _, z := range zones {
		d.CountByType[z.Type]++
		durations = append(durations, float64(z.Duration()))
		returns = append(returns, floatFeature(z, "price_return"))
		if v, ok := floatFeatureOK(z, "hist_amplitude"); ok {
			amplitudes = append(amplitudes, v)
		}
		for _, key := range []string{"macd_amplitude"} {
			if v, ok := floatFeatureOK(z, key); ok {
				legacy = append(legacy, v)
				legacyKey = key
			}
		}
	}

	d.Duration = summarize(durations)
	d.PriceReturn = summarize(returns)
	if len(amplitudes) > 0 {
		s := summarize(amplitudes)
		d.HistAmplitude = &s
	}
	if len(legacy) > 0 {
		s := summarize(legacy)
		d.LegacyAlias = &s
		d.LegacyAliasKey = legacyKey
	}
	return d
}

func floatFeature(z *zone.Zone, key string) float64 {
	v, _ := floatFeatureOK(z, key)
	return v
}

func floatFeatureOK(z *zone.Zone, key string) (float64, bool) {
	raw, ok := z.Features[key]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	return f, ok
}
