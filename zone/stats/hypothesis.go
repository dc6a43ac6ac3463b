package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kogriv/bquant-sub003/zone"
)

// Test names, used as stable keys in HypothesisResult.TestName.
const (
	TestDurationNormality    = "duration_normality"
	TestBullBearAsymmetry    = "bull_bear_asymmetry"
	TestVolatilityEffects    = "volatility_effects"
	TestSequenceHypothesis   = "sequence_hypothesis"
	TestCorrelationDrawdown  = "correlation_drawdown"
	TestDurationStationarity = "duration_stationarity"
	TestSupportResistance    = "support_resistance"
)

// HypothesisResult is the uniform test record of spec §4.5: statistic,
// p-value, significance at alpha, an effect size, and free-form metadata.
// A skipped test (precondition not met) carries SkipReason and is omitted
// from "significant" summaries.
type HypothesisResult struct {
	TestName   string
	Statistic  float64
	PValue     float64
	Alpha      float64
	Significant bool
	EffectSize float64
	Metadata   map[string]any

	Skipped    bool
	SkipReason string
}

// TestBattery is the full named battery plus its roll-up counts.
type TestBattery struct {
	Tests            []HypothesisResult
	TotalRun         int
	TotalSignificant int
}

// RunBattery executes the fixed seven-test battery of spec §4.5 over a zone
// population at the given significance level.
func RunBattery(zones []*zone.Zone, alpha float64) TestBattery {
	if alpha <= 0 {
		alpha = 0.05
	}
	tests := []HypothesisResult{
		durationNormality(zones, alpha),
		bullBearAsymmetry(zones, alpha),
		volatilityEffects(zones, alpha),
		sequenceHypothesis(zones, alpha),
		correlationDrawdown(zones, alpha),
		durationStationarity(zones, alpha),
		supportResistance(zones, alpha),
	}
	battery := TestBattery{Tests: tests}
	for _, r := range tests {
		if r.Skipped {
			continue
		}
		battery.TotalRun++
		if r.Significant {
			battery.TotalSignificant++
		}
	}
	return battery
}

func skip(name string, alpha float64, reason string) HypothesisResult {
	return HypothesisResult{TestName: name, Alpha: alpha, Skipped: true, SkipReason: reason}
}

// durationNormality runs a Shapiro-Francia style normality test on zone
// durations. No Shapiro-Wilk implementation exists anywhere in the example
// corpus, so the statistic and its p-value approximation are hand-rolled.
func durationNormality(zones []*zone.Zone, alpha float64) HypothesisResult {
	if len(zones) < 3 {
		return skip(TestDurationNormality, alpha, "requires at least 3 zones")
	}
	durations := make([]float64, len(zones))
	for i, z := range zones {
		durations[i] = float64(z.Duration())
	}
	w, p := shapiroFrancia(durations)
	return HypothesisResult{
		TestName:    TestDurationNormality,
		Statistic:   w,
		PValue:      p,
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  1 - w,
		Metadata:    map[string]any{"n": len(durations)},
	}
}

// shapiroFrancia computes the Shapiro-Francia W' statistic (a simplified
// variant of Shapiro-Wilk using Blom's plotting positions) and an
// approximate two-sided p-value via a log-normal transform of W'.
func shapiroFrancia(values []float64) (w, p float64) {
	n := len(values)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mean := stat.Mean(sorted, nil)

	m := make([]float64, n)
	var sumM2 float64
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	for i := 0; i < n; i++ {
		pr := (float64(i+1) - 0.375) / (float64(n) + 0.25)
		m[i] = norm.Quantile(pr)
		sumM2 += m[i] * m[i]
	}
	var num, den float64
	for i := 0; i < n; i++ {
		num += m[i] * sorted[i]
		den += (sorted[i] - mean) * (sorted[i] - mean)
	}
	if den == 0 || sumM2 == 0 {
		return 1, 1
	}
	w = (num * num) / (sumM2 * den)
	if w >= 1 {
		w = 0.999999
	}
	if w <= 0 {
		w = 1e-6
	}
	u := math.Log(float64(n))
	mu := -1.2725 + 1.0521*(u-math.Log(u))
	sigma := 1.0308 - 0.26758*(u+2/u)
	if sigma <= 0 {
		sigma = 0.01
	}
	z := (math.Log(1-w) - mu) / sigma
	p = 2 * (1 - norm.CDF(math.Abs(z)))
	return w, clampProbability(p)
}

// bullBearAsymmetry runs Welch's unequal-variance t-test on price_return
// grouped by zone_type.
func bullBearAsymmetry(zones []*zone.Zone, alpha float64) HypothesisResult {
	groups := map[string][]float64{}
	for _, z := range zones {
		groups[z.Type] = append(groups[z.Type], floatFeature(z, "price_return"))
	}
	bull, okBull := groups["bull"]
	bear, okBear := groups["bear"]
	if !okBull || !okBear || len(bull) < 2 || len(bear) < 2 {
		return skip(TestBullBearAsymmetry, alpha, "requires at least 2 zones per group")
	}
	t, df, p := welchT(bull, bear)
	return HypothesisResult{
		TestName:    TestBullBearAsymmetry,
		Statistic:   t,
		PValue:      p,
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  cohensD(bull, bear),
		Metadata:    map[string]any{"df": df, "n_bull": len(bull), "n_bear": len(bear)},
	}
}

// welchT computes Welch's t-statistic, Welch-Satterthwaite degrees of
// freedom, and a two-sided p-value via the Student's t distribution.
func welchT(a, b []float64) (t, df, p float64) {
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	n1, n2 := float64(len(a)), float64(len(b))
	se2 := v1/n1 + v2/n2
	if se2 <= 0 {
		return 0, n1 + n2 - 2, 1
	}
	se := math.Sqrt(se2)
	t = (m1 - m2) / se
	num := se2 * se2
	denom := (v1*v1)/(n1*n1*(n1-1)) + (v2*v2)/(n2*n2*(n2-1))
	if denom <= 0 {
		df = n1 + n2 - 2
	} else {
		df = num / denom
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * (1 - dist.CDF(math.Abs(t)))
	return t, df, clampProbability(p)
}

func cohensD(a, b []float64) float64 {
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	n1, n2 := float64(len(a)), float64(len(b))
	pooled := ((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2)
	if pooled <= 0 {
		return 0
	}
	return (m1 - m2) / math.Sqrt(pooled)
}

// volatilityEffects tests the correlation between zone duration and
// absolute price_return via a t-test on the Pearson correlation coefficient.
func volatilityEffects(zones []*zone.Zone, alpha float64) HypothesisResult {
	if len(zones) < 3 {
		return skip(TestVolatilityEffects, alpha, "requires at least 3 zones")
	}
	durations := make([]float64, len(zones))
	absReturns := make([]float64, len(zones))
	for i, z := range zones {
		durations[i] = float64(z.Duration())
		absReturns[i] = math.Abs(floatFeature(z, "price_return"))
	}
	r := stat.Correlation(durations, absReturns, nil)
	n := float64(len(zones))
	if math.IsNaN(r) {
		return skip(TestVolatilityEffects, alpha, "degenerate input (zero variance)")
	}
	df := n - 2
	var t float64
	if math.Abs(r) >= 1 {
		t = math.Inf(1) * sign(r)
	} else {
		t = r * math.Sqrt(df) / math.Sqrt(1-r*r)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return HypothesisResult{
		TestName:    TestVolatilityEffects,
		Statistic:   r,
		PValue:      clampProbability(p),
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  r * r,
		Metadata:    map[string]any{"n": len(zones)},
	}
}

// sequenceHypothesis runs a chi-square test of the transition-frequency
// table against a uniform-transitions null.
func sequenceHypothesis(zones []*zone.Zone, alpha float64) HypothesisResult {
	if len(zones) < 3 {
		return skip(TestSequenceHypothesis, alpha, "requires at least 3 zones")
	}
	trans := CountTransitions(zones)
	if len(trans) == 0 {
		return skip(TestSequenceHypothesis, alpha, "no transitions observed")
	}
	observed := make([]float64, 0, len(trans))
	total := 0
	for _, c := range trans {
		observed = append(observed, float64(c))
		total += c
	}
	expected := make([]float64, len(observed))
	uniform := float64(total) / float64(len(observed))
	for i := range expected {
		expected[i] = uniform
	}
	chi2 := stat.ChiSquare(observed, expected)
	df := float64(len(observed) - 1)
	if df < 1 {
		return skip(TestSequenceHypothesis, alpha, "insufficient distinct transition types")
	}
	dist := distuv.ChiSquared{K: df}
	p := 1 - dist.CDF(chi2)
	return HypothesisResult{
		TestName:    TestSequenceHypothesis,
		Statistic:   chi2,
		PValue:      clampProbability(p),
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  math.Sqrt(chi2 / float64(total)),
		Metadata:    map[string]any{"df": df, "transitions": trans},
	}
}

// correlationDrawdown groups zones by the strength of correlation_price_hist
// (high-|corr| vs low-|corr|, split at 0.5) and compares their drawdown
// measure (drawdown_from_peak for bull, rally_from_trough for bear) via
// Welch's t-test. Falls back to a median quantile split when the fixed
// 0.5 threshold yields an empty group.
func correlationDrawdown(zones []*zone.Zone, alpha float64) HypothesisResult {
	type point struct {
		corr     float64
		drawdown float64
	}
	var points []point
	for _, z := range zones {
		corr, ok := floatFeatureOK(z, "correlation_price_hist")
		if !ok {
			continue
		}
		dd := drawdownMeasure(z)
		points = append(points, point{corr: math.Abs(corr), drawdown: dd})
	}
	if len(points) < 10 {
		return skip(TestCorrelationDrawdown, alpha, "requires at least 10 zones with correlation_price_hist")
	}

	threshold := 0.5
	var high, low []float64
	for _, pt := range points {
		if pt.corr >= threshold {
			high = append(high, pt.drawdown)
		} else {
			low = append(low, pt.drawdown)
		}
	}
	usedFallback := false
	if len(high) == 0 || len(low) == 0 {
		usedFallback = true
		corrs := make([]float64, len(points))
		for i, pt := range points {
			corrs[i] = pt.corr
		}
		median := stat.Quantile(0.5, stat.Empirical, sortedCopy(corrs), nil)
		high, low = nil, nil
		for _, pt := range points {
			if pt.corr >= median {
				high = append(high, pt.drawdown)
			} else {
				low = append(low, pt.drawdown)
			}
		}
	}
	if len(high) < 2 || len(low) < 2 {
		return skip(TestCorrelationDrawdown, alpha, "degenerate split; insufficient members in a group")
	}
	t, df, p := welchT(high, low)
	return HypothesisResult{
		TestName:    TestCorrelationDrawdown,
		Statistic:   t,
		PValue:      p,
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  cohensD(high, low),
		Metadata: map[string]any{
			"df": df, "n_high": len(high), "n_low": len(low), "quantile_fallback": usedFallback,
		},
	}
}

func drawdownMeasure(z *zone.Zone) float64 {
	if v, ok := floatFeatureOK(z, "drawdown_from_peak"); ok {
		return v
	}
	if v, ok := floatFeatureOK(z, "rally_from_trough"); ok {
		return v
	}
	return 0
}

// durationStationarity runs an Augmented Dickey-Fuller test on the
// chronological duration series. No ADF implementation exists in the
// example corpus; the regression is hand-rolled on gonum/mat and the
// p-value is an approximation against the Student's t distribution rather
// than the true Dickey-Fuller distribution, which has no closed form and
// is normally read off simulated critical-value tables.
func durationStationarity(zones []*zone.Zone, alpha float64) HypothesisResult {
	if len(zones) < 10 {
		return skip(TestDurationStationarity, alpha, "requires at least 10 zones")
	}
	y := make([]float64, len(zones))
	for i, z := range zones {
		y[i] = float64(z.Duration())
	}
	adfStat, df, err := adfStatistic(y)
	if err != nil {
		return skip(TestDurationStationarity, alpha, err.Error())
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := dist.CDF(adfStat) // left-tailed: stationary <=> strongly negative statistic
	return HypothesisResult{
		TestName:    TestDurationStationarity,
		Statistic:   adfStat,
		PValue:      clampProbability(p),
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  -adfStat,
		Metadata:    map[string]any{"df": df, "n": len(y)},
	}
}

// adfStatistic regresses dy_t = c + gamma*y_(t-1) + phi*dy_(t-1) + e_t and
// returns gamma's t-statistic (the ADF test statistic) and the regression's
// residual degrees of freedom.
func adfStatistic(y []float64) (statistic, df float64, err error) {
	n := len(y)
	if n < 4 {
		return 0, 0, errTooFewObservations
	}
	rows := n - 2
	xData := make([]float64, rows*3)
	yData := make([]float64, rows)
	for i := 2; i < n; i++ {
		r := i - 2
		dy := y[i] - y[i-1]
		dyLag := y[i-1] - y[i-2]
		xData[r*3+0] = 1
		xData[r*3+1] = y[i-1]
		xData[r*3+2] = dyLag
		yData[r] = dy
	}
	X := mat.NewDense(rows, 3, xData)
	Y := mat.NewVecDense(rows, yData)

	var beta mat.VecDense
	if err := solveOLS(X, Y, &beta); err != nil {
		return 0, 0, err
	}

	var resid mat.VecDense
	resid.MulVec(X, &beta)
	var residuals mat.VecDense
	residuals.SubVec(Y, &resid)

	rdf := float64(rows - 3)
	if rdf <= 0 {
		return 0, 0, errTooFewObservations
	}
	var rss float64
	for i := 0; i < rows; i++ {
		rss += residuals.AtVec(i) * residuals.AtVec(i)
	}
	sigma2 := rss / rdf

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return 0, 0, errSingularDesign
	}
	seGamma := math.Sqrt(sigma2 * xtxInv.At(1, 1))
	if seGamma == 0 {
		return 0, 0, errSingularDesign
	}
	gamma := beta.AtVec(1)
	return gamma / seGamma, rdf, nil
}

// supportResistance splits zones by proximity of start_price to a detected
// price-level cluster centroid (below/above median distance) and compares
// duration across the two groups, choosing Welch's t-test or a
// Mann-Whitney rank-sum test depending on each group's Shapiro-Francia
// normality.
func supportResistance(zones []*zone.Zone, alpha float64) HypothesisResult {
	if len(zones) < 4 {
		return skip(TestSupportResistance, alpha, "requires at least 4 zones")
	}
	prices := make([]float64, len(zones))
	for i, z := range zones {
		prices[i] = floatFeature(z, "start_price")
	}
	k := 3
	if len(zones)/5 < k {
		k = len(zones) / 5
	}
	if k < 1 {
		k = 1
	}
	result, err := KMeans1D(prices, k, 25)
	if err != nil {
		return skip(TestSupportResistance, alpha, err.Error())
	}

	durations := make([]float64, len(zones))
	distances := make([]float64, len(zones))
	for i, z := range zones {
		durations[i] = float64(z.Duration())
		distances[i] = math.Abs(prices[i] - result.Centroids[result.Labels[i]])
	}
	median := stat.Quantile(0.5, stat.Empirical, sortedCopy(distances), nil)
	var near, far []float64
	for i, d := range distances {
		if d <= median {
			near = append(near, durations[i])
		} else {
			far = append(far, durations[i])
		}
	}
	if len(near) < 2 || len(far) < 2 {
		return skip(TestSupportResistance, alpha, "degenerate near/far split")
	}

	_, pNear := shapiroFrancia(near)
	_, pFar := shapiroFrancia(far)
	bothNormal := pNear >= 0.05 && pFar >= 0.05

	if bothNormal {
		t, df, p := welchT(near, far)
		return HypothesisResult{
			TestName:    TestSupportResistance,
			Statistic:   t,
			PValue:      p,
			Alpha:       alpha,
			Significant: p < alpha,
			EffectSize:  cohensD(near, far),
			Metadata:    map[string]any{"method": "welch_t", "df": df, "n_clusters": k},
		}
	}
	u, p := mannWhitneyU(near, far)
	return HypothesisResult{
		TestName:    TestSupportResistance,
		Statistic:   u,
		PValue:      p,
		Alpha:       alpha,
		Significant: p < alpha,
		EffectSize:  u / float64(len(near)*len(far)),
		Metadata:    map[string]any{"method": "mann_whitney", "n_clusters": k},
	}
}

// mannWhitneyU computes the rank-sum U statistic and a normal-approximation
// two-sided p-value (valid for the group sizes this battery requires).
func mannWhitneyU(a, b []float64) (u, p float64) {
	type tagged struct {
		val float64
		grp int
	}
	all := make([]tagged, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, tagged{v, 0})
	}
	for _, v := range b {
		all = append(all, tagged{v, 1})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].val < all[j].val })

	ranks := make([]float64, len(all))
	i := 0
	for i < len(all) {
		j := i
		for j < len(all) && all[j].val == all[i].val {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}
	var rankSumA float64
	for idx, t := range all {
		if t.grp == 0 {
			rankSumA += ranks[idx]
		}
	}
	n1, n2 := float64(len(a)), float64(len(b))
	u1 := rankSumA - n1*(n1+1)/2
	uMin := u1
	u2 := n1*n2 - u1
	if u2 < uMin {
		uMin = u2
	}
	meanU := n1 * n2 / 2
	stdU := math.Sqrt(n1 * n2 * (n1 + n2 + 1) / 12)
	if stdU == 0 {
		return uMin, 1
	}
	z := (uMin - meanU) / stdU
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	p = 2 * norm.CDF(-math.Abs(z))
	return uMin, clampProbability(p)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}
