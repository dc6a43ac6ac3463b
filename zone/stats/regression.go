package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kogriv/bquant-sub003/zone"
)

var (
	errTooFewObservations = errors.New("too few observations for regression")
	errSingularDesign     = errors.New("singular design matrix")
)

// solveOLS solves the least-squares system X*beta = y via gonum/mat's QR
// solve, storing the p-length coefficient vector into beta.
func solveOLS(X *mat.Dense, y *mat.VecDense, beta *mat.VecDense) error {
	_, cols := X.Dims()
	*beta = *mat.NewVecDense(cols, nil)
	var yDense mat.Dense
	yDense.CloneFrom(y)
	var betaDense mat.Dense
	if err := betaDense.Solve(X, &yDense); err != nil {
		return errSingularDesign
	}
	for i := 0; i < cols; i++ {
		beta.SetVec(i, betaDense.At(i, 0))
	}
	return nil
}

// TargetZoneDuration and TargetPriceReturn name the two default OLS targets
// of spec §4.5.
const (
	TargetZoneDuration = "predict_zone_duration"
	TargetPriceReturn  = "predict_price_return"
)

// Coefficient is one predictor's estimate with its standard error, t-stat,
// and p-value.
type Coefficient struct {
	Name       string
	Estimate   float64
	StdErr     float64
	TStatistic float64
	PValue     float64
}

// RegressionResult is the full OLS diagnostic record of spec §4.5.
type RegressionResult struct {
	Target       string
	Predictors   []string
	Coefficients []Coefficient

	RSquared    float64
	AdjRSquared float64
	FStatistic  float64
	FPValue     float64
	AIC         float64
	BIC         float64
	DurbinWatson float64
	ConditionNumber float64
	VIF          map[string]float64

	Predictions []float64
	Residuals   []float64

	Skipped    bool
	SkipReason string
}

// regressionRow holds one zone's extracted predictor values plus its target.
type regressionRow struct {
	predictors []float64
	target     float64
}

// defaultPredictorKeys returns the feature keys used as OLS predictors for a
// target: hist_amplitude, hist_slope and correlation_price_hist for
// duration; those plus duration itself for price_return.
func defaultPredictorKeys(target string) []string {
	base := []string{"hist_amplitude", "hist_slope", "correlation_price_hist"}
	if target == TargetPriceReturn {
		return append([]string{"duration"}, base...)
	}
	return base
}

// RunRegression fits an OLS model predicting target from its default
// predictor set, with R²/adjusted-R², F-statistic, AIC/BIC, Durbin-Watson,
// condition number, and per-predictor VIF.
func RunRegression(zones []*zone.Zone, target string) RegressionResult {
	if len(zones) <= 10 {
		return RegressionResult{Target: target, Skipped: true, SkipReason: "requires more than 10 zones"}
	}
	predictorKeys := defaultPredictorKeys(target)

	var rows []regressionRow
	for _, z := range zones {
		row := regressionRow{predictors: make([]float64, len(predictorKeys))}
		complete := true
		for i, key := range predictorKeys {
			var v float64
			var ok bool
			if key == "duration" {
				v, ok = float64(z.Duration()), true
			} else {
				v, ok = floatFeatureOK(z, key)
			}
			if !ok {
				complete = false
				break
			}
			row.predictors[i] = v
		}
		if !complete {
			continue
		}
		targetVal, ok := zoneTargetValue(z, target)
		if !ok {
			continue
		}
		row.target = targetVal
		rows = append(rows, row)
	}

	n := len(rows)
	p := len(predictorKeys) + 1 // + intercept
	if n <= p {
		return RegressionResult{Target: target, Skipped: true, SkipReason: "insufficient complete observations after dropping missing predictors"}
	}

	xData := make([]float64, n*p)
	yData := make([]float64, n)
	for i, row := range rows {
		xData[i*p+0] = 1
		for j, v := range row.predictors {
			xData[i*p+1+j] = v
		}
		yData[i] = row.target
	}
	X := mat.NewDense(n, p, xData)
	Y := mat.NewVecDense(n, yData)

	var beta mat.VecDense
	if err := solveOLS(X, Y, &beta); err != nil {
		return RegressionResult{Target: target, Skipped: true, SkipReason: err.Error()}
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	residuals := make([]float64, n)
	var sse, meanY, sst float64
	for i := 0; i < n; i++ {
		meanY += yData[i]
	}
	meanY /= float64(n)
	for i := 0; i < n; i++ {
		residuals[i] = yData[i] - fitted.AtVec(i)
		sse += residuals[i] * residuals[i]
		sst += (yData[i] - meanY) * (yData[i] - meanY)
	}

	r2 := 1.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	dfResid := float64(n - p)
	dfModel := float64(p - 1)
	adjR2 := 1 - (1-r2)*float64(n-1)/dfResid

	var fStat, fP float64
	if sst > 0 && dfModel > 0 {
		msModel := (sst - sse) / dfModel
		msResid := sse / dfResid
		if msResid > 0 {
			fStat = msModel / msResid
			fDist := distuv.F{D1: dfModel, D2: dfResid}
			fP = 1 - fDist.CDF(fStat)
		}
	}

	sigma2 := sse / dfResid
	aic := float64(n)*math.Log(sigma2) + 2*float64(p)
	bic := float64(n)*math.Log(sigma2) + float64(p)*math.Log(float64(n))

	dw := durbinWatson(residuals)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	coeffs := make([]Coefficient, p)
	names := append([]string{"intercept"}, predictorKeys...)
	if err := xtxInv.Inverse(&xtx); err == nil {
		for i := 0; i < p; i++ {
			se := math.Sqrt(sigma2 * xtxInv.At(i, i))
			est := beta.AtVec(i)
			var t float64
			if se > 0 {
				t = est / se
			}
			dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dfResid}
			pv := 2 * (1 - dist.CDF(math.Abs(t)))
			coeffs[i] = Coefficient{Name: names[i], Estimate: est, StdErr: se, TStatistic: t, PValue: clampProbability(pv)}
		}
	} else {
		for i := 0; i < p; i++ {
			coeffs[i] = Coefficient{Name: names[i], Estimate: beta.AtVec(i)}
		}
	}

	cond := conditionNumber(X)
	vif := variableInflationFactors(rows, predictorKeys)

	return RegressionResult{
		Target:          target,
		Predictors:      predictorKeys,
		Coefficients:    coeffs,
		RSquared:        r2,
		AdjRSquared:     adjR2,
		FStatistic:      fStat,
		FPValue:         clampProbability(fP),
		AIC:             aic,
		BIC:             bic,
		DurbinWatson:    dw,
		ConditionNumber: cond,
		VIF:             vif,
		Predictions:     vecToSlice(&fitted),
		Residuals:       residuals,
	}
}

func zoneTargetValue(z *zone.Zone, target string) (float64, bool) {
	switch target {
	case TargetZoneDuration:
		return float64(z.Duration()), true
	case TargetPriceReturn:
		return floatFeatureOK(z, "price_return")
	default:
		return floatFeatureOK(z, target)
	}
}

func durbinWatson(residuals []float64) float64 {
	if len(residuals) < 2 {
		return 0
	}
	var num, den float64
	for i := 1; i < len(residuals); i++ {
		d := residuals[i] - residuals[i-1]
		num += d * d
	}
	for _, r := range residuals {
		den += r * r
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// conditionNumber is the ratio of largest to smallest singular value of X.
func conditionNumber(X *mat.Dense) float64 {
	var svd mat.SVD
	if !svd.Factorize(X, mat.SVDNone) {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[len(values)-1] == 0 {
		return math.Inf(1)
	}
	return values[0] / values[len(values)-1]
}

// variableInflationFactors computes VIF per predictor via the auxiliary
// regression R² of each predictor on all the others.
func variableInflationFactors(rows []regressionRow, keys []string) map[string]float64 {
	vif := make(map[string]float64, len(keys))
	n := len(rows)
	k := len(keys)
	if k < 2 || n <= k {
		for _, name := range keys {
			vif[name] = 1
		}
		return vif
	}
	for target := 0; target < k; target++ {
		others := make([]int, 0, k-1)
		for j := 0; j < k; j++ {
			if j != target {
				others = append(others, j)
			}
		}
		p := len(others) + 1
		xData := make([]float64, n*p)
		yData := make([]float64, n)
		for i, row := range rows {
			xData[i*p+0] = 1
			for c, j := range others {
				xData[i*p+1+c] = row.predictors[j]
			}
			yData[i] = row.predictors[target]
		}
		X := mat.NewDense(n, p, xData)
		Y := mat.NewVecDense(n, yData)
		var beta mat.VecDense
		if err := solveOLS(X, Y, &beta); err != nil {
			vif[keys[target]] = 1
			continue
		}
		var fitted mat.VecDense
		fitted.MulVec(X, &beta)
		var sse, meanY, sst float64
		for i := 0; i < n; i++ {
			meanY += yData[i]
		}
		meanY /= float64(n)
		for i := 0; i < n; i++ {
			resid := yData[i] - fitted.AtVec(i)
			sse += resid * resid
			sst += (yData[i] - meanY) * (yData[i] - meanY)
		}
		r2 := 0.0
		if sst > 0 {
			r2 = 1 - sse/sst
		}
		if r2 >= 0.999 {
			vif[keys[target]] = 1000
			continue
		}
		vif[keys[target]] = 1 / (1 - r2)
	}
	return vif
}

func vecToSlice(v *mat.VecDense) []float64 {
	n := v.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}

// ScoreOnZones applies an already-fit regression's coefficients to a fresh
// zone set and returns the out-of-sample R², used by the out-of-sample and
// walk-forward validation routines to avoid refitting.
func ScoreOnZones(result RegressionResult, zones []*zone.Zone) (r2 float64, n int, ok bool) {
	if result.Skipped || len(result.Coefficients) == 0 {
		return 0, 0, false
	}
	var actual, predicted []float64
	for _, z := range zones {
		row := make([]float64, len(result.Predictors))
		complete := true
		for i, key := range result.Predictors {
			var v float64
			var present bool
			if key == "duration" {
				v, present = float64(z.Duration()), true
			} else {
				v, present = floatFeatureOK(z, key)
			}
			if !present {
				complete = false
				break
			}
			row[i] = v
		}
		if !complete {
			continue
		}
		target, present := zoneTargetValue(z, result.Target)
		if !present {
			continue
		}
		pred := result.Coefficients[0].Estimate
		for i, v := range row {
			pred += result.Coefficients[i+1].Estimate * v
		}
		actual = append(actual, target)
		predicted = append(predicted, pred)
	}
	if len(actual) < 2 {
		return 0, len(actual), false
	}
	var meanY, sse, sst float64
	for _, v := range actual {
		meanY += v
	}
	meanY /= float64(len(actual))
	for i := range actual {
		sse += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		sst += (actual[i] - meanY) * (actual[i] - meanY)
	}
	if sst == 0 {
		return 1, len(actual), true
	}
	return 1 - sse/sst, len(actual), true
}
