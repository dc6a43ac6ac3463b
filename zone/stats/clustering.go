package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kogriv/bquant-sub003/zone"
)

var errNotEnoughSamples = errors.New("not enough samples for the requested cluster count")

// ClusterResult is the k-means output of spec §4.5 "Clustering": a label
// per zone, per-cluster sizes, centroids in original feature units, and
// feature importance measured as inter-cluster centroid variance.
type ClusterResult struct {
	FeatureNames      []string
	Labels            []int
	Centroids         [][]float64
	ClusterSizes      []int
	FeatureImportance map[string]float64
	Iterations        int
}

// ClusteringFeatureNames returns the standardized feature subset: duration,
// price_return, and whichever of hist_amplitude, hist_slope and
// correlation_price_hist are present on at least one zone. Shape and swing
// metrics are not included.
func ClusteringFeatureNames(zones []*zone.Zone) []string {
	names := []string{"duration", "price_return"}
	candidates := []string{"hist_amplitude", "hist_slope", "correlation_price_hist"}
	for _, c := range candidates {
		for _, z := range zones {
			if _, ok := floatFeatureOK(z, c); ok {
				names = append(names, c)
				break
			}
		}
	}
	return names
}

// RunClustering standardizes ClusteringFeatureNames and runs k-means when
// there are at least n_clusters zones.
func RunClustering(zones []*zone.Zone, k int) (*ClusterResult, error) {
	if k < 1 || len(zones) < k {
		return nil, errNotEnoughSamples
	}
	names := ClusteringFeatureNames(zones)
	data := make([][]float64, len(zones))
	for i, z := range zones {
		row := make([]float64, len(names))
		for j, name := range names {
			if name == "duration" {
				row[j] = float64(z.Duration())
			} else {
				row[j] = floatFeature(z, name)
			}
		}
		data[i] = row
	}
	standardized, means, stds := standardizeColumns(data)
	km, err := KMeans(standardized, k, 100)
	if err != nil {
		return nil, err
	}
	km.FeatureNames = names
	for c := range km.Centroids {
		for j := range km.Centroids[c] {
			if stds[j] != 0 {
				km.Centroids[c][j] = km.Centroids[c][j]*stds[j] + means[j]
			} else {
				km.Centroids[c][j] = means[j]
			}
		}
	}
	km.FeatureImportance = centroidVariance(km.Centroids, names)
	return km, nil
}

func standardizeColumns(data [][]float64) (out [][]float64, means, stds []float64) {
	n := len(data)
	d := len(data[0])
	means = make([]float64, d)
	stds = make([]float64, d)
	for j := 0; j < d; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = data[i][j]
		}
		means[j] = stat.Mean(col, nil)
		stds[j] = stat.StdDev(col, nil)
	}
	out = make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			if stds[j] != 0 {
				row[j] = (data[i][j] - means[j]) / stds[j]
			}
		}
		out[i] = row
	}
	return out, means, stds
}

func centroidVariance(centroids [][]float64, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	if len(centroids) == 0 {
		return out
	}
	for j, name := range names {
		col := make([]float64, len(centroids))
		for c := range centroids {
			col[c] = centroids[c][j]
		}
		out[name] = stat.Variance(col, nil)
	}
	return out
}

// KMeans runs Lloyd's algorithm with k-means++ seeding (deterministic,
// farthest-point variant rather than random, so runs are reproducible
// without needing a seeded RNG) over data (n samples x d features). No
// clustering library appears anywhere in the example corpus, so this is
// hand-rolled on gonum/floats distance primitives over plain [][]float64 rows.
func KMeans(data [][]float64, k, maxIter int) (*ClusterResult, error) {
	n := len(data)
	if n == 0 || k < 1 || n < k {
		return nil, errNotEnoughSamples
	}
	d := len(data[0])
	centroids := seedCentroids(data, k)
	labels := make([]int, n)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range data {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				dist := floats.Distance(row, centroid, 2)
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if labels[i] != best {
				changed = true
			}
			labels[i] = best
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := 0; c < k; c++ {
			sums[c] = make([]float64, d)
		}
		for i, row := range data {
			c := labels[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
		if !changed && iter > 0 {
			break
		}
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	return &ClusterResult{Labels: labels, Centroids: centroids, ClusterSizes: sizes}, nil
}

// seedCentroids picks k initial centroids via a deterministic farthest-point
// heuristic: start from the first sample, then repeatedly take the point
// farthest from any chosen centroid.
func seedCentroids(data [][]float64, k int) [][]float64 {
	n := len(data)
	chosen := make([]int, 0, k)
	chosen = append(chosen, 0)
	for len(chosen) < k {
		bestIdx, bestDist := -1, -1.0
		for i := 0; i < n; i++ {
			minDist := math.Inf(1)
			for _, c := range chosen {
				dist := floats.Distance(data[i], data[c], 2)
				if dist < minDist {
					minDist = dist
				}
			}
			if minDist > bestDist {
				bestDist = minDist
				bestIdx = i
			}
		}
		chosen = append(chosen, bestIdx)
	}
	centroids := make([][]float64, k)
	for i, idx := range chosen {
		centroids[i] = append([]float64(nil), data[idx]...)
	}
	return centroids
}

// KMeans1D clusters a single-dimensional slice of values, returning
// per-point labels and centroid values in the original scale. Used by the
// support_resistance hypothesis test to detect price levels.
type KMeans1DResult struct {
	Labels    []int
	Centroids []float64
}

func KMeans1D(values []float64, k, maxIter int) (*KMeans1DResult, error) {
	data := make([][]float64, len(values))
	for i, v := range values {
		data[i] = []float64{v}
	}
	res, err := KMeans(data, k, maxIter)
	if err != nil {
		return nil, err
	}
	centroids := make([]float64, len(res.Centroids))
	for i, c := range res.Centroids {
		centroids[i] = c[0]
	}
	return &KMeans1DResult{Labels: res.Labels, Centroids: centroids}, nil
}
