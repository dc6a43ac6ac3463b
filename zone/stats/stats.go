package stats

import (
	"github.com/kogriv/bquant-sub003/zone"
)

// AggregateOptions turns the optional aggregation features of spec §4.5 on
// or off, mirroring the pipeline builder's `analyze(...)` call.
type AggregateOptions struct {
	Alpha             float64
	ClusteringEnabled bool
	NClusters         int
	RegressionEnabled bool
}

// Aggregate is the full C5 output attached to a ZoneAnalysisResult.
type Aggregate struct {
	Statistics      DistributionSummary
	HypothesisTests TestBattery
	Sequence        *SequenceAnalysis
	Clustering      *ClusterResult
	Regression      map[string]RegressionResult
}

// Run executes the full C5 aggregation stage over a completed zone
// population: distribution summary, the seven-test hypothesis battery,
// sequence analysis (when |zones| >= 3), and optionally clustering and
// regression.
func Run(zones []*zone.Zone, opts AggregateOptions) Aggregate {
	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = 0.05
	}
	agg := Aggregate{
		Statistics:      Summarize(zones),
		HypothesisTests: RunBattery(zones, alpha),
		Sequence:        AnalyzeSequence(zones),
	}

	if opts.ClusteringEnabled {
		k := opts.NClusters
		if k <= 0 {
			k = 3
		}
		if cluster, err := RunClustering(zones, k); err == nil {
			agg.Clustering = cluster
		}
	}

	if opts.RegressionEnabled && len(zones) > 10 {
		agg.Regression = map[string]RegressionResult{
			TargetZoneDuration: RunRegression(zones, TargetZoneDuration),
			TargetPriceReturn:  RunRegression(zones, TargetPriceReturn),
		}
	}

	return agg
}
