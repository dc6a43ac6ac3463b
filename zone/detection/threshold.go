package detection

import (
	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// Zone type vocabulary for Threshold.
const (
	TypeOverbought = "overbought"
	TypeOversold   = "oversold"
	TypeNeutral    = "neutral"
)

// Threshold emits overbought/oversold/neutral zones by comparing
// indicator_col against upper/lower thresholds. Rules: indicator_col
// (string), upper_threshold, lower_threshold (upper_threshold >
// lower_threshold required).
type Threshold struct{}

func (Threshold) Name() string { return "threshold" }

func (s Threshold) Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	col, err := ruleString(cfg.Rules, "indicator_col")
	if err != nil {
		return nil, err
	}
	if !data.HasColumn(col) {
		return nil, zerr.Newf(zerr.DataError, "indicator column not found in data").WithField(col)
	}
	upper, err := ruleFloat(cfg.Rules, "upper_threshold")
	if err != nil {
		return nil, err
	}
	lower, err := ruleFloat(cfg.Rules, "lower_threshold")
	if err != nil {
		return nil, err
	}
	if upper <= lower {
		return nil, zerr.Newf(zerr.ConfigError, "upper_threshold must be greater than lower_threshold").WithField("upper_threshold")
	}

	values := data.Column(col)
	labels := make([]string, len(values))
	for i, v := range values {
		switch {
		case v >= upper:
			labels[i] = TypeOverbought
		case v <= lower:
			labels[i] = TypeOversold
		default:
			labels[i] = TypeNeutral
		}
	}

	ctxFor := func(label string) zone.Context {
		return zone.Context{
			"detection_strategy":  s.Name(),
			"detection_indicator": col,
			"signal_line":         nil,
			"thresholds": map[string]float64{
				"upper": upper,
				"lower": lower,
			},
		}
	}

	zones := runsToZones(data, labels, minDurationOrDefault(cfg), ctxFor)
	return filterZoneTypes(zones, cfg.ZoneTypes), nil
}
