package detection

import (
	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// LineCrossing emits bull zones where line1_col > line2_col and bear
// elsewhere. The strategy — not the pipeline — decides which line is
// primary: line1 is always detection_indicator, line2 is always
// signal_line. Rules: line1_col, line2_col (both required strings).
type LineCrossing struct{}

func (LineCrossing) Name() string { return "line_crossing" }

func (s LineCrossing) Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	line1, err := ruleString(cfg.Rules, "line1_col")
	if err != nil {
		return nil, err
	}
	line2, err := ruleString(cfg.Rules, "line2_col")
	if err != nil {
		return nil, err
	}
	if !data.HasColumn(line1) {
		return nil, zerr.Newf(zerr.DataError, "line1_col not found in data").WithField(line1)
	}
	if !data.HasColumn(line2) {
		return nil, zerr.Newf(zerr.DataError, "line2_col not found in data").WithField(line2)
	}

	v1, v2 := data.Column(line1), data.Column(line2)
	labels := make([]string, len(v1))
	for i := range v1 {
		if v1[i] > v2[i] {
			labels[i] = TypeBull
		} else {
			labels[i] = TypeBear
		}
	}

	ctxFor := func(label string) zone.Context {
		return zone.Context{
			"detection_strategy":  s.Name(),
			"detection_indicator": line1,
			"signal_line":         line2,
		}
	}

	zones := runsToZones(data, labels, minDurationOrDefault(cfg), ctxFor)
	return filterZoneTypes(zones, cfg.ZoneTypes), nil
}
