package detection

import (
	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// TypeActive is the single synthetic zone type emitted by Combined.
const TypeActive = "active"

const (
	LogicAND = "AND"
	LogicOR  = "OR"
)

// Condition is one boolean predicate over the series. Predicate is the
// opaque callable the condition actually evaluates; Rule, when non-nil, is
// the serializable echo of the same condition (e.g.
// {"column":"rsi","op":">","value":70}) used for the detection_rules echo
// and for cache-key hashing. A condition with Rule == nil is evaluable but
// not cacheable nor serializable — see zone/pipeline's cache policy.
type Condition struct {
	Name      string
	Predicate func(data *series.Frame) ([]bool, error)
	Rule      map[string]any
}

// Combined ANDs or ORs an ordered list of boolean conditions; contiguous
// true-runs become zones of the single synthetic type TypeActive. Rules:
// "conditions" ([]Condition, required, non-empty), "logic" (string,
// "AND"|"OR", default "AND").
type Combined struct{}

func (Combined) Name() string { return "combined" }

func (s Combined) Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	conditions, ok := cfg.Rules["conditions"].([]Condition)
	if !ok || len(conditions) == 0 {
		return nil, zerr.New(zerr.ConfigError, "combined strategy requires a non-empty \"conditions\" rule")
	}
	logic, _ := cfg.Rules["logic"].(string)
	if logic == "" {
		logic = LogicAND
	}
	if logic != LogicAND && logic != LogicOR {
		return nil, zerr.Newf(zerr.ConfigError, "logic must be AND or OR").WithField("logic")
	}

	n := data.Len()
	masks := make([][]bool, len(conditions))
	for i, c := range conditions {
		if c.Predicate == nil {
			return nil, zerr.Newf(zerr.ConfigError, "condition missing predicate").WithField(c.Name)
		}
		m, err := c.Predicate(data)
		if err != nil {
			return nil, zerr.Wrap(err, zerr.DataError, "condition predicate failed").WithField(c.Name)
		}
		if len(m) != n {
			return nil, zerr.Newf(zerr.DataError, "condition predicate returned %d values, expected %d", len(m), n).WithField(c.Name)
		}
		masks[i] = m
	}

	combined := make([]bool, n)
	for i := 0; i < n; i++ {
		switch logic {
		case LogicAND:
			v := true
			for _, m := range masks {
				v = v && m[i]
			}
			combined[i] = v
		case LogicOR:
			v := false
			for _, m := range masks {
				v = v || m[i]
			}
			combined[i] = v
		}
	}

	labels := make([]string, n)
	for i, v := range combined {
		if v {
			labels[i] = TypeActive
		} else {
			labels[i] = "inactive"
		}
	}

	rulesEcho := make([]map[string]any, 0, len(conditions))
	for _, c := range conditions {
		if c.Rule != nil {
			rulesEcho = append(rulesEcho, c.Rule)
		}
	}

	ctxFor := func(label string) zone.Context {
		return zone.Context{
			"detection_strategy":  s.Name(),
			"detection_indicator": "combined",
			"signal_line":         nil,
			"logic":               logic,
			"num_conditions":      len(conditions),
			"detection_rules":     rulesEcho,
		}
	}

	zones := runsToZones(data, labels, minDurationOrDefault(cfg), ctxFor)
	zones = filterZoneTypes(zones, []string{TypeActive})
	return filterZoneTypes(zones, cfg.ZoneTypes), nil
}
