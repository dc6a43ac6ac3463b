// Package detection implements the pluggable zone detection strategies
// (C2): a registry mapping a strategy name to an implementation that turns
// a bar series plus opaque rules into an ordered, non-overlapping sequence
// of zones, stamping indicator_context on each one.
package detection

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// Rules is the opaque, strategy-interpreted configuration mapping. The
// registry and the pipeline never look inside it; only the named strategy
// does.
type Rules map[string]any

// Config holds the fields every strategy shares, plus the opaque Rules only
// the named strategy interprets.
type Config struct {
	StrategyName string
	MinDuration  int
	ZoneTypes    []string // optional filter; nil/empty means no filter
	Rules        Rules
}

// Strategy is a pluggable detection rule.
type Strategy interface {
	// Name returns this strategy's registry name, echoed into every
	// zone's indicator_context.detection_strategy.
	Name() string
	// Detect scans data under cfg and returns ordered, non-overlapping
	// zones.
	Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Strategy{}
)

// Register adds a strategy to the registry. Intended to be called from
// package init() only; the registry is treated as read-only after startup.
func Register(s Strategy) {
	mu.Lock()
	defer mu.Unlock()
	registry[s.Name()] = s
}

// Get looks up a strategy by registry name.
func Get(name string) (Strategy, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, zerr.Newf(zerr.ConfigError, "unknown detection strategy").WithField(name)
	}
	return s, nil
}

// Names returns the registered strategy names, for diagnostics.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

func init() {
	Register(&ZeroCrossing{})
	Register(&Threshold{})
	Register(&LineCrossing{})
	Register(&Preloaded{})
	Register(&Combined{})
}

// ruleString extracts a required string rule, raising ConfigError if absent
// or the wrong type.
func ruleString(r Rules, key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", zerr.Newf(zerr.ConfigError, "missing required rule key").WithField(key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", zerr.Newf(zerr.ConfigError, "rule must be a non-empty string").WithField(key)
	}
	return s, nil
}

// ruleFloat extracts a required float64 rule.
func ruleFloat(r Rules, key string) (float64, error) {
	v, ok := r[key]
	if !ok {
		return 0, zerr.Newf(zerr.ConfigError, "missing required rule key").WithField(key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, zerr.Newf(zerr.ConfigError, "rule must be numeric").WithField(key)
	}
}

// ruleIntOrDefault extracts an optional int rule.
func ruleIntOrDefault(r Rules, key string, def int) int {
	v, ok := r[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func filterZoneTypes(zones []*zone.Zone, allowed []string) []*zone.Zone {
	if len(allowed) == 0 {
		return zones
	}
	allow := map[string]bool{}
	for _, t := range allowed {
		allow[t] = true
	}
	out := make([]*zone.Zone, 0, len(zones))
	for _, z := range zones {
		if allow[z.Type] {
			out = append(out, z)
		}
	}
	return out
}

// runsToZones groups contiguous bars sharing the same classification label
// into zones, filtering by minDuration, and stamps each zone's id/time/data
// from the parent frame. ctxFor receives the label and returns the
// indicator_context for zones of that label.
func runsToZones(data *series.Frame, labels []string, minDuration int, ctxFor func(label string) zone.Context) []*zone.Zone {
	var zones []*zone.Zone
	n := len(labels)
	if n == 0 {
		return zones
	}
	start := 0
	for i := 1; i <= n; i++ {
		if i == n || labels[i] != labels[start] {
			end := i - 1
			duration := end - start + 1
			if duration >= minDuration {
				label := labels[start]
				z := zone.New(
					uuid.NewString(),
					label,
					start, end,
					data.Time[start], data.Time[end],
					data.Slice(start, end),
					ctxFor(label),
				)
				zones = append(zones, z)
			}
			start = i
		}
	}
	return zones
}

func minDurationOrDefault(cfg Config) int {
	if cfg.MinDuration <= 0 {
		return 1
	}
	return cfg.MinDuration
}
