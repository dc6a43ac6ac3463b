// Package analysis implements the analytical strategy registry (C3): five
// families — swing, shape, divergence, volatility, volume — each a
// universal algorithm parameterized only by the column name(s) it is told
// to read. No strategy here branches on a specific indicator name.
package analysis

import (
	"sync"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone/analysis/swing"
)

// Strategy is the common shape every analytical strategy satisfies: given a
// zone slice and explicit parameters (column names, thresholds), it returns
// a concrete metrics record. The record's static type is not part of the
// interface — callers type-assert by the registry name they invoked.
type Strategy interface {
	Name() string
	Calculate(slice *series.Frame, params map[string]any) (any, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Strategy{}
)

// Register adds a strategy to the registry. Intended for package init().
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
		return nil, zerr.Newf(zerr.ConfigError, "unknown analytical strategy").WithField(name)
	}
	return s, nil
}

func init() {
	Register(swing.ZigZagStrategy{})
	Register(swing.PeakStrategy{})
	Register(swing.PivotStrategy{})
	Register(shapeStrategy{})
	Register(divergenceStrategy{})
	Register(volatilityStrategy{})
	Register(volumeStrategy{})
}

func stringParam(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
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

func boolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
