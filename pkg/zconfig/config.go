// Package zconfig holds the small set of flat defaults the zone analysis
// core reads at startup — cache settings (location, TTL, size) and
// statistics defaults (alpha, cluster count, minimum zone counts).
package zconfig

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// CacheConfig controls the two-tier result cache (zone/pipeline).
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Directory  string        `yaml:"directory"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// StatsConfig controls default hypothesis-test and aggregation parameters.
type StatsConfig struct {
	Alpha             float64 `yaml:"alpha"`
	DefaultNClusters  int     `yaml:"default_n_clusters"`
	MinZonesForSeq    int     `yaml:"min_zones_for_sequence"`
	MinZonesForReg    int     `yaml:"min_zones_for_regression"`
	MinZonesForWalkFd int     `yaml:"min_zones_for_walkforward"`
}

// Config is the top-level configuration for the zone analysis core.
type Config struct {
	Cache CacheConfig `yaml:"cache"`
	Stats StatsConfig `yaml:"stats"`
}

// Default returns the built-in defaults, matching spec.md's boundary
// behaviors (e.g. <3 zones => no sequence analysis).
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Enabled:    true,
			Directory:  os.TempDir() + "/bquant-zonecore-cache",
			TTL:        24 * time.Hour,
			MaxEntries: 500,
		},
		Stats: StatsConfig{
			Alpha:             0.05,
			DefaultNClusters:  3,
			MinZonesForSeq:    3,
			MinZonesForReg:    10,
			MinZonesForWalkFd: 20,
		},
	}
}

// Load reads a YAML config file, falling back to Default() for any field
// the file leaves unset by starting from the default and unmarshaling
// over it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
