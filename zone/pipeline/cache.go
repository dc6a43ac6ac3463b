// Package pipeline implements the fluent builder and execution engine (C6):
// it wires indicator computation, zone detection, feature extraction, and
// aggregation into one build() call, with optional two-tier result caching
// keyed by a content-stable hash of the input data and configuration.
package pipeline

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/pkg/zlog"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone/result"
)

// CacheVersion is bumped on breaking changes to the cached result's
// contract; entries from a prior version never hit.
const CacheVersion = "v1"

// Cache is the storage surface build() uses for result caching. It is kept
// narrow so a caller can swap in a different backend without touching the
// builder.
type Cache interface {
	Get(key string) (*result.ZoneAnalysisResult, bool)
	Set(key string, res *result.ZoneAnalysisResult, ttl time.Duration) error
}

// diskEntry is the on-disk gob envelope: the result plus its creation time
// and TTL. ConfigEcho is part of the envelope, but Set receives no
// configuration, so entries are always written with an empty echo.
type diskEntry struct {
	Result     *result.ZoneAnalysisResult
	CreatedAt  time.Time
	TTL        time.Duration
	ConfigEcho map[string]any
}

// TieredCache is the two-tier cache of SPEC_FULL.md §4.6: an in-memory
// go-cache layer (fast hits within a process) backed by an on-disk gob
// tier (survives process restarts), following the teacher's OrderCache/
// TradeCache use of the same library in internal/orders/order_service.go.
type TieredCache struct {
	mem    *gocache.Cache
	dir    string
	logger zlog.Logger
}

// NewTieredCache builds a TieredCache rooted at dir with the given default
// in-memory TTL. dir is created lazily on first Set.
func NewTieredCache(dir string, defaultTTL time.Duration, logger zlog.Logger) *TieredCache {
	if logger == nil {
		logger = zlog.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &TieredCache{
		mem:    gocache.New(defaultTTL, 2*defaultTTL),
		dir:    dir,
		logger: logger,
	}
}

// Get looks up key in the memory tier, falling back to the disk tier on a
// miss. A disk hit is also populated back into the memory tier. Per
// spec.md §4.6, a version mismatch or TTL expiry is an ordinary miss, never
// an error.
func (c *TieredCache) Get(key string) (*result.ZoneAnalysisResult, bool) {
	if v, ok := c.mem.Get(key); ok {
		if r, ok := v.(*result.ZoneAnalysisResult); ok {
			return r, true
		}
	}
	entry, ok := c.readDisk(key)
	if !ok {
		return nil, false
	}
	if entry.TTL > 0 && time.Since(entry.CreatedAt) > entry.TTL {
		return nil, false
	}
	c.mem.Set(key, entry.Result, entry.TTL)
	return entry.Result, true
}

// Set writes to both tiers. Disk I/O failure is a CacheError per spec.md
// §7 but never aborts the run — the caller logs and bypasses.
func (c *TieredCache) Set(key string, res *result.ZoneAnalysisResult, ttl time.Duration) error {
	c.mem.Set(key, res, ttl)
	entry := diskEntry{Result: res, CreatedAt: time.Now(), TTL: ttl}
	return c.writeDisk(key, entry)
}

func (c *TieredCache) diskPath(key string) string {
	return filepath.Join(c.dir, key+".gob")
}

func (c *TieredCache) writeDisk(key string, entry diskEntry) error {
	if c.dir == "" {
		return nil
	}
	path := c.diskPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.logger.Warn("cache disk tier mkdir failed, bypassing disk cache")
		return zerr.Wrap(err, zerr.CacheError, "create cache directory")
	}
	f, err := os.Create(path)
	if err != nil {
		c.logger.Warn("cache disk tier create failed, bypassing disk cache")
		return zerr.Wrap(err, zerr.CacheError, "create cache file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(entry); err != nil {
		c.logger.Warn("cache disk tier encode failed, bypassing disk cache")
		return zerr.Wrap(err, zerr.CacheError, "encode cache entry")
	}
	return nil
}

func (c *TieredCache) readDisk(key string) (diskEntry, bool) {
	if c.dir == "" {
		return diskEntry{}, false
	}
	f, err := os.Open(c.diskPath(key))
	if err != nil {
		return diskEntry{}, false
	}
	defer f.Close()
	var entry diskEntry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		c.logger.Debug("cache disk tier decode failed, treating as miss")
		return diskEntry{}, false
	}
	return entry, true
}

// cacheKey assembles the spec.md §6 layout
// "zone_analysis/<CACHE_VERSION>/<data_hash>/<config_hash>", flattened to a
// filesystem/map-safe string.
func cacheKey(dataHash, configHash string) string {
	return fmt.Sprintf("zone_analysis_%s_%s_%s", CacheVersion, dataHash, configHash)
}

// hashFrame computes a content-stable hash of a Frame. Per the resolved
// open question (SPEC_FULL.md §11.2 / spec.md §8 scenario 6), column order
// is NOT significant: columns are sorted by name before hashing, so two
// frames with identical values under different column orderings hash
// identically. NaNs hash by their bit pattern so "same NaN payload" frames
// agree without relying on NaN equality.
func hashFrame(f *series.Frame) string {
	h := sha256.New()
	if f == nil {
		return hex.EncodeToString(h.Sum(nil))
	}
	for _, t := range f.Time {
		h.Write([]byte(t.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{0})
	}
	for _, name := range f.ColumnNames() {
		h.Write([]byte(name))
		h.Write([]byte{0})
		for _, v := range f.Columns[name] {
			h.Write([]byte(strconv.FormatUint(math.Float64bits(v), 16)))
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashConfig hashes the JSON encoding of a sanitized, serializable
// configuration echo. encoding/json sorts map keys during Marshal, so the
// result is deterministic regardless of map iteration order.
func hashConfig(echo map[string]any) (string, error) {
	data, err := json.Marshal(echo)
	if err != nil {
		return "", zerr.Wrap(err, zerr.CacheError, "configuration is not serializable")
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
