package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/kogriv/bquant-sub003/zone/analysis/swing"
	"github.com/kogriv/bquant-sub003/zone/detection"
	"github.com/kogriv/bquant-sub003/zone/features"
	"github.com/kogriv/bquant-sub003/zone/indicator"
	"github.com/kogriv/bquant-sub003/zone/result"
	"github.com/kogriv/bquant-sub003/zone/stats"
)

// sensitivityGrid is the min_duration values swept for the parameter
// sensitivity validation hook.
var sensitivityGrid = []int{1, 2, 3, 5, 8}

// monteCarloReruns is the number of seeded shuffles of the zones' observed
// price_return values that the Monte Carlo validation hook refits; zones are
// not re-detected, and no synthetic price path or random walk is generated.
const monteCarloReruns = 10

// Build executes the configured pipeline over data, per spec.md §4.6's
// seven-step execution order: optional indicator computation, optional
// global swing context, detection, feature extraction, aggregation,
// optional validation, and result assembly. A successful Build always
// returns a fully-formed result; ConfigError/DataError abort early with no
// partial result.
func (b *Builder) Build(ctx context.Context, data *series.Frame) (*result.ZoneAnalysisResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if b.detectionStrategy == "" {
		return nil, zerr.New(zerr.ConfigError, "no detection strategy configured; call DetectZones first")
	}

	cacheable, configEcho, bypassReason := b.cacheability()
	useCache := b.cacheEnabled && cacheable

	working := data
	var err error
	if b.indicatorReq != nil {
		working, err = b.applyIndicator(ctx, working)
		if err != nil {
			return nil, err
		}
	}

	var dataHash, configHash, key string
	if useCache {
		dataHash = hashFrame(working)
		configHash, err = hashConfig(configEcho)
		if err != nil {
			b.logger.Warn("configuration not cacheable, bypassing cache", zap.Error(err))
			useCache = false
			bypassReason = "configuration is not JSON-serializable: " + err.Error()
		} else {
			key = cacheKey(dataHash, configHash)
			cache := b.cacheOrDefault()
			if cached, ok := cache.Get(key); ok {
				hit := *cached
				hit.Metadata.CacheHit = true
				return &hit, nil
			}
		}
	}

	res, err := b.run(working)
	if err != nil {
		return nil, err
	}
	res.Metadata.CacheKeyPolicy = "column_order_insensitive"
	if !b.cacheEnabled {
		res.Metadata.CacheBypassedReason = ""
	} else if !cacheable {
		res.Metadata.CacheBypassedReason = bypassReason
		b.logger.Info("cache bypassed for this run", zap.String("reason", bypassReason))
	}

	if useCache {
		cache := b.cacheOrDefault()
		ttl := b.cacheTTL
		if err := cache.Set(key, res, ttl); err != nil {
			b.logger.Warn("cache write failed, result returned uncached", zap.Error(err))
		}
	}
	return res, nil
}

// run performs steps 2-7 of the execution order over already-indicator-
// joined data: it never touches the cache.
func (b *Builder) run(data *series.Frame) (*result.ZoneAnalysisResult, error) {
	orchestrator := features.NewOrchestrator(b.logger)

	if b.featureOpts.SwingScope == features.SwingScopeGlobal && b.featureOpts.SwingStrategy != "" {
		points, err := globalSwingPoints(data, b.featureOpts.SwingStrategy, b.featureOpts.SwingParams)
		if err != nil {
			b.logger.Debug("global swing context computation failed, falling back to per-zone", zap.Error(err))
		} else {
			orchestrator.GlobalSwing = swing.NewContext(points, b.featureOpts.SwingStrategy, b.featureOpts.SwingParams)
		}
	}

	zones, err := b.detect(data)
	if err != nil {
		return nil, err
	}

	b.extractFeatures(orchestrator, zones)

	agg := stats.Run(zones, stats.AggregateOptions{
		Alpha:             b.alpha,
		ClusteringEnabled: b.clusteringEnabled,
		NClusters:         b.nClusters,
		RegressionEnabled: b.regressionEnabled,
	})

	var validation *stats.ValidationSummary
	if b.validationEnabled {
		v := b.runValidation(data, zones)
		validation = &v
	}

	zoneTypes := map[string]int{}
	for _, z := range zones {
		zoneTypes[z.Type]++
	}

	md := result.Metadata{
		AnalysisTimestamp:   time.Now(),
		TotalZones:          len(zones),
		ZoneTypes:           zoneTypes,
		ClusteringPerformed: agg.Clustering != nil,
		RegressionPerformed: len(agg.Regression) > 0,
		ValidationPerformed: validation != nil && !validation.Skipped,
		Symbol:              data.Attrs["symbol"],
		Timeframe:           data.Attrs["timeframe"],
		Source:              data.Attrs["source"],
	}

	return &result.ZoneAnalysisResult{
		Zones:            zones,
		Data:             data,
		Statistics:       agg.Statistics,
		HypothesisTests:  agg.HypothesisTests,
		SequenceAnalysis: agg.Sequence,
		Clustering:       agg.Clustering,
		Regression:       agg.Regression,
		Validation:       validation,
		Metadata:         md,
	}, nil
}

func (b *Builder) detect(data *series.Frame) ([]*zone.Zone, error) {
	strategy, err := detection.Get(b.detectionStrategy)
	if err != nil {
		return nil, err
	}
	cfg := detection.Config{
		StrategyName: b.detectionStrategy,
		MinDuration:  b.minDuration,
		ZoneTypes:    b.zoneTypes,
		Rules:        b.detectionRules,
	}
	return strategy.Detect(data, cfg)
}

// extractFeatures runs the feature-extraction step, sequentially by
// default or via a bounded goroutine fan-out when WithParallelFeatures(true)
// was called. Either way each zone's Features are written exactly once and
// no zone's extraction depends on another's.
func (b *Builder) extractFeatures(o *features.Orchestrator, zones []*zone.Zone) {
	if !b.parallelFeatures || len(zones) < 2 {
		for _, z := range zones {
			o.Extract(z, b.featureOpts)
		}
		return
	}

	workers := len(zones)
	if workers > 8 {
		workers = 8
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, z := range zones {
		z := z
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			o.Extract(z, b.featureOpts)
		}()
	}
	wg.Wait()
}

func (b *Builder) applyIndicator(ctx context.Context, data *series.Frame) (*series.Frame, error) {
	factory := b.indicatorFactory
	if factory == nil {
		factory = indicator.TalibFactory{}
	}
	computed, err := factory.Compute(ctx, b.indicatorReq.Source, b.indicatorReq.Name, b.indicatorReq.Params, data)
	if err != nil {
		return nil, err
	}
	out := data
	for _, name := range computed.ColumnNames() {
		out = out.WithColumn(name, computed.Column(name))
	}
	return out, nil
}

func (b *Builder) cacheOrDefault() Cache {
	if b.cache != nil {
		return b.cache
	}
	b.cache = NewTieredCache("", b.cacheTTL, b.logger)
	return b.cache
}

// globalSwingPoints computes the full-series swing point sequence backing
// swing_scope=global, dispatching on the same strategy names the per-zone
// swing registry uses.
func globalSwingPoints(data *series.Frame, strategyName string, params map[string]any) ([]swing.SwingPoint, error) {
	if err := data.RequireOHLC(); err != nil {
		return nil, err
	}
	switch strategyName {
	case "swing_zigzag":
		legs := intParamOr(params, "legs", 3)
		deviation := floatParamOr(params, "deviation", 1.0)
		return swing.ZigZag(data, legs, deviation), nil
	case "swing_peak":
		prominence := floatParamOr(params, "prominence", 0)
		distance := intParamOr(params, "distance", 1)
		return swing.Peaks(data, prominence, distance), nil
	case "swing_pivot":
		left := intParamOr(params, "left_bars", 2)
		right := intParamOr(params, "right_bars", 2)
		return swing.Pivots(data, left, right), nil
	default:
		return nil, zerr.Newf(zerr.ConfigError, "unknown swing strategy for global scope").WithField(strategyName)
	}
}

func intParamOr(params map[string]any, key string, def int) int {
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

func floatParamOr(params map[string]any, key string, def float64) float64 {
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

// cacheability inspects the configured detection rules and reports whether
// this run's configuration can be hashed at all. The combined strategy may
// carry Go func predicates (detection.Condition.Predicate); when any
// condition lacks a serializable Rule echo, build() transparently disables
// caching for that run and records why in Metadata.CacheBypassedReason,
// per SPEC_FULL.md §11.3.
func (b *Builder) cacheability() (cacheable bool, echo map[string]any, bypassReason string) {
	rules, cacheable := sanitizeRulesForCache(b.detectionStrategy, b.detectionRules)
	echo = map[string]any{
		"indicator":          b.indicatorReq,
		"detection_strategy": b.detectionStrategy,
		"detection_rules":    rules,
		"min_duration":       b.minDuration,
		"zone_types":         b.zoneTypes,
		"features":           b.featureOpts,
		"clustering_enabled": b.clusteringEnabled,
		"n_clusters":         b.nClusters,
		"regression_enabled": b.regressionEnabled,
		"validation_enabled": b.validationEnabled,
		"alpha":              b.alpha,
	}
	if !cacheable {
		bypassReason = "combined detection rules include a non-serializable predicate"
	}
	return cacheable, echo, bypassReason
}

func sanitizeRulesForCache(strategyName string, rules detection.Rules) (map[string]any, bool) {
	if strategyName != "combined" {
		return map[string]any(rules), true
	}
	conditions, ok := rules["conditions"].([]detection.Condition)
	if !ok {
		out := map[string]any{}
		for k, v := range rules {
			out[k] = v
		}
		return out, true
	}
	cacheable := true
	echoes := make([]map[string]any, 0, len(conditions))
	for _, c := range conditions {
		if c.Rule == nil {
			cacheable = false
			continue
		}
		echoes = append(echoes, c.Rule)
	}
	out := map[string]any{}
	for k, v := range rules {
		if k == "conditions" {
			continue
		}
		out[k] = v
	}
	out["conditions"] = echoes
	return out, cacheable
}
