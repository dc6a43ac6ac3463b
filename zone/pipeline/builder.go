package pipeline

import (
	"time"

	"github.com/kogriv/bquant-sub003/pkg/zlog"
	"github.com/kogriv/bquant-sub003/zone/detection"
	"github.com/kogriv/bquant-sub003/zone/features"
	"github.com/kogriv/bquant-sub003/zone/indicator"
)

// IndicatorRequest is the opaque echo of a with_indicator(...) call.
type IndicatorRequest struct {
	Source string
	Name   string
	Params map[string]any
}

// Builder is the fluent configuration surface of spec.md §4.6. Every
// method returns the receiver so calls chain; build() is the terminal
// operation. The builder never inspects detection Rules beyond passing
// them through — adding a new detection strategy with new rule keys
// requires zero changes here.
type Builder struct {
	indicatorReq *IndicatorRequest

	detectionStrategy string
	detectionRules    detection.Rules
	minDuration       int
	zoneTypes         []string

	featureOpts      features.Options
	parallelFeatures bool

	clusteringEnabled bool
	nClusters         int
	regressionEnabled bool
	validationEnabled bool
	alpha             float64

	cacheEnabled bool
	cacheTTL     time.Duration

	indicatorFactory indicator.Factory
	cache            Cache
	logger           zlog.Logger
}

// New returns a Builder with the package defaults: no indicator request,
// caching disabled until WithCache(true, ...) is called, sequential
// per-zone feature extraction, alpha=0.05.
func New() *Builder {
	return &Builder{
		minDuration: 1,
		alpha:       0.05,
		nClusters:   3,
		logger:      zlog.NewNop(),
	}
}

// WithLogger overrides the no-op default logger.
func (b *Builder) WithLogger(l zlog.Logger) *Builder {
	if l != nil {
		b.logger = l
	}
	return b
}

// WithIndicatorFactory overrides the default indicator.TalibFactory.
func (b *Builder) WithIndicatorFactory(f indicator.Factory) *Builder {
	b.indicatorFactory = f
	return b
}

// WithIndicator requests computation of an indicator via the external
// indicator collaborator (§6); omit when data already contains the
// indicator column(s).
func (b *Builder) WithIndicator(source, name string, params map[string]any) *Builder {
	b.indicatorReq = &IndicatorRequest{Source: source, Name: name, Params: params}
	return b
}

// DetectZones sets the detection strategy and its opaque rules.
func (b *Builder) DetectZones(strategy string, rules map[string]any) *Builder {
	b.detectionStrategy = strategy
	b.detectionRules = detection.Rules(rules)
	return b
}

// WithMinDuration sets the minimum zone duration in bars (default 1).
func (b *Builder) WithMinDuration(n int) *Builder {
	if n > 0 {
		b.minDuration = n
	}
	return b
}

// WithZoneTypes restricts detection output to the given vocabulary subset;
// nil/empty means no filter.
func (b *Builder) WithZoneTypes(types ...string) *Builder {
	b.zoneTypes = types
	return b
}

// StrategySelection names the analytical strategies to enable and their
// parameters, mirroring with_strategies(swing?, shape?, divergence?,
// volatility?, volume?) of spec.md §4.6. An empty SwingStrategy or a false
// *Enabled flag disables that family.
type StrategySelection struct {
	SwingStrategy        string // registry name in zone/analysis/swing, "" disables
	SwingParams          map[string]any
	MinSwingAmplitudePct float64

	ShapeEnabled bool
	ShapeParams  map[string]any

	DivergenceEnabled bool
	DivergenceParams  map[string]any

	VolatilityEnabled bool
	VolatilityParams  map[string]any

	VolumeEnabled bool
	VolumeParams  map[string]any
}

// WithStrategies selects the analytical strategies that run during feature
// extraction. Calling it again replaces the prior selection.
func (b *Builder) WithStrategies(sel StrategySelection) *Builder {
	b.featureOpts.SwingStrategy = sel.SwingStrategy
	b.featureOpts.SwingParams = sel.SwingParams
	b.featureOpts.MinSwingAmplitudePct = sel.MinSwingAmplitudePct
	b.featureOpts.ShapeEnabled = sel.ShapeEnabled
	b.featureOpts.ShapeParams = sel.ShapeParams
	b.featureOpts.DivergenceEnabled = sel.DivergenceEnabled
	b.featureOpts.DivergenceParams = sel.DivergenceParams
	b.featureOpts.VolatilityEnabled = sel.VolatilityEnabled
	b.featureOpts.VolatilityParams = sel.VolatilityParams
	b.featureOpts.VolumeEnabled = sel.VolumeEnabled
	b.featureOpts.VolumeParams = sel.VolumeParams
	return b
}

// WithSwingScope chooses per_zone (default) or global swing computation,
// per spec.md §4.4.6.
func (b *Builder) WithSwingScope(scope string) *Builder {
	b.featureOpts.SwingScope = scope
	return b
}

// WithParallelFeatures toggles the optional data-parallel per-zone feature
// loop of spec.md §5. Sequential (false) is the default.
func (b *Builder) WithParallelFeatures(enabled bool) *Builder {
	b.parallelFeatures = enabled
	return b
}

// Analyze turns the optional aggregation features on or off.
func (b *Builder) Analyze(clustering bool, nClusters int, regression bool, validation bool) *Builder {
	b.clusteringEnabled = clustering
	if nClusters > 0 {
		b.nClusters = nClusters
	}
	b.regressionEnabled = regression
	b.validationEnabled = validation
	return b
}

// WithAlpha overrides the default 0.05 significance level used by the
// hypothesis test battery.
func (b *Builder) WithAlpha(alpha float64) *Builder {
	if alpha > 0 && alpha < 1 {
		b.alpha = alpha
	}
	return b
}

// WithCache enables or disables result caching. ttl<=0 means the cache's
// own default TTL.
func (b *Builder) WithCache(enable bool, ttl time.Duration) *Builder {
	b.cacheEnabled = enable
	b.cacheTTL = ttl
	return b
}

// WithCacheStore overrides the default TieredCache, e.g. with a test
// double or a differently-rooted disk tier.
func (b *Builder) WithCacheStore(c Cache) *Builder {
	b.cache = c
	return b
}
