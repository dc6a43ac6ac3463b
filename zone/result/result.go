// Package result implements the aggregate container and persistence
// formats of C7: a full-fidelity binary object graph (encoding/gob), a
// structured-text form that drops per-zone Data (encoding/json), and a
// columnar zones-as-rows table with a JSON sidecar for nested structures
// (encoding/csv).
package result

import (
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
	"github.com/kogriv/bquant-sub003/zone/analysis"
	"github.com/kogriv/bquant-sub003/zone/analysis/swing"
	"github.com/kogriv/bquant-sub003/zone/stats"
)

// init registers every concrete type that can be stored under a Zone's
// any-typed Features/IndicatorContext maps, so that encoding/gob can encode
// and decode them without a "type not registered for interface" failure.
// zone.Features is registered because a Zone's metadata sub-map (itself a
// nested zone.Features) is stored under the "metadata" key of the outer map.
func init() {
	gob.Register(zone.Features{})
	gob.Register(analysis.ShapeMetrics{})
	gob.Register(analysis.DivergenceRecord{})
	gob.Register(analysis.VolatilityMetrics{})
	gob.Register(analysis.VolumeMetrics{})
	gob.Register(swing.Metrics{})
}

// Format names the supported persistence formats.
type Format string

const (
	FormatGob Format = "gob"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Metadata carries the run-level descriptive fields of spec §4.1, plus the
// cache-key policy resolution recorded by the pipeline.
type Metadata struct {
	AnalysisTimestamp    time.Time
	TotalZones           int
	ZoneTypes            map[string]int
	ClusteringPerformed  bool
	RegressionPerformed  bool
	ValidationPerformed  bool
	Symbol               string
	Timeframe            string
	Source               string
	CacheKeyPolicy       string
	CacheHit             bool
	CacheBypassedReason  string
}

// ZoneAnalysisResult is the aggregate container returned by a pipeline
// build(), per spec §4.1/§4.7.
type ZoneAnalysisResult struct {
	Zones    []*zone.Zone
	Data     *series.Frame
	Statistics      stats.DistributionSummary
	HypothesisTests stats.TestBattery
	SequenceAnalysis *stats.SequenceAnalysis
	Clustering       *stats.ClusterResult
	Regression       map[string]stats.RegressionResult
	Validation       *stats.ValidationSummary
	Metadata Metadata
}

// serializableResult is the structured-text/columnar projection that omits
// per-zone Data and the parent series, per spec §4.7.
type serializableResult struct {
	Zones            []zone.Serializable              `json:"zones"`
	Statistics       stats.DistributionSummary         `json:"statistics"`
	HypothesisTests  stats.TestBattery                 `json:"hypothesis_tests"`
	SequenceAnalysis *stats.SequenceAnalysis           `json:"sequence_analysis,omitempty"`
	Clustering       *stats.ClusterResult              `json:"clustering,omitempty"`
	Regression       map[string]stats.RegressionResult `json:"regression_results,omitempty"`
	Validation       *stats.ValidationSummary          `json:"validation,omitempty"`
	Metadata         Metadata                          `json:"metadata"`
}

func (r *ZoneAnalysisResult) toSerializable() serializableResult {
	zones := make([]zone.Serializable, len(r.Zones))
	for i, z := range r.Zones {
		zones[i] = z.ToSerializable()
	}
	return serializableResult{
		Zones:            zones,
		Statistics:       r.Statistics,
		HypothesisTests:  r.HypothesisTests,
		SequenceAnalysis: r.SequenceAnalysis,
		Clustering:       r.Clustering,
		Regression:       r.Regression,
		Validation:       r.Validation,
		Metadata:         r.Metadata,
	}
}

// Save persists the result to path in the requested format.
func (r *ZoneAnalysisResult) Save(path string, format Format) error {
	switch format {
	case FormatGob:
		return r.saveGob(path)
	case FormatJSON:
		return r.saveJSON(path)
	case FormatCSV:
		return r.saveCSV(path)
	default:
		return zerr.Newf(zerr.ConfigError, "unknown persistence format").WithField(string(format))
	}
}

func (r *ZoneAnalysisResult) saveGob(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return zerr.Wrap(err, zerr.CacheError, "create result file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(r); err != nil {
		return zerr.Wrap(err, zerr.CacheError, "encode gob result")
	}
	return nil
}

func (r *ZoneAnalysisResult) saveJSON(path string) error {
	data, err := json.MarshalIndent(r.toSerializable(), "", "  ")
	if err != nil {
		return zerr.Wrap(err, zerr.CacheError, "marshal json result")
	}
	return os.WriteFile(path, data, 0o644)
}

// saveCSV writes the zone table to path and a JSON sidecar (path + ".json")
// carrying the population-level aggregates and each zone's nested Features.
func (r *ZoneAnalysisResult) saveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return zerr.Wrap(err, zerr.CacheError, "create csv result file")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"zone_id", "type", "start_idx", "end_idx", "start_time", "end_time", "duration"}); err != nil {
		return zerr.Wrap(err, zerr.CacheError, "write csv header")
	}
	for _, z := range r.Zones {
		row := []string{
			z.ID,
			z.Type,
			strconv.Itoa(z.StartIdx),
			strconv.Itoa(z.EndIdx),
			z.StartTime.Format(time.RFC3339),
			z.EndTime.Format(time.RFC3339),
			strconv.Itoa(z.Duration()),
		}
		if err := w.Write(row); err != nil {
			return zerr.Wrap(err, zerr.CacheError, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return zerr.Wrap(err, zerr.CacheError, "flush csv")
	}

	sidecar := r.toSerializable()
	sidecarData, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return zerr.Wrap(err, zerr.CacheError, "marshal csv sidecar")
	}
	return os.WriteFile(path+".json", sidecarData, 0o644)
}

// Load reconstructs a ZoneAnalysisResult from path in the given format.
// Results loaded from json or csv have no per-zone Data; callers that need
// it must reattach it from the original series.
func Load(path string, format Format) (*ZoneAnalysisResult, error) {
	switch format {
	case FormatGob:
		return loadGob(path)
	case FormatJSON:
		return loadJSON(path)
	case FormatCSV:
		return loadCSV(path)
	default:
		return nil, zerr.Newf(zerr.ConfigError, "unknown persistence format").WithField(string(format))
	}
}

func loadGob(path string) (*ZoneAnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "open result file")
	}
	defer f.Close()
	var r ZoneAnalysisResult
	if err := gob.NewDecoder(f).Decode(&r); err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "decode gob result")
	}
	return &r, nil
}

func loadJSON(path string) (*ZoneAnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "read json result file")
	}
	var s serializableResult
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "unmarshal json result")
	}
	return fromSerializable(s), nil
}

func loadCSV(path string) (*ZoneAnalysisResult, error) {
	sidecarData, err := os.ReadFile(path + ".json")
	if err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "read csv sidecar")
	}
	var s serializableResult
	if err := json.Unmarshal(sidecarData, &s); err != nil {
		return nil, zerr.Wrap(err, zerr.CacheError, "unmarshal csv sidecar")
	}
	return fromSerializable(s), nil
}

func fromSerializable(s serializableResult) *ZoneAnalysisResult {
	zones := make([]*zone.Zone, len(s.Zones))
	for i, sz := range s.Zones {
		zones[i] = &zone.Zone{
			ID:               sz.ID,
			Type:             sz.Type,
			StartIdx:         sz.StartIdx,
			EndIdx:           sz.EndIdx,
			StartTime:        sz.StartTime,
			EndTime:          sz.EndTime,
			Features:         sz.Features,
			IndicatorContext: sz.IndicatorContext,
		}
	}
	return &ZoneAnalysisResult{
		Zones:            zones,
		Statistics:       s.Statistics,
		HypothesisTests:  s.HypothesisTests,
		SequenceAnalysis: s.SequenceAnalysis,
		Clustering:       s.Clustering,
		Regression:       s.Regression,
		Validation:       s.Validation,
		Metadata:         s.Metadata,
	}
}
