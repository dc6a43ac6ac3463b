// Package zone defines the Zone record and its indicator context — the
// shared currency between detection (zone/detection), feature extraction
// (zone/features), and aggregation (zone/stats).
package zone

import (
	"time"

	"github.com/kogriv/bquant-sub003/series"
)

// Context is a zone's self-description, stamped by whichever detection
// strategy produced the zone. True indicator agnosticism depends on every
// component downstream of detection reading only this map — never branching
// on a hard-coded indicator name.
type Context map[string]any

// DetectionStrategy returns the registry name of the producing strategy.
func (c Context) DetectionStrategy() string {
	return c.str("detection_strategy")
}

// DetectionIndicator returns the column (or synthetic label) the producing
// strategy considers primary.
func (c Context) DetectionIndicator() string {
	return c.str("detection_indicator")
}

// SignalLine returns the secondary column name, or "" if absent.
func (c Context) SignalLine() string {
	return c.str("signal_line")
}

func (c Context) str(key string) string {
	if c == nil {
		return ""
	}
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Features is the per-zone metric dict written exactly once by the feature
// extraction orchestrator. Values are numbers, strings, or nested Features;
// the nested "metadata" map holds each analytical strategy's result record
// (nil when the strategy failed).
type Features map[string]any

// Zone is a typed, contiguous interval over a parent bar series.
type Zone struct {
	ID        string
	Type      string
	StartIdx  int
	EndIdx    int
	StartTime time.Time
	EndTime   time.Time

	// Data is the OHLCV+indicator slice covering [StartIdx, EndIdx]. It is
	// held by reference to the parent series, not owned; serializers that
	// care about size may drop it.
	Data *series.Frame

	Features         Features
	IndicatorContext Context
}

// New constructs a Zone, coercing a nil IndicatorContext to an empty map so
// downstream readers never need a nil check.
func New(id, typ string, startIdx, endIdx int, startTime, endTime time.Time, data *series.Frame, ctx Context) *Zone {
	if ctx == nil {
		ctx = Context{}
	}
	return &Zone{
		ID:               id,
		Type:             typ,
		StartIdx:         startIdx,
		EndIdx:           endIdx,
		StartTime:        startTime,
		EndTime:          endTime,
		Data:             data,
		IndicatorContext: ctx,
	}
}

// Duration returns the zone's length in bars, inclusive of both endpoints.
func (z *Zone) Duration() int {
	return z.EndIdx - z.StartIdx + 1
}

// PrimaryIndicatorColumn returns indicator_context.detection_indicator, or
// "" if unset.
func (z *Zone) PrimaryIndicatorColumn() string {
	return z.IndicatorContext.DetectionIndicator()
}

// SignalLineColumn returns indicator_context.signal_line, or "" if unset.
func (z *Zone) SignalLineColumn() string {
	return z.IndicatorContext.SignalLine()
}

// Serializable is the primitive-only projection of a Zone used by the text
// and columnar persistence formats — it omits Data.
type Serializable struct {
	ID               string    `json:"zone_id"`
	Type             string    `json:"type"`
	StartIdx         int       `json:"start_idx"`
	EndIdx           int       `json:"end_idx"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Duration         int       `json:"duration"`
	Features         Features  `json:"features"`
	IndicatorContext Context   `json:"indicator_context"`
}

// ToSerializable returns the Zone as a primitive-only mapping, omitting Data.
func (z *Zone) ToSerializable() Serializable {
	return Serializable{
		ID:               z.ID,
		Type:             z.Type,
		StartIdx:         z.StartIdx,
		EndIdx:           z.EndIdx,
		StartTime:        z.StartTime,
		EndTime:          z.EndTime,
		Duration:         z.Duration(),
		Features:         z.Features,
		IndicatorContext: z.IndicatorContext,
	}
}
