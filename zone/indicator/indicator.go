// Package indicator implements the external indicator computation
// collaborator (§6): a swappable Factory, with a default talib-backed
// implementation covering sma, ema, rsi, macd, bbands, and atr, grounded on
// the teacher's internal/trading/market_data/timeframe/indicators.go.
package indicator

import (
	"context"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	talib "github.com/markcheno/go-talib"
)

// Supported indicator names.
const (
	SMA    = "sma"
	EMA    = "ema"
	RSI    = "rsi"
	MACD   = "macd"
	BBands = "bbands"
	ATR    = "atr"
)

// Factory computes an indicator over a source frame and returns it as a new
// Frame whose columns can be merged onto the parent series. The core's only
// dependency on an indicator implementation runs through this interface.
type Factory interface {
	Compute(ctx context.Context, source string, name string, params map[string]any, data *series.Frame) (*series.Frame, error)
}

// TalibFactory is the default Factory, backed by github.com/markcheno/go-talib.
type TalibFactory struct{}

// Compute dispatches to the named talib indicator. source is the input
// column (defaults to close for price-only indicators; ignored for atr,
// which always reads high/low/close).
func (TalibFactory) Compute(_ context.Context, source, name string, params map[string]any, data *series.Frame) (*series.Frame, error) {
	if data == nil || data.Len() == 0 {
		return nil, zerr.New(zerr.DataError, "indicator computation requires a non-empty series")
	}
	if source == "" {
		source = series.ColClose
	}
	input := data.Column(source)
	if input == nil {
		return nil, zerr.Newf(zerr.DataError, "indicator source column missing").WithField(source)
	}

	switch name {
	case SMA:
		period := intParam(params, "period", 14)
		out := talib.Sma(input, period)
		return series.New(data.Time, map[string][]float64{columnName(name, params): out})
	case EMA:
		period := intParam(params, "period", 14)
		out := talib.Ema(input, period)
		return series.New(data.Time, map[string][]float64{columnName(name, params): out})
	case RSI:
		period := intParam(params, "period", 14)
		out := talib.Rsi(input, period)
		return series.New(data.Time, map[string][]float64{columnName(name, params): out})
	case MACD:
		fast := intParam(params, "fast_period", 12)
		slow := intParam(params, "slow_period", 26)
		signal := intParam(params, "signal_period", 9)
		macd, sig, hist := talib.Macd(input, fast, slow, signal)
		return series.New(data.Time, map[string][]float64{
			"macd":        macd,
			"macd_signal": sig,
			"macd_hist":   hist,
		})
	case BBands:
		period := intParam(params, "period", 20)
		devUp := floatParam(params, "dev_up", 2.0)
		devDown := floatParam(params, "dev_down", 2.0)
		upper, middle, lower := talib.BBands(input, period, devUp, devDown, talib.SMA)
		return series.New(data.Time, map[string][]float64{
			"bb_upper":  upper,
			"bb_middle": middle,
			"bb_lower":  lower,
		})
	case ATR:
		if err := data.RequireOHLC(); err != nil {
			return nil, err
		}
		period := intParam(params, "period", 14)
		out := talib.Atr(data.High(), data.Low(), data.Close(), period)
		return series.New(data.Time, map[string][]float64{series.ColATR: out})
	default:
		return nil, zerr.Newf(zerr.ConfigError, "unknown indicator").WithField(name)
	}
}

func columnName(name string, params map[string]any) string {
	if v, ok := params["column_name"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return name
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
