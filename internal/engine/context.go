package engine

import (
	"maps"
	"slices"
	"time"

	"papertrade/types"

	"github.com/shopspring/decimal"
)

// BarContext is the read-only view a strategy gets for one timestamp.
type BarContext struct {
	Timestamp time.Time
	// Candles holds the candle of every symbol that has one at Timestamp.
	Candles map[string]types.Candle
	// Snapshot is the portfolio before this bar's trades.
	Snapshot types.PortfolioSnapshot

	history    map[string][]types.Candle
	maxHistory int
}

// NewBarContext builds the context a strategy would see at ts from explicit
// per-symbol history. Candles holds the last candle of every series stamped
// ts.
func NewBarContext(ts time.Time, snapshot types.PortfolioSnapshot, history map[string][]types.Candle) *BarContext {
	candles := make(map[string]types.Candle, len(history))
	for sym, hist := range history {
		if n := len(hist); n > 0 && hist[n-1].Timestamp.Equal(ts) {
			candles[sym] = hist[n-1]
		}
	}
	return &BarContext{
		Timestamp: ts,
		Candles:   candles,
		Snapshot:  snapshot,
		history:   history,
	}
}

// Symbols returns the symbols with a candle at this bar, sorted.
func (c *BarContext) Symbols() []string {
	return slices.Sorted(maps.Keys(c.Candles))
}

// GetHistory returns up to limit candles for symbol ending with the latest
// one at or before Timestamp. limit <= 0 means everything the engine keeps.
func (c *BarContext) GetHistory(symbol string, limit int) []types.Candle {
	hist := c.history[symbol]
	n := len(hist)
	if c.maxHistory > 0 && n > c.maxHistory {
		n = c.maxHistory
	}
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]types.Candle, n)
	copy(out, hist[len(hist)-n:])
	return out
}

// GetSeries is GetHistory reduced to one field. An unknown field yields nil.
func (c *BarContext) GetSeries(symbol string, field types.Field, limit int) []decimal.Decimal {
	hist := c.GetHistory(symbol, limit)
	out := make([]decimal.Decimal, 0, len(hist))
	for _, candle := range hist {
		v, ok := candle.Value(field)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}
