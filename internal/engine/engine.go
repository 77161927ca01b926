package engine

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"papertrade/types"

	"github.com/google/uuid"
)

type Engine struct {
	runID      string
	broker     *Broker
	strategy   Strategy
	maxHistory int
	progress   io.Writer
	logger     *slog.Logger
}

type Option func(*Engine)

// WithMaxHistory caps how many candles per symbol a strategy can look back.
func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		e.maxHistory = n
	}
}

// WithProgress renders a progress bar to w while replaying.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		e.progress = w
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

func NewEngine(broker *Broker, strat Strategy, opts ...Option) *Engine {
	e := &Engine{
		runID:    uuid.NewString(),
		broker:   broker,
		strategy: strat,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RunID() string {
	return e.runID
}

// Run replays candlesBySymbol in ascending timestamp order and returns one
// record per distinct timestamp. Malformed series are the only errors.
func (e *Engine) Run(candlesBySymbol map[string][]types.Candle) ([]BarRecord, error) {
	series, err := validateSeries(candlesBySymbol)
	if err != nil {
		return nil, err
	}

	bt := newBacktester(series, e.broker, e.strategy, e.maxHistory, e.progress)
	e.logger.Info("backtest started",
		"run_id", e.runID,
		"symbols", slices.Sorted(maps.Keys(series)),
		"bars", len(bt.timestamps),
	)

	records := bt.run()

	if n := len(records); n > 0 {
		last := records[n-1].SnapshotAfter
		e.logger.Info("backtest finished",
			"run_id", e.runID,
			"bars", n,
			"cash", last.Cash.String(),
			"equity", last.Equity.String(),
		)
	}
	return records, nil
}

// validateSeries copies the input, fills empty candle symbols from the map key
// and rejects series that are not strictly ascending.
func validateSeries(candlesBySymbol map[string][]types.Candle) (map[string][]types.Candle, error) {
	out := make(map[string][]types.Candle, len(candlesBySymbol))
	for sym, candles := range candlesBySymbol {
		cs := make([]types.Candle, len(candles))
		for i, c := range candles {
			if c.Symbol == "" {
				c.Symbol = sym
			}
			if c.Symbol != sym {
				return nil, fmt.Errorf("%w: %s candle %d has symbol %s", ErrSymbolMismatch, sym, i, c.Symbol)
			}
			if i > 0 && !c.Timestamp.After(cs[i-1].Timestamp) {
				return nil, fmt.Errorf("%w: %s candle %d at %s follows %s",
					ErrNonMonotonicSeries, sym, i, c.Timestamp, cs[i-1].Timestamp)
			}
			cs[i] = c
		}
		out[sym] = cs
	}
	return out, nil
}
