package engine

import (
	"fmt"
	"log/slog"
	"time"

	"papertrade/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Broker pre-filters order intents and hands tentative trades to the ledger.
//
// Pre-checks run against current cash:
//   - Buys: cash must cover notional + fee, covering buys included
//   - Sells that open or grow a short: cash must cover
//     marginRequirement * short notional + fee
//   - Sells that only reduce a long: no check
//
// Maintenance margin is checked by PortfolioState.ApplyTrade on the simulated
// post-trade state.
type Broker struct {
	config    BrokerConfig
	portfolio *PortfolioState
	symbols   map[string]types.Symbol
	logger    *slog.Logger
}

type BrokerOption func(*Broker)

// WithSymbols registers instrument rules; intent quantities for these symbols
// are rounded to the quantity step.
func WithSymbols(symbols ...types.Symbol) BrokerOption {
	return func(b *Broker) {
		for _, s := range symbols {
			b.symbols[s.Symbol] = s
		}
	}
}

func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger
	}
}

func NewBroker(config BrokerConfig, opts ...BrokerOption) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Broker{
		config:    config,
		portfolio: NewPortfolioState(config.InitialCash),
		symbols:   make(map[string]types.Symbol),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Broker) Config() BrokerConfig {
	return b.config
}

func (b *Broker) Portfolio() *PortfolioState {
	return b.portfolio
}

// Snapshot marks the bar's closes on the ledger and returns the state before
// any of the bar's trades.
func (b *Broker) Snapshot(candles map[string]types.Candle, ts time.Time) types.PortfolioSnapshot {
	prices := priceMap(candles)
	b.portfolio.MarkPrices(prices)
	return b.portfolio.BuildSnapshot(prices, ts)
}

// ProcessBars handles intents strictly in the given order: cash used by
// intent N is no longer available to intent N+1. It returns the snapshot after
// all accepted trades and exactly one ExecutionDetail per intent.
func (b *Broker) ProcessBars(candles map[string]types.Candle, intents []types.OrderIntent) (types.PortfolioSnapshot, []ExecutionDetail) {
	prices := priceMap(candles)
	ts := barTime(candles)
	b.portfolio.MarkPrices(prices)

	details := make([]ExecutionDetail, 0, len(intents))
	for _, intent := range intents {
		trade, err := b.buildTrade(intent, prices, ts)
		if err == nil {
			trade, err = b.portfolio.ApplyTrade(trade, prices, b.config.MaintenanceMargin)
		}
		if err != nil {
			b.logger.Info("order rejected",
				"time", ts,
				"symbol", intent.Symbol,
				"side", intent.Side,
				"quantity", intent.Quantity.String(),
				"reason", ReasonOf(err),
				"err", err,
			)
			details = append(details, newRejectedDetail(intent, err))
			continue
		}
		b.logger.Debug("order executed",
			"time", ts,
			"symbol", trade.Symbol,
			"side", trade.Side,
			"quantity", trade.Quantity.String(),
			"price", trade.Price.String(),
			"fee", trade.Fee.String(),
			"realized_pnl", trade.RealizedPnL.String(),
		)
		details = append(details, newExecutedDetail(intent, trade))
	}

	return b.portfolio.BuildSnapshot(prices, ts), details
}

func (b *Broker) buildTrade(intent types.OrderIntent, prices map[string]decimal.Decimal, ts time.Time) (types.Trade, error) {
	if err := validateIntent(intent); err != nil {
		return types.Trade{}, err
	}

	qty := intent.Quantity
	if sym, ok := b.symbols[intent.Symbol]; ok {
		qty = sym.RoundQuantity(qty)
		if qty.IsZero() {
			return types.Trade{}, fmt.Errorf("%w: quantity %s below tradable minimum for %s",
				ErrInvalidIntent, intent.Quantity, intent.Symbol)
		}
	}

	price, ok := prices[intent.Symbol]
	if !ok {
		return types.Trade{}, fmt.Errorf("%w %s", ErrMissingPrice, intent.Symbol)
	}

	notional := price.Mul(qty)
	fee := notional.Mul(b.config.FeeRate)
	cash := b.portfolio.Cash()

	switch intent.Side {
	case types.SideTypeBuy:
		required := notional.Add(fee)
		if cash.LessThan(required) {
			return types.Trade{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, required, cash)
		}
	case types.SideTypeSell:
		shortQty := qty
		if pos, ok := b.portfolio.Position(intent.Symbol); ok && pos.Side == types.PositionLong {
			shortQty = qty.Sub(pos.Quantity)
		}
		if shortQty.IsPositive() {
			required := b.config.MarginRequirement.Mul(price).Mul(shortQty).Add(fee)
			if cash.LessThan(required) {
				return types.Trade{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientMargin, required, cash)
			}
		}
	}

	return types.Trade{
		ID:        uuid.NewString(),
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
		Timestamp: ts,
	}, nil
}

func validateIntent(intent types.OrderIntent) error {
	switch {
	case intent.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidIntent)
	case !intent.Side.Valid():
		return fmt.Errorf("%w: unknown side %q", ErrInvalidIntent, intent.Side)
	case !intent.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be > 0, got %s", ErrInvalidIntent, intent.Quantity)
	case intent.OrderType != "" && !intent.OrderType.Valid():
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidIntent, intent.OrderType)
	}
	return nil
}

func priceMap(candles map[string]types.Candle) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(candles))
	for sym, c := range candles {
		prices[sym] = c.Close
	}
	return prices
}

// barTime is the timestamp shared by the candles of one bar.
func barTime(candles map[string]types.Candle) time.Time {
	var ts time.Time
	for _, c := range candles {
		if ts.IsZero() || c.Timestamp.Before(ts) {
			ts = c.Timestamp
		}
	}
	return ts
}
