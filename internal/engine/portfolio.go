package engine

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"papertrade/types"

	"github.com/shopspring/decimal"
)

// PortfolioState is the ledger of a single run. It is owned by one broker and
// only changes through ApplyTrade and MarkPrices.
type PortfolioState struct {
	cash        decimal.Decimal
	positions   map[string]*types.Position
	realizedPnL decimal.Decimal
	// last price seen per symbol, used when a bar has no candle for an open position
	lastPrices map[string]decimal.Decimal
}

func NewPortfolioState(initialCash decimal.Decimal) *PortfolioState {
	return &PortfolioState{
		cash:       initialCash,
		positions:  make(map[string]*types.Position),
		lastPrices: make(map[string]decimal.Decimal),
	}
}

func (p *PortfolioState) Cash() decimal.Decimal {
	return p.cash
}

func (p *PortfolioState) RealizedPnL() decimal.Decimal {
	return p.realizedPnL
}

// Position returns a copy of the open position for symbol.
func (p *PortfolioState) Position(symbol string) (types.Position, bool) {
	pos, ok := p.positions[symbol]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// MarkPrices records the latest known price per symbol.
func (p *PortfolioState) MarkPrices(prices map[string]decimal.Decimal) {
	for sym, px := range prices {
		p.lastPrices[sym] = px
	}
}

// ApplyTrade simulates the ledger after trade, checks maintenance margin for
// every resulting short and commits only if all checks pass. On error the
// ledger is unchanged. The returned trade carries the realized pnl delta.
func (p *PortfolioState) ApplyTrade(trade types.Trade, prices map[string]decimal.Decimal, maintenanceMargin decimal.Decimal) (types.Trade, error) {
	if !trade.Side.Valid() || !trade.Quantity.IsPositive() {
		return trade, fmt.Errorf("%w: side %q quantity %s", ErrInvalidIntent, trade.Side, trade.Quantity)
	}

	var current *types.Position
	if pos, ok := p.positions[trade.Symbol]; ok {
		cp := *pos
		current = &cp
	}
	next, realized := applyFill(current, trade)

	// A single fee per trade, reversals included.
	cashAfter := p.cash.Sub(trade.SignedQuantity().Mul(trade.Price)).Sub(trade.Fee)

	priceOf := func(sym string, pos types.Position) decimal.Decimal {
		if px, ok := prices[sym]; ok {
			return px
		}
		if sym == trade.Symbol {
			return trade.Price
		}
		return p.fallbackPrice(pos)
	}

	simulated := make(map[string]types.Position, len(p.positions)+1)
	for sym, pos := range p.positions {
		if sym != trade.Symbol {
			simulated[sym] = *pos
		}
	}
	if next != nil {
		simulated[trade.Symbol] = *next
	}

	equityAfter := cashAfter
	for sym, pos := range simulated {
		equityAfter = equityAfter.Add(pos.MarketValue(priceOf(sym, pos)))
	}

	for _, sym := range slices.Sorted(maps.Keys(simulated)) {
		pos := simulated[sym]
		if pos.Side != types.PositionShort {
			continue
		}
		required := maintenanceMargin.Mul(priceOf(sym, pos)).Mul(pos.Quantity)
		if equityAfter.LessThan(required) {
			return trade, fmt.Errorf("%w for %s: equity %s < required %s",
				ErrMaintenanceMarginBreach, sym, equityAfter, required)
		}
	}

	p.cash = cashAfter
	if next == nil {
		delete(p.positions, trade.Symbol)
	} else {
		p.positions[trade.Symbol] = next
	}
	p.realizedPnL = p.realizedPnL.Add(realized)
	p.lastPrices[trade.Symbol] = trade.Price

	trade.RealizedPnL = realized
	return trade, nil
}

// Equity is cash plus the signed market value of every open position.
func (p *PortfolioState) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	equity := p.cash
	for sym, pos := range p.positions {
		equity = equity.Add(pos.MarketValue(p.priceFor(sym, *pos, prices)))
	}
	return equity
}

// BuildSnapshot is a pure read of the ledger. Symbols missing from prices are
// valued at their last known price.
func (p *PortfolioState) BuildSnapshot(prices map[string]decimal.Decimal, ts time.Time) types.PortfolioSnapshot {
	snap := types.PortfolioSnapshot{
		Timestamp:   ts,
		Cash:        p.cash,
		Equity:      p.Equity(prices),
		RealizedPnL: p.realizedPnL,
		Positions:   make([]types.Position, 0, len(p.positions)),
	}
	for _, sym := range slices.Sorted(maps.Keys(p.positions)) {
		snap.Positions = append(snap.Positions, *p.positions[sym])
	}
	return snap
}

func (p *PortfolioState) priceFor(symbol string, pos types.Position, prices map[string]decimal.Decimal) decimal.Decimal {
	if px, ok := prices[symbol]; ok {
		return px
	}
	return p.fallbackPrice(pos)
}

// fallbackPrice is the last marked price, or the entry price if the symbol
// was never marked.
func (p *PortfolioState) fallbackPrice(pos types.Position) decimal.Decimal {
	if px, ok := p.lastPrices[pos.Symbol]; ok {
		return px
	}
	return pos.EntryPrice
}

// applyFill returns the position after trade and the realized pnl of the
// closed portion. current may be nil (flat) and is modified in place. A nil
// result means the position is closed.
func applyFill(current *types.Position, trade types.Trade) (*types.Position, decimal.Decimal) {
	qty := trade.SignedQuantity()
	if current == nil {
		return &types.Position{
			Symbol:     trade.Symbol,
			Side:       positionSide(qty),
			Quantity:   qty.Abs(),
			EntryPrice: trade.Price,
		}, decimal.Zero
	}

	oldQty := current.SignedQuantity()
	newQty := oldQty.Add(qty)

	if sameSide(oldQty, qty) {
		current.EntryPrice = weightedAvg(current.EntryPrice, oldQty.Abs(), trade.Price, qty.Abs())
		current.Quantity = newQty.Abs()
		return current, decimal.Zero
	}

	closedQty := decimal.Min(oldQty.Abs(), qty.Abs())
	realized := trade.Price.Sub(current.EntryPrice).Mul(closedQty)
	if current.Side == types.PositionShort {
		realized = realized.Neg()
	}
	current.RealizedPnL = current.RealizedPnL.Add(realized)

	switch {
	case newQty.IsZero():
		return nil, realized
	case sameSide(oldQty, newQty):
		current.Quantity = newQty.Abs()
	default:
		// reversal: the remainder opens at the trade price
		current.Side = positionSide(newQty)
		current.Quantity = newQty.Abs()
		current.EntryPrice = trade.Price
	}
	return current, realized
}

func positionSide(signedQty decimal.Decimal) types.PositionSide {
	if signedQty.IsNegative() {
		return types.PositionShort
	}
	return types.PositionLong
}

func sameSide(a, b decimal.Decimal) bool {
	return (a.GreaterThan(decimal.Zero) && b.GreaterThan(decimal.Zero)) ||
		(a.LessThan(decimal.Zero) && b.LessThan(decimal.Zero))
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
