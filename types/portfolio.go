package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	Symbol      string
	Side        PositionSide
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	RealizedPnL decimal.Decimal
}

// MarketValue is price*qty for a long and -price*qty for a short.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	value := price.Mul(p.Quantity.Abs())
	if p.Side == PositionShort {
		return value.Neg()
	}
	return value
}

// SignedQuantity is positive for longs and negative for shorts.
func (p Position) SignedQuantity() decimal.Decimal {
	if p.Side == PositionShort {
		return p.Quantity.Neg()
	}
	return p.Quantity
}

// PortfolioSnapshot is a read-only view of the ledger at one timestamp.
// Positions are copies sorted by symbol.
type PortfolioSnapshot struct {
	Timestamp   time.Time
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	RealizedPnL decimal.Decimal
	Positions   []Position
}

func (s PortfolioSnapshot) Position(symbol string) (Position, bool) {
	for _, pos := range s.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}

// MarketValue is the signed value of all open positions, equity minus cash.
func (s PortfolioSnapshot) MarketValue() decimal.Decimal {
	return s.Equity.Sub(s.Cash)
}
