package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one accepted fill. Quantity is always positive, the direction is
// carried by Side.
type Trade struct {
	ID          string
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fee         decimal.Decimal
	RealizedPnL decimal.Decimal
	Timestamp   time.Time
}

func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// SignedQuantity is positive for buys and negative for sells.
func (t Trade) SignedQuantity() decimal.Decimal {
	if t.Side == SideTypeSell {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
