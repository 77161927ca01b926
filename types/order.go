package types

import (
	"github.com/shopspring/decimal"
)

// OrderIntent is what a strategy asks the broker to do. It is never mutated
// after the strategy returns it.
type OrderIntent struct {
	ID         string
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	OrderType  OrderType
	LimitPrice *decimal.Decimal
	Reason     string
}

func NewMarketOrder(symbol string, side Side, quantity decimal.Decimal, reason string) OrderIntent {
	return OrderIntent{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		OrderType: TypeMarket,
		Reason:    reason,
	}
}

func NewLimitOrder(symbol string, side Side, quantity, limitPrice decimal.Decimal, reason string) OrderIntent {
	return OrderIntent{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		OrderType:  TypeLimit,
		LimitPrice: &limitPrice,
		Reason:     reason,
	}
}
