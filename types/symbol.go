package types

import (
	"github.com/shopspring/decimal"
)

// Symbol describes the trading rules of an instrument.
type Symbol struct {
	Symbol       string
	BaseAsset    string
	QuoteAsset   string
	PriceStep    decimal.Decimal
	QuantityStep decimal.Decimal
	MinQuantity  decimal.Decimal
}

// RoundPrice rounds to the nearest multiple of PriceStep.
func (s Symbol) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if !s.PriceStep.IsPositive() {
		return price
	}
	return price.Div(s.PriceStep).Round(0).Mul(s.PriceStep)
}

// RoundQuantity truncates to a multiple of QuantityStep and returns zero when
// the result is below MinQuantity.
func (s Symbol) RoundQuantity(qty decimal.Decimal) decimal.Decimal {
	rounded := qty
	if s.QuantityStep.IsPositive() {
		rounded = qty.Div(s.QuantityStep).Truncate(0).Mul(s.QuantityStep)
	}
	if rounded.LessThan(s.MinQuantity) {
		return decimal.Zero
	}
	return rounded
}
