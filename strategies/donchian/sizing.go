package donchian

import (
	"papertrade/types"

	"github.com/shopspring/decimal"
)

// allocate turns a breakout on symbol into order intents given the current
// position. New exposure is allocation * equity worth of whole units. A
// reversal is sent as a single order covering the old position plus the new
// one.
func allocate(view types.PortfolioSnapshot, symbol string, side types.Side, price, allocation decimal.Decimal, longOnly bool, reason string) []types.OrderIntent {
	newQty := getQuantityForPrice(price, view.Equity.Mul(allocation))
	pos, held := view.Position(symbol)

	// Case 1: flat
	if !held {
		if newQty.IsZero() || (longOnly && side == types.SideTypeSell) {
			return nil
		}
		return []types.OrderIntent{types.NewMarketOrder(symbol, side, newQty, "entry: "+reason)}
	}

	// Case 2: already positioned in the breakout direction, no pyramiding
	if (pos.Side == types.PositionLong) == (side == types.SideTypeBuy) {
		return nil
	}

	// Case 3: opposite position
	if longOnly && side == types.SideTypeSell {
		return []types.OrderIntent{types.NewMarketOrder(symbol, side, pos.Quantity, "closing long: "+reason)}
	}
	return []types.OrderIntent{types.NewMarketOrder(symbol, side, pos.Quantity.Add(newQty), "stop and reverse: "+reason)}
}

func getQuantityForPrice(stockPrice, capitalToUse decimal.Decimal) decimal.Decimal {
	if !stockPrice.IsPositive() || !capitalToUse.IsPositive() {
		return decimal.Zero
	}
	return capitalToUse.Div(stockPrice).Floor()
}
