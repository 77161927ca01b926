package buyhold

import (
	"papertrade/internal/engine"
	"papertrade/types"

	"github.com/shopspring/decimal"
)

// Strategy buys a fixed quantity of every symbol the first time it sees a
// bar for it and holds until the end of the run. A rejected entry is retried
// on the next bar.
type Strategy struct {
	quantity decimal.Decimal
	entered  map[string]bool
}

func New(quantity decimal.Decimal) *Strategy {
	return &Strategy{
		quantity: quantity,
		entered:  make(map[string]bool),
	}
}

func (s *Strategy) OnBar(ctx *engine.BarContext) []types.OrderIntent {
	var intents []types.OrderIntent
	for _, sym := range ctx.Symbols() {
		if _, held := ctx.Snapshot.Position(sym); held {
			s.entered[sym] = true
		}
		if s.entered[sym] {
			continue
		}
		intents = append(intents, types.NewMarketOrder(sym, types.SideTypeBuy, s.quantity, "buy and hold entry"))
	}
	return intents
}
