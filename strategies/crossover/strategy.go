package crossover

import (
	"papertrade/internal/engine"
	"papertrade/types"

	"github.com/shopspring/decimal"
)

// Strategy trades the crossing of a fast and a slow simple moving average of
// closes. A golden cross goes long, a death cross exits the long, or reverses
// into a short when shorts are allowed.
type Strategy struct {
	fast     int
	slow     int
	quantity decimal.Decimal
	shorts   bool
}

type Option func(*Strategy)

func WithShorts() Option {
	return func(s *Strategy) {
		s.shorts = true
	}
}

func New(fast, slow int, quantity decimal.Decimal, opts ...Option) *Strategy {
	s := &Strategy{
		fast:     fast,
		slow:     slow,
		quantity: quantity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Strategy) OnBar(ctx *engine.BarContext) []types.OrderIntent {
	if s.fast <= 0 || s.slow <= s.fast {
		return nil
	}

	var intents []types.OrderIntent
	for _, sym := range ctx.Symbols() {
		closes := ctx.GetSeries(sym, types.FieldClose, s.slow+1)
		if len(closes) < s.slow+1 {
			continue
		}

		n := len(closes)
		prevFast, prevSlow := sma(closes[n-1-s.fast:n-1]), sma(closes[:n-1])
		curFast, curSlow := sma(closes[n-s.fast:]), sma(closes[1:])

		pos, held := ctx.Snapshot.Position(sym)
		switch {
		case prevFast.LessThanOrEqual(prevSlow) && curFast.GreaterThan(curSlow):
			if held && pos.Side == types.PositionLong {
				continue
			}
			qty := s.quantity
			if held {
				qty = qty.Add(pos.Quantity)
			}
			intents = append(intents, types.NewMarketOrder(sym, types.SideTypeBuy, qty, "fast SMA crossed above slow SMA"))

		case prevFast.GreaterThanOrEqual(prevSlow) && curFast.LessThan(curSlow):
			if held && pos.Side == types.PositionShort {
				continue
			}
			var qty decimal.Decimal
			if held {
				qty = pos.Quantity
			}
			if s.shorts {
				qty = qty.Add(s.quantity)
			}
			if qty.IsZero() {
				continue
			}
			intents = append(intents, types.NewMarketOrder(sym, types.SideTypeSell, qty, "fast SMA crossed below slow SMA"))
		}
	}
	return intents
}

func sma(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}
