package donchian

import (
	"papertrade/internal/engine"
	"papertrade/types"

	"github.com/shopspring/decimal"
)

// Strategy trades breakouts of the Donchian channel of the preceding period
// bars. A break above the highest high goes long, a break below the lowest
// low goes short, reversing any opposite position.
type Strategy struct {
	period     int
	allocation decimal.Decimal
	longOnly   bool

	atrPeriod   int
	atrMultiple decimal.Decimal
	stopLoss    map[string]decimal.Decimal
}

type Option func(*Strategy)

// WithLongOnly closes longs on a downside break instead of reversing.
func WithLongOnly() Option {
	return func(s *Strategy) {
		s.longOnly = true
	}
}

// WithATRStop exits a position when the close crosses entry close -/+
// multiple * ATR(period).
func WithATRStop(period int, multiple decimal.Decimal) Option {
	return func(s *Strategy) {
		s.atrPeriod = period
		s.atrMultiple = multiple
	}
}

// New sizes each new position at allocation * equity.
func New(period int, allocation decimal.Decimal, opts ...Option) *Strategy {
	s := &Strategy{
		period:     period,
		allocation: allocation,
		stopLoss:   make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Strategy) OnBar(ctx *engine.BarContext) []types.OrderIntent {
	var intents []types.OrderIntent
	for _, sym := range ctx.Symbols() {
		hist := ctx.GetHistory(sym, max(s.period, s.atrPeriod)+1)
		if len(hist) < s.period+1 {
			continue
		}

		// channel over the completed bars, excluding the current one
		candle := hist[len(hist)-1]
		highestHigh, lowestLow := donchianHighLow(hist[len(hist)-1-s.period : len(hist)-1])

		breakUp := candle.High.GreaterThan(highestHigh)
		breakDown := candle.Low.LessThan(lowestLow)

		var side types.Side
		var reason string
		switch {
		case breakUp && breakDown:
			// outside bar, ambiguous
			continue
		case breakUp:
			side = types.SideTypeBuy
			reason = "break of highest high of preceding bars"
		case breakDown:
			side = types.SideTypeSell
			reason = "break of lowest low of preceding bars"
		default:
			if intent, ok := s.checkStop(ctx, candle); ok {
				intents = append(intents, intent)
			}
			continue
		}

		orders := allocate(ctx.Snapshot, sym, side, candle.Close, s.allocation, s.longOnly, reason)
		if len(orders) > 0 {
			s.setStop(sym, side, candle.Close, hist)
		}
		intents = append(intents, orders...)
	}
	return intents
}

func (s *Strategy) setStop(sym string, side types.Side, price decimal.Decimal, hist []types.Candle) {
	if s.atrPeriod == 0 {
		return
	}
	atr := calcATR(hist, s.atrPeriod)
	if atr.IsZero() {
		delete(s.stopLoss, sym)
		return
	}
	offset := atr.Mul(s.atrMultiple)
	if side == types.SideTypeBuy {
		s.stopLoss[sym] = price.Sub(offset)
	} else {
		s.stopLoss[sym] = price.Add(offset)
	}
}

// checkStop closes the open position of candle's symbol when its close
// crossed the stop level.
func (s *Strategy) checkStop(ctx *engine.BarContext, candle types.Candle) (types.OrderIntent, bool) {
	stop, ok := s.stopLoss[candle.Symbol]
	if !ok {
		return types.OrderIntent{}, false
	}
	pos, held := ctx.Snapshot.Position(candle.Symbol)
	if !held {
		delete(s.stopLoss, candle.Symbol)
		return types.OrderIntent{}, false
	}

	var side types.Side
	switch {
	case pos.Side == types.PositionLong && candle.Close.LessThan(stop):
		side = types.SideTypeSell
	case pos.Side == types.PositionShort && candle.Close.GreaterThan(stop):
		side = types.SideTypeBuy
	default:
		return types.OrderIntent{}, false
	}
	delete(s.stopLoss, candle.Symbol)
	return types.NewMarketOrder(candle.Symbol, side, pos.Quantity, "ATR stop-loss exit"), true
}

// Utility: Donchian Channel High/Low
func donchianHighLow(candles []types.Candle) (decimal.Decimal, decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}

	highest := candles[0].High
	lowest := candles[0].Low
	for _, c := range candles[1:] {
		highest = decimal.Max(highest, c.High)
		lowest = decimal.Min(lowest, c.Low)
	}
	return highest, lowest
}

// calcATR is Wilder's average true range. It needs period+1 candles and
// returns zero otherwise.
func calcATR(candles []types.Candle, period int) decimal.Decimal {
	if period <= 0 || len(candles) < period+1 {
		return decimal.Zero
	}

	trueRanges := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		trueRanges = append(trueRanges, decimal.Max(
			high.Sub(low),
			high.Sub(prevClose).Abs(),
			low.Sub(prevClose).Abs(),
		))
	}

	n := decimal.NewFromInt(int64(period))
	atr := decimal.Zero
	for _, tr := range trueRanges[:period] {
		atr = atr.Add(tr)
	}
	atr = atr.Div(n)

	for _, tr := range trueRanges[period:] {
		atr = atr.Mul(n.Sub(decimal.NewFromInt(1))).Add(tr).Div(n)
	}
	return atr
}
