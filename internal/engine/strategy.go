package engine

import (
	"papertrade/types"
)

// Strategy turns the state of one bar into order intents. The returned order
// is the execution order.
type Strategy interface {
	OnBar(ctx *BarContext) []types.OrderIntent
}

type StrategyFunc func(ctx *BarContext) []types.OrderIntent

func (f StrategyFunc) OnBar(ctx *BarContext) []types.OrderIntent {
	return f(ctx)
}
