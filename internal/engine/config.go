package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type BrokerConfig struct {
	InitialCash decimal.Decimal
	// FeeRate is charged on the notional of every trade.
	FeeRate decimal.Decimal
	// MarginRequirement is the initial collateral fraction for opening a short.
	MarginRequirement decimal.Decimal
	// MaintenanceMargin is the equity/notional floor every short must keep.
	MaintenanceMargin decimal.Decimal
}

func NewBrokerConfig(initialCash, feeRate, marginRequirement, maintenanceMargin decimal.Decimal) BrokerConfig {
	return BrokerConfig{
		InitialCash:       initialCash,
		FeeRate:           feeRate,
		MarginRequirement: marginRequirement,
		MaintenanceMargin: maintenanceMargin,
	}
}

func (c BrokerConfig) Validate() error {
	one := decimal.NewFromInt(1)
	switch {
	case !c.InitialCash.IsPositive():
		return fmt.Errorf("%w: initial cash must be > 0, got %s", ErrInvalidConfig, c.InitialCash)
	case c.FeeRate.IsNegative():
		return fmt.Errorf("%w: fee rate must be >= 0, got %s", ErrInvalidConfig, c.FeeRate)
	case c.MarginRequirement.IsNegative() || c.MarginRequirement.GreaterThan(one):
		return fmt.Errorf("%w: margin requirement must be in [0,1], got %s", ErrInvalidConfig, c.MarginRequirement)
	case c.MaintenanceMargin.IsNegative() || c.MaintenanceMargin.GreaterThan(one):
		return fmt.Errorf("%w: maintenance margin must be in [0,1], got %s", ErrInvalidConfig, c.MaintenanceMargin)
	}
	return nil
}
