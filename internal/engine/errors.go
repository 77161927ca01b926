package engine

import (
	"errors"
)

// Rejections. None of these abort a run; they end up in ExecutionDetail.
var (
	ErrMissingPrice            = errors.New("no current price for symbol")
	ErrInsufficientCash        = errors.New("insufficient cash")
	ErrInsufficientMargin      = errors.New("insufficient margin")
	ErrMaintenanceMarginBreach = errors.New("would breach maintenance margin")
	ErrInvalidIntent           = errors.New("invalid order intent")
)

// Fatal input and configuration errors.
var (
	ErrInvalidConfig      = errors.New("invalid broker config")
	ErrNonMonotonicSeries = errors.New("candle timestamps not strictly ascending")
	ErrSymbolMismatch     = errors.New("candle symbol does not match series")
)

type RejectReason string

const (
	ReasonMissingPrice            RejectReason = "MISSING_PRICE"
	ReasonInsufficientCash        RejectReason = "INSUFFICIENT_CASH"
	ReasonInsufficientMargin      RejectReason = "INSUFFICIENT_MARGIN"
	ReasonMaintenanceMarginBreach RejectReason = "MAINTENANCE_MARGIN_BREACH"
	ReasonInvalidIntent           RejectReason = "INVALID_INTENT"
)

var reasonByErr = []struct {
	err    error
	reason RejectReason
}{
	{ErrMissingPrice, ReasonMissingPrice},
	{ErrInsufficientCash, ReasonInsufficientCash},
	{ErrInsufficientMargin, ReasonInsufficientMargin},
	{ErrMaintenanceMarginBreach, ReasonMaintenanceMarginBreach},
	{ErrInvalidIntent, ReasonInvalidIntent},
}

// ReasonOf maps a rejection error to its reason code. Errors outside the
// rejection taxonomy map to the empty reason.
func ReasonOf(err error) RejectReason {
	for _, r := range reasonByErr {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}
