package engine

import (
	"papertrade/types"
)

type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "EXECUTED"
	StatusRejected ExecutionStatus = "REJECTED"
)

// ExecutionDetail is the outcome of one order intent. Trade is set only when
// the intent was executed; Reason and Message only when it was rejected.
type ExecutionDetail struct {
	Intent  types.OrderIntent
	Status  ExecutionStatus
	Trade   *types.Trade
	Reason  RejectReason
	Message string
}

func newExecutedDetail(intent types.OrderIntent, trade types.Trade) ExecutionDetail {
	return ExecutionDetail{
		Intent: intent,
		Status: StatusExecuted,
		Trade:  &trade,
	}
}

func newRejectedDetail(intent types.OrderIntent, err error) ExecutionDetail {
	return ExecutionDetail{
		Intent:  intent,
		Status:  StatusRejected,
		Reason:  ReasonOf(err),
		Message: err.Error(),
	}
}

func (d ExecutionDetail) Executed() bool {
	return d.Status == StatusExecuted
}
