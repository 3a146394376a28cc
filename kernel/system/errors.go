package system

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoActor             = errors.New("call frame has no actor")
	ErrNoReceiver          = errors.New("method requires a receiver")
	ErrMethodNotFound      = errors.New("native method not found")
	ErrSubstateTooLarge    = errors.New("substate too large")
	ErrCostLimitExceeded   = errors.New("execution cost limit exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidArgs         = errors.New("invalid arguments")
)

// CostLimitError reports the cost units consumed when the limit was reached.
type CostLimitError struct {
	Limit    uint64
	Consumed uint64
	Reason   string
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("%v: %d > %d (%s)", ErrCostLimitExceeded, e.Consumed, e.Limit, e.Reason)
}

func (e *CostLimitError) Unwrap() error {
	return ErrCostLimitExceeded
}
