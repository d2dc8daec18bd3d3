// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Configuration errors. These are fatal: an order processor without
// account information or a venue must never send orders.
var (
	ErrNoAccountInfo = errors.New("no account information set")
	ErrNoVenue       = errors.New("no venue attached")
	ErrNoPortfolio   = errors.New("trade has no parent portfolio")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Protocol violations. These are logged and the offending operation is
// a no-op; callers may inspect the returned sentinel or ignore it.
var (
	ErrOrderPending          = errors.New("an order is already pending")
	ErrNoPendingOrder        = errors.New("no pending order")
	ErrReduceExceedsPosition = errors.New("cannot reduce more than held")
	ErrTradeOpen             = errors.New("trade already exists and is open")
	ErrTradeNotFlat          = errors.New("trade has a non-zero net position")
	ErrTradeNotFound         = errors.New("no trade exists for symbol")
	ErrZeroQuantity          = errors.New("order quantity must be positive")
)

// Errors returned by the snapshot store.
var (
	ErrSnapshotNotFound = errors.New("no snapshot found")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ReportMismatchError describes an inbound execution report that does
// not belong to the trade it was delivered to.
type ReportMismatchError struct {
	Symbol  string
	Account string
	OrderID string
	Reason  string
}

func (e *ReportMismatchError) Error() string {
	return fmt.Sprintf("report mismatch [%s/%s] order %s: %s",
		e.Symbol, e.Account, e.OrderID, e.Reason)
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error [%s] %s %s: %v", e.OrderID, e.Action, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Err:     err,
	}
}
