package portfolio

import (
	"time"

	"portfolio-trader/internal/logging"
	"portfolio-trader/internal/models"
)

// FillPolicy runs when a pending order completes with a fill.
// Policies execute on the report-processing path, outside the trade
// lock, and must not block indefinitely.
type FillPolicy func(orderID string, trade *Trade)

// OrderTimeoutPolicy runs when an order is still pending after its
// timeout elapses. The timeout is advisory: the policy decides whether
// to cancel, escalate, or just log.
type OrderTimeoutPolicy func(orderID string, timeout time.Duration, trade *Trade)

// RejectPolicy runs when the venue rejects an order.
type RejectPolicy func(orderID string, trade *Trade, report models.ExecutionReport)

// ExternalReportPolicy decides what to do with execution reports whose
// order id does not match the trade's pending order.
type ExternalReportPolicy int

const (
	// IgnoreExternal drops reports for unknown order ids with a warning.
	IgnoreExternal ExternalReportPolicy = iota
	// AdoptExternal incorporates reports that arrive while no order is
	// pending, keeping the tracked position in sync with venue-side
	// activity. Reports for a foreign id while an order is pending are
	// still dropped.
	AdoptExternal
)

func (p ExternalReportPolicy) String() string {
	if p == AdoptExternal {
		return "adopt"
	}
	return "ignore"
}

// WarnOnFill is the stock fill policy: it logs the fill.
func WarnOnFill(orderID string, trade *Trade) {
	pos := trade.Position()
	logging.LogFill(trade.Logger(), orderID, pos.Symbol, pos.Side.String(), pos.Quantity, pos.AveragePrice)
}

// WarnOnTimeout is the stock timeout policy: it logs the timeout and
// leaves the order pending.
func WarnOnTimeout(orderID string, timeout time.Duration, trade *Trade) {
	logging.LogTimeout(trade.Logger(), orderID, trade.Symbol(), timeout)
}

// CancelOnTimeout logs the timeout and requests a cancel of the
// timed-out order without waiting for the result.
func CancelOnTimeout(orderID string, timeout time.Duration, trade *Trade) {
	logging.LogTimeout(trade.Logger(), orderID, trade.Symbol(), timeout)
	if err := trade.CancelOrder(false); err != nil {
		logger := trade.Logger()
		logger.Warn().Err(err).Str("order_id", orderID).Msg("timeout cancel failed")
	}
}

// WarnOnReject is the stock reject policy: it logs the rejection.
func WarnOnReject(orderID string, trade *Trade, report models.ExecutionReport) {
	logger := trade.Logger()
	logger.Warn().
		Str("order_id", orderID).
		Str("symbol", trade.Symbol()).
		Str("text", report.Text).
		Msg("Order rejected")
}
