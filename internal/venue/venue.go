// Package venue defines the execution venue boundary of the trading core.
package venue

import "portfolio-trader/internal/models"

// Venue is the outbound order interface. Submission is fire-and-forget:
// the venue acknowledges with an order id and reports progress
// asynchronously through execution reports.
type Venue interface {
	// Submit sends an order and returns the venue-assigned order id.
	Submit(order models.Order) (string, error)

	// RequestCancel asks the venue to cancel a previously submitted
	// order and returns the id of the cancel request itself.
	RequestCancel(orderID string) (string, error)
}

// ReportHandler consumes venue messages. The routing of reports to the
// correct handler by symbol and account is the embedding application's
// concern; this core only exposes the entry points.
type ReportHandler interface {
	AcceptExecutionReport(report models.ExecutionReport)
	AcceptCancelReject(reject models.CancelReject)
}
