package portfolio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-trader/internal/errors"
	"portfolio-trader/internal/logging"
	"portfolio-trader/internal/models"
	"portfolio-trader/internal/timer"
	"portfolio-trader/internal/venue"
)

// Outcome is the terminal result of an order transaction.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeFilled
	OutcomeCanceled
	OutcomeRejected
	OutcomeCancelRejected
	OutcomeSubmitFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCancelRejected:
		return "cancel_rejected"
	case OutcomeSubmitFailed:
		return "submit_failed"
	}
	return "none"
}

// OrderOptions customizes a single order submission. Zero values fall
// back to the owning trade's defaults.
type OrderOptions struct {
	Timeout       time.Duration
	TimeoutPolicy OrderTimeoutPolicy
	FillPolicy    FillPolicy
	Block         bool
}

// OrderProcessor owns the outbound order flow for exactly one Trade.
// At most one order is in flight at a time; each submission runs on a
// dedicated worker goroutine that blocks until the order reaches a
// terminal state or its timeout expires. Completion callbacks are
// invoked by the Trade's report handlers under the shared trade lock.
type OrderProcessor struct {
	mu    *sync.Mutex // shared with the parent Trade
	trade *Trade
	venue venue.Venue

	brokerID string
	account  string

	inFlight       bool
	pendingOrderID string
	cancelOrderID  string
	perOrderFill   FillPolicy

	// Reports that arrive after submission but before the worker has
	// recorded the venue-assigned order id. Replayed on registration.
	deferred []models.ExecutionReport

	timer         *timer.Timer
	timeoutHandle timer.Handle

	done          chan struct{} // closed when the current order reaches a terminal state
	cancelDone    chan struct{} // closed when the current cancel request resolves
	outcome       Outcome
	cancelOutcome Outcome

	logger zerolog.Logger
}

func newOrderProcessor(trade *Trade, mu *sync.Mutex, logger zerolog.Logger) *OrderProcessor {
	return &OrderProcessor{
		mu:     mu,
		trade:  trade,
		timer:  timer.New(),
		logger: logger,
	}
}

// SetAccountInfo sets the trading credentials used on outbound orders.
func (p *OrderProcessor) SetAccountInfo(brokerID, account string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokerID = brokerID
	p.account = account
}

// AttachVenue connects the processor to an execution venue.
func (p *OrderProcessor) AttachVenue(v venue.Venue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.venue = v
}

// BrokerID returns the broker id orders are tagged with.
func (p *OrderProcessor) BrokerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brokerID
}

// Account returns the account orders are tagged with.
func (p *OrderProcessor) Account() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account
}

// PendingOrderID returns the id of the in-flight order, or "".
func (p *OrderProcessor) PendingOrderID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingOrderID
}

// CancelOrderID returns the id of the outstanding cancel request, or "".
func (p *OrderProcessor) CancelOrderID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelOrderID
}

// IsPending reports whether an order is currently in flight.
func (p *OrderProcessor) IsPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isPendingLocked()
}

func (p *OrderProcessor) isPendingLocked() bool {
	return p.inFlight || p.pendingOrderID != ""
}

// LastOutcome returns the terminal result of the most recent order.
func (p *OrderProcessor) LastOutcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// LastCancelOutcome returns the result of the most recent cancel
// request. Tracked apart from the order outcome: a refused cancel
// leaves the order itself pending and unresolved.
func (p *OrderProcessor) LastCancelOutcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelOutcome
}

// SendOrder submits a market order for qty at the given side. It fails
// fast when credentials or the venue are missing, refuses to stack a
// second order on a pending one, and otherwise hands the order to a
// worker goroutine. The returned channel closes when the worker
// finishes (terminal report or unhandled timeout); with opts.Block the
// call itself waits for it.
func (p *OrderProcessor) SendOrder(qty int64, side models.Side, opts OrderOptions) (<-chan struct{}, error) {
	if qty <= 0 {
		p.logger.Warn().Int64("quantity", qty).Msg("refusing order with non-positive quantity")
		return nil, errors.ErrZeroQuantity
	}

	p.mu.Lock()

	// Configuration errors are fatal: trading without credentials or a
	// venue must never silently proceed.
	if p.brokerID == "" || p.account == "" {
		p.mu.Unlock()
		return nil, errors.ErrNoAccountInfo
	}
	if p.venue == nil {
		p.mu.Unlock()
		return nil, errors.ErrNoVenue
	}

	// Single-flight guard: a second order while one is pending is a
	// protocol violation, logged and dropped.
	if p.isPendingLocked() {
		id := p.pendingOrderID
		p.mu.Unlock()
		p.logger.Warn().
			Str("pending_order_id", id).
			Msg("cannot send an order while another is pending")
		return nil, errors.ErrOrderPending
	}

	// Trade fields are guarded by the same mutex, so read them
	// directly rather than through the locking accessors.
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.trade.orderTimeout
	}
	timeoutPolicy := opts.TimeoutPolicy
	if timeoutPolicy == nil {
		timeoutPolicy = p.trade.orderTimeoutPolicy
	}

	order := models.Order{
		Symbol:   p.trade.symbol,
		BrokerID: p.brokerID,
		Account:  p.account,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: qty,
		PlacedAt: time.Now(),
	}

	p.inFlight = true
	p.perOrderFill = opts.FillPolicy
	p.outcome = OutcomeNone
	p.cancelOutcome = OutcomeNone
	p.done = make(chan struct{})
	v := p.venue
	done := p.done
	p.mu.Unlock()

	workerDone := make(chan struct{})
	go p.worker(v, order, timeout, timeoutPolicy, done, workerDone)

	if opts.Block {
		<-workerDone
	}
	return workerDone, nil
}

// worker submits the order, arms the advisory timeout, and waits for a
// terminal outcome or timeout expiry.
func (p *OrderProcessor) worker(v venue.Venue, order models.Order, timeout time.Duration,
	timeoutPolicy OrderTimeoutPolicy, done, workerDone chan struct{}) {
	defer close(workerDone)

	id, err := v.Submit(order)
	if err != nil {
		p.logger.Error().Err(err).Str("symbol", order.Symbol).Msg("order submission failed")
		p.mu.Lock()
		p.outcome = OutcomeSubmitFailed
		deferred := p.takeDeferredLocked()
		p.completeLocked()
		p.mu.Unlock()
		p.replay(deferred)
		return
	}

	timedOut := make(chan struct{})
	p.mu.Lock()
	p.pendingOrderID = id
	deferred := p.takeDeferredLocked()
	p.timeoutHandle = p.timer.FireIn(timeout, func() {
		p.onTimeout(id, timeout, timeoutPolicy, timedOut)
	})
	p.mu.Unlock()

	logging.LogOrder(p.logger, id, order.Symbol, order.Side.String(), "SENT")

	// Reports that raced the submission are applied now that the
	// order id is known.
	p.replay(deferred)

	select {
	case <-done:
	case <-timedOut:
		// The order may still be pending; only a terminal report
		// clears it. Returning here just releases a blocked caller.
	}
}

// onTimeout runs when the advisory timeout fires. A timeout whose
// order already completed is a no-op.
func (p *OrderProcessor) onTimeout(orderID string, timeout time.Duration,
	policy OrderTimeoutPolicy, timedOut chan struct{}) {
	p.mu.Lock()
	still := p.pendingOrderID == orderID
	p.mu.Unlock()
	if !still {
		return
	}
	if policy != nil {
		policy(orderID, timeout, p.trade)
	}
	close(timedOut)
}

// CancelOrder requests cancellation of the pending order. With block
// it waits until the venue confirms or rejects the cancel.
func (p *OrderProcessor) CancelOrder(block bool) error {
	p.mu.Lock()
	if p.pendingOrderID == "" {
		p.mu.Unlock()
		p.logger.Warn().Msg("there is no pending order to cancel")
		return errors.ErrNoPendingOrder
	}
	if p.venue == nil {
		p.mu.Unlock()
		return errors.ErrNoVenue
	}
	id := p.pendingOrderID
	v := p.venue
	if p.cancelDone == nil {
		p.cancelDone = make(chan struct{})
	}
	cancelDone := p.cancelDone
	p.mu.Unlock()

	cancelID, err := v.RequestCancel(id)
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", id).Msg("cancel request failed")
		return err
	}

	// The order may have resolved while the cancel request was on the
	// wire; only record the cancel id against a still-pending order.
	p.mu.Lock()
	if p.pendingOrderID == id {
		p.cancelOrderID = cancelID
	}
	p.mu.Unlock()

	p.logger.Debug().
		Str("cancel_order_id", cancelID).
		Str("order_id", id).
		Msg("sent cancel request")

	if block {
		<-cancelDone
	}
	return nil
}

// orderSuccessLocked completes the current transaction as filled. Called by
// the Trade's report handler under the trade lock; returns the filled
// order id and the fill policy to run once the lock is released.
func (p *OrderProcessor) orderSuccessLocked() (string, FillPolicy) {
	orderID := p.pendingOrderID
	fill := p.perOrderFill
	p.pendingOrderID = ""

	if p.cancelOrderID != "" {
		p.logger.Warn().
			Str("cancel_order_id", p.cancelOrderID).
			Msg("order filled before cancel could execute")
	}

	p.outcome = OutcomeFilled
	p.completeLocked()
	return orderID, fill
}

// cancelSuccessLocked completes the current transaction as canceled.
func (p *OrderProcessor) cancelSuccessLocked() {
	p.pendingOrderID = ""
	p.outcome = OutcomeCanceled
	p.cancelOutcome = OutcomeCanceled
	p.completeLocked()
}

// orderFailureLocked completes the current transaction without a fill.
func (p *OrderProcessor) orderFailureLocked() {
	p.pendingOrderID = ""
	if p.cancelOrderID != "" {
		p.logger.Warn().
			Str("cancel_order_id", p.cancelOrderID).
			Msg("order failed with a cancel outstanding")
	}
	p.outcome = OutcomeRejected
	p.completeLocked()
}

// cancelFailureLocked resolves a rejected cancel request. The original
// order stays pending, so only the cancel side of the transaction is
// resolved here.
func (p *OrderProcessor) cancelFailureLocked() {
	p.cancelOrderID = ""
	p.cancelOutcome = OutcomeCancelRejected
	p.completeCancelLocked()
}

// completeLocked resolves the whole transaction. Any terminal outcome
// must release a blocked canceler too: a cancel request can be on the
// wire, with its waiter parked, before its cancel id is recorded.
func (p *OrderProcessor) completeLocked() {
	p.inFlight = false
	p.perOrderFill = nil
	p.cancelOrderID = ""
	p.killTimeoutLocked()
	p.completeCancelLocked()
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

func (p *OrderProcessor) completeCancelLocked() {
	if p.cancelDone != nil {
		close(p.cancelDone)
		p.cancelDone = nil
	}
}

func (p *OrderProcessor) takeDeferredLocked() []models.ExecutionReport {
	deferred := p.deferred
	p.deferred = nil
	return deferred
}

func (p *OrderProcessor) replay(reports []models.ExecutionReport) {
	for _, report := range reports {
		p.trade.AcceptExecutionReport(report)
	}
}

func (p *OrderProcessor) killTimeoutLocked() {
	if p.timeoutHandle != 0 {
		p.timer.Kill(p.timeoutHandle)
		p.timeoutHandle = 0
	}
}

// KillTimer cancels every scheduled timeout callback. Used when the
// processor is being discarded.
func (p *OrderProcessor) KillTimer() {
	p.timer.KillAll()
}
