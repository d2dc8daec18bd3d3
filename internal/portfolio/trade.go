// Package portfolio implements per-instrument position accounting and
// order lifecycle management against an asynchronous execution venue.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-trader/internal/errors"
	"portfolio-trader/internal/logging"
	"portfolio-trader/internal/models"
	"portfolio-trader/internal/venue"
)

// DefaultOrderTimeout applies to trades whose timeout was never
// customized, directly or through a portfolio.
const DefaultOrderTimeout = time.Minute

// Trade is the position ledger and order state machine for a single
// instrument. All quantities are unsigned magnitudes; direction lives
// in the side, so signed exposure is always side.Polarize(quantity).
//
// Ledger fields are mutated only by the report-handling path and the
// override escape hatches, always under the trade's own lock. Reads
// from other goroutines go through the accessors or Position().
type Trade struct {
	mu sync.Mutex

	symbol   string
	quantity int64
	side     models.Side

	cumulativeQty int64
	leavesQty     int64
	pendingSide   models.Side
	orderStatus   models.OrderStatus
	averagePrice  float64
	entryPrice    float64

	lastTrade *models.TradeTick
	lastBid   *models.BidTick
	lastAsk   *models.AskTick

	orderTimeout       time.Duration
	fillPolicy         FillPolicy
	orderTimeoutPolicy OrderTimeoutPolicy
	rejectPolicy       RejectPolicy
	externalReports    ExternalReportPolicy

	parent *Portfolio
	proc   *OrderProcessor

	logger zerolog.Logger
}

// NewTrade creates a detached Trade with stock policies. Adding it to
// a Portfolio attaches credentials, venue, and portfolio defaults.
func NewTrade(symbol string, logger zerolog.Logger) *Trade {
	t := &Trade{
		symbol:             symbol,
		side:               models.SideNone,
		pendingSide:        models.SideNone,
		orderTimeout:       DefaultOrderTimeout,
		fillPolicy:         WarnOnFill,
		orderTimeoutPolicy: WarnOnTimeout,
		rejectPolicy:       WarnOnReject,
		externalReports:    IgnoreExternal,
		logger:             logging.WithSymbol(logger, symbol),
	}
	t.proc = newOrderProcessor(t, &t.mu, t.logger)
	return t
}

// Processor returns the trade's order processor.
func (t *Trade) Processor() *OrderProcessor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc
}

// ResetProcessor discards the order processor and attaches a fresh one
// bound to the given venue. Required after restoring a trade from a
// snapshot; any scheduled timeout callbacks of the old processor die
// with it.
func (t *Trade) ResetProcessor(v venue.Venue) {
	t.mu.Lock()
	old := t.proc
	t.proc = newOrderProcessor(t, &t.mu, t.logger)
	t.proc.brokerID = old.brokerID
	t.proc.account = old.account
	t.proc.venue = v
	t.mu.Unlock()

	old.KillTimer()
}

// Logger returns the trade-scoped logger.
func (t *Trade) Logger() zerolog.Logger {
	return t.logger
}

// Symbol returns the immutable instrument identifier.
func (t *Trade) Symbol() string {
	return t.symbol
}

// Quantity returns the unsigned settled position, excluding any
// currently filling order.
func (t *Trade) Quantity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quantity
}

// Side returns the direction of the settled position.
func (t *Trade) Side() models.Side {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.side
}

// SignedQuantity returns the signed settled exposure.
func (t *Trade) SignedQuantity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.side.Polarize(t.quantity)
}

// NetQuantity returns the instantaneous position including fills of
// the pending order so far. A negative result means the fills have
// carried the position past flat onto the other side.
func (t *Trade) NetQuantity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.netQuantityLocked()
}

func (t *Trade) netQuantityLocked() int64 {
	return t.quantity + t.side.Polarity(t.pendingSide)*t.cumulativeQty
}

// CumulativeQuantity returns the filled magnitude of the pending
// order, or 0 when nothing is pending.
func (t *Trade) CumulativeQuantity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulativeQty
}

// LeavesQuantity returns the unfilled magnitude of the pending order.
func (t *Trade) LeavesQuantity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leavesQty
}

// PendingSide returns the side reported for the in-flight order's fills.
func (t *Trade) PendingSide() models.Side {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingSide
}

// OrderStatus returns the status of the last pertinent execution report.
func (t *Trade) OrderStatus() models.OrderStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orderStatus
}

// AveragePrice returns the average fill price of the latest report.
func (t *Trade) AveragePrice() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.averagePrice
}

// EntryPrice returns the average price captured when the trade moved
// from flat to open, or 0 while flat.
func (t *Trade) EntryPrice() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entryPrice
}

// IsPending reports whether an order is in flight for this trade.
func (t *Trade) IsPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc.isPendingLocked()
}

// IsFilling reports whether a pending order has unfilled quantity.
func (t *Trade) IsFilling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc.isPendingLocked() && t.leavesQty != 0
}

// IsOpen reports whether the trade holds a position or is filling one.
func (t *Trade) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quantity != 0 || (t.proc.isPendingLocked() && t.leavesQty != 0)
}

// PendingOrderID returns the in-flight order id, or "".
func (t *Trade) PendingOrderID() string {
	return t.proc.PendingOrderID()
}

// LastPrice returns the last trade tick price, or 0 when no tick has
// been seen.
func (t *Trade) LastPrice() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastTrade == nil {
		return 0
	}
	return t.lastTrade.Price
}

// ProfitLoss returns the open P&L of the settled position marked
// against the last trade price, or 0 without a tick or position.
func (t *Trade) ProfitLoss() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastTrade == nil || t.quantity == 0 {
		return 0
	}
	return float64(t.side.Polarize(t.quantity)) * (t.lastTrade.Price - t.entryPrice)
}

// OrderTimeout returns the trade's default order timeout.
func (t *Trade) OrderTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orderTimeout
}

// SetOrderTimeout sets the trade's default order timeout.
func (t *Trade) SetOrderTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orderTimeout = d
}

// FillPolicy returns the trade's fill policy.
func (t *Trade) FillPolicy() FillPolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fillPolicy
}

// SetFillPolicy replaces the trade's fill policy.
func (t *Trade) SetFillPolicy(p FillPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fillPolicy = p
}

// OrderTimeoutPolicy returns the trade's timeout policy.
func (t *Trade) OrderTimeoutPolicy() OrderTimeoutPolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orderTimeoutPolicy
}

// SetOrderTimeoutPolicy replaces the trade's timeout policy.
func (t *Trade) SetOrderTimeoutPolicy(p OrderTimeoutPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orderTimeoutPolicy = p
}

// RejectPolicy returns the trade's reject policy.
func (t *Trade) RejectPolicy() RejectPolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejectPolicy
}

// SetRejectPolicy replaces the trade's reject policy.
func (t *Trade) SetRejectPolicy(p RejectPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejectPolicy = p
}

// ExternalReportPolicy returns the handling of unmatched reports.
func (t *Trade) ExternalReportPolicy() ExternalReportPolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.externalReports
}

// SetExternalReportPolicy sets the handling of unmatched reports.
func (t *Trade) SetExternalReportPolicy(p ExternalReportPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.externalReports = p
}

// OverrideQuantity forcefully changes the settled quantity. Used to
// reconcile against venue-reported positions; be sure you know what
// you are doing.
func (t *Trade) OverrideQuantity(qty int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quantity = qty
	if t.quantity == 0 {
		t.side = models.SideNone
		t.entryPrice = 0
	}
}

// OverrideSide forcefully changes the settled side. Same caveats as
// OverrideQuantity.
func (t *Trade) OverrideSide(side models.Side) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.side = side
}

// PositionSnapshot is a consistent copy of a trade's accounting state.
type PositionSnapshot struct {
	Symbol         string
	Quantity       int64
	Side           models.Side
	EntryPrice     float64
	AveragePrice   float64
	LastPrice      float64
	Pending        bool
	PendingOrderID string
	CumulativeQty  int64
	LeavesQty      int64
}

// Position returns a snapshot of the trade's current state.
func (t *Trade) Position() PositionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	last := 0.0
	if t.lastTrade != nil {
		last = t.lastTrade.Price
	}
	return PositionSnapshot{
		Symbol:         t.symbol,
		Quantity:       t.quantity,
		Side:           t.side,
		EntryPrice:     t.entryPrice,
		AveragePrice:   t.averagePrice,
		LastPrice:      last,
		Pending:        t.proc.isPendingLocked(),
		PendingOrderID: t.proc.pendingOrderID,
		CumulativeQty:  t.cumulativeQty,
		LeavesQty:      t.leavesQty,
	}
}

// setParent wires the trade into a portfolio: credentials and venue
// come down from the portfolio, defaults were already pushed by AddTrade.
func (t *Trade) setParent(p *Portfolio) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parent = p
	if p == nil {
		return
	}
	if p.brokerID != "" && p.account != "" {
		t.proc.brokerID = p.brokerID
		t.proc.account = p.account
	}
	if p.venue != nil {
		t.proc.venue = p.venue
	}
}

// ParentPortfolio returns the owning portfolio, or nil.
func (t *Trade) ParentPortfolio() *Portfolio {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parent
}

// EVENT HANDLING //

// AcceptTradeTick records the latest trade tick.
func (t *Trade) AcceptTradeTick(tick models.TradeTick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTrade = &tick
}

// AcceptBidTick records the latest bid tick.
func (t *Trade) AcceptBidTick(tick models.BidTick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastBid = &tick
}

// AcceptAskTick records the latest ask tick.
func (t *Trade) AcceptAskTick(tick models.AskTick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAsk = &tick
}

// LastBid returns the most recent bid tick, or nil.
func (t *Trade) LastBid() *models.BidTick {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastBid
}

// LastAsk returns the most recent ask tick, or nil.
func (t *Trade) LastAsk() *models.AskTick {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAsk
}

// AcceptExecutionReport adjusts the trade based on an inbound
// execution report. Reports for the wrong symbol or account, and
// reports whose order id matches neither the pending order nor its
// cancel, are dropped according to the external-report policy.
//
// Runs on whatever goroutine delivers venue reports; policies fire
// after the ledger mutation, outside the trade lock.
func (t *Trade) AcceptExecutionReport(report models.ExecutionReport) {
	t.mu.Lock()

	if report.Symbol != t.symbol || report.Account != t.proc.account {
		t.mu.Unlock()
		t.logger.Warn().
			Str("report_symbol", report.Symbol).
			Str("report_account", report.Account).
			Str("order_id", report.OrderID).
			Msg("dropping execution report for foreign symbol/account")
		return
	}

	// A report can outrun the submitting worker: the venue has already
	// assigned an order id, but the processor has not recorded it yet.
	// Queue such reports; the worker replays them once the id is known.
	if t.proc.inFlight && t.proc.pendingOrderID == "" {
		t.proc.deferred = append(t.proc.deferred, report)
		t.mu.Unlock()
		t.logger.Debug().
			Str("order_id", report.OrderID).
			Msg("queued report until order id is recorded")
		return
	}

	if !t.admitReportLocked(report) {
		policy := t.externalReports
		t.mu.Unlock()
		t.logger.Warn().
			Str("order_id", report.OrderID).
			Str("status", string(report.Status)).
			Str("policy", policy.String()).
			Msg("dropping external execution report")
		return
	}

	t.orderStatus = report.Status

	var after func()
	switch report.Status {
	case models.OrderStatusNew:
		t.scrapeReportLocked(report)
		t.logger.Debug().Str("order_id", report.OrderID).Msg("order acknowledged")

	case models.OrderStatusPartiallyFilled:
		t.scrapeReportLocked(report)
		if t.side == models.SideNone {
			t.side = report.Side
		}
		t.logger.Info().
			Str("order_id", report.OrderID).
			Int64("cumulative", t.cumulativeQty).
			Int64("leaves", t.leavesQty).
			Msg("partial fill")

	case models.OrderStatusFilled:
		after = t.processFillLocked(report)

	case models.OrderStatusCanceled:
		t.processCanceledLocked(report)

	case models.OrderStatusRejected:
		after = t.processRejectedLocked(report)

	case models.OrderStatusPendingNew, models.OrderStatusPendingCancel:
		// Status recorded above; no side effects.

	default:
		t.logger.Error().
			Str("status", string(report.Status)).
			Msg("execution report status not implemented")
	}

	t.mu.Unlock()

	if after != nil {
		after()
	}
}

// admitReportLocked applies the external-report policy. A report is
// external when its order id matches neither the pending order nor an
// outstanding cancel.
func (t *Trade) admitReportLocked(report models.ExecutionReport) bool {
	id := report.OrderID
	if !t.proc.isPendingLocked() {
		if t.externalReports == AdoptExternal {
			// Incorporate venue-side activity we did not originate.
			t.proc.pendingOrderID = id
			t.logger.Warn().Str("order_id", id).Msg("adopting external execution report")
			return true
		}
		return false
	}
	return id == t.proc.pendingOrderID || id == t.proc.cancelOrderID ||
		report.OriginalOrderID == t.proc.pendingOrderID
}

// scrapeReportLocked copies the accounting fields off a report.
func (t *Trade) scrapeReportLocked(report models.ExecutionReport) {
	t.orderStatus = report.Status
	t.cumulativeQty = report.CumulativeQuantity
	t.leavesQty = report.LeavesQuantity
	t.pendingSide = report.Side
	t.averagePrice = report.AveragePrice
}

func (t *Trade) processFillLocked(report models.ExecutionReport) func() {
	// A fill with no preceding partials must adopt the side here.
	if t.side == models.SideNone {
		t.side = report.Side
	}

	wasFlat := t.quantity == 0

	t.scrapeReportLocked(report)
	t.updateQuantityLocked()

	if wasFlat && t.quantity != 0 {
		t.entryPrice = t.averagePrice
	}

	t.clearPendingFieldsLocked()

	orderID, perOrderFill := t.proc.orderSuccessLocked()
	fill := perOrderFill
	if fill == nil {
		fill = t.fillPolicy
	}

	return func() {
		if fill != nil {
			fill(orderID, t)
		}
	}
}

func (t *Trade) processCanceledLocked(report models.ExecutionReport) {
	// A cancel can carry fills the trade never saw a partial for.
	if t.side == models.SideNone && report.CumulativeQuantity != 0 {
		t.side = report.Side
	}

	wasFlat := t.quantity == 0

	t.scrapeReportLocked(report)
	t.updateQuantityLocked()

	if wasFlat && t.quantity != 0 {
		t.entryPrice = t.averagePrice
	}

	t.clearPendingFieldsLocked()
	t.proc.cancelSuccessLocked()

	t.logger.Info().
		Str("order_id", report.OriginalOrderID).
		Int64("filled_before_cancel", report.CumulativeQuantity).
		Msg("order canceled")
}

func (t *Trade) processRejectedLocked(report models.ExecutionReport) func() {
	// The position is untouched, but any scraped partial-fill fields
	// belong to the dead order and must not leak into net quantity.
	t.clearPendingFieldsLocked()
	t.proc.orderFailureLocked()

	reject := t.rejectPolicy
	orderID := report.OrderID
	return func() {
		if reject != nil {
			reject(orderID, t, report)
		}
	}
}

// updateQuantityLocked folds the pending order's cumulative fills into
// the settled position. A negative net means the fills overshot the
// existing exposure and the position has switched sides.
func (t *Trade) updateQuantityLocked() {
	net := t.netQuantityLocked()
	if net < 0 {
		t.side = t.side.Opposite()
		net = -net
		t.logger.Info().Msg("position has switched sides")
	}
	t.quantity = net
	if t.quantity == 0 {
		t.side = models.SideNone
		t.entryPrice = 0
	}
}

func (t *Trade) clearPendingFieldsLocked() {
	t.cumulativeQty = 0
	t.leavesQty = 0
	t.pendingSide = models.SideNone
}

// AcceptCancelReject resolves a refused cancel request. The original
// order remains pending; only the blocked canceler is released.
func (t *Trade) AcceptCancelReject(reject models.CancelReject) {
	t.mu.Lock()
	match := reject.OrderID == t.proc.cancelOrderID ||
		reject.OriginalOrderID == t.proc.pendingOrderID
	if match {
		t.proc.cancelFailureLocked()
	}
	t.mu.Unlock()

	if match {
		t.logger.Warn().
			Str("cancel_order_id", reject.OrderID).
			Str("order_id", reject.OriginalOrderID).
			Str("text", reject.Text).
			Msg("cancel request rejected")
	} else {
		t.logger.Warn().
			Str("cancel_order_id", reject.OrderID).
			Msg("dropping cancel reject for unknown cancel")
	}
}

// TRADING OPERATIONS //

// MarketOrder sends a market order for qty at the given side using the
// trade's default timeout and policies.
func (t *Trade) MarketOrder(qty int64, side models.Side, block bool) error {
	_, err := t.proc.SendOrder(qty, side, OrderOptions{Block: block})
	return err
}

// MarketOrderOpts sends a market order with per-order options.
func (t *Trade) MarketOrderOpts(qty int64, side models.Side, opts OrderOptions) error {
	_, err := t.proc.SendOrder(qty, side, opts)
	return err
}

// LongMarket buys qty at market.
func (t *Trade) LongMarket(qty int64, block bool) error {
	return t.MarketOrder(qty, models.SideBuy, block)
}

// ShortMarket sells qty at market.
func (t *Trade) ShortMarket(qty int64, block bool) error {
	return t.MarketOrder(qty, models.SideSell, block)
}

// AugmentMarket adds qty to the position on its current side.
func (t *Trade) AugmentMarket(qty int64, block bool) error {
	return t.MarketOrder(qty, t.Side(), block)
}

// ReduceMarket trades qty against the position's side. Reducing by
// more than the settled quantity is refused.
func (t *Trade) ReduceMarket(qty int64, block bool) error {
	t.mu.Lock()
	held := t.quantity
	side := t.side
	t.mu.Unlock()

	// Also covers the flat case: side NONE means held is 0.
	if qty > held {
		t.logger.Warn().
			Int64("quantity", qty).
			Int64("held", held).
			Msg("cannot reduce more than held")
		return errors.ErrReduceExceedsPosition
	}
	return t.MarketOrder(qty, side.Opposite(), block)
}

// CloseMarket flattens the trade: any pending order is canceled first,
// then the remaining position is traded out at market.
func (t *Trade) CloseMarket(block bool) error {
	if t.IsPending() {
		if err := t.CancelOrder(true); err != nil {
			return fmt.Errorf("canceling pending order before close: %w", err)
		}
	}
	t.mu.Lock()
	held := t.quantity
	side := t.side
	t.mu.Unlock()
	if held == 0 {
		return nil
	}
	return t.MarketOrder(held, side.Opposite(), block)
}

// CancelOrder requests cancellation of the pending order.
func (t *Trade) CancelOrder(block bool) error {
	return t.proc.CancelOrder(block)
}

func (t *Trade) String() string {
	pos := t.Position()
	sign := ""
	switch pos.Side {
	case models.SideBuy:
		sign = "+"
	case models.SideSell:
		sign = "-"
	}
	pending := ""
	if pos.Pending && pos.LeavesQty != 0 {
		pending = fmt.Sprintf("(%dcq/%dlq)", pos.CumulativeQty, pos.LeavesQty)
	}
	return fmt.Sprintf("{%s:[%.2f]:%s%d%s@%.4f}",
		pos.Symbol, pos.LastPrice, sign, pos.Quantity, pending, pos.AveragePrice)
}
