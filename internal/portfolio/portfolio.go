package portfolio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-trader/internal/errors"
	"portfolio-trader/internal/models"
	"portfolio-trader/internal/venue"
)

// Portfolio is an ordered collection of trades keyed by symbol. It
// owns the account credentials and the default policies pushed into
// each trade when it is added. Defaults set on the portfolio after a
// trade was added are applied through the live Set* methods, never
// implicitly.
type Portfolio struct {
	mu sync.RWMutex

	trades map[string]*Trade
	order  []string // insertion order of symbols

	brokerID string
	account  string
	venue    venue.Venue

	// Defaults pushed into trades at add time; nil/zero means unset.
	fillPolicy         FillPolicy
	orderTimeoutPolicy OrderTimeoutPolicy
	rejectPolicy       RejectPolicy
	orderTimeout       time.Duration
	externalReports    *ExternalReportPolicy

	logger zerolog.Logger
}

// New creates an empty portfolio bound to a venue.
func New(v venue.Venue, logger zerolog.Logger) *Portfolio {
	return &Portfolio{
		trades: make(map[string]*Trade),
		venue:  v,
		logger: logger,
	}
}

// SetAccountInfo sets the credentials pushed into trades added from
// now on. Trades already held keep their credentials.
func (p *Portfolio) SetAccountInfo(brokerID, account string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokerID = brokerID
	p.account = account
}

// BrokerID returns the portfolio's broker id.
func (p *Portfolio) BrokerID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.brokerID
}

// Account returns the portfolio's account string.
func (p *Portfolio) Account() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account
}

// IsAccountInfoSet reports whether both credentials are present.
func (p *Portfolio) IsAccountInfoSet() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.brokerID != "" && p.account != ""
}

// AddTrade inserts a trade, pushing the portfolio's currently set
// defaults and credentials into it. A trade whose symbol is already
// held by an open trade is refused; a flat stale trade is replaced.
func (p *Portfolio) AddTrade(t *Trade) error {
	if t == nil {
		return nil
	}
	symbol := t.Symbol()

	p.mu.Lock()
	if existing, ok := p.trades[symbol]; ok {
		if existing.IsOpen() {
			p.mu.Unlock()
			p.logger.Error().
				Str("symbol", symbol).
				Msg("trade already exists and is open")
			return errors.ErrTradeOpen
		}
		p.logger.Warn().
			Str("symbol", symbol).
			Msg("replacing existing flat trade")
	} else {
		p.order = append(p.order, symbol)
	}

	// Push only the defaults that are currently set; a trade that
	// arrives with its own customized policy keeps it otherwise.
	if p.orderTimeoutPolicy != nil {
		t.SetOrderTimeoutPolicy(p.orderTimeoutPolicy)
	}
	if p.orderTimeout != 0 {
		t.SetOrderTimeout(p.orderTimeout)
	}
	if p.fillPolicy != nil {
		t.SetFillPolicy(p.fillPolicy)
	}
	if p.rejectPolicy != nil {
		t.SetRejectPolicy(p.rejectPolicy)
	}
	if p.externalReports != nil {
		t.SetExternalReportPolicy(*p.externalReports)
	}

	p.trades[symbol] = t
	p.mu.Unlock()

	t.setParent(p)
	p.logger.Debug().Str("symbol", symbol).Msg("added trade to portfolio")
	return nil
}

// CreateTrade returns the trade for symbol, creating and adding one
// if none exists.
func (p *Portfolio) CreateTrade(symbol string) *Trade {
	p.mu.RLock()
	if t, ok := p.trades[symbol]; ok {
		p.mu.RUnlock()
		return t
	}
	p.mu.RUnlock()

	t := NewTrade(symbol, p.logger)
	if err := p.AddTrade(t); err != nil {
		// Lost a race with a concurrent add; return the winner.
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.trades[symbol]
	}
	return t
}

// GetTrade returns the trade for symbol, or nil.
func (p *Portfolio) GetTrade(symbol string) *Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trades[symbol]
}

// HasTrade reports whether a trade exists for symbol.
func (p *Portfolio) HasTrade(symbol string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.trades[symbol]
	return ok
}

// RemoveTrade removes a trade. A trade with a non-zero net position
// (settled or in-flight) is refused; liquidate it first.
func (p *Portfolio) RemoveTrade(t *Trade) error {
	if t == nil {
		return nil
	}
	if t.NetQuantity() != 0 || t.IsPending() {
		p.logger.Error().
			Str("symbol", t.Symbol()).
			Int64("net_quantity", t.NetQuantity()).
			Msg("cannot remove a trade with a non-zero net position")
		return errors.ErrTradeNotFlat
	}
	p.ForcefullyRemoveTrade(t)
	return nil
}

// RemoveTradeBySymbol removes the trade held for symbol.
func (p *Portfolio) RemoveTradeBySymbol(symbol string) error {
	p.mu.RLock()
	t := p.trades[symbol]
	p.mu.RUnlock()
	if t == nil {
		p.logger.Error().Str("symbol", symbol).Msg("no trade exists for symbol")
		return errors.ErrTradeNotFound
	}
	return p.RemoveTrade(t)
}

// ForcefullyRemoveTrade removes a trade without the net-position
// guard. Used for reconciliation; be sure you know what you are doing.
func (p *Portfolio) ForcefullyRemoveTrade(t *Trade) {
	symbol := t.Symbol()

	p.mu.Lock()
	if p.trades[symbol] == t {
		delete(p.trades, symbol)
		for i, s := range p.order {
			if s == symbol {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	t.setParent(nil)
	p.logger.Debug().Str("symbol", symbol).Msg("removed trade from portfolio")
}

// Trades returns the held trades in insertion order.
func (p *Portfolio) Trades() []*Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Trade, 0, len(p.order))
	for _, symbol := range p.order {
		out = append(out, p.trades[symbol])
	}
	return out
}

// Symbols returns the held symbols in insertion order.
func (p *Portfolio) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Size returns the number of held trades.
func (p *Portfolio) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.trades)
}

// ForEach runs fn over every trade in insertion order.
func (p *Portfolio) ForEach(fn func(*Trade)) {
	for _, t := range p.Trades() {
		fn(t)
	}
}

// TotalPosition returns the summed signed settled exposure across all
// trades. Pending quantities are excluded.
func (p *Portfolio) TotalPosition() int64 {
	var sum int64
	p.ForEach(func(t *Trade) {
		sum += t.SignedQuantity()
	})
	return sum
}

// Wipe drops every trade without guards.
func (p *Portfolio) Wipe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = make(map[string]*Trade)
	p.order = nil
}

// SetFillPolicy sets the portfolio default and pushes it to every
// currently held trade.
func (p *Portfolio) SetFillPolicy(policy FillPolicy) {
	p.mu.Lock()
	p.fillPolicy = policy
	p.mu.Unlock()
	p.ForEach(func(t *Trade) { t.SetFillPolicy(policy) })
}

// SetRejectPolicy sets the portfolio default and pushes it to every
// currently held trade.
func (p *Portfolio) SetRejectPolicy(policy RejectPolicy) {
	p.mu.Lock()
	p.rejectPolicy = policy
	p.mu.Unlock()
	p.ForEach(func(t *Trade) { t.SetRejectPolicy(policy) })
}

// SetOrderTimeoutPolicy sets the portfolio default and pushes it to
// every currently held trade.
func (p *Portfolio) SetOrderTimeoutPolicy(policy OrderTimeoutPolicy) {
	p.mu.Lock()
	p.orderTimeoutPolicy = policy
	p.mu.Unlock()
	p.ForEach(func(t *Trade) { t.SetOrderTimeoutPolicy(policy) })
}

// SetOrderTimeout sets the portfolio default and pushes it to every
// currently held trade.
func (p *Portfolio) SetOrderTimeout(d time.Duration) {
	p.mu.Lock()
	p.orderTimeout = d
	p.mu.Unlock()
	p.ForEach(func(t *Trade) { t.SetOrderTimeout(d) })
}

// SetExternalReportPolicy sets the portfolio default and pushes it to
// every currently held trade.
func (p *Portfolio) SetExternalReportPolicy(policy ExternalReportPolicy) {
	p.mu.Lock()
	p.externalReports = &policy
	p.mu.Unlock()
	p.ForEach(func(t *Trade) { t.SetExternalReportPolicy(policy) })
}

// RouteExecutionReport delivers a report to the trade holding its
// symbol. Convenience wiring for embedders without a dispatch layer;
// reports for unknown symbols are dropped with a warning.
func (p *Portfolio) RouteExecutionReport(report models.ExecutionReport) {
	t := p.GetTrade(report.Symbol)
	if t == nil {
		p.logger.Warn().
			Str("symbol", report.Symbol).
			Str("order_id", report.OrderID).
			Msg("dropping report for unknown symbol")
		return
	}
	t.AcceptExecutionReport(report)
}

// RouteCancelReject delivers a cancel reject to the trade whose
// processor owns the cancel. Cancel rejects carry no symbol, so every
// trade is probed for a matching id.
func (p *Portfolio) RouteCancelReject(reject models.CancelReject) {
	for _, t := range p.Trades() {
		if t.Processor().CancelOrderID() == reject.OrderID ||
			t.Processor().PendingOrderID() == reject.OriginalOrderID {
			t.AcceptCancelReject(reject)
			return
		}
	}
	p.logger.Warn().
		Str("cancel_order_id", reject.OrderID).
		Msg("dropping cancel reject matching no trade")
}
