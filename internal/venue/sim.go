package venue

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-trader/internal/models"
)

// SimVenue is an in-process venue simulation. Market orders fill
// against a configurable price table after an optional latency,
// in one piece or in fixed-size partial lots. Reports are delivered
// asynchronously to the registered handlers, mimicking a live venue's
// dispatcher thread.
type SimVenue struct {
	mu sync.Mutex

	prices      map[string]float64
	latency     time.Duration
	partialLots int64

	orderCounter  int
	cancelCounter int
	open          map[string]*simOrder

	onReport       func(models.ExecutionReport)
	onCancelReject func(models.CancelReject)

	logger zerolog.Logger
}

type simOrder struct {
	order    models.Order
	id       string
	cum      int64
	leaves   int64
	canceled bool
}

// SimVenueConfig holds configuration for the simulated venue.
type SimVenueConfig struct {
	// Latency is the delay between submission and the first report.
	Latency time.Duration
	// PartialLots, when positive, fills orders in chunks of this size.
	PartialLots int64
	// Prices seeds the price table. Unknown symbols fill at 100.
	Prices map[string]float64
	Logger zerolog.Logger
}

// NewSimVenue creates a new simulated venue.
func NewSimVenue(cfg SimVenueConfig) *SimVenue {
	prices := make(map[string]float64, len(cfg.Prices))
	for sym, px := range cfg.Prices {
		prices[sym] = px
	}
	return &SimVenue{
		prices:      prices,
		latency:     cfg.Latency,
		partialLots: cfg.PartialLots,
		open:        make(map[string]*simOrder),
		logger:      cfg.Logger,
	}
}

// OnReport registers the execution report handler.
func (v *SimVenue) OnReport(handler func(models.ExecutionReport)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onReport = handler
}

// OnCancelReject registers the cancel reject handler.
func (v *SimVenue) OnCancelReject(handler func(models.CancelReject)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onCancelReject = handler
}

// SetPrice updates the fill price for a symbol.
func (v *SimVenue) SetPrice(symbol string, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[symbol] = price
}

// Submit accepts a market order and schedules its fills.
func (v *SimVenue) Submit(order models.Order) (string, error) {
	if order.Quantity <= 0 {
		return "", fmt.Errorf("sim venue: order quantity must be positive, got %d", order.Quantity)
	}
	if order.Side == models.SideNone {
		return "", fmt.Errorf("sim venue: order for %s has no side", order.Symbol)
	}

	v.mu.Lock()
	v.orderCounter++
	id := fmt.Sprintf("SIM-%d", v.orderCounter)
	so := &simOrder{order: order, id: id, leaves: order.Quantity}
	v.open[id] = so
	v.mu.Unlock()

	v.logger.Debug().
		Str("order_id", id).
		Str("symbol", order.Symbol).
		Str("side", order.Side.String()).
		Int64("quantity", order.Quantity).
		Msg("sim venue accepted order")

	go v.fill(so)
	return id, nil
}

// RequestCancel cancels the remaining quantity of an open order. A
// cancel for an unknown or completed order produces a CancelReject.
func (v *SimVenue) RequestCancel(orderID string) (string, error) {
	v.mu.Lock()
	v.cancelCounter++
	cancelID := fmt.Sprintf("SIM-CXL-%d", v.cancelCounter)
	so, ok := v.open[orderID]
	if ok {
		so.canceled = true
	}
	v.mu.Unlock()

	go func() {
		time.Sleep(v.latency)
		if !ok {
			v.deliverCancelReject(models.CancelReject{
				OrderID:         cancelID,
				OriginalOrderID: orderID,
				Text:            "unknown or completed order",
			})
			return
		}
		v.mu.Lock()
		report := models.ExecutionReport{
			OrderID:            so.id,
			OriginalOrderID:    so.id,
			Symbol:             so.order.Symbol,
			Account:            so.order.Account,
			Status:             models.OrderStatusCanceled,
			Side:               so.order.Side,
			CumulativeQuantity: so.cum,
			LeavesQuantity:     0,
			AveragePrice:       v.priceLocked(so.order.Symbol),
			TransactTime:       time.Now(),
		}
		delete(v.open, so.id)
		v.mu.Unlock()
		v.deliverReport(report)
	}()
	return cancelID, nil
}

func (v *SimVenue) fill(so *simOrder) {
	time.Sleep(v.latency)

	v.deliverReport(v.snapshot(so, models.OrderStatusNew))

	for {
		time.Sleep(v.latency)

		v.mu.Lock()
		if so.canceled || v.open[so.id] == nil {
			v.mu.Unlock()
			return
		}
		lot := so.leaves
		if v.partialLots > 0 && v.partialLots < lot {
			lot = v.partialLots
		}
		so.cum += lot
		so.leaves -= lot
		done := so.leaves == 0
		if done {
			delete(v.open, so.id)
		}
		v.mu.Unlock()

		status := models.OrderStatusPartiallyFilled
		if done {
			status = models.OrderStatusFilled
		}
		v.deliverReport(v.snapshot(so, status))
		if done {
			return
		}
	}
}

func (v *SimVenue) snapshot(so *simOrder, status models.OrderStatus) models.ExecutionReport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return models.ExecutionReport{
		OrderID:            so.id,
		OriginalOrderID:    so.id,
		Symbol:             so.order.Symbol,
		Account:            so.order.Account,
		Status:             status,
		Side:               so.order.Side,
		CumulativeQuantity: so.cum,
		LeavesQuantity:     so.leaves,
		AveragePrice:       v.priceLocked(so.order.Symbol),
		TransactTime:       time.Now(),
	}
}

func (v *SimVenue) priceLocked(symbol string) float64 {
	if px, ok := v.prices[symbol]; ok {
		return px
	}
	return 100
}

func (v *SimVenue) deliverReport(report models.ExecutionReport) {
	v.mu.Lock()
	handler := v.onReport
	v.mu.Unlock()
	if handler != nil {
		handler(report)
	}
}

func (v *SimVenue) deliverCancelReject(reject models.CancelReject) {
	v.mu.Lock()
	handler := v.onCancelReject
	v.mu.Unlock()
	if handler != nil {
		handler(reject)
	}
}
