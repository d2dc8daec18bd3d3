package portfolio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-trader/internal/errors"
	"portfolio-trader/internal/models"
)

const (
	testBroker  = "TEST-BROKER"
	testAccount = "test-account"
	testSymbol  = "AAPL"
)

// fakeVenue accepts orders and cancels without doing anything; the
// test delivers reports to the trade directly.
type fakeVenue struct {
	mu        sync.Mutex
	nextID    int
	nextCxlID int
	submitted []models.Order
	cancels   []string
	submitErr error
	cancelErr error
}

func (v *fakeVenue) Submit(order models.Order) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.submitErr != nil {
		return "", v.submitErr
	}
	v.nextID++
	v.submitted = append(v.submitted, order)
	return fmt.Sprintf("ORD-%d", v.nextID), nil
}

func (v *fakeVenue) RequestCancel(orderID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancelErr != nil {
		return "", v.cancelErr
	}
	v.nextCxlID++
	v.cancels = append(v.cancels, orderID)
	return fmt.Sprintf("CXL-%d", v.nextCxlID), nil
}

func (v *fakeVenue) submitCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.submitted)
}

func (v *fakeVenue) lastOrder() models.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitted[len(v.submitted)-1]
}

func newTestTrade(t *testing.T) (*Trade, *fakeVenue) {
	t.Helper()
	v := &fakeVenue{}
	tr := NewTrade(testSymbol, zerolog.Nop())
	tr.Processor().SetAccountInfo(testBroker, testAccount)
	tr.Processor().AttachVenue(v)
	return tr, v
}

// waitPending blocks until the trade's pending order id becomes
// orderID. Order ids are assigned by the worker goroutine after
// submission, so tests must not assume they are visible immediately.
func waitPending(t *testing.T, tr *Trade, orderID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return tr.PendingOrderID() == orderID
	}, time.Second, time.Millisecond)
}

func report(tr *Trade, orderID string, status models.OrderStatus, side models.Side,
	cum, leaves int64, avg float64) models.ExecutionReport {
	return models.ExecutionReport{
		OrderID:            orderID,
		OriginalOrderID:    orderID,
		Symbol:             tr.Symbol(),
		Account:            testAccount,
		Status:             status,
		Side:               side,
		CumulativeQuantity: cum,
		LeavesQuantity:     leaves,
		AveragePrice:       avg,
		TransactTime:       time.Now(),
	}
}

func TestSendOrderRequiresCredentials(t *testing.T) {
	tr := NewTrade(testSymbol, zerolog.Nop())
	tr.Processor().AttachVenue(&fakeVenue{})

	err := tr.LongMarket(100, false)
	assert.ErrorIs(t, err, errors.ErrNoAccountInfo)
}

func TestSendOrderRequiresVenue(t *testing.T) {
	tr := NewTrade(testSymbol, zerolog.Nop())
	tr.Processor().SetAccountInfo(testBroker, testAccount)

	err := tr.LongMarket(100, false)
	assert.ErrorIs(t, err, errors.ErrNoVenue)
}

func TestSendOrderRejectsNonPositiveQuantity(t *testing.T) {
	tr, _ := newTestTrade(t)

	assert.ErrorIs(t, tr.LongMarket(0, false), errors.ErrZeroQuantity)
	assert.ErrorIs(t, tr.LongMarket(-5, false), errors.ErrZeroQuantity)
}

func TestSendOrderSingleFlight(t *testing.T) {
	tr, v := newTestTrade(t)

	require.NoError(t, tr.LongMarket(100, false))
	waitPending(t, tr, "ORD-1")

	err := tr.LongMarket(50, false)
	assert.ErrorIs(t, err, errors.ErrOrderPending)
	assert.Equal(t, 1, v.submitCount())

	// Completing the first order frees the slot.
	tr.AcceptExecutionReport(report(tr, "ORD-1", models.OrderStatusFilled, models.SideBuy, 100, 0, 10))
	require.NoError(t, tr.LongMarket(50, false))
	waitPending(t, tr, "ORD-2")
}

func TestSendOrderBlocksUntilFill(t *testing.T) {
	tr, _ := newTestTrade(t)

	go func() {
		waitPending(t, tr, "ORD-1")
		tr.AcceptExecutionReport(report(tr, "ORD-1", models.OrderStatusFilled, models.SideBuy, 100, 0, 10))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, tr.LongMarket(100, true))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocking send did not return after fill")
	}
	assert.Equal(t, int64(100), tr.Quantity())
	assert.Equal(t, OutcomeFilled, tr.Processor().LastOutcome())
}

func TestSubmitFailureCompletesOrder(t *testing.T) {
	tr, v := newTestTrade(t)
	v.submitErr = fmt.Errorf("venue unreachable")

	require.NoError(t, tr.LongMarket(100, true))
	assert.False(t, tr.IsPending())
	assert.Equal(t, OutcomeSubmitFailed, tr.Processor().LastOutcome())
}

func TestTimeoutPolicyFiresAndOrderStaysPending(t *testing.T) {
	tr, _ := newTestTrade(t)

	timedOut := make(chan string, 1)
	err := tr.MarketOrderOpts(100, models.SideBuy, OrderOptions{
		Timeout: 10 * time.Millisecond,
		TimeoutPolicy: func(orderID string, timeout time.Duration, trade *Trade) {
			timedOut <- orderID
		},
		Block: true,
	})
	require.NoError(t, err)

	select {
	case id := <-timedOut:
		assert.Equal(t, "ORD-1", id)
	default:
		t.Fatal("timeout policy did not fire")
	}

	// The timeout is advisory. The order is still pending and a late
	// fill must still settle the position.
	assert.True(t, tr.IsPending())
	tr.AcceptExecutionReport(report(tr, "ORD-1", models.OrderStatusFilled, models.SideBuy, 100, 0, 10))
	assert.Equal(t, int64(100), tr.Quantity())
	assert.False(t, tr.IsPending())
}

func TestTimeoutAfterCompletionIsNoop(t *testing.T) {
	tr, _ := newTestTrade(t)

	var fired atomic.Bool
	err := tr.MarketOrderOpts(100, models.SideBuy, OrderOptions{
		Timeout: 50 * time.Millisecond,
		TimeoutPolicy: func(orderID string, timeout time.Duration, trade *Trade) {
			fired.Store(true)
		},
	})
	require.NoError(t, err)
	waitPending(t, tr, "ORD-1")

	tr.AcceptExecutionReport(report(tr, "ORD-1", models.OrderStatusFilled, models.SideBuy, 100, 0, 10))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestCancelOrderNoPending(t *testing.T) {
	tr, _ := newTestTrade(t)
	assert.ErrorIs(t, tr.CancelOrder(false), errors.ErrNoPendingOrder)
}

func TestCancelOrderRoundTrip(t *testing.T) {
	tr, v := newTestTrade(t)

	require.NoError(t, tr.LongMarket(100, false))
	waitPending(t, tr, "ORD-1")
	tr.AcceptExecutionReport(report(tr, "ORD-1", models.OrderStatusPartiallyFilled, models.SideBuy, 40, 60, 10))

	require.NoError(t, tr.CancelOrder(false))
	require.Eventually(t, func() bool {
		return tr.Processor().CancelOrderID() == "CXL-1"
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"ORD-1"}, v.cancels)

	canceled := report(tr, "ORD-1", models.OrderStatusCanceled, models.SideBuy, 40, 0, 10)
	tr.AcceptExecutionReport(canceled)

	// Partial fills before the cancel are kept.
	assert.Equal(t, int64(40), tr.Quantity())
	assert.Equal(t, models.SideBuy, tr.Side())
	assert.False(t, tr.IsPending())
	assert.Equal(t, OutcomeCanceled, tr.Processor().LastOutcome())
}

func TestBlockingCancelReleasedByCancelReject(t *testing.T) {
	tr, _ := newTestTrade(t)

	require.NoError(t, tr.LongMarket(100, false))
	waitPending(t, tr, "ORD-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, tr.CancelOrder(true))
	}()

	require.Eventually(t, func() bool {
		return tr.Processor().CancelOrderID() == "CXL-1"
	}, time.Second, time.Millisecond)

	tr.AcceptCancelReject(models.CancelReject{
		OrderID:         "CXL-1",
		OriginalOrderID: "ORD-1",
		Text:            "too late to cancel",
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked canceler was not released by cancel reject")
	}

	// The original order survives a refused cancel: only the cancel
	// side of the transaction is resolved.
	assert.True(t, tr.IsPending())
	assert.Equal(t, "ORD-1", tr.PendingOrderID())
	assert.Equal(t, OutcomeCancelRejected, tr.Processor().LastCancelOutcome())
	assert.Equal(t, OutcomeNone, tr.Processor().LastOutcome())
}

// eagerVenue delivers the fill from inside Submit, before the caller
// learns the order id. Venues with server-side matching can do this.
type eagerVenue struct {
	tr *Trade
}

func (v *eagerVenue) Submit(order models.Order) (string, error) {
	v.tr.AcceptExecutionReport(report(v.tr, "ORD-1", models.OrderStatusFilled, order.Side, order.Quantity, 0, 10))
	return "ORD-1", nil
}

func (v *eagerVenue) RequestCancel(orderID string) (string, error) {
	return "", nil
}

func TestFillDeliveredBeforeSubmitReturns(t *testing.T) {
	tr := NewTrade(testSymbol, zerolog.Nop())
	tr.Processor().SetAccountInfo(testBroker, testAccount)
	tr.Processor().AttachVenue(&eagerVenue{tr: tr})

	require.NoError(t, tr.LongMarket(100, true))

	assert.Equal(t, int64(100), tr.Quantity())
	assert.Equal(t, models.SideBuy, tr.Side())
	assert.False(t, tr.IsPending())
	assert.Equal(t, OutcomeFilled, tr.Processor().LastOutcome())
}

// cancelRaceVenue fills the order from inside RequestCancel, before the
// cancel id is returned. The fill wins the race and the cancel request
// resolves with nothing left to cancel.
type cancelRaceVenue struct {
	fakeVenue
	tr *Trade
}

func (v *cancelRaceVenue) RequestCancel(orderID string) (string, error) {
	v.tr.AcceptExecutionReport(report(v.tr, orderID, models.OrderStatusFilled, models.SideBuy, 100, 0, 10))
	return "CXL-1", nil
}

func TestFillDuringCancelRequestReleasesCanceler(t *testing.T) {
	v := &cancelRaceVenue{}
	tr := NewTrade(testSymbol, zerolog.Nop())
	v.tr = tr
	tr.Processor().SetAccountInfo(testBroker, testAccount)
	tr.Processor().AttachVenue(v)

	require.NoError(t, tr.LongMarket(100, false))
	waitPending(t, tr, "ORD-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, tr.CancelOrder(true))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked canceler was not released by the fill")
	}

	assert.Equal(t, int64(100), tr.Quantity())
	assert.False(t, tr.IsPending())
	assert.Equal(t, OutcomeFilled, tr.Processor().LastOutcome())
	// The cancel id arrived after the order resolved and must not
	// linger as an outstanding cancel.
	assert.Equal(t, "", tr.Processor().CancelOrderID())
}

func TestOrderCarriesCredentialsAndSymbol(t *testing.T) {
	tr, v := newTestTrade(t)

	require.NoError(t, tr.ShortMarket(25, false))
	waitPending(t, tr, "ORD-1")

	order := v.lastOrder()
	assert.Equal(t, testSymbol, order.Symbol)
	assert.Equal(t, testBroker, order.BrokerID)
	assert.Equal(t, testAccount, order.Account)
	assert.Equal(t, models.SideSell, order.Side)
	assert.Equal(t, models.OrderTypeMarket, order.Type)
	assert.Equal(t, int64(25), order.Quantity)
}
