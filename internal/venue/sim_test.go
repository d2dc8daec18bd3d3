package venue

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-trader/internal/models"
)

func collectReports(v *SimVenue) <-chan models.ExecutionReport {
	reports := make(chan models.ExecutionReport, 64)
	v.OnReport(func(r models.ExecutionReport) { reports <- r })
	return reports
}

func nextReport(t *testing.T, reports <-chan models.ExecutionReport) models.ExecutionReport {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for execution report")
		return models.ExecutionReport{}
	}
}

func marketOrder(symbol string, side models.Side, qty int64) models.Order {
	return models.Order{
		Symbol:   symbol,
		BrokerID: "SIM",
		Account:  "sim-account",
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: qty,
		PlacedAt: time.Now(),
	}
}

func TestSubmitRejectsInvalidOrders(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{Logger: zerolog.Nop()})

	_, err := v.Submit(marketOrder("AAPL", models.SideBuy, 0))
	assert.Error(t, err)

	_, err = v.Submit(marketOrder("AAPL", models.SideNone, 100))
	assert.Error(t, err)
}

func TestFullFillSequence(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{
		Prices: map[string]float64{"AAPL": 150},
		Logger: zerolog.Nop(),
	})
	reports := collectReports(v)

	id, err := v.Submit(marketOrder("AAPL", models.SideBuy, 100))
	require.NoError(t, err)
	assert.Equal(t, "SIM-1", id)

	ack := nextReport(t, reports)
	assert.Equal(t, models.OrderStatusNew, ack.Status)
	assert.Equal(t, id, ack.OrderID)
	assert.Equal(t, int64(100), ack.LeavesQuantity)

	fill := nextReport(t, reports)
	assert.Equal(t, models.OrderStatusFilled, fill.Status)
	assert.Equal(t, int64(100), fill.CumulativeQuantity)
	assert.Equal(t, int64(0), fill.LeavesQuantity)
	assert.Equal(t, float64(150), fill.AveragePrice)
	assert.Equal(t, models.SideBuy, fill.Side)
}

func TestPartialLotFills(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{
		PartialLots: 40,
		Logger:      zerolog.Nop(),
	})
	reports := collectReports(v)

	_, err := v.Submit(marketOrder("AAPL", models.SideBuy, 100))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusNew, nextReport(t, reports).Status)

	first := nextReport(t, reports)
	assert.Equal(t, models.OrderStatusPartiallyFilled, first.Status)
	assert.Equal(t, int64(40), first.CumulativeQuantity)
	assert.Equal(t, int64(60), first.LeavesQuantity)

	second := nextReport(t, reports)
	assert.Equal(t, models.OrderStatusPartiallyFilled, second.Status)
	assert.Equal(t, int64(80), second.CumulativeQuantity)

	last := nextReport(t, reports)
	assert.Equal(t, models.OrderStatusFilled, last.Status)
	assert.Equal(t, int64(100), last.CumulativeQuantity)
	assert.Equal(t, int64(0), last.LeavesQuantity)
}

func TestCancelOpenOrder(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{
		Latency:     20 * time.Millisecond,
		PartialLots: 10,
		Logger:      zerolog.Nop(),
	})
	reports := collectReports(v)

	id, err := v.Submit(marketOrder("AAPL", models.SideBuy, 1000))
	require.NoError(t, err)

	cancelID, err := v.RequestCancel(id)
	require.NoError(t, err)
	assert.Equal(t, "SIM-CXL-1", cancelID)

	for {
		r := nextReport(t, reports)
		if r.Status == models.OrderStatusCanceled {
			assert.Equal(t, id, r.OrderID)
			assert.Equal(t, int64(0), r.LeavesQuantity)
			return
		}
		require.Contains(t,
			[]models.OrderStatus{models.OrderStatusNew, models.OrderStatusPartiallyFilled},
			r.Status)
	}
}

func TestCancelUnknownOrderRejects(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{Logger: zerolog.Nop()})

	rejects := make(chan models.CancelReject, 1)
	v.OnCancelReject(func(r models.CancelReject) { rejects <- r })

	cancelID, err := v.RequestCancel("NO-SUCH-ORDER")
	require.NoError(t, err)

	select {
	case reject := <-rejects:
		assert.Equal(t, cancelID, reject.OrderID)
		assert.Equal(t, "NO-SUCH-ORDER", reject.OriginalOrderID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancel reject")
	}
}

func TestSetPriceAffectsFills(t *testing.T) {
	v := NewSimVenue(SimVenueConfig{Logger: zerolog.Nop()})
	reports := collectReports(v)

	v.SetPrice("AAPL", 42.5)

	_, err := v.Submit(marketOrder("AAPL", models.SideSell, 10))
	require.NoError(t, err)

	nextReport(t, reports) // ack
	fill := nextReport(t, reports)
	assert.Equal(t, 42.5, fill.AveragePrice)
}
