package portfolio

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-trader/internal/models"
	"portfolio-trader/internal/store"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	p, _ := newTestPortfolio()
	long := p.CreateTrade("AAPL")
	sendAndFill(t, long, 100, models.SideBuy, "ORD-1", 150)
	short := p.CreateTrade("MSFT")
	sendAndFill(t, short, 30, models.SideSell, "ORD-2", 400)

	require.NoError(t, p.SaveSnapshot(ctx, s))

	// A new session restores the settled positions and can trade on them.
	v2 := &fakeVenue{}
	restored := New(v2, zerolog.Nop())
	restored.SetAccountInfo(testBroker, testAccount)
	require.NoError(t, restored.RestoreSnapshot(ctx, s, v2))

	require.Equal(t, 2, restored.Size())
	aapl := restored.GetTrade("AAPL")
	require.NotNil(t, aapl)
	assert.Equal(t, int64(100), aapl.Quantity())
	assert.Equal(t, models.SideBuy, aapl.Side())
	assert.Equal(t, float64(150), aapl.EntryPrice())

	msft := restored.GetTrade("MSFT")
	require.NotNil(t, msft)
	assert.Equal(t, int64(-30), msft.SignedQuantity())

	assert.Equal(t, int64(70), restored.TotalPosition())

	// The restored trade's processor is live against the new venue.
	require.NoError(t, aapl.ReduceMarket(40, false))
	waitPending(t, aapl, "ORD-1")
}

func TestRestoreSkipsOpenDuplicates(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SavePosition(ctx, store.PositionRecord{
		Symbol: "AAPL", Quantity: 50, Side: models.SideSell, EntryPrice: 10,
	}))

	p, _ := newTestPortfolio()
	live := p.CreateTrade("AAPL")
	sendAndFill(t, live, 100, models.SideBuy, "ORD-1", 10)

	v := &fakeVenue{}
	require.NoError(t, p.RestoreSnapshot(ctx, s, v))

	// The open trade wins; the snapshot is not applied over it.
	assert.Same(t, live, p.GetTrade("AAPL"))
	assert.Equal(t, int64(100), p.GetTrade("AAPL").Quantity())
}
