package portfolio

import (
	"context"
	"fmt"

	"portfolio-trader/internal/store"
	"portfolio-trader/internal/venue"
)

// SaveSnapshot writes the settled position of every held trade to the
// store. Pending order state is not persisted; an in-flight order at
// snapshot time is simply absent from the restored portfolio.
func (p *Portfolio) SaveSnapshot(ctx context.Context, s store.SnapshotStore) error {
	for _, t := range p.Trades() {
		pos := t.Position()
		record := store.PositionRecord{
			Symbol:     pos.Symbol,
			Quantity:   pos.Quantity,
			Side:       pos.Side,
			EntryPrice: pos.EntryPrice,
		}
		if err := s.SavePosition(ctx, record); err != nil {
			return fmt.Errorf("saving snapshot for %s: %w", pos.Symbol, err)
		}
	}
	return nil
}

// RestoreSnapshot loads every stored position into the portfolio as a
// freshly provisioned trade. Each restored trade gets a new order
// processor attached to v; symbols already held by an open trade are
// skipped with a warning rather than clobbered.
func (p *Portfolio) RestoreSnapshot(ctx context.Context, s store.SnapshotStore, v venue.Venue) error {
	records, err := s.GetAllPositions(ctx)
	if err != nil {
		return fmt.Errorf("loading position snapshots: %w", err)
	}

	for _, record := range records {
		t := NewTrade(record.Symbol, p.logger)
		t.OverrideSide(record.Side)
		t.OverrideQuantity(record.Quantity)
		t.mu.Lock()
		t.entryPrice = record.EntryPrice
		t.mu.Unlock()

		if err := p.AddTrade(t); err != nil {
			p.logger.Warn().
				Err(err).
				Str("symbol", record.Symbol).
				Msg("skipping snapshot for symbol with an open trade")
			continue
		}
		t.ResetProcessor(v)
	}
	return nil
}
