// Package store persists portfolio position snapshots.
package store

import (
	"context"
	"time"

	"portfolio-trader/internal/models"
)

// PositionRecord is the persisted state of one trade. Only the settled
// ledger survives a restart; pending order state is intentionally not
// stored, a restored trade starts with a fresh order processor.
type PositionRecord struct {
	Symbol     string
	Quantity   int64
	Side       models.Side
	EntryPrice float64
	UpdatedAt  time.Time
}

// SnapshotStore defines the persistence interface for position snapshots.
type SnapshotStore interface {
	SavePosition(ctx context.Context, record PositionRecord) error
	GetPosition(ctx context.Context, symbol string) (*PositionRecord, error)
	GetAllPositions(ctx context.Context) ([]PositionRecord, error)
	DeletePosition(ctx context.Context, symbol string) error
	Close() error
}
