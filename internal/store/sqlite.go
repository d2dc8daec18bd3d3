package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"portfolio-trader/internal/errors"
	"portfolio-trader/internal/models"
)

// SQLiteStore implements SnapshotStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the snapshot database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		symbol TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		updated_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePosition upserts the record for its symbol.
func (s *SQLiteStore) SavePosition(ctx context.Context, record PositionRecord) error {
	query := `
		INSERT INTO positions (symbol, quantity, side, entry_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			side = excluded.side,
			entry_price = excluded.entry_price,
			updated_at = excluded.updated_at
	`
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		record.Symbol, record.Quantity, record.Side.String(), record.EntryPrice, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save position for %s: %w", record.Symbol, err)
	}
	return nil
}

// GetPosition returns the record for symbol, or ErrSnapshotNotFound.
func (s *SQLiteStore) GetPosition(ctx context.Context, symbol string) (*PositionRecord, error) {
	query := `
		SELECT symbol, quantity, side, entry_price, updated_at
		FROM positions WHERE symbol = ?
	`
	record, err := scanPosition(s.db.QueryRowContext(ctx, query, symbol))
	if err == sql.ErrNoRows {
		return nil, errors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position for %s: %w", symbol, err)
	}
	return record, nil
}

// GetAllPositions returns every stored record ordered by symbol.
func (s *SQLiteStore) GetAllPositions(ctx context.Context) ([]PositionRecord, error) {
	query := `
		SELECT symbol, quantity, side, entry_price, updated_at
		FROM positions ORDER BY symbol
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var records []PositionRecord
	for rows.Next() {
		record, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// DeletePosition removes the record for symbol if present.
func (s *SQLiteStore) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete position for %s: %w", symbol, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*PositionRecord, error) {
	var record PositionRecord
	var side string
	if err := row.Scan(&record.Symbol, &record.Quantity, &side,
		&record.EntryPrice, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Side = models.SideFromString(side)
	return &record, nil
}
