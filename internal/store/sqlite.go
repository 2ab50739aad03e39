package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleyfe/hyperliquid-arb/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	size          TEXT NOT NULL,
	notional_usd  TEXT NOT NULL,
	entry_price   TEXT NOT NULL,
	entry_apr     REAL NOT NULL,
	spot_order_id TEXT NOT NULL,
	perp_order_id TEXT NOT NULL,
	status        TEXT NOT NULL,
	perp_closed   INTEGER NOT NULL DEFAULT 0,
	opened_at     INTEGER NOT NULL,
	closed_at     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
`

// SQLiteStore persists positions so a restart resumes the live book.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SavePosition upserts one position by id.
func (s *SQLiteStore) SavePosition(ctx context.Context, p *models.Position) error {
	var closedAt sql.NullInt64
	if p.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: p.ClosedAt.UnixNano(), Valid: true}
	}

	query := `INSERT OR REPLACE INTO positions
		(id, symbol, size, notional_usd, entry_price, entry_apr, spot_order_id, perp_order_id, status, perp_closed, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Symbol, p.Size.String(), p.NotionalUSD.String(), p.EntryPrice.String(),
		p.EntryAPR, p.SpotOrderID, p.PerpOrderID, string(p.Status), p.PerpClosed, p.OpenedAt.UnixNano(), closedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", p.ID, err)
	}
	return nil
}

// LoadOpen returns every position that still has live legs.
func (s *SQLiteStore) LoadOpen(ctx context.Context) ([]*models.Position, error) {
	query := `SELECT id, symbol, size, notional_usd, entry_price, entry_apr, spot_order_id, perp_order_id, status, perp_closed, opened_at, closed_at
		FROM positions WHERE status IN ('open', 'closing') ORDER BY opened_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanPosition(rows *sql.Rows) (*models.Position, error) {
	var (
		p                          models.Position
		size, notional, entryPrice string
		status                     string
		openedAt                   int64
		closedAt                   sql.NullInt64
	)

	if err := rows.Scan(&p.ID, &p.Symbol, &size, &notional, &entryPrice, &p.EntryAPR,
		&p.SpotOrderID, &p.PerpOrderID, &status, &p.PerpClosed, &openedAt, &closedAt); err != nil {
		return nil, fmt.Errorf("failed to scan position row: %w", err)
	}

	var err error
	if p.Size, err = decimal.NewFromString(size); err != nil {
		return nil, fmt.Errorf("corrupt size for position %s: %w", p.ID, err)
	}
	if p.NotionalUSD, err = decimal.NewFromString(notional); err != nil {
		return nil, fmt.Errorf("corrupt notional for position %s: %w", p.ID, err)
	}
	if p.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("corrupt entry price for position %s: %w", p.ID, err)
	}

	p.Status = models.PositionStatus(status)
	p.OpenedAt = time.Unix(0, openedAt)
	if closedAt.Valid {
		t := time.Unix(0, closedAt.Int64)
		p.ClosedAt = &t
	}
	return &p, nil
}
