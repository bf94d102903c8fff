package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okorie22/Okorie-AI-sub005/internal/config"
)

var (
	// ErrNotConfigured indicates the database handle was not initialised.
	ErrNotConfigured = errors.New("storage: database not configured")
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS liquidation_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol     TEXT NOT NULL,
    exchange   TEXT NOT NULL DEFAULT '',
    side       TEXT NOT NULL,
    usd_value  TEXT NOT NULL,
    event_time TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_liquidation_symbol_time
    ON liquidation_events(symbol, event_time);

CREATE TABLE IF NOT EXISTS alert_tracking (
    symbol               TEXT NOT NULL,
    pattern_type         TEXT NOT NULL,
    last_alert_timestamp TEXT NOT NULL,
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL,
    PRIMARY KEY (symbol, pattern_type)
);

CREATE TABLE IF NOT EXISTS alerts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id     TEXT NOT NULL,
    source_agent TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    severity     TEXT NOT NULL,
    confidence   REAL NOT NULL,
    payload      TEXT NOT NULL,
    event_time   TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id            TEXT PRIMARY KEY,
    protocol      TEXT NOT NULL,
    position_type TEXT NOT NULL,
    amount_usd    TEXT NOT NULL,
    rate          TEXT NOT NULL,
    opened_at     TEXT NOT NULL,
    status        TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS arbitrage_executions (
    id                  TEXT PRIMARY KEY,
    borrow_protocol     TEXT NOT NULL,
    borrow_rate         TEXT NOT NULL,
    lend_protocol       TEXT NOT NULL,
    lend_rate           TEXT NOT NULL,
    spread              TEXT NOT NULL,
    amount_usd          TEXT NOT NULL,
    expected_profit_usd TEXT NOT NULL,
    status              TEXT NOT NULL,
    notes               TEXT NOT NULL DEFAULT '',
    executed_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    protocol    TEXT NOT NULL,
    rate_type   TEXT NOT NULL,
    rate        TEXT NOT NULL,
    source      TEXT NOT NULL,
    captured_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_history_series
    ON rate_history(protocol, rate_type, captured_at);
`

// DB wraps a single SQLite file shared by all stores of one agent process.
type DB struct {
	conn *sql.DB
}

// Open initialises the SQLite database and applies the idempotent schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database.path is required")
	}

	dsn := cfg.Path
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		abs, err := filepath.Abs(dsn)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = abs
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dsn, busyTimeout)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite serialises writes itself; a single connection avoids
	// SQLITE_BUSY churn and keeps :memory: databases coherent.
	conn.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// OpenMemory opens a throwaway in-memory database, used by tests and the
// simulate command.
func OpenMemory(ctx context.Context) (*DB, error) {
	return Open(ctx, config.DatabaseConfig{Path: ":memory:"})
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *DB) getConn() (*sql.DB, error) {
	if d == nil || d.conn == nil {
		return nil, ErrNotConfigured
	}
	return d.conn, nil
}

// timeLayout keeps the fractional seconds fixed width. RFC3339Nano trims
// trailing zeros, and the TEXT comparisons in the window queries are
// lexicographic, so variable-width fractions would misorder sub-second
// timestamps ("...00.5Z" sorts before "...00Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
