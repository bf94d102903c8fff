package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
)

const (
	saveAlertTimestampSQL = `INSERT OR REPLACE INTO alert_tracking
    (symbol, pattern_type, last_alert_timestamp, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?);`

	loadAlertTrackingSQL = `SELECT symbol, pattern_type, last_alert_timestamp
    FROM alert_tracking;`

	deleteAlertTrackingBeforeSQL = `DELETE FROM alert_tracking WHERE last_alert_timestamp < ?;`
)

// CooldownStore persists the cooldown gate's last-fired map.
type CooldownStore struct {
	db *DB
}

// NewCooldownStore wires the shared handle into a cooldown tracker store.
func NewCooldownStore(db *DB) *CooldownStore {
	return &CooldownStore{db: db}
}

// LoadAll returns every tracked (entity, event type) pair.
func (s *CooldownStore) LoadAll(ctx context.Context) (map[cooldown.Key]time.Time, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return nil, err
	}

	rows, queryErr := conn.QueryContext(ctx, loadAlertTrackingSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("load alert tracking: %w", queryErr)
	}
	defer rows.Close()

	tracked := make(map[cooldown.Key]time.Time)
	for rows.Next() {
		var entity, eventType, firedStr string
		if err := rows.Scan(&entity, &eventType, &firedStr); err != nil {
			return nil, err
		}
		fired, parseErr := parseTime(firedStr)
		if parseErr != nil {
			return nil, parseErr
		}
		tracked[cooldown.Key{Entity: entity, EventType: eventType}] = fired
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tracked, nil
}

// Save overwrites the last-fired timestamp for a key.
func (s *CooldownStore) Save(ctx context.Context, key cooldown.Key, firedAt time.Time) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	if _, execErr := conn.ExecContext(ctx, saveAlertTimestampSQL,
		key.Entity, key.EventType, formatTime(firedAt), now, now,
	); execErr != nil {
		return fmt.Errorf("save alert timestamp: %w", execErr)
	}
	return nil
}

// DeleteBefore purges entries whose last alert predates cutoff.
func (s *CooldownStore) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}
	if _, execErr := conn.ExecContext(ctx, deleteAlertTrackingBeforeSQL, formatTime(cutoff)); execErr != nil {
		return fmt.Errorf("purge alert tracking: %w", execErr)
	}
	return nil
}

var _ cooldown.TrackerStore = (*CooldownStore)(nil)
