package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	insertRateObservationSQL = `INSERT INTO rate_history (
        protocol, rate_type, rate, source, captured_at
    ) VALUES (?, ?, ?, ?, ?);`

	listRatesBetweenSQL = `SELECT
        id, protocol, rate_type, rate, source, captured_at
    FROM rate_history
    WHERE protocol = ?
      AND rate_type = ?
      AND captured_at >= ?
      AND captured_at < ?
    ORDER BY captured_at;`

	deleteRatesBeforeSQL = `DELETE FROM rate_history WHERE captured_at < ?;`
)

// RateHistoryStore persists rate observations for charting and audit beyond
// the in-memory ring.
type RateHistoryStore interface {
	InsertObservation(ctx context.Context, obs RateObservation) error
	ListBetween(ctx context.Context, protocol, rateType string, from, to time.Time) ([]RateObservation, error)
	DeleteObservationsBefore(ctx context.Context, cutoff time.Time) error
}

// RateStore is the SQLite-backed rate history.
type RateStore struct {
	db *DB
}

// NewRateStore wires the shared handle into a rate history store.
func NewRateStore(db *DB) *RateStore {
	return &RateStore{db: db}
}

// InsertObservation appends one rate point.
func (s *RateStore) InsertObservation(ctx context.Context, obs RateObservation) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	_, execErr := conn.ExecContext(ctx, insertRateObservationSQL,
		obs.Protocol,
		obs.RateType,
		obs.Rate.String(),
		obs.Source,
		formatTime(obs.CapturedAt),
	)
	if execErr != nil {
		return fmt.Errorf("insert rate observation: %w", execErr)
	}
	return nil
}

// ListBetween lists observations of one series within a window.
func (s *RateStore) ListBetween(ctx context.Context, protocol, rateType string, from, to time.Time) ([]RateObservation, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return nil, err
	}

	rows, queryErr := conn.QueryContext(ctx, listRatesBetweenSQL,
		protocol, rateType, formatTime(from), formatTime(to))
	if queryErr != nil {
		return nil, fmt.Errorf("list rate observations: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]RateObservation, 0)
	for rows.Next() {
		var obs RateObservation
		var rateStr, capturedStr string
		if err := rows.Scan(&obs.ID, &obs.Protocol, &obs.RateType, &rateStr, &obs.Source, &capturedStr); err != nil {
			return nil, err
		}

		var convErr error
		if obs.Rate, convErr = decimal.NewFromString(rateStr); convErr != nil {
			return nil, fmt.Errorf("parse rate: %w", convErr)
		}
		if obs.CapturedAt, convErr = parseTime(capturedStr); convErr != nil {
			return nil, convErr
		}

		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

// DeleteObservationsBefore trims history older than cutoff.
func (s *RateStore) DeleteObservationsBefore(ctx context.Context, cutoff time.Time) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}
	if _, execErr := conn.ExecContext(ctx, deleteRatesBeforeSQL, formatTime(cutoff)); execErr != nil {
		return fmt.Errorf("delete rate observations: %w", execErr)
	}
	return nil
}

var _ RateHistoryStore = (*RateStore)(nil)
