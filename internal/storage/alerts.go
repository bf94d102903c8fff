package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        event_id, source_agent, symbol, event_type, severity, confidence,
        payload, event_time, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	listRecentAlertsSQL = `SELECT
        id, event_id, source_agent, symbol, event_type, severity, confidence,
        payload, event_time, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT ?;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < ?;`
)

// AlertStore defines operations for the local alert audit trail.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) error
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) error
}

// AlertAuditStore is the SQLite-backed alert audit trail.
type AlertAuditStore struct {
	db *DB
}

// NewAlertAuditStore wires the shared handle into an alert store.
func NewAlertAuditStore(db *DB) *AlertAuditStore {
	return &AlertAuditStore{db: db}
}

// InsertAlert appends one published event. Alerts are write-once.
func (s *AlertAuditStore) InsertAlert(ctx context.Context, alert AlertRecord) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, execErr := conn.ExecContext(ctx, insertAlertSQL,
		alert.EventID,
		alert.SourceAgent,
		alert.Symbol,
		alert.EventType,
		alert.Severity,
		alert.Confidence,
		string(alert.Payload),
		formatTime(alert.EventTime),
		formatTime(createdAt),
	)
	if execErr != nil {
		return fmt.Errorf("insert alert: %w", execErr)
	}
	return nil
}

// ListRecentAlerts lists most recent alerts, newest first.
func (s *AlertAuditStore) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return nil, err
	}

	rows, queryErr := conn.QueryContext(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var payload, eventTimeStr, createdAtStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.SourceAgent,
			&rec.Symbol,
			&rec.EventType,
			&rec.Severity,
			&rec.Confidence,
			&payload,
			&eventTimeStr,
			&createdAtStr,
		); err != nil {
			return nil, err
		}

		rec.Payload = []byte(payload)
		var parseErr error
		if rec.EventTime, parseErr = parseTime(eventTimeStr); parseErr != nil {
			return nil, parseErr
		}
		if rec.CreatedAt, parseErr = parseTime(createdAtStr); parseErr != nil {
			return nil, parseErr
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical audit rows.
func (s *AlertAuditStore) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}
	if _, execErr := conn.ExecContext(ctx, deleteAlertsBeforeSQL, formatTime(cutoff)); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

var _ AlertStore = (*AlertAuditStore)(nil)
