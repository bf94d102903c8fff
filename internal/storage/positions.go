package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	savePositionSQL = `INSERT OR REPLACE INTO positions (
        id, protocol, position_type, amount_usd, rate, opened_at, status, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	listPositionsSQL = `SELECT
        id, protocol, position_type, amount_usd, rate, opened_at, status, updated_at
    FROM positions
    ORDER BY opened_at DESC;`

	listPositionsByStatusSQL = `SELECT
        id, protocol, position_type, amount_usd, rate, opened_at, status, updated_at
    FROM positions
    WHERE status = ?
    ORDER BY opened_at DESC;`

	updatePositionStatusSQL = `UPDATE positions
    SET status = ?, updated_at = ?
    WHERE id = ?;`

	saveExecutionSQL = `INSERT OR REPLACE INTO arbitrage_executions (
        id, borrow_protocol, borrow_rate, lend_protocol, lend_rate, spread,
        amount_usd, expected_profit_usd, status, notes, executed_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	listExecutionsSinceSQL = `SELECT
        id, borrow_protocol, borrow_rate, lend_protocol, lend_rate, spread,
        amount_usd, expected_profit_usd, status, notes, executed_at
    FROM arbitrage_executions
    WHERE executed_at >= ?
    ORDER BY executed_at DESC;`
)

// PositionStore defines the arbitrage bookkeeping operations. Positions and
// executions transition status; they are never deleted.
type PositionStore interface {
	SavePosition(ctx context.Context, position Position) error
	ListPositions(ctx context.Context, status string) ([]Position, error)
	UpdatePositionStatus(ctx context.Context, id, status string) error
	SaveExecution(ctx context.Context, execution Execution) error
	ListExecutionsSince(ctx context.Context, since time.Time) ([]Execution, error)
}

// ArbitrageStore is the SQLite-backed position and execution ledger.
type ArbitrageStore struct {
	db *DB
}

// NewArbitrageStore wires the shared handle into an arbitrage store.
func NewArbitrageStore(db *DB) *ArbitrageStore {
	return &ArbitrageStore{db: db}
}

// SavePosition persists or updates one position leg.
func (s *ArbitrageStore) SavePosition(ctx context.Context, position Position) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	updatedAt := position.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, execErr := conn.ExecContext(ctx, savePositionSQL,
		position.ID,
		position.Protocol,
		position.PositionType,
		position.AmountUSD.String(),
		position.Rate.String(),
		formatTime(position.OpenedAt),
		position.Status,
		formatTime(updatedAt),
	)
	if execErr != nil {
		return fmt.Errorf("save position: %w", execErr)
	}
	return nil
}

// ListPositions lists positions, optionally filtered by status.
func (s *ArbitrageStore) ListPositions(ctx context.Context, status string) ([]Position, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	var queryErr error
	if status == "" {
		rows, queryErr = conn.QueryContext(ctx, listPositionsSQL)
	} else {
		rows, queryErr = conn.QueryContext(ctx, listPositionsByStatusSQL, status)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list positions: %w", queryErr)
	}
	defer rows.Close()

	positions := make([]Position, 0)
	for rows.Next() {
		pos, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		positions = append(positions, pos)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return positions, nil
}

// UpdatePositionStatus performs the soft status transition.
func (s *ArbitrageStore) UpdatePositionStatus(ctx context.Context, id, status string) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	res, execErr := conn.ExecContext(ctx, updatePositionStatusSQL, status, formatTime(time.Now()), id)
	if execErr != nil {
		return fmt.Errorf("update position status: %w", execErr)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveExecution records one acted-on opportunity.
func (s *ArbitrageStore) SaveExecution(ctx context.Context, execution Execution) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	_, execErr := conn.ExecContext(ctx, saveExecutionSQL,
		execution.ID,
		execution.BorrowProtocol,
		execution.BorrowRate.String(),
		execution.LendProtocol,
		execution.LendRate.String(),
		execution.Spread.String(),
		execution.AmountUSD.String(),
		execution.ExpectedProfitUSD.String(),
		execution.Status,
		execution.Notes,
		formatTime(execution.ExecutedAt),
	)
	if execErr != nil {
		return fmt.Errorf("save execution: %w", execErr)
	}
	return nil
}

// ListExecutionsSince lists executions newer than since, newest first.
func (s *ArbitrageStore) ListExecutionsSince(ctx context.Context, since time.Time) ([]Execution, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return nil, err
	}

	rows, queryErr := conn.QueryContext(ctx, listExecutionsSinceSQL, formatTime(since))
	if queryErr != nil {
		return nil, fmt.Errorf("list executions: %w", queryErr)
	}
	defer rows.Close()

	executions := make([]Execution, 0)
	for rows.Next() {
		var exec Execution
		var borrowStr, lendStr, spreadStr, amountStr, profitStr, executedStr string
		if err := rows.Scan(
			&exec.ID,
			&exec.BorrowProtocol,
			&borrowStr,
			&exec.LendProtocol,
			&lendStr,
			&spreadStr,
			&amountStr,
			&profitStr,
			&exec.Status,
			&exec.Notes,
			&executedStr,
		); err != nil {
			return nil, err
		}

		var convErr error
		if exec.BorrowRate, convErr = decimal.NewFromString(borrowStr); convErr != nil {
			return nil, fmt.Errorf("parse borrow rate: %w", convErr)
		}
		if exec.LendRate, convErr = decimal.NewFromString(lendStr); convErr != nil {
			return nil, fmt.Errorf("parse lend rate: %w", convErr)
		}
		if exec.Spread, convErr = decimal.NewFromString(spreadStr); convErr != nil {
			return nil, fmt.Errorf("parse spread: %w", convErr)
		}
		if exec.AmountUSD, convErr = decimal.NewFromString(amountStr); convErr != nil {
			return nil, fmt.Errorf("parse amount: %w", convErr)
		}
		if exec.ExpectedProfitUSD, convErr = decimal.NewFromString(profitStr); convErr != nil {
			return nil, fmt.Errorf("parse expected profit: %w", convErr)
		}
		if exec.ExecutedAt, convErr = parseTime(executedStr); convErr != nil {
			return nil, convErr
		}

		executions = append(executions, exec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return executions, nil
}

func scanPosition(rows *sql.Rows) (Position, error) {
	var pos Position
	var amountStr, rateStr, openedStr, updatedStr string

	if err := rows.Scan(
		&pos.ID,
		&pos.Protocol,
		&pos.PositionType,
		&amountStr,
		&rateStr,
		&openedStr,
		&pos.Status,
		&updatedStr,
	); err != nil {
		return Position{}, err
	}

	var convErr error
	if pos.AmountUSD, convErr = decimal.NewFromString(amountStr); convErr != nil {
		return Position{}, fmt.Errorf("parse amount: %w", convErr)
	}
	if pos.Rate, convErr = decimal.NewFromString(rateStr); convErr != nil {
		return Position{}, fmt.Errorf("parse rate: %w", convErr)
	}
	if pos.OpenedAt, convErr = parseTime(openedStr); convErr != nil {
		return Position{}, convErr
	}
	if pos.UpdatedAt, convErr = parseTime(updatedStr); convErr != nil {
		return Position{}, convErr
	}

	return pos, nil
}

var _ PositionStore = (*ArbitrageStore)(nil)
