package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/model"
	"github.com/sakif/coderunner/internal/repository"
)

var _ repository.ExecutionRepository = (*DB)(nil)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const executionColumns = `id, language, status, phase, exit_code, duration_ms,
	source_size, output_size, truncated, client, created_at`

// Create inserts e. An empty ID is filled with a new xid and a zero
// CreatedAt with the current time; both are written back to e.
func (db *DB) Create(ctx context.Context, e *model.Execution) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions (`+executionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Language,
		e.Status,
		e.Phase,
		e.ExitCode,
		e.DurationMS,
		e.SourceSize,
		e.OutputSize,
		e.Truncated,
		e.Client,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating execution: %w", err)
	}
	return nil
}

// GetByID returns one execution or an apperror NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`,
		id,
	)

	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("execution", id)
		}
		return nil, fmt.Errorf("sqlite: getting execution %s: %w", id, err)
	}
	return e, nil
}

// List returns executions newest first. Limit defaults to 20 and is capped
// at 100.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(opts.Offset, 0)

	// xids sort by creation time, which breaks created_at ties stably.
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+executionColumns+`
		 FROM executions
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	executions := make([]model.Execution, 0, limit)
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		executions = append(executions, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}

	return executions, nil
}

// Prune keeps the newest keep rows and deletes the rest. A non-positive
// keep disables pruning.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM executions WHERE id NOT IN (
			SELECT id FROM executions ORDER BY created_at DESC, id DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning executions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (*model.Execution, error) {
	var e model.Execution
	err := s.Scan(
		&e.ID,
		&e.Language,
		&e.Status,
		&e.Phase,
		&e.ExitCode,
		&e.DurationMS,
		&e.SourceSize,
		&e.OutputSize,
		&e.Truncated,
		&e.Client,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
