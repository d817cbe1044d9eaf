package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmoiron/sqlx"
)

// ExportRunsRepository keeps finished exports in ClickHouse for reporting.
type ExportRunsRepository interface {
	Insert(ctx context.Context, run model.ExportRun) error
	ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]model.ExportRun, error)
}

type chExportRunsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewExportRunsRepository(ch *sqlx.DB) ExportRunsRepository {
	return &chExportRunsRepository{ch: ch}
}

// Insert goes through a prepared batch; clickhouse-go only accepts inserts
// inside a transaction scope.
func (r *chExportRunsRepository) Insert(ctx context.Context, run model.ExportRun) error {
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export_runs batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orderdesk.export_runs
		    (export_id, requester_id, status, url, message, rows, attempts, duration_ms, finished_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare export_runs batch: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx,
		run.ExportID, run.RequesterID, run.Status.String(), run.URL, run.Message,
		run.Rows, run.Attempts, run.DurationMs, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("append export_run: %w", err)
	}

	return tx.Commit()
}

func (r *chExportRunsRepository) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]model.ExportRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT export_id, requester_id, status, url, message, rows, attempts, duration_ms, finished_at
		FROM orderdesk.export_runs
		WHERE requester_id = ?
		ORDER BY finished_at DESC
		LIMIT ? OFFSET ?
	`
	var rows []model.ExportRun
	if err := r.ch.SelectContext(ctx, &rows, q, requesterID, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}
