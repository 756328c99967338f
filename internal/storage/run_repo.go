package storage

import (
	"context"
	"errors"
	"fmt"

	"magegraph/internal/models"
	"magegraph/internal/util"

	"github.com/jackc/pgx/v5"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, run models.ConversionRun) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO conversion_runs (run_id, document_id, filename, workflow_id, status)
VALUES ($1, $2, $3, NULLIF($4,''), $5)`, run.RunID, run.DocumentID, run.Filename, run.WorkflowID, run.Status)
	if err != nil {
		return fmt.Errorf("create conversion run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRunStatus(ctx context.Context, runID, status, failReason string, nodeCount, edgeCount int) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE conversion_runs
SET status=$2, fail_reason=NULLIF($3,''), node_count=$4, edge_count=$5, updated_at=NOW()
WHERE run_id=$1`, runID, status, failReason, nodeCount, edgeCount)
	if err != nil {
		return fmt.Errorf("update conversion run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", util.ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, document_id, filename, COALESCE(workflow_id,''), status, COALESCE(fail_reason,''), node_count, edge_count, created_at, updated_at`

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.ConversionRun, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return models.ConversionRun{}, err
	}
	row := r.db.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM conversion_runs WHERE run_id=$1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ConversionRun{}, fmt.Errorf("%w: %s", util.ErrRunNotFound, runID)
	}
	return run, err
}

// LatestRunForDocument returns the most recently updated run for documentID.
func (r *RunRepo) LatestRunForDocument(ctx context.Context, documentID string) (models.ConversionRun, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return models.ConversionRun{}, err
	}
	row := r.db.Pool.QueryRow(ctx, `
SELECT `+runColumns+` FROM conversion_runs WHERE document_id=$1 ORDER BY updated_at DESC LIMIT 1`, documentID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ConversionRun{}, fmt.Errorf("%w: document %s", util.ErrRunNotFound, documentID)
	}
	return run, err
}

func scanRun(row pgx.Row) (models.ConversionRun, error) {
	var run models.ConversionRun
	err := row.Scan(&run.RunID, &run.DocumentID, &run.Filename, &run.WorkflowID, &run.Status, &run.FailReason,
		&run.NodeCount, &run.EdgeCount, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan conversion run: %w", err)
	}
	return run, nil
}
