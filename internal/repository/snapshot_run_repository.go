package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

const snapshotRunColumns = `id, organization_id, school_id, snapshot_date, scope_type, scope_id, term, school_year,
       status, snapshot_count, report_path, error_message, created_by, created_at, completed_at`

// SnapshotRunRepository persists snapshot runs and the snapshots captured by each.
type SnapshotRunRepository struct {
	db database.DBTX
}

// NewSnapshotRunRepository constructs the repository.
func NewSnapshotRunRepository(db database.DBTX) *SnapshotRunRepository {
	return &SnapshotRunRepository{db: db}
}

// Create inserts a new run row with generated defaults.
func (r *SnapshotRunRepository) Create(ctx context.Context, run *models.SnapshotRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.SnapshotRunQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mastery_snapshot_runs
	(id, organization_id, school_id, snapshot_date, scope_type, scope_id, term, school_year, status, snapshot_count, created_by, created_at)
	VALUES (:id, :organization_id, :school_id, :snapshot_date, :scope_type, :scope_id, :term, :school_year, :status, :snapshot_count, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create snapshot run: %w", err)
	}
	return nil
}

// GetByID returns a run inside the organization. Missing rows surface as sql.ErrNoRows.
func (r *SnapshotRunRepository) GetByID(ctx context.Context, organizationID, id string) (*models.SnapshotRun, error) {
	query := `SELECT ` + snapshotRunColumns + ` FROM mastery_snapshot_runs WHERE id = $1 AND organization_id = $2`
	var run models.SnapshotRun
	if err := r.db.GetContext(ctx, &run, query, id, organizationID); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs matching the filter, latest first.
func (r *SnapshotRunRepository) List(ctx context.Context, filter models.SnapshotRunFilter) ([]models.SnapshotRun, error) {
	args := []interface{}{filter.OrganizationID}
	conditions := []string{"organization_id = $1"}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM mastery_snapshot_runs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		snapshotRunColumns, strings.Join(conditions, " AND "), limit, offset)

	runs := make([]models.SnapshotRun, 0)
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshot runs: %w", err)
	}
	return runs, nil
}

// UpdateSnapshotRunParams defines the mutable fields of a run.
type UpdateSnapshotRunParams struct {
	Status        *models.SnapshotRunStatus
	SnapshotCount *int
	ReportPath    *string
	ErrorMessage  *string
	CompletedAt   *time.Time
}

// Update persists the provided changes for a run row.
func (r *SnapshotRunRepository) Update(ctx context.Context, id string, params UpdateSnapshotRunParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.SnapshotCount != nil {
		add("snapshot_count", *params.SnapshotCount)
	}
	if params.ReportPath != nil {
		add("report_path", *params.ReportPath)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.CompletedAt != nil {
		add("completed_at", *params.CompletedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE mastery_snapshot_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update snapshot run: %w", err)
	}
	return nil
}

// ReplaceItems records which snapshots a run captured.
func (r *SnapshotRunRepository) ReplaceItems(ctx context.Context, runID string, snapshotIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mastery_snapshot_run_items WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear snapshot run items: %w", err)
	}
	for _, snapshotID := range snapshotIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO mastery_snapshot_run_items (run_id, snapshot_id) VALUES ($1, $2)`, runID, snapshotID); err != nil {
			return fmt.Errorf("insert snapshot run item: %w", err)
		}
	}
	return nil
}

// ListItemIDs returns the snapshot ids captured by a run.
func (r *SnapshotRunRepository) ListItemIDs(ctx context.Context, runID string) ([]string, error) {
	const query = `SELECT snapshot_id FROM mastery_snapshot_run_items WHERE run_id = $1 ORDER BY snapshot_id`
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, runID); err != nil {
		return nil, fmt.Errorf("list snapshot run items: %w", err)
	}
	return ids, nil
}

// ListUnfinished fetches runs still queued or running, oldest first (used for cold start recovery).
func (r *SnapshotRunRepository) ListUnfinished(ctx context.Context, limit int) ([]models.SnapshotRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + snapshotRunColumns + ` FROM mastery_snapshot_runs WHERE status IN ('queued', 'running') ORDER BY created_at ASC LIMIT $1`
	runs := make([]models.SnapshotRun, 0)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list unfinished snapshot runs: %w", err)
	}
	return runs, nil
}
