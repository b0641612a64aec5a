package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

// AssessmentLabelRepository persists label sets and their labels. Rows are archived in
// place rather than deleted.
type AssessmentLabelRepository struct {
	db database.DBTX
}

// NewAssessmentLabelRepository constructs the repository.
func NewAssessmentLabelRepository(db database.DBTX) *AssessmentLabelRepository {
	return &AssessmentLabelRepository{db: db}
}

// ListSets returns the organization's label sets by name.
func (r *AssessmentLabelRepository) ListSets(ctx context.Context, organizationID string, includeArchived bool) ([]models.AssessmentLabelSet, error) {
	query := `SELECT id, organization_id, name, description, archived_at, created_at, updated_at
	FROM assessment_label_sets WHERE organization_id = $1`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY name`
	sets := make([]models.AssessmentLabelSet, 0)
	if err := r.db.SelectContext(ctx, &sets, query, organizationID); err != nil {
		return nil, fmt.Errorf("list label sets: %w", err)
	}
	return sets, nil
}

// GetSet fetches a label set. Missing rows surface as sql.ErrNoRows.
func (r *AssessmentLabelRepository) GetSet(ctx context.Context, organizationID, id string) (*models.AssessmentLabelSet, error) {
	const query = `SELECT id, organization_id, name, description, archived_at, created_at, updated_at
	FROM assessment_label_sets WHERE id = $1 AND organization_id = $2`
	var set models.AssessmentLabelSet
	if err := r.db.GetContext(ctx, &set, query, id, organizationID); err != nil {
		return nil, err
	}
	return &set, nil
}

// CreateSet inserts a label set.
func (r *AssessmentLabelRepository) CreateSet(ctx context.Context, set *models.AssessmentLabelSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now
	const query = `INSERT INTO assessment_label_sets (id, organization_id, name, description, created_at, updated_at)
	VALUES (:id, :organization_id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, set); err != nil {
		return fmt.Errorf("create label set: %w", err)
	}
	return nil
}

// UpdateSet renames a label set.
func (r *AssessmentLabelRepository) UpdateSet(ctx context.Context, set *models.AssessmentLabelSet) error {
	set.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessment_label_sets SET name = :name, description = :description, updated_at = :updated_at
	WHERE id = :id AND organization_id = :organization_id`
	result, err := r.db.NamedExecContext(ctx, query, set)
	if err != nil {
		return fmt.Errorf("update label set: %w", err)
	}
	return expectRows(result, "update label set")
}

// ArchiveSet marks a set and its labels archived.
func (r *AssessmentLabelRepository) ArchiveSet(ctx context.Context, organizationID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE assessment_label_sets SET archived_at = $3, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND archived_at IS NULL`, id, organizationID, at)
	if err != nil {
		return fmt.Errorf("archive label set: %w", err)
	}
	if err := expectRows(result, "archive label set"); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE assessment_labels SET archived_at = $3, updated_at = $3
	WHERE set_id = $1 AND organization_id = $2 AND archived_at IS NULL`, id, organizationID, at); err != nil {
		return fmt.Errorf("archive set labels: %w", err)
	}
	return nil
}

// ListLabels returns the labels of a set in display order.
func (r *AssessmentLabelRepository) ListLabels(ctx context.Context, organizationID, setID string, includeArchived bool) ([]models.AssessmentLabel, error) {
	query := `SELECT id, set_id, organization_id, label, description, display_order, archived_at, created_at, updated_at
	FROM assessment_labels WHERE organization_id = $1 AND set_id = $2`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY display_order, label`
	labels := make([]models.AssessmentLabel, 0)
	if err := r.db.SelectContext(ctx, &labels, query, organizationID, setID); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

// GetLabel fetches a label. Missing rows surface as sql.ErrNoRows.
func (r *AssessmentLabelRepository) GetLabel(ctx context.Context, organizationID, id string) (*models.AssessmentLabel, error) {
	const query = `SELECT id, set_id, organization_id, label, description, display_order, archived_at, created_at, updated_at
	FROM assessment_labels WHERE id = $1 AND organization_id = $2`
	var label models.AssessmentLabel
	if err := r.db.GetContext(ctx, &label, query, id, organizationID); err != nil {
		return nil, err
	}
	return &label, nil
}

// CreateLabel inserts a label into a set.
func (r *AssessmentLabelRepository) CreateLabel(ctx context.Context, label *models.AssessmentLabel) error {
	if label.ID == "" {
		label.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	label.CreatedAt = now
	label.UpdatedAt = now
	const query = `INSERT INTO assessment_labels (id, set_id, organization_id, label, description, display_order, created_at, updated_at)
	VALUES (:id, :set_id, :organization_id, :label, :description, :display_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, label); err != nil {
		return fmt.Errorf("create label: %w", err)
	}
	return nil
}

// UpdateLabel edits a label.
func (r *AssessmentLabelRepository) UpdateLabel(ctx context.Context, label *models.AssessmentLabel) error {
	label.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessment_labels SET label = :label, description = :description, display_order = :display_order,
	updated_at = :updated_at WHERE id = :id AND organization_id = :organization_id`
	result, err := r.db.NamedExecContext(ctx, query, label)
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}
	return expectRows(result, "update label")
}

// ArchiveLabel marks a single label archived.
func (r *AssessmentLabelRepository) ArchiveLabel(ctx context.Context, organizationID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE assessment_labels SET archived_at = $3, updated_at = $3
	WHERE id = $1 AND organization_id = $2 AND archived_at IS NULL`, id, organizationID, at)
	if err != nil {
		return fmt.Errorf("archive label: %w", err)
	}
	return expectRows(result, "archive label")
}
