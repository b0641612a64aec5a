package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

// MasteryLevelRepository reads the organization's mastery models and levels.
type MasteryLevelRepository struct {
	db database.DBTX
}

// NewMasteryLevelRepository constructs the repository.
func NewMasteryLevelRepository(db database.DBTX) *MasteryLevelRepository {
	return &MasteryLevelRepository{db: db}
}

// ListModels returns the organization's mastery models ordered by name.
func (r *MasteryLevelRepository) ListModels(ctx context.Context, organizationID string) ([]models.MasteryModel, error) {
	const query = `SELECT id, organization_id, name, created_at FROM mastery_models WHERE organization_id = $1 ORDER BY name`
	result := make([]models.MasteryModel, 0)
	if err := r.db.SelectContext(ctx, &result, query, organizationID); err != nil {
		return nil, fmt.Errorf("list mastery models: %w", err)
	}
	return result, nil
}

// ListLevels returns a model's levels in display order.
func (r *MasteryLevelRepository) ListLevels(ctx context.Context, organizationID, modelID string) ([]models.MasteryLevel, error) {
	const query = `SELECT id, model_id, organization_id, label, display_order, threshold, created_at
	FROM mastery_levels WHERE organization_id = $1 AND model_id = $2 ORDER BY display_order, label`
	result := make([]models.MasteryLevel, 0)
	if err := r.db.SelectContext(ctx, &result, query, organizationID, modelID); err != nil {
		return nil, fmt.Errorf("list mastery levels: %w", err)
	}
	return result, nil
}

// GetLevel fetches a single level inside the organization. Missing rows surface as sql.ErrNoRows.
func (r *MasteryLevelRepository) GetLevel(ctx context.Context, organizationID, id string) (*models.MasteryLevel, error) {
	const query = `SELECT id, model_id, organization_id, label, display_order, threshold, created_at
	FROM mastery_levels WHERE id = $1 AND organization_id = $2`
	var level models.MasteryLevel
	if err := r.db.GetContext(ctx, &level, query, id, organizationID); err != nil {
		return nil, err
	}
	return &level, nil
}

// ListLevelsByOrganization returns every level of the organization, used to label reports.
func (r *MasteryLevelRepository) ListLevelsByOrganization(ctx context.Context, organizationID string) ([]models.MasteryLevel, error) {
	const query = `SELECT id, model_id, organization_id, label, display_order, threshold, created_at
	FROM mastery_levels WHERE organization_id = $1 ORDER BY model_id, display_order`
	result := make([]models.MasteryLevel, 0)
	if err := r.db.SelectContext(ctx, &result, query, organizationID); err != nil {
		return nil, fmt.Errorf("list organization levels: %w", err)
	}
	return result, nil
}
