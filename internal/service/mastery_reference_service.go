package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	"github.com/noah-isme/sis-api/pkg/cache"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// MasteryReferenceService serves the mastery models and their ordered levels.
type MasteryReferenceService struct {
	gateway storeGateway
	cache   *CacheService
	ttl     time.Duration
}

// NewMasteryReferenceService constructs the reference data service.
func NewMasteryReferenceService(gateway storeGateway, cache *CacheService, ttl time.Duration) *MasteryReferenceService {
	return &MasteryReferenceService{gateway: gateway, cache: cache, ttl: ttl}
}

// ListModels returns the organization's mastery models.
func (s *MasteryReferenceService) ListModels(ctx context.Context, actor *models.Identity) ([]models.MasteryModel, error) {
	if err := policy.Authorize(actor, policy.MasteryReferenceRead); err != nil {
		return nil, err
	}
	key := cache.Key(actor.OrganizationID, "mastery", "models")
	result, err := remember(ctx, s.cache, key, s.ttl, func() (items []models.MasteryModel, err error) {
		err = s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
			items, err = scope.Levels.ListModels(ctx, actor.OrganizationID)
			return err
		})
		return items, err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list mastery models")
	}
	return result, nil
}

// ListLevels returns a model's levels in display order.
func (s *MasteryReferenceService) ListLevels(ctx context.Context, modelID string, actor *models.Identity) ([]models.MasteryLevel, error) {
	if err := policy.Authorize(actor, policy.MasteryReferenceRead); err != nil {
		return nil, err
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "model id is required")
	}
	key := cache.Key(actor.OrganizationID, "mastery", "levels", modelID)
	result, err := remember(ctx, s.cache, key, s.ttl, func() (levels []models.MasteryLevel, err error) {
		err = s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
			levels, err = scope.Levels.ListLevels(ctx, actor.OrganizationID, modelID)
			return err
		})
		return levels, err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list mastery levels")
	}
	return result, nil
}
