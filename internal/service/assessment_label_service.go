package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	"github.com/noah-isme/sis-api/pkg/cache"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// AssessmentLabelService manages assessment label sets and the labels inside them.
type AssessmentLabelService struct {
	gateway   storeGateway
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssessmentLabelService constructs the service. Reads are cached per organization
// when cacheSvc is enabled; every write drops the organization's label entries.
func NewAssessmentLabelService(gateway storeGateway, audit auditLogger, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *AssessmentLabelService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentLabelService{
		gateway:   gateway,
		audit:     audit,
		cache:     cacheSvc,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListSets returns the organization's label sets.
func (s *AssessmentLabelService) ListSets(ctx context.Context, query dto.AssessmentLabelQuery, actor *models.Identity) ([]models.AssessmentLabelSet, error) {
	if err := policy.Authorize(actor, policy.LabelsRead); err != nil {
		return nil, err
	}
	key := labelCacheKey(actor.OrganizationID, "sets", strconv.FormatBool(query.IncludeArchived))
	sets, err := remember(ctx, s.cache, key, 0, func() (sets []models.AssessmentLabelSet, err error) {
		err = s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
			sets, err = scope.Labels.ListSets(ctx, actor.OrganizationID, query.IncludeArchived)
			return err
		})
		return sets, err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list label sets")
	}
	return sets, nil
}

// GetSet returns one label set.
func (s *AssessmentLabelService) GetSet(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabelSet, error) {
	if err := policy.Authorize(actor, policy.LabelsRead); err != nil {
		return nil, err
	}
	var set *models.AssessmentLabelSet
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		set, err = loadLabelSet(ctx, scope, actor, id)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to load label set")
	}
	return set, nil
}

// CreateSet creates a label set.
func (s *AssessmentLabelService) CreateSet(ctx context.Context, req dto.AssessmentLabelSetRequest, actor *models.Identity) (*models.AssessmentLabelSet, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	set := &models.AssessmentLabelSet{
		OrganizationID: actor.OrganizationID,
		Name:           req.Name,
		Description:    optionalString(req.Description),
	}
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		return scope.Labels.CreateSet(ctx, set)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create label set")
	}
	s.afterWrite(ctx, actor, models.AuditActionLabelSetWrite, models.AuditResourceLabelSet, set.ID, nil, set)
	return set, nil
}

// UpdateSet renames or redescribes an active label set.
func (s *AssessmentLabelService) UpdateSet(ctx context.Context, id string, req dto.AssessmentLabelSetRequest, actor *models.Identity) (*models.AssessmentLabelSet, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var before, after *models.AssessmentLabelSet
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		set, err := loadLabelSet(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		if set.ArchivedAt != nil {
			return appErrors.Clone(appErrors.ErrConflict, "label set is archived")
		}
		snapshot := *set
		before = &snapshot
		set.Name = req.Name
		set.Description = optionalString(req.Description)
		if err := scope.Labels.UpdateSet(ctx, set); err != nil {
			return err
		}
		after = set
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to update label set")
	}
	s.afterWrite(ctx, actor, models.AuditActionLabelSetWrite, models.AuditResourceLabelSet, after.ID, before, after)
	return after, nil
}

// ArchiveSet archives a set together with its labels. Archiving twice is a no-op.
func (s *AssessmentLabelService) ArchiveSet(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabelSet, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	var result *models.AssessmentLabelSet
	changed := false
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		set, err := loadLabelSet(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		result = set
		if set.ArchivedAt != nil {
			return nil
		}
		now := s.now()
		if err := scope.Labels.ArchiveSet(ctx, actor.OrganizationID, set.ID, now); err != nil {
			return err
		}
		set.ArchivedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to archive label set")
	}
	if changed {
		s.afterWrite(ctx, actor, models.AuditActionLabelArchive, models.AuditResourceLabelSet, result.ID, nil, result)
	}
	return result, nil
}

// ListLabels returns the labels of a set in display order.
func (s *AssessmentLabelService) ListLabels(ctx context.Context, setID string, query dto.AssessmentLabelQuery, actor *models.Identity) ([]models.AssessmentLabel, error) {
	if err := policy.Authorize(actor, policy.LabelsRead); err != nil {
		return nil, err
	}
	setID = strings.TrimSpace(setID)
	key := labelCacheKey(actor.OrganizationID, setID, strconv.FormatBool(query.IncludeArchived))
	labels, err := remember(ctx, s.cache, key, 0, func() (labels []models.AssessmentLabel, err error) {
		err = s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
			set, err := loadLabelSet(ctx, scope, actor, setID)
			if err != nil {
				return err
			}
			labels, err = scope.Labels.ListLabels(ctx, actor.OrganizationID, set.ID, query.IncludeArchived)
			return err
		})
		return labels, err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list labels")
	}
	return labels, nil
}

// CreateLabel adds a label to an active set.
func (s *AssessmentLabelService) CreateLabel(ctx context.Context, setID string, req dto.AssessmentLabelRequest, actor *models.Identity) (*models.AssessmentLabel, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	req.Label = strings.TrimSpace(req.Label)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var label *models.AssessmentLabel
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		set, err := loadLabelSet(ctx, scope, actor, setID)
		if err != nil {
			return err
		}
		if set.ArchivedAt != nil {
			return appErrors.Clone(appErrors.ErrConflict, "label set is archived")
		}
		label = &models.AssessmentLabel{
			SetID:          set.ID,
			OrganizationID: actor.OrganizationID,
			Label:          req.Label,
			Description:    optionalString(req.Description),
			DisplayOrder:   req.DisplayOrder,
		}
		return scope.Labels.CreateLabel(ctx, label)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create label")
	}
	s.afterWrite(ctx, actor, models.AuditActionLabelWrite, models.AuditResourceLabel, label.ID, nil, label)
	return label, nil
}

// UpdateLabel edits an active label.
func (s *AssessmentLabelService) UpdateLabel(ctx context.Context, id string, req dto.AssessmentLabelRequest, actor *models.Identity) (*models.AssessmentLabel, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	req.Label = strings.TrimSpace(req.Label)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var before, after *models.AssessmentLabel
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		label, err := loadLabel(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		if label.ArchivedAt != nil {
			return appErrors.Clone(appErrors.ErrConflict, "label is archived")
		}
		snapshot := *label
		before = &snapshot
		label.Label = req.Label
		label.Description = optionalString(req.Description)
		label.DisplayOrder = req.DisplayOrder
		if err := scope.Labels.UpdateLabel(ctx, label); err != nil {
			return err
		}
		after = label
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to update label")
	}
	s.afterWrite(ctx, actor, models.AuditActionLabelWrite, models.AuditResourceLabel, after.ID, before, after)
	return after, nil
}

// ArchiveLabel archives one label. Archiving twice is a no-op.
func (s *AssessmentLabelService) ArchiveLabel(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabel, error) {
	if err := policy.Authorize(actor, policy.LabelsManage); err != nil {
		return nil, err
	}
	var result *models.AssessmentLabel
	changed := false
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		label, err := loadLabel(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		result = label
		if label.ArchivedAt != nil {
			return nil
		}
		now := s.now()
		if err := scope.Labels.ArchiveLabel(ctx, actor.OrganizationID, label.ID, now); err != nil {
			return err
		}
		label.ArchivedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to archive label")
	}
	if changed {
		s.afterWrite(ctx, actor, models.AuditActionLabelArchive, models.AuditResourceLabel, result.ID, nil, result)
	}
	return result, nil
}

func (s *AssessmentLabelService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

func labelCacheKey(organizationID string, parts ...string) string {
	return cache.Key(append([]string{organizationID, "labels"}, parts...)...)
}

// afterWrite drops cached label reads and records the audit entry.
func (s *AssessmentLabelService) afterWrite(ctx context.Context, actor *models.Identity, action, resource, resourceID string, before, after interface{}) {
	_ = s.cache.Invalidate(ctx, labelCacheKey(actor.OrganizationID, "*"))
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "label-service",
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

func loadLabelSet(ctx context.Context, scope repository.Scope, actor *models.Identity, id string) (*models.AssessmentLabelSet, error) {
	set, err := scope.Labels.GetSet(ctx, actor.OrganizationID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "label set not found")
		}
		return nil, appErrors.Internal(err, "failed to load label set")
	}
	return set, nil
}

func loadLabel(ctx context.Context, scope repository.Scope, actor *models.Identity, id string) (*models.AssessmentLabel, error) {
	label, err := scope.Labels.GetLabel(ctx, actor.OrganizationID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "label not found")
		}
		return nil, appErrors.Internal(err, "failed to load label")
	}
	return label, nil
}
