package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// storeGateway hands out stores bound to the service pool or to the caller's credential.
type storeGateway interface {
	Service() repository.Scope
	WithCaller(ctx context.Context, identity *models.Identity, fn func(repository.Scope) error) error
}

type auditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// MasteryService manages mastery drafts and proposals and the review decisions on them.
// Every read and write runs under the caller's credential so row-level security sees it.
type MasteryService struct {
	gateway   storeGateway
	audit     auditLogger
	snapshots *SnapshotService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMasteryService constructs the service. snapshots may be nil when the student view
// is not cached.
func NewMasteryService(gateway storeGateway, audit auditLogger, snapshots *SnapshotService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MasteryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MasteryService{
		gateway:   gateway,
		audit:     audit,
		snapshots: snapshots,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if err := registerMasteryValidations(svc.validator); err != nil {
		panic(fmt.Sprintf("mastery service: %v", err))
	}
	return svc
}

func registerMasteryValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("evidence_type", func(fl validator.FieldLevel) bool {
		return models.EvidenceType(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("register evidence_type validation: %w", err)
	}
	return nil
}

// UpsertDraft creates the caller's draft for a learner and competency or updates the
// existing draft-like row in place.
func (s *MasteryService) UpsertDraft(ctx context.Context, req dto.UpsertMasteryDraftRequest, actor *models.Identity) (*models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasteryDraftWrite); err != nil {
		return nil, err
	}
	req.LearnerID = strings.TrimSpace(req.LearnerID)
	req.CompetencyID = strings.TrimSpace(req.CompetencyID)
	req.MasteryLevelID = strings.TrimSpace(req.MasteryLevelID)
	req.RationaleText = strings.TrimSpace(req.RationaleText)
	if missing := missingDraftFields(req); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if org := strings.TrimSpace(req.OrganizationID); org != "" && !policy.SameTenant(actor, org) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization_id does not match your organization")
	}
	schoolID := actor.SchoolID
	if req.SchoolID != nil && strings.TrimSpace(*req.SchoolID) != "" {
		trimmed := strings.TrimSpace(*req.SchoolID)
		schoolID = &trimmed
	}

	var result *models.MasterySnapshot
	created := false
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		if _, err := scope.Levels.GetLevel(ctx, actor.OrganizationID, req.MasteryLevelID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "mastery_level_id is not a level of your organization")
			}
			return appErrors.Internal(err, "failed to load mastery level")
		}

		now := s.now()
		draft, err := scope.Mastery.FindDraft(ctx, actor.OrganizationID, req.LearnerID, req.CompetencyID, actor.UserID)
		switch {
		case err == nil:
			draft.MasteryLevelID = req.MasteryLevelID
			draft.RationaleText = req.RationaleText
			draft.HighlightEvidenceIDs = dedupeIDs(req.HighlightEvidenceIDs)
			draft.SchoolID = schoolID
			draft.SnapshotDate = now
			if err := scope.Mastery.UpdateDraft(ctx, draft); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrConflict, "draft was submitted while editing")
				}
				return appErrors.Internal(err, "failed to update mastery draft")
			}
		case errors.Is(err, sql.ErrNoRows):
			draft = &models.MasterySnapshot{
				LearnerID:            req.LearnerID,
				CompetencyID:         req.CompetencyID,
				TeacherID:            actor.UserID,
				MasteryLevelID:       req.MasteryLevelID,
				RationaleText:        req.RationaleText,
				HighlightEvidenceIDs: dedupeIDs(req.HighlightEvidenceIDs),
				OrganizationID:       actor.OrganizationID,
				SchoolID:             schoolID,
				Status:               models.MasteryStatusDraft,
				ArchivedAt:           &now,
				SnapshotDate:         now,
			}
			if err := scope.Mastery.Insert(ctx, draft); err != nil {
				return appErrors.Internal(err, "failed to create mastery draft")
			}
			created = true
		default:
			return appErrors.Internal(err, "failed to look up mastery draft")
		}

		if req.Evidence != nil {
			links := make([]models.EvidenceLink, 0, len(*req.Evidence))
			for _, item := range *req.Evidence {
				links = append(links, models.EvidenceLink{EvidenceID: strings.TrimSpace(item.EvidenceID), EvidenceType: item.EvidenceType})
			}
			if err := scope.Mastery.ReplaceEvidence(ctx, actor.OrganizationID, draft.ID, links); err != nil {
				return appErrors.Internal(err, "failed to store evidence links")
			}
		}
		result = draft
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to save mastery draft")
	}

	s.logger.Debug("mastery draft saved", zap.String("snapshot_id", result.ID), zap.Bool("created", created))
	s.emitAudit(ctx, actor, models.AuditActionMasteryDraftUpsert, result.ID, nil, result)
	return result, nil
}

// Submit moves a draft-like row into the review queue. Submitting an already submitted
// proposal returns it unchanged.
func (s *MasteryService) Submit(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasteryProposalSubmit); err != nil {
		return nil, err
	}

	var result *models.MasterySnapshot
	changed := false
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		snapshot, err := loadSnapshot(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		if snapshot.TeacherID != actor.UserID && !policy.Allows(actor.Role, policy.MasteryProposalSubmitAny) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the authoring teacher can submit this proposal")
		}
		if snapshot.Status == models.MasteryStatusSubmitted {
			result = snapshot
			return nil
		}
		next, err := models.NextStatus(snapshot.Status, models.MasteryActionSubmit)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "proposal cannot be submitted from status "+string(snapshot.Status))
		}

		previous := snapshot.Status
		now := s.now()
		snapshot.Status = next
		snapshot.ArchivedAt = nil
		snapshot.ConfirmedBy = nil
		snapshot.SubmittedAt = &now
		if err := scope.Mastery.Transition(ctx, snapshot, previous); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "proposal changed while submitting")
			}
			return appErrors.Internal(err, "failed to submit proposal")
		}
		result = snapshot
		changed = true
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to submit proposal")
	}
	if changed {
		s.metrics.RecordProposalSubmitted()
		s.emitAudit(ctx, actor, models.AuditActionMasterySubmit, result.ID, nil, result)
	}
	return result, nil
}

// ListDrafts returns a teacher's draft-like rows. An empty teacherID means the caller.
func (s *MasteryService) ListDrafts(ctx context.Context, teacherID string, actor *models.Identity) ([]models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasteryDraftWrite); err != nil {
		return nil, err
	}
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		teacherID = actor.UserID
	}
	if teacherID != actor.UserID {
		if err := policy.Authorize(actor, policy.MasteryDraftListAny); err != nil {
			return nil, err
		}
	}

	var drafts []models.MasterySnapshot
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		drafts, err = scope.Mastery.ListDrafts(ctx, actor.OrganizationID, teacherID)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list mastery drafts")
	}
	return drafts, nil
}

// ListReviewQueue returns the organization's proposals awaiting review.
func (s *MasteryService) ListReviewQueue(ctx context.Context, actor *models.Identity) ([]models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasteryProposalReview); err != nil {
		return nil, err
	}
	var queue []models.MasterySnapshot
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		queue, err = scope.Mastery.ListReviewQueue(ctx, actor.OrganizationID)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list review queue")
	}
	return queue, nil
}

// Get returns one proposal visible to the caller.
func (s *MasteryService) Get(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasteryProposalRead); err != nil {
		return nil, err
	}
	var result *models.MasterySnapshot
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		snapshot, err := loadReadableSnapshot(ctx, scope, actor, id)
		result = snapshot
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to load proposal")
	}
	return result, nil
}

// ListEvidence returns the evidence links of a proposal visible to the caller.
func (s *MasteryService) ListEvidence(ctx context.Context, id string, actor *models.Identity) ([]models.EvidenceLink, error) {
	if err := policy.Authorize(actor, policy.MasteryProposalRead); err != nil {
		return nil, err
	}
	var links []models.EvidenceLink
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		if _, err := loadReadableSnapshot(ctx, scope, actor, id); err != nil {
			return err
		}
		var err error
		links, err = scope.Mastery.ListEvidence(ctx, actor.OrganizationID, id)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list evidence")
	}
	return links, nil
}

func loadSnapshot(ctx context.Context, scope repository.Scope, actor *models.Identity, id string) (*models.MasterySnapshot, error) {
	snapshot, err := scope.Mastery.GetByID(ctx, actor.OrganizationID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Internal(err, "failed to load proposal")
	}
	if !policy.SameTenant(actor, snapshot.OrganizationID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	return snapshot, nil
}

func loadReadableSnapshot(ctx context.Context, scope repository.Scope, actor *models.Identity, id string) (*models.MasterySnapshot, error) {
	snapshot, err := loadSnapshot(ctx, scope, actor, id)
	if err != nil {
		return nil, err
	}
	if snapshot.TeacherID != actor.UserID && !policy.Allows(actor.Role, policy.MasteryProposalReview) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "proposal belongs to another teacher")
	}
	return snapshot, nil
}

func (s *MasteryService) emitAudit(ctx context.Context, actor *models.Identity, action, resourceID string, before, after *models.MasterySnapshot) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   models.AuditResourceMasterySnapshot,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "mastery-service",
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

func missingDraftFields(req dto.UpsertMasteryDraftRequest) []string {
	missing := make([]string, 0, 4)
	for _, field := range []struct{ name, value string }{
		{"learner_id", req.LearnerID},
		{"competency_id", req.CompetencyID},
		{"mastery_level_id", req.MasteryLevelID},
		{"rationale_text", req.RationaleText},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// dedupeIDs drops blanks and repeats while keeping first-seen order.
func dedupeIDs(ids []string) pq.StringArray {
	seen := make(map[string]struct{}, len(ids))
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// serviceError keeps typed errors raised inside a unit of work and wraps anything else.
func serviceError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Internal(err, message)
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
