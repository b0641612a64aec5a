package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// Review applies a reviewer decision to a submitted proposal. The request is validated
// before anything is read. Repeating a decision that is already in effect returns the
// row without writing.
func (s *MasteryService) Review(ctx context.Context, id string, req dto.ReviewMasteryRequest, actor *models.Identity) (*models.MasterySnapshot, error) {
	action, ok := models.ParseReviewAction(req.Action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidAction, "")
	}
	overrideLevelID := optionalString(req.OverrideLevelID)
	justification := optionalString(req.OverrideJustification)
	if action == models.MasteryActionOverride && (overrideLevelID == nil || justification == nil) {
		return nil, appErrors.Clone(appErrors.ErrMissingOverrideFields, "")
	}
	if err := policy.Authorize(actor, policy.MasteryProposalReview); err != nil {
		return nil, err
	}
	notes := optionalString(req.ReviewerNotes)

	var before, result *models.MasterySnapshot
	changed := false
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		snapshot, err := loadSnapshot(ctx, scope, actor, id)
		if err != nil {
			return err
		}
		if snapshot.TeacherID == actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "reviewers cannot review their own proposals")
		}
		if decisionInEffect(snapshot, action, overrideLevelID) {
			result = snapshot
			return nil
		}
		next, err := models.NextStatus(snapshot.Status, action)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status,
				"proposal is "+string(snapshot.Status)+" and cannot be reviewed with "+string(action))
		}
		if action == models.MasteryActionOverride {
			if _, err := scope.Levels.GetLevel(ctx, actor.OrganizationID, *overrideLevelID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrValidation, "override_level_id is not a level of your organization")
				}
				return appErrors.Internal(err, "failed to load override level")
			}
		}

		original := *snapshot
		before = &original
		previous := snapshot.Status
		now := s.now()
		reviewer := actor.UserID
		snapshot.Status = next
		snapshot.ReviewedBy = &reviewer
		snapshot.ReviewedAt = &now
		if notes != nil {
			snapshot.ReviewerNotes = notes
		}
		switch action {
		case models.MasteryActionApprove:
			snapshot.ArchivedAt = nil
			snapshot.ConfirmedBy = &reviewer
		case models.MasteryActionOverride:
			level := snapshot.MasteryLevelID
			snapshot.OriginalLevelID = &level
			snapshot.MasteryLevelID = *overrideLevelID
			snapshot.OverrideJustification = justification
			snapshot.ArchivedAt = nil
			snapshot.ConfirmedBy = &reviewer
		case models.MasteryActionRequestChanges:
			snapshot.ArchivedAt = &now
			snapshot.ConfirmedBy = nil
		}

		if err := scope.Mastery.Transition(ctx, snapshot, previous); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "proposal was reviewed concurrently")
			}
			return appErrors.Internal(err, "failed to record review decision")
		}
		result = snapshot
		changed = true
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to review proposal")
	}
	if !changed {
		return result, nil
	}

	s.metrics.RecordReviewDecision(string(action))
	if s.snapshots != nil {
		s.snapshots.InvalidateLearner(ctx, result.OrganizationID, result.LearnerID)
	}
	s.logger.Info("mastery proposal reviewed",
		zap.String("snapshot_id", result.ID),
		zap.String("action", string(action)),
		zap.String("reviewer_id", actor.UserID),
	)
	s.emitAudit(ctx, actor, models.ReviewAuditAction(action), result.ID, before, result)
	return result, nil
}

// decisionInEffect reports whether the row already reflects the requested decision.
func decisionInEffect(snapshot *models.MasterySnapshot, action models.MasteryAction, overrideLevelID *string) bool {
	switch action {
	case models.MasteryActionApprove:
		return snapshot.Status == models.MasteryStatusApproved && snapshot.OriginalLevelID == nil
	case models.MasteryActionOverride:
		return snapshot.Status == models.MasteryStatusApproved && snapshot.OriginalLevelID != nil &&
			overrideLevelID != nil && strings.TrimSpace(*overrideLevelID) == snapshot.MasteryLevelID
	case models.MasteryActionRequestChanges:
		return snapshot.Status == models.MasteryStatusChangesRequested
	}
	return false
}
