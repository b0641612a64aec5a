package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	"github.com/noah-isme/sis-api/pkg/cache"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// SnapshotService projects the current approved mastery per learner and competency.
type SnapshotService struct {
	gateway storeGateway
	cache   *CacheService
	logger  *zap.Logger
}

// NewSnapshotService constructs the projector. cache may be nil.
func NewSnapshotService(gateway storeGateway, cache *CacheService, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{gateway: gateway, cache: cache, logger: logger}
}

// Generations outlive any cached view (at least twice the cache TTL), so a view keyed
// by an expired generation has already expired too.
const viewGenerationTTL = 24 * time.Hour

func viewGenerationKey(organizationID, learnerID string) string {
	return cache.Key(organizationID, "mastery", "current-gen", learnerID)
}

func currentViewKey(organizationID, learnerID, generation string) string {
	return cache.Key(organizationID, "mastery", "current", learnerID, generation)
}

// viewGeneration reads the learner's cache generation. ok is false when the view must
// not be cached, either because caching is off or the generation could not be read.
func (s *SnapshotService) viewGeneration(ctx context.Context, organizationID, learnerID string) (string, bool) {
	if !s.cache.Enabled() {
		return "", false
	}
	var generation string
	hit, err := s.cache.Get(ctx, viewGenerationKey(organizationID, learnerID), &generation)
	if err != nil {
		return "", false
	}
	if !hit {
		generation = "0"
	}
	return generation, true
}

// CurrentSnapshots returns, for one learner, the newest approved snapshot of each competency.
// Students may only read their own view; an empty learnerID means the caller.
func (s *SnapshotService) CurrentSnapshots(ctx context.Context, learnerID string, actor *models.Identity) ([]models.MasterySnapshot, error) {
	if err := policy.Authorize(actor, policy.MasterySnapshotRead); err != nil {
		return nil, err
	}
	learnerID = strings.TrimSpace(learnerID)
	if learnerID == "" {
		if actor.Role != models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrValidation, "learner_id is required")
		}
		learnerID = actor.UserID
	}
	if learnerID != actor.UserID && !policy.Allows(actor.Role, policy.MasterySnapshotReadAny) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own mastery")
	}

	// The generation is read before the rows: a review landing in between bumps it,
	// so the view stored below is never served.
	generation, cacheable := s.viewGeneration(ctx, actor.OrganizationID, learnerID)
	key := currentViewKey(actor.OrganizationID, learnerID, generation)
	if cacheable {
		var cached []models.MasterySnapshot
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	var rows []models.MasterySnapshot
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		rows, err = scope.Mastery.CurrentForLearner(ctx, actor.OrganizationID, learnerID)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to load current mastery")
	}

	current := models.CurrentApproved(rows)
	if len(current) != len(rows) {
		s.logger.Warn("current mastery query returned rows outside the approved view",
			zap.String("learner_id", learnerID), zap.Int("rows", len(rows)), zap.Int("kept", len(current)))
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, current, 0)
	}
	return current, nil
}

// InvalidateLearner moves the learner to a fresh cache generation after a review
// decision. Views cached under the old generation are left to expire.
func (s *SnapshotService) InvalidateLearner(ctx context.Context, organizationID, learnerID string) {
	if s == nil || !s.cache.Enabled() {
		return
	}
	ttl := viewGenerationTTL
	if 2*s.cache.defaultTTL > ttl {
		ttl = 2 * s.cache.defaultTTL
	}
	_ = s.cache.Set(ctx, viewGenerationKey(organizationID, learnerID), uuid.NewString(), ttl)
}
