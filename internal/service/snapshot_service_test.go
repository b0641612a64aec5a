package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/models"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

func approvedRow(id, learner, competency, level string, date time.Time) models.MasterySnapshot {
	reviewer := "principal-1"
	return models.MasterySnapshot{
		ID:             id,
		LearnerID:      learner,
		CompetencyID:   competency,
		TeacherID:      "teacher-1",
		MasteryLevelID: level,
		OrganizationID: "org-1",
		Status:         models.MasteryStatusApproved,
		ConfirmedBy:    &reviewer,
		SnapshotDate:   date,
		UpdatedAt:      date,
	}
}

func TestCurrentSnapshotsKeepsLatestApprovedPerCompetency(t *testing.T) {
	gateway := newMemGateway()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gateway.mastery.put(approvedRow("a", "learner-1", "comp-1", "level-1", day))
	gateway.mastery.put(approvedRow("b", "learner-1", "comp-1", "level-2", day.AddDate(0, 1, 0)))
	gateway.mastery.put(approvedRow("c", "learner-1", "comp-2", "level-1", day))
	selfConfirmed := approvedRow("d", "learner-1", "comp-2", "level-3", day.AddDate(0, 2, 0))
	selfConfirmed.ConfirmedBy = &selfConfirmed.TeacherID
	selfConfirmed.Status = models.MasteryStatusSubmitted
	gateway.mastery.put(selfConfirmed)
	gateway.mastery.put(approvedRow("e", "learner-2", "comp-1", "level-3", day))

	svc := NewSnapshotService(gateway, nil, zap.NewNop())
	current, err := svc.CurrentSnapshots(context.Background(), "learner-1", identity("teacher-1", models.RoleTeacher))
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "b", current[0].ID)
	assert.Equal(t, "c", current[1].ID)
}

func TestCurrentSnapshotsStudentScope(t *testing.T) {
	svc := NewSnapshotService(newMemGateway(), nil, zap.NewNop())
	student := identity("learner-1", models.RoleStudent)

	_, err := svc.CurrentSnapshots(context.Background(), "learner-2", student)
	assertCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.CurrentSnapshots(context.Background(), "learner-1", student)
	require.NoError(t, err)

	_, err = svc.CurrentSnapshots(context.Background(), "", identity("teacher-1", models.RoleTeacher))
	assertCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.CurrentSnapshots(context.Background(), "learner-1", nil)
	assertCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestMasteryReferenceServiceCachesLevels(t *testing.T) {
	gateway := newMemGateway()
	gateway.levels.add(models.MasteryLevel{ID: "l2", ModelID: "m1", OrganizationID: "org-1", Label: "Proficient", DisplayOrder: 2})
	gateway.levels.add(models.MasteryLevel{ID: "l1", ModelID: "m1", OrganizationID: "org-1", Label: "Developing", DisplayOrder: 1})
	cacheSvc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewMasteryReferenceService(gateway, cacheSvc, time.Minute)
	actor := identity("teacher-1", models.RoleTeacher)

	levels, err := svc.ListLevels(context.Background(), "m1", actor)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Developing", levels[0].Label)

	_, err = svc.ListLevels(context.Background(), "m1", actor)
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.levels.reads)

	modelsList, err := svc.ListModels(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, modelsList, 1)
	assert.Equal(t, "m1", modelsList[0].ID)

	_, err = svc.ListLevels(context.Background(), " ", actor)
	assertCode(t, err, appErrors.ErrValidation.Code)
}
