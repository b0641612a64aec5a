package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var snapshotColumns = []string{
	"id", "learner_id", "competency_id", "teacher_id", "mastery_level_id", "rationale_text",
	"highlight_evidence_ids", "organization_id", "school_id", "status", "archived_at", "confirmed_by",
	"reviewed_by", "reviewed_at", "reviewer_notes", "override_justification", "original_level_id",
	"snapshot_date", "submitted_at", "created_at", "updated_at",
}

func snapshotRow(rows *sqlmock.Rows, id, status string, archivedAt *time.Time, confirmedBy *string) *sqlmock.Rows {
	now := time.Now()
	var archived interface{}
	if archivedAt != nil {
		archived = *archivedAt
	}
	var confirmed interface{}
	if confirmedBy != nil {
		confirmed = *confirmedBy
	}
	return rows.AddRow(id, "learner-1", "comp-1", "teacher-1", "level-dev", "steady progress",
		"{ev-1,ev-2}", "org-1", nil, status, archived, confirmed,
		nil, nil, nil, nil, nil,
		now, nil, now, now)
}

func TestMasteryRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM mastery_snapshots WHERE id = $1 AND organization_id = $2")).
		WithArgs("snap-1", "org-1").
		WillReturnRows(snapshotRow(sqlmock.NewRows(snapshotColumns), "snap-1", "draft", &now, nil))

	snapshot, err := repo.GetByID(context.Background(), "org-1", "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snapshot.ID)
	assert.Equal(t, models.MasteryStatusDraft, snapshot.Status)
	assert.Equal(t, pq.StringArray{"ev-1", "ev-2"}, snapshot.HighlightEvidenceIDs)
	assert.True(t, snapshot.IsDraft())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryFindDraftNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	mock.ExpectQuery("archived_at IS NOT NULL AND status IN").
		WithArgs("org-1", "learner-1", "comp-1", "teacher-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindDraft(context.Background(), "org-1", "learner-1", "comp-1", "teacher-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryInsertDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mastery_snapshots")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	now := time.Now().UTC()
	snapshot := &models.MasterySnapshot{
		LearnerID:      "learner-1",
		CompetencyID:   "comp-1",
		TeacherID:      "teacher-1",
		MasteryLevelID: "level-dev",
		RationaleText:  "steady progress",
		OrganizationID: "org-1",
		Status:         models.MasteryStatusDraft,
		ArchivedAt:     &now,
	}
	require.NoError(t, repo.Insert(context.Background(), snapshot))
	assert.NotEmpty(t, snapshot.ID)
	assert.False(t, snapshot.SnapshotDate.IsZero())
	assert.NotNil(t, snapshot.HighlightEvidenceIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryUpdateDraftStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mastery_snapshots SET mastery_level_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDraft(context.Background(), &models.MasterySnapshot{ID: "snap-1", OrganizationID: "org-1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryTransitionGuardsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	reviewer := "reviewer-1"
	snapshot := &models.MasterySnapshot{
		ID:             "snap-1",
		OrganizationID: "org-1",
		Status:         models.MasteryStatusApproved,
		ConfirmedBy:    &reviewer,
		MasteryLevelID: "level-dev",
	}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND organization_id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Transition(context.Background(), snapshot, models.MasteryStatusSubmitted))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE mastery_snapshots SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Transition(context.Background(), snapshot, models.MasteryStatusSubmitted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryListReviewQueue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("(confirmed_by IS NULL OR confirmed_by = teacher_id)")).
		WithArgs("org-1").
		WillReturnRows(snapshotRow(sqlmock.NewRows(snapshotColumns), "snap-1", "submitted", nil, nil))

	queue, err := repo.ListReviewQueue(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.True(t, queue[0].InReviewQueue())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryCurrentForLearnerUsesDistinctOn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	reviewer := "reviewer-1"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (learner_id, competency_id)")).
		WithArgs("org-1", "learner-1").
		WillReturnRows(snapshotRow(sqlmock.NewRows(snapshotColumns), "snap-1", "approved", nil, &reviewer))

	current, err := repo.CurrentForLearner(context.Background(), "org-1", "learner-1")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.True(t, current[0].IsApproved())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryCurrentForLearnerKeepsLegacyRowsWithoutStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	reviewer := "reviewer-1"
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(status, '') IN ('approved', '')")).
		WithArgs("org-1", "learner-1").
		WillReturnRows(snapshotRow(sqlmock.NewRows(snapshotColumns), "snap-legacy", "", nil, &reviewer))

	current, err := repo.CurrentForLearner(context.Background(), "org-1", "learner-1")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.True(t, current[0].IsApproved())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryCurrentAsOfScopes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("school_id = $3")).
		WithArgs("org-1", asOf, "school-1").
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	snapshots, err := repo.CurrentAsOf(context.Background(), ApprovedScope{
		OrganizationID: "org-1",
		ScopeType:      models.SnapshotScopeSchool,
		ScopeID:        "school-1",
		AsOf:           asOf,
	})
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryReplaceEvidence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mastery_evidence_links")).
		WithArgs("snap-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mastery_evidence_links")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mastery_evidence_links")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	links := []models.EvidenceLink{
		{EvidenceID: "obs-1", EvidenceType: models.EvidenceTypeObservation},
		{EvidenceID: "art-1", EvidenceType: models.EvidenceTypePortfolioArtifact},
	}
	require.NoError(t, repo.ReplaceEvidence(context.Background(), "org-1", "snap-1", links))
	assert.Equal(t, "snap-1", links[0].SnapshotID)
	assert.NotEmpty(t, links[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasteryRepositoryListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewMasteryRepository(db)
	snapshots, err := repo.ListByIDs(context.Background(), "org-1", nil)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	require.NoError(t, mock.ExpectationsWereMet())
}
