package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/internal/models"
)

func TestAssessmentLabelRepositoryListSetsExcludesArchived(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentLabelRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE organization_id = $1 AND archived_at IS NULL ORDER BY name")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "description", "archived_at", "created_at", "updated_at"}).
			AddRow("set-1", "org-1", "Rubric", nil, nil, now, now))

	sets, err := repo.ListSets(context.Background(), "org-1", false)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Rubric", sets[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentLabelRepositoryArchiveSetCascades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentLabelRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assessment_label_sets SET archived_at")).
		WithArgs("set-1", "org-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assessment_labels SET archived_at")).
		WithArgs("set-1", "org-1", at).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.ArchiveSet(context.Background(), "org-1", "set-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentLabelRepositoryArchiveLabelAlreadyArchived(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentLabelRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assessment_labels SET archived_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ArchiveLabel(context.Background(), "org-1", "label-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAssessmentLabelRepositoryCreateLabel(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentLabelRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_labels")).WillReturnResult(sqlmock.NewResult(1, 1))
	label := &models.AssessmentLabel{SetID: "set-1", OrganizationID: "org-1", Label: "Exceeds", DisplayOrder: 3}
	require.NoError(t, repo.CreateLabel(context.Background(), label))
	assert.NotEmpty(t, label.ID)
	assert.Equal(t, label.CreatedAt, label.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
