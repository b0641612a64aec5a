package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

func TestGatewayWithCallerScopesTransaction(t *testing.T) {
	serviceDB, serviceMock, cleanupService := newMock(t)
	defer cleanupService()
	userDB, userMock, cleanupUser := newMock(t)
	defer cleanupUser()

	gateway := NewGateway(&database.Pools{Service: serviceDB, User: userDB, RLSRole: "authenticated"})
	school := "school-1"
	identity := &models.Identity{UserID: "teacher-1", OrganizationID: "org-1", SchoolID: &school, Role: models.RoleTeacher}

	userMock.ExpectBegin()
	userMock.ExpectExec(regexp.QuoteMeta("SELECT set_config('request.jwt.claims', $1, true)")).
		WithArgs(`{"sub":"teacher-1","role":"authenticated","app_role":"teacher","organization_id":"org-1","school_id":"school-1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	userMock.ExpectExec(regexp.QuoteMeta(`SET LOCAL ROLE "authenticated"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	userMock.ExpectQuery(regexp.QuoteMeta("FROM mastery_snapshots")).
		WithArgs("org-1", "teacher-1").
		WillReturnRows(sqlmock.NewRows(snapshotColumns))
	userMock.ExpectCommit()

	err := gateway.WithCaller(context.Background(), identity, func(scope Scope) error {
		drafts, err := scope.Mastery.ListDrafts(context.Background(), "org-1", "teacher-1")
		assert.Empty(t, drafts)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, userMock.ExpectationsWereMet())
	assert.NoError(t, serviceMock.ExpectationsWereMet())
}

func TestCallerClaims(t *testing.T) {
	claims := CallerClaims(&models.Identity{UserID: "u-1", OrganizationID: "org-1", Role: models.RolePrincipal})
	assert.Equal(t, database.Claims{Subject: "u-1", AppRole: "principal", OrganizationID: "org-1"}, claims)
	assert.Equal(t, database.Claims{}, CallerClaims(nil))
}
