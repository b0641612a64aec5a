package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/service"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/response"
)

type masteryServiceMock struct {
	proposal   *models.MasterySnapshot
	proposals  []models.MasterySnapshot
	err        error
	listedType string
	teacherID  string
	review     dto.ReviewMasteryRequest
}

func (m *masteryServiceMock) UpsertDraft(ctx context.Context, req dto.UpsertMasteryDraftRequest, actor *models.Identity) (*models.MasterySnapshot, error) {
	return m.proposal, m.err
}

func (m *masteryServiceMock) Submit(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error) {
	return m.proposal, m.err
}

func (m *masteryServiceMock) ListDrafts(ctx context.Context, teacherID string, actor *models.Identity) ([]models.MasterySnapshot, error) {
	m.listedType = dto.ProposalListDrafts
	m.teacherID = teacherID
	return m.proposals, m.err
}

func (m *masteryServiceMock) ListReviewQueue(ctx context.Context, actor *models.Identity) ([]models.MasterySnapshot, error) {
	m.listedType = dto.ProposalListReview
	return m.proposals, m.err
}

func (m *masteryServiceMock) Get(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error) {
	return m.proposal, m.err
}

func (m *masteryServiceMock) ListEvidence(ctx context.Context, id string, actor *models.Identity) ([]models.EvidenceLink, error) {
	return nil, m.err
}

func (m *masteryServiceMock) Review(ctx context.Context, id string, req dto.ReviewMasteryRequest, actor *models.Identity) (*models.MasterySnapshot, error) {
	m.review = req
	return m.proposal, m.err
}

func decodeError(t *testing.T, body []byte) response.ErrorBody {
	t.Helper()
	var out response.ErrorBody
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestMasteryReviewBogusActionReturns400(t *testing.T) {
	svc := service.NewMasteryService(nil, nil, nil, nil, nil, zap.NewNop())
	h := NewMasteryHandler(svc, nil, nil)

	c, w := newGinContext(http.MethodPost, "/mastery/proposals/p-1/review", []byte(`{"action":"bogus"}`))
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	withIdentity(c, "principal-1", models.RolePrincipal)

	h.Review(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "Invalid action. Must be: approve, request_changes, or override", body.Error)
	assert.Equal(t, appErrors.ErrInvalidAction.Code, body.Code)
}

func TestMasteryReviewPassesDecision(t *testing.T) {
	mock := &masteryServiceMock{proposal: &models.MasterySnapshot{ID: "p-1", Status: models.MasteryStatusApproved}}
	h := NewMasteryHandler(mock, nil, nil)

	c, w := newGinContext(http.MethodPost, "/mastery/proposals/p-1/review",
		[]byte(`{"action":"override","override_level_id":"lvl-2","override_justification":"portfolio"}`))
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	withIdentity(c, "principal-1", models.RolePrincipal)

	h.Review(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "override", mock.review.Action)
	require.NotNil(t, mock.review.OverrideLevelID)
	assert.Equal(t, "lvl-2", *mock.review.OverrideLevelID)

	var payload struct {
		Proposal models.MasterySnapshot `json:"proposal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "p-1", payload.Proposal.ID)
}

func TestMasteryHandlerRequiresIdentity(t *testing.T) {
	h := NewMasteryHandler(&masteryServiceMock{}, nil, nil)
	c, w := newGinContext(http.MethodGet, "/mastery/proposals", nil)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMasteryListSelectsQueue(t *testing.T) {
	mock := &masteryServiceMock{}
	h := NewMasteryHandler(mock, nil, nil)

	c, w := newGinContext(http.MethodGet, "/mastery/proposals?type=review", nil)
	withIdentity(c, "principal-1", models.RolePrincipal)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ProposalListReview, mock.listedType)
	assert.JSONEq(t, `{"proposals":[]}`, w.Body.String())

	c, w = newGinContext(http.MethodGet, "/mastery/proposals?teacher_id=teacher-7", nil)
	withIdentity(c, "principal-1", models.RolePrincipal)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ProposalListDrafts, mock.listedType)
	assert.Equal(t, "teacher-7", mock.teacherID)

	c, w = newGinContext(http.MethodGet, "/mastery/proposals?type=archive", nil)
	withIdentity(c, "principal-1", models.RolePrincipal)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMasteryUpsertMissingFieldsIs400(t *testing.T) {
	svc := service.NewMasteryService(nil, nil, nil, nil, nil, zap.NewNop())
	h := NewMasteryHandler(svc, nil, nil)

	c, w := newGinContext(http.MethodPost, "/mastery/proposals", []byte(`{"learner_id":"learner-1"}`))
	withIdentity(c, "teacher-1", models.RoleTeacher)
	h.UpsertDraft(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "missing required fields: competency_id, mastery_level_id, rationale_text", body.Error)
}

func TestMasteryErrorsMapToStatus(t *testing.T) {
	cases := map[*appErrors.Error]int{
		appErrors.ErrForbidden: http.StatusForbidden,
		appErrors.ErrNotFound:  http.StatusNotFound,
		appErrors.ErrConflict:  http.StatusConflict,
	}
	for appErr, status := range cases {
		h := NewMasteryHandler(&masteryServiceMock{err: appErr}, nil, nil)
		c, w := newGinContext(http.MethodPost, "/mastery/proposals/p-1/submit", nil)
		withIdentity(c, "teacher-1", models.RoleTeacher)
		h.Submit(c)
		assert.Equal(t, status, w.Code, appErr.Code)
	}
}
