package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/response"
)

type masteryService interface {
	UpsertDraft(ctx context.Context, req dto.UpsertMasteryDraftRequest, actor *models.Identity) (*models.MasterySnapshot, error)
	Submit(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error)
	ListDrafts(ctx context.Context, teacherID string, actor *models.Identity) ([]models.MasterySnapshot, error)
	ListReviewQueue(ctx context.Context, actor *models.Identity) ([]models.MasterySnapshot, error)
	Get(ctx context.Context, id string, actor *models.Identity) (*models.MasterySnapshot, error)
	ListEvidence(ctx context.Context, id string, actor *models.Identity) ([]models.EvidenceLink, error)
	Review(ctx context.Context, id string, req dto.ReviewMasteryRequest, actor *models.Identity) (*models.MasterySnapshot, error)
}

type snapshotReader interface {
	CurrentSnapshots(ctx context.Context, learnerID string, actor *models.Identity) ([]models.MasterySnapshot, error)
}

type masteryReference interface {
	ListModels(ctx context.Context, actor *models.Identity) ([]models.MasteryModel, error)
	ListLevels(ctx context.Context, modelID string, actor *models.Identity) ([]models.MasteryLevel, error)
}

// MasteryHandler exposes the mastery proposal workflow and the student view.
type MasteryHandler struct {
	proposals masteryService
	snapshots snapshotReader
	reference masteryReference
}

// NewMasteryHandler constructs the handler.
func NewMasteryHandler(proposals masteryService, snapshots snapshotReader, reference masteryReference) *MasteryHandler {
	return &MasteryHandler{proposals: proposals, snapshots: snapshots, reference: reference}
}

// UpsertDraft godoc
// @Summary Create or update the caller's mastery draft
// @Tags Mastery
// @Accept json
// @Produce json
// @Param payload body dto.UpsertMasteryDraftRequest true "Draft payload"
// @Success 200 {object} map[string]models.MasterySnapshot
// @Failure 400 {object} response.ErrorBody
// @Router /mastery/proposals [post]
func (h *MasteryHandler) UpsertDraft(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.UpsertMasteryDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid proposal payload")
		return
	}
	proposal, err := h.proposals.UpsertDraft(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"proposal": proposal})
}

// List godoc
// @Summary List drafts or the review queue
// @Tags Mastery
// @Produce json
// @Param type query string false "drafts (default) or review"
// @Param teacher_id query string false "Teacher whose drafts to list"
// @Success 200 {object} map[string][]models.MasterySnapshot
// @Router /mastery/proposals [get]
func (h *MasteryHandler) List(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.MasteryProposalQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}

	var (
		proposals []models.MasterySnapshot
		err       error
	)
	switch strings.ToLower(strings.TrimSpace(query.Type)) {
	case "", dto.ProposalListDrafts:
		proposals, err = h.proposals.ListDrafts(c.Request.Context(), query.TeacherID, actor)
	case dto.ProposalListReview:
		proposals, err = h.proposals.ListReviewQueue(c.Request.Context(), actor)
	default:
		invalidPayload(c, "type must be drafts or review")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if proposals == nil {
		proposals = []models.MasterySnapshot{}
	}
	response.JSON(c, http.StatusOK, gin.H{"proposals": proposals})
}

// Get godoc
// @Summary Get a proposal
// @Tags Mastery
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} map[string]models.MasterySnapshot
// @Failure 404 {object} response.ErrorBody
// @Router /mastery/proposals/{id} [get]
func (h *MasteryHandler) Get(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	proposal, err := h.proposals.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"proposal": proposal})
}

// Evidence godoc
// @Summary List a proposal's evidence links
// @Tags Mastery
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} map[string][]models.EvidenceLink
// @Router /mastery/proposals/{id}/evidence [get]
func (h *MasteryHandler) Evidence(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	links, err := h.proposals.ListEvidence(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if links == nil {
		links = []models.EvidenceLink{}
	}
	response.JSON(c, http.StatusOK, gin.H{"evidence": links})
}

// Submit godoc
// @Summary Submit a draft for review
// @Tags Mastery
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} map[string]models.MasterySnapshot
// @Failure 409 {object} response.ErrorBody
// @Router /mastery/proposals/{id}/submit [post]
func (h *MasteryHandler) Submit(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	proposal, err := h.proposals.Submit(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"proposal": proposal})
}

// Review godoc
// @Summary Approve, request changes on, or override a proposal
// @Tags Mastery
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ReviewMasteryRequest true "Review decision"
// @Success 200 {object} map[string]models.MasterySnapshot
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /mastery/proposals/{id}/review [post]
func (h *MasteryHandler) Review(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.ReviewMasteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid review payload")
		return
	}
	proposal, err := h.proposals.Review(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"proposal": proposal})
}

// Current godoc
// @Summary Current approved mastery of a learner
// @Tags Mastery
// @Produce json
// @Param learner_id query string false "Learner ID (students default to themselves)"
// @Success 200 {object} map[string][]models.MasterySnapshot
// @Router /mastery/snapshots/current [get]
func (h *MasteryHandler) Current(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	snapshots, err := h.snapshots.CurrentSnapshots(c.Request.Context(), c.Query("learner_id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if snapshots == nil {
		snapshots = []models.MasterySnapshot{}
	}
	response.JSON(c, http.StatusOK, gin.H{"snapshots": snapshots})
}

// Models godoc
// @Summary List mastery models
// @Tags Mastery
// @Produce json
// @Success 200 {object} map[string][]models.MasteryModel
// @Router /mastery/models [get]
func (h *MasteryHandler) Models(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	if h.reference == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mastery reference service not configured"))
		return
	}
	items, err := h.reference.ListModels(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.MasteryModel{}
	}
	response.JSON(c, http.StatusOK, gin.H{"models": items})
}

// Levels godoc
// @Summary List the levels of a mastery model
// @Tags Mastery
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} map[string][]models.MasteryLevel
// @Router /mastery/models/{id}/levels [get]
func (h *MasteryHandler) Levels(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	if h.reference == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "mastery reference service not configured"))
		return
	}
	levels, err := h.reference.ListLevels(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if levels == nil {
		levels = []models.MasteryLevel{}
	}
	response.JSON(c, http.StatusOK, gin.H{"levels": levels})
}
