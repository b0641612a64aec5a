package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/response"
)

type assessmentLabelService interface {
	ListSets(ctx context.Context, query dto.AssessmentLabelQuery, actor *models.Identity) ([]models.AssessmentLabelSet, error)
	GetSet(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabelSet, error)
	CreateSet(ctx context.Context, req dto.AssessmentLabelSetRequest, actor *models.Identity) (*models.AssessmentLabelSet, error)
	UpdateSet(ctx context.Context, id string, req dto.AssessmentLabelSetRequest, actor *models.Identity) (*models.AssessmentLabelSet, error)
	ArchiveSet(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabelSet, error)
	ListLabels(ctx context.Context, setID string, query dto.AssessmentLabelQuery, actor *models.Identity) ([]models.AssessmentLabel, error)
	CreateLabel(ctx context.Context, setID string, req dto.AssessmentLabelRequest, actor *models.Identity) (*models.AssessmentLabel, error)
	UpdateLabel(ctx context.Context, id string, req dto.AssessmentLabelRequest, actor *models.Identity) (*models.AssessmentLabel, error)
	ArchiveLabel(ctx context.Context, id string, actor *models.Identity) (*models.AssessmentLabel, error)
}

// AssessmentLabelHandler exposes label set and label management.
type AssessmentLabelHandler struct {
	service assessmentLabelService
}

// NewAssessmentLabelHandler constructs the handler.
func NewAssessmentLabelHandler(service assessmentLabelService) *AssessmentLabelHandler {
	return &AssessmentLabelHandler{service: service}
}

// ListSets godoc
// @Summary List assessment label sets
// @Tags AssessmentLabels
// @Produce json
// @Param include_archived query bool false "Include archived sets"
// @Success 200 {object} map[string][]models.AssessmentLabelSet
// @Router /assessment-label-sets [get]
func (h *AssessmentLabelHandler) ListSets(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.AssessmentLabelQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}
	sets, err := h.service.ListSets(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if sets == nil {
		sets = []models.AssessmentLabelSet{}
	}
	response.JSON(c, http.StatusOK, gin.H{"label_sets": sets})
}

// GetSet godoc
// @Summary Get an assessment label set
// @Tags AssessmentLabels
// @Produce json
// @Param id path string true "Set ID"
// @Success 200 {object} map[string]models.AssessmentLabelSet
// @Router /assessment-label-sets/{id} [get]
func (h *AssessmentLabelHandler) GetSet(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	set, err := h.service.GetSet(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"label_set": set})
}

// CreateSet godoc
// @Summary Create an assessment label set
// @Tags AssessmentLabels
// @Accept json
// @Produce json
// @Param payload body dto.AssessmentLabelSetRequest true "Set payload"
// @Success 201 {object} map[string]models.AssessmentLabelSet
// @Router /assessment-label-sets [post]
func (h *AssessmentLabelHandler) CreateSet(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.AssessmentLabelSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid label set payload")
		return
	}
	set, err := h.service.CreateSet(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"label_set": set})
}

// UpdateSet godoc
// @Summary Update an assessment label set
// @Tags AssessmentLabels
// @Accept json
// @Produce json
// @Param id path string true "Set ID"
// @Param payload body dto.AssessmentLabelSetRequest true "Set payload"
// @Success 200 {object} map[string]models.AssessmentLabelSet
// @Router /assessment-label-sets/{id} [put]
func (h *AssessmentLabelHandler) UpdateSet(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.AssessmentLabelSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid label set payload")
		return
	}
	set, err := h.service.UpdateSet(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"label_set": set})
}

// ArchiveSet godoc
// @Summary Archive an assessment label set and its labels
// @Tags AssessmentLabels
// @Produce json
// @Param id path string true "Set ID"
// @Success 200 {object} map[string]models.AssessmentLabelSet
// @Router /assessment-label-sets/{id}/archive [post]
func (h *AssessmentLabelHandler) ArchiveSet(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	set, err := h.service.ArchiveSet(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"label_set": set})
}

// ListLabels godoc
// @Summary List the labels of a set
// @Tags AssessmentLabels
// @Produce json
// @Param id path string true "Set ID"
// @Param include_archived query bool false "Include archived labels"
// @Success 200 {object} map[string][]models.AssessmentLabel
// @Router /assessment-label-sets/{id}/labels [get]
func (h *AssessmentLabelHandler) ListLabels(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.AssessmentLabelQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}
	labels, err := h.service.ListLabels(c.Request.Context(), c.Param("id"), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if labels == nil {
		labels = []models.AssessmentLabel{}
	}
	response.JSON(c, http.StatusOK, gin.H{"labels": labels})
}

// CreateLabel godoc
// @Summary Add a label to a set
// @Tags AssessmentLabels
// @Accept json
// @Produce json
// @Param id path string true "Set ID"
// @Param payload body dto.AssessmentLabelRequest true "Label payload"
// @Success 201 {object} map[string]models.AssessmentLabel
// @Router /assessment-label-sets/{id}/labels [post]
func (h *AssessmentLabelHandler) CreateLabel(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.AssessmentLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid label payload")
		return
	}
	label, err := h.service.CreateLabel(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"label": label})
}

// UpdateLabel godoc
// @Summary Update a label
// @Tags AssessmentLabels
// @Accept json
// @Produce json
// @Param id path string true "Label ID"
// @Param payload body dto.AssessmentLabelRequest true "Label payload"
// @Success 200 {object} map[string]models.AssessmentLabel
// @Router /assessment-labels/{id} [put]
func (h *AssessmentLabelHandler) UpdateLabel(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.AssessmentLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, "invalid label payload")
		return
	}
	label, err := h.service.UpdateLabel(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"label": label})
}

// ArchiveLabel godoc
// @Summary Archive a label
// @Tags AssessmentLabels
// @Produce json
// @Param id path string true "Label ID"
// @Success 200 {object} map[string]models.AssessmentLabel
// @Router /assessment-labels/{id}/archive [post]
func (h *AssessmentLabelHandler) ArchiveLabel(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	label, err := h.service.ArchiveLabel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"label": label})
}
