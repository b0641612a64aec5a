package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/service"
	"github.com/noah-isme/sis-api/pkg/response"
)

type snapshotRunService interface {
	CreateRun(ctx context.Context, req dto.CreateSnapshotRunRequest, actor *models.Identity) (*models.SnapshotRun, error)
	ListRuns(ctx context.Context, query dto.SnapshotRunQuery, actor *models.Identity) ([]models.SnapshotRun, error)
	GetRun(ctx context.Context, id string, actor *models.Identity) (*dto.SnapshotRunDetail, error)
	ReportLink(ctx context.Context, id string, actor *models.Identity) (*dto.ReportLink, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// SnapshotRunHandler exposes snapshot run scheduling and report downloads.
type SnapshotRunHandler struct {
	service snapshotRunService
}

// NewSnapshotRunHandler constructs the handler.
func NewSnapshotRunHandler(service snapshotRunService) *SnapshotRunHandler {
	return &SnapshotRunHandler{service: service}
}

// Create godoc
// @Summary Queue a snapshot run
// @Tags SnapshotRuns
// @Accept json
// @Produce json
// @Param payload body dto.CreateSnapshotRunRequest true "Run parameters"
// @Success 202 {object} map[string]models.SnapshotRun
// @Router /mastery/snapshot-runs [post]
func (h *SnapshotRunHandler) Create(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var req dto.CreateSnapshotRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidPayload(c, "invalid snapshot run payload")
			return
		}
	}
	run, err := h.service.CreateRun(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"run": run})
}

// List godoc
// @Summary List snapshot runs
// @Tags SnapshotRuns
// @Produce json
// @Param status query string false "Run status"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string][]models.SnapshotRun
// @Router /mastery/snapshot-runs [get]
func (h *SnapshotRunHandler) List(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.SnapshotRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}
	runs, err := h.service.ListRuns(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if runs == nil {
		runs = []models.SnapshotRun{}
	}
	response.JSON(c, http.StatusOK, gin.H{"runs": runs})
}

// Get godoc
// @Summary Get a snapshot run with its snapshots
// @Tags SnapshotRuns
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} dto.SnapshotRunDetail
// @Router /mastery/snapshot-runs/{id} [get]
func (h *SnapshotRunHandler) Get(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	detail, err := h.service.GetRun(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Report godoc
// @Summary Signed download link for a run report
// @Tags SnapshotRuns
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} dto.ReportLink
// @Failure 409 {object} response.ErrorBody
// @Router /mastery/snapshot-runs/{id}/report [get]
func (h *SnapshotRunHandler) Report(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	link, err := h.service.ReportLink(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}

// Download godoc
// @Summary Download a report through a signed token
// @Tags SnapshotRuns
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorBody
// @Router /exports/{token} [get]
func (h *SnapshotRunHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", download.File, nil)
}
