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

type exportService interface {
	ExportStudents(ctx context.Context, query dto.StudentExportQuery, actor *models.Identity) (*service.ExportFile, error)
	ExportAdmissions(ctx context.Context, query dto.AdmissionExportQuery, actor *models.Identity) (*service.ExportFile, error)
}

// ExportHandler streams CSV exports as attachments.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Students godoc
// @Summary Export students as CSV
// @Tags Exports
// @Produce text/csv
// @Param school_id query string false "School"
// @Param grade_level query string false "Grade level"
// @Param status query string false "Status"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {file} file
// @Router /students/export [get]
func (h *ExportHandler) Students(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.StudentExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}
	file, err := h.service.ExportStudents(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAttachment(c, file)
}

// Admissions godoc
// @Summary Export admissions as CSV
// @Tags Exports
// @Produce text/csv
// @Param school_id query string false "School"
// @Param status query string false "Status"
// @Success 200 {file} file
// @Router /admissions/export [get]
func (h *ExportHandler) Admissions(c *gin.Context) {
	actor := identityFromContext(c)
	if actor == nil {
		return
	}
	var query dto.AdmissionExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, "invalid query parameters")
		return
	}
	file, err := h.service.ExportAdmissions(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAttachment(c, file)
}

func writeAttachment(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
