package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/service"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

type exportServiceMock struct {
	file  *service.ExportFile
	err   error
	query dto.StudentExportQuery
}

func (m *exportServiceMock) ExportStudents(ctx context.Context, query dto.StudentExportQuery, actor *models.Identity) (*service.ExportFile, error) {
	m.query = query
	return m.file, m.err
}

func (m *exportServiceMock) ExportAdmissions(ctx context.Context, query dto.AdmissionExportQuery, actor *models.Identity) (*service.ExportFile, error) {
	return m.file, m.err
}

func TestExportStudentsWritesAttachment(t *testing.T) {
	mock := &exportServiceMock{file: &service.ExportFile{
		Filename:    "students-20260101.csv",
		ContentType: "text/csv",
		Content:     []byte("ID\nstu-1\n"),
	}}
	h := NewExportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/students/export?status=active&sort_by=last_name", nil)
	withIdentity(c, "registrar-1", models.RoleRegistrar)
	h.Students(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=students-20260101.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID\nstu-1\n", w.Body.String())
	assert.Equal(t, "active", mock.query.Status)
	assert.Equal(t, "last_name", mock.query.SortBy)
}

func TestExportAdmissionsForbidden(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "role teacher may not perform admissions.export")})

	c, w := newGinContext(http.MethodGet, "/admissions/export", nil)
	withIdentity(c, "teacher-1", models.RoleTeacher)
	h.Admissions(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "role teacher may not perform admissions.export", decodeError(t, w.Body.Bytes()).Error)
}
