package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/service"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

type snapshotRunServiceMock struct {
	run         *models.SnapshotRun
	link        *dto.ReportLink
	download    *service.ReportDownload
	downloadErr error
	created     dto.CreateSnapshotRunRequest
}

func (m *snapshotRunServiceMock) CreateRun(ctx context.Context, req dto.CreateSnapshotRunRequest, actor *models.Identity) (*models.SnapshotRun, error) {
	m.created = req
	return m.run, nil
}

func (m *snapshotRunServiceMock) ListRuns(ctx context.Context, query dto.SnapshotRunQuery, actor *models.Identity) ([]models.SnapshotRun, error) {
	return nil, nil
}

func (m *snapshotRunServiceMock) GetRun(ctx context.Context, id string, actor *models.Identity) (*dto.SnapshotRunDetail, error) {
	return &dto.SnapshotRunDetail{Run: m.run, Snapshots: []models.MasterySnapshot{}}, nil
}

func (m *snapshotRunServiceMock) ReportLink(ctx context.Context, id string, actor *models.Identity) (*dto.ReportLink, error) {
	return m.link, nil
}

func (m *snapshotRunServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func TestSnapshotRunCreateAccepted(t *testing.T) {
	mock := &snapshotRunServiceMock{run: &models.SnapshotRun{ID: "run-1", Status: models.SnapshotRunQueued}}
	h := NewSnapshotRunHandler(mock)

	c, w := newGinContext(http.MethodPost, "/mastery/snapshot-runs", []byte(`{"scope_type":"school","term":"T2"}`))
	withIdentity(c, "admin-1", models.RoleAdmin)
	h.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "school", mock.created.ScopeType)
	var payload map[string]models.SnapshotRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "run-1", payload["run"].ID)
}

func TestSnapshotRunReportLink(t *testing.T) {
	expires := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	h := NewSnapshotRunHandler(&snapshotRunServiceMock{link: &dto.ReportLink{URL: "/api/v1/exports/tok", ExpiresAt: expires}})

	c, w := newGinContext(http.MethodGet, "/mastery/snapshot-runs/run-1/report", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	withIdentity(c, "admin-1", models.RoleAdmin)
	h.Report(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"/api/v1/exports/tok","expires_at":"2026-01-02T00:00:00Z"}`, w.Body.String())
}

func TestSnapshotRunDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	h := NewSnapshotRunHandler(&snapshotRunServiceMock{download: &service.ReportDownload{File: file, Filename: "run-1.pdf"}})
	c, w := newGinContext(http.MethodGet, "/exports/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="run-1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestSnapshotRunDownloadRejectsBadToken(t *testing.T) {
	h := NewSnapshotRunHandler(&snapshotRunServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})
	c, w := newGinContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	h.Download(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
