package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/export"
	"github.com/noah-isme/sis-api/pkg/jobs"
)

// SnapshotRunJobType tags queue jobs that generate a snapshot run.
const SnapshotRunJobType = "snapshot_run"

type jobDispatcher interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

type snapshotRunPayload struct {
	OrganizationID string `json:"organization_id"`
}

// SnapshotRunService schedules snapshot runs and hands out their reports.
type SnapshotRunService struct {
	gateway      storeGateway
	queue        jobDispatcher
	storage      reportStorage
	signer       urlSigner
	audit        auditLogger
	logger       *zap.Logger
	downloadBase string
	enqueueWait  time.Duration
	now          func() time.Time
}

// SnapshotRunConfig holds the public prefix that download tokens are appended to and
// how long a request waits for room in the worker queue.
type SnapshotRunConfig struct {
	DownloadBaseURL string
	EnqueueTimeout  time.Duration
}

// ReportDownload is an opened run report ready to stream.
type ReportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// NewSnapshotRunService constructs the run service.
func NewSnapshotRunService(gateway storeGateway, queue jobDispatcher, storage reportStorage, signer urlSigner, audit auditLogger, logger *zap.Logger, cfg SnapshotRunConfig) *SnapshotRunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.DownloadBaseURL, "/")
	if base == "" {
		base = "/api/v1/exports"
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 5 * time.Second
	}
	return &SnapshotRunService{
		gateway:      gateway,
		queue:        queue,
		storage:      storage,
		signer:       signer,
		audit:        audit,
		logger:       logger,
		downloadBase: base,
		enqueueWait:  cfg.EnqueueTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun stores a queued run and hands it to the worker queue.
func (s *SnapshotRunService) CreateRun(ctx context.Context, req dto.CreateSnapshotRunRequest, actor *models.Identity) (*models.SnapshotRun, error) {
	if err := policy.Authorize(actor, policy.MasteryRunGenerate); err != nil {
		return nil, err
	}
	run := &models.SnapshotRun{
		OrganizationID: actor.OrganizationID,
		SchoolID:       actor.SchoolID,
		ScopeType:      models.SnapshotScope(strings.TrimSpace(req.ScopeType)),
		ScopeID:        optionalString(req.ScopeID),
		Term:           optionalString(req.Term),
		SchoolYear:     optionalString(req.SchoolYear),
		Status:         models.SnapshotRunQueued,
		CreatedBy:      actor.UserID,
	}
	if run.ScopeType == "" {
		run.ScopeType = models.SnapshotScopeOrganization
	}
	switch run.ScopeType {
	case models.SnapshotScopeOrganization:
		run.ScopeID = nil
	case models.SnapshotScopeSchool:
		if run.ScopeID == nil {
			run.ScopeID = actor.SchoolID
		}
		if run.ScopeID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "scope_id is required for school runs")
		}
		run.SchoolID = run.ScopeID
	case models.SnapshotScopeLearner:
		if run.ScopeID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "scope_id is required for learner runs")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "scope_type must be organization, school, or learner")
	}
	run.SnapshotDate = s.now()
	if req.SnapshotDate != nil && !req.SnapshotDate.IsZero() {
		run.SnapshotDate = req.SnapshotDate.UTC()
	}

	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		return scope.Runs.Create(ctx, run)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create snapshot run")
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueWait)
	defer cancel()
	if err := s.enqueue(enqueueCtx, run); err != nil {
		status := models.SnapshotRunFailed
		msg := "failed to enqueue run"
		now := s.now()
		if updateErr := s.gateway.Service().Runs.Update(ctx, run.ID, repository.UpdateSnapshotRunParams{
			Status:       &status,
			ErrorMessage: &msg,
			CompletedAt:  &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Internal(err, "failed to enqueue snapshot run")
	}

	if s.audit != nil {
		runID := run.ID
		payload, _ := json.Marshal(run)
		entry := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionSnapshotRunCreate,
			Resource:   models.AuditResourceSnapshotRun,
			ResourceID: &runID,
			NewValues:  payload,
			IPAddress:  "system",
			UserAgent:  "snapshot-run-service",
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
		}
	}
	return run, nil
}

// ListRuns returns the organization's runs, newest first.
func (s *SnapshotRunService) ListRuns(ctx context.Context, query dto.SnapshotRunQuery, actor *models.Identity) ([]models.SnapshotRun, error) {
	if err := policy.Authorize(actor, policy.MasteryRunRead); err != nil {
		return nil, err
	}
	filter := models.SnapshotRunFilter{
		OrganizationID: actor.OrganizationID,
		Status:         models.SnapshotRunStatus(strings.TrimSpace(query.Status)),
		Limit:          query.Limit,
		Offset:         query.Offset,
	}
	var runs []models.SnapshotRun
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		runs, err = scope.Runs.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to list snapshot runs")
	}
	return runs, nil
}

// GetRun returns a run together with the snapshots it captured.
func (s *SnapshotRunService) GetRun(ctx context.Context, id string, actor *models.Identity) (*dto.SnapshotRunDetail, error) {
	if err := policy.Authorize(actor, policy.MasteryRunRead); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)

	var (
		run     *models.SnapshotRun
		itemIDs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.gateway.WithCaller(gctx, actor, func(scope repository.Scope) error {
			found, err := scope.Runs.GetByID(gctx, actor.OrganizationID, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "snapshot run not found")
				}
				return err
			}
			run = found
			return nil
		})
	})
	g.Go(func() error {
		return s.gateway.WithCaller(gctx, actor, func(scope repository.Scope) error {
			var err error
			itemIDs, err = scope.Runs.ListItemIDs(gctx, id)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, serviceError(err, "failed to load snapshot run")
	}

	detail := &dto.SnapshotRunDetail{Run: run, Snapshots: []models.MasterySnapshot{}}
	if len(itemIDs) == 0 {
		return detail, nil
	}
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		snapshots, err := scope.Mastery.ListByIDs(ctx, actor.OrganizationID, itemIDs)
		if err != nil {
			return err
		}
		detail.Snapshots = snapshots
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to load run snapshots")
	}
	return detail, nil
}

// ReportLink signs a time-limited download URL for a completed run.
func (s *SnapshotRunService) ReportLink(ctx context.Context, id string, actor *models.Identity) (*dto.ReportLink, error) {
	if err := policy.Authorize(actor, policy.MasteryRunRead); err != nil {
		return nil, err
	}
	var run *models.SnapshotRun
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		found, err := scope.Runs.GetByID(ctx, actor.OrganizationID, strings.TrimSpace(id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "snapshot run not found")
			}
			return err
		}
		run = found
		return nil
	})
	if err != nil {
		return nil, serviceError(err, "failed to load snapshot run")
	}
	if run.Status != models.SnapshotRunCompleted || run.ReportPath == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}
	token, expiresAt, err := s.signer.Generate(reportResourceID(run), *run.ReportPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign report link")
	}
	return &dto.ReportLink{URL: s.downloadBase + "/" + token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a download token and opens the report it names.
func (s *SnapshotRunService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	resourceID, relPath, expiresAt, err := s.signer.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	organizationID, runID, ok := strings.Cut(resourceID, ":")
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	run, err := s.gateway.Service().Runs.GetByID(ctx, organizationID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot run not found")
		}
		return nil, appErrors.Internal(err, "failed to load snapshot run")
	}
	if run.ReportPath == nil || *run.ReportPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open report")
	}
	return &ReportDownload{File: file, Filename: path.Base(relPath), ExpiresAt: expiresAt}, nil
}

// RecoverPendingJobs requeues runs a previous process left queued or stopped while
// running. Generation is idempotent, so an interrupted run is simply produced again.
// It blocks while the queue is full, so callers run it off the startup path.
func (s *SnapshotRunService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.gateway.Service().Runs.ListUnfinished(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover unfinished snapshot runs", zap.Error(err))
		return
	}
	for i := range pending {
		err := s.enqueue(ctx, &pending[i])
		switch {
		case err == nil, errors.Is(err, jobs.ErrDuplicate):
		case ctx.Err() != nil:
			return
		default:
			s.logger.Warn("failed to requeue snapshot run", zap.String("run_id", pending[i].ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("requeued unfinished snapshot runs", zap.Int("count", len(pending)))
	}
}

func (s *SnapshotRunService) enqueue(ctx context.Context, run *models.SnapshotRun) error {
	return s.queue.Enqueue(ctx, jobs.Job{
		ID:      run.ID,
		Type:    SnapshotRunJobType,
		Payload: snapshotRunPayload{OrganizationID: run.OrganizationID},
	})
}

func reportResourceID(run *models.SnapshotRun) string {
	return run.OrganizationID + ":" + run.ID
}

// SnapshotRunWorker generates the snapshot set and PDF report of a queued run.
// It works on the service pool because it runs outside any request.
type SnapshotRunWorker struct {
	gateway storeGateway
	storage reportStorage
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewSnapshotRunWorker constructs a worker.
func NewSnapshotRunWorker(gateway storeGateway, storage reportStorage, metrics *MetricsService, logger *zap.Logger) *SnapshotRunWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRunWorker{
		gateway: gateway,
		storage: storage,
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes a queue job. Returned errors are retried by the queue.
func (w *SnapshotRunWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := w.now()
	payload, ok := job.Payload.(snapshotRunPayload)
	if !ok {
		return fmt.Errorf("snapshot run %s: unexpected payload %T", job.ID, job.Payload)
	}
	store := w.gateway.Service()
	run, err := store.Runs.GetByID(ctx, payload.OrganizationID, job.ID)
	if err != nil {
		return fmt.Errorf("load snapshot run: %w", err)
	}
	if run.Status == models.SnapshotRunCompleted {
		return nil
	}

	running := models.SnapshotRunRunning
	if err := store.Runs.Update(ctx, run.ID, repository.UpdateSnapshotRunParams{Status: &running}); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	scope := repository.ApprovedScope{
		OrganizationID: run.OrganizationID,
		ScopeType:      run.ScopeType,
		AsOf:           run.SnapshotDate,
	}
	if run.ScopeID != nil {
		scope.ScopeID = *run.ScopeID
	}

	var (
		snapshots []models.MasterySnapshot
		levels    []models.MasteryLevel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = store.Mastery.CurrentAsOf(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		levels, err = store.Levels.ListLevelsByOrganization(gctx, run.OrganizationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("collect approved snapshots: %w", err)
	}
	snapshots = models.CurrentApproved(snapshots)

	ids := make([]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		ids = append(ids, snapshot.ID)
	}
	if err := store.Runs.ReplaceItems(ctx, run.ID, ids); err != nil {
		return fmt.Errorf("store run items: %w", err)
	}

	content, err := w.pdf.Render(runDocument(run, snapshots, levels))
	if err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	relPath, err := w.storage.Save(path.Join("snapshot-runs", run.OrganizationID, run.ID+".pdf"), content)
	if err != nil {
		return fmt.Errorf("store run report: %w", err)
	}

	completed := models.SnapshotRunCompleted
	count := len(snapshots)
	now := w.now()
	if err := store.Runs.Update(ctx, run.ID, repository.UpdateSnapshotRunParams{
		Status:        &completed,
		SnapshotCount: &count,
		ReportPath:    &relPath,
		CompletedAt:   &now,
	}); err != nil {
		// retries render a fresh file
		if derr := w.storage.Delete(relPath); derr != nil {
			w.logger.Warn("failed to remove orphaned report", zap.String("path", relPath), zap.Error(derr))
		}
		return fmt.Errorf("mark run completed: %w", err)
	}
	w.metrics.RecordSnapshotRun(string(completed), now.Sub(started))
	w.logger.Info("snapshot run completed", zap.String("run_id", run.ID), zap.Int("snapshots", count))
	return nil
}

// MarkFailed records the final error once the queue gives up on a run.
func (w *SnapshotRunWorker) MarkFailed(ctx context.Context, job jobs.Job, cause error) {
	failed := models.SnapshotRunFailed
	msg := cause.Error()
	now := w.now()
	if err := w.gateway.Service().Runs.Update(ctx, job.ID, repository.UpdateSnapshotRunParams{
		Status:       &failed,
		ErrorMessage: &msg,
		CompletedAt:  &now,
	}); err != nil {
		w.logger.Warn("failed to mark run failed", zap.String("run_id", job.ID), zap.Error(err))
	}
	w.metrics.RecordSnapshotRun(string(failed), now.Sub(job.Enqueued))
}

func runDocument(run *models.SnapshotRun, snapshots []models.MasterySnapshot, levels []models.MasteryLevel) export.Document {
	labels := make(map[string]string, len(levels))
	for _, level := range levels {
		labels[level.ID] = level.Label
	}
	rows := make([]map[string]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		level := labels[snapshot.MasteryLevelID]
		if level == "" {
			level = snapshot.MasteryLevelID
		}
		approvedBy := ""
		if snapshot.ConfirmedBy != nil {
			approvedBy = *snapshot.ConfirmedBy
		}
		rows = append(rows, map[string]string{
			"learner":     snapshot.LearnerID,
			"competency":  snapshot.CompetencyID,
			"level":       level,
			"teacher":     snapshot.TeacherID,
			"approved_by": approvedBy,
			"date":        snapshot.SnapshotDate.Format("2006-01-02"),
		})
	}

	summary := []string{
		"Snapshot date: " + run.SnapshotDate.Format("2006-01-02"),
		"Scope: " + string(run.ScopeType),
		fmt.Sprintf("Approved snapshots: %d", len(snapshots)),
	}
	if run.ScopeID != nil {
		summary[1] += " " + *run.ScopeID
	}
	if run.Term != nil {
		summary = append(summary, "Term: "+*run.Term)
	}
	if run.SchoolYear != nil {
		summary = append(summary, "School year: "+*run.SchoolYear)
	}

	return export.Document{
		Title:   "Mastery Snapshot Report",
		Summary: summary,
		Data: export.Dataset{
			Columns: []export.Column{
				{Key: "learner", Header: "Learner"},
				{Key: "competency", Header: "Competency"},
				{Key: "level", Header: "Level"},
				{Key: "teacher", Header: "Teacher"},
				{Key: "approved_by", Header: "Approved By"},
				{Key: "date", Header: "Date"},
			},
			Rows: rows,
		},
	}
}
