package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sis-api/api/swagger"
	"github.com/noah-isme/sis-api/internal/handler"
	"github.com/noah-isme/sis-api/internal/repository"
	"github.com/noah-isme/sis-api/internal/service"
	"github.com/noah-isme/sis-api/pkg/cache"
	"github.com/noah-isme/sis-api/pkg/config"
	"github.com/noah-isme/sis-api/pkg/database"
	"github.com/noah-isme/sis-api/pkg/jobs"
	"github.com/noah-isme/sis-api/pkg/logger"
	"github.com/noah-isme/sis-api/pkg/storage"
	"github.com/noah-isme/sis-api/pkg/tracing"
)

// @title SIS Mastery API
// @version 1.0.0
// @description Mastery proposals, review decisions, snapshot runs, assessment labels and exports.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)

	pools, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer pools.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	readiness := []handler.ReadinessCheck{
		{Name: "database", Check: pools.Service.PingContext},
	}
	if cfg.Mastery.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, mastery cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			readiness = append(readiness, handler.ReadinessCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			})
		}
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Mastery.CacheTTL, logr, true)
	}

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare report storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	gateway := repository.NewGateway(pools)
	auditRepo := repository.NewAuditRepository(pools.Service)
	validate := validator.New()

	authSvc := service.NewAuthService(repository.NewProfileRepository(pools.Service), logr, service.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
	})
	snapshotSvc := service.NewSnapshotService(gateway, cacheSvc, logr)
	masterySvc := service.NewMasteryService(gateway, auditRepo, snapshotSvc, metrics, validate, logr)
	referenceSvc := service.NewMasteryReferenceService(gateway, cacheSvc, cfg.Mastery.CacheTTL)
	labelSvc := service.NewAssessmentLabelService(gateway, auditRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(gateway, nil, logr)

	worker := service.NewSnapshotRunWorker(gateway, reportStore, metrics, logr)
	queue := jobs.NewQueue("snapshot-runs", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Reports.WorkerConcurrency,
		MaxRetries:  cfg.Reports.WorkerRetries,
		Logger:      logr,
		OnExhausted: worker.MarkFailed,
	})
	queue.Start(ctx)
	defer queue.Stop()

	runSvc := service.NewSnapshotRunService(gateway, queue, reportStore, signer, auditRepo, logr, service.SnapshotRunConfig{
		DownloadBaseURL: cfg.APIPrefix + "/exports",
	})
	go runSvc.RecoverPendingJobs(ctx)

	router := newRouter(cfg, logr, routeDeps{
		auth:      authSvc,
		audit:     auditRepo,
		metrics:   metrics,
		readiness: readiness,
		mastery:   handler.NewMasteryHandler(masterySvc, snapshotSvc, referenceSvc),
		runs:      handler.NewSnapshotRunHandler(runSvc),
		labels:    handler.NewAssessmentLabelHandler(labelSvc),
		exports:   handler.NewExportHandler(exportSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Warn("tracing shutdown failed", zap.Error(err))
	}
}
