package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/handler"
	"github.com/noah-isme/sis-api/internal/middleware"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/service"
	"github.com/noah-isme/sis-api/pkg/config"
	"github.com/noah-isme/sis-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-api/pkg/middleware/requestid"
	"github.com/noah-isme/sis-api/pkg/tracing"
)

type routeDeps struct {
	auth      middleware.Authenticator
	audit     middleware.AuditRecorder
	metrics   *service.MetricsService
	readiness []handler.ReadinessCheck
	mastery   *handler.MasteryHandler
	runs      *handler.SnapshotRunHandler
	labels    *handler.AssessmentLabelHandler
	exports   *handler.ExportHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Tracing.Enabled {
		r.Use(tracing.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	ops := handler.NewMetricsHandler(deps.metrics, deps.readiness...)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/:token",
		middleware.Audit(deps.audit, models.AuditActionReportDownload, models.AuditResourceSnapshotRun),
		deps.runs.Download,
	)

	secured := api.Group("")
	secured.Use(middleware.Auth(deps.auth))

	mastery := secured.Group("/mastery")
	{
		mastery.POST("/proposals", middleware.RequirePolicy(policy.MasteryDraftWrite), deps.mastery.UpsertDraft)
		mastery.GET("/proposals", deps.mastery.List)
		mastery.GET("/proposals/:id", middleware.RequirePolicy(policy.MasteryProposalRead), deps.mastery.Get)
		mastery.GET("/proposals/:id/evidence", middleware.RequirePolicy(policy.MasteryProposalRead), deps.mastery.Evidence)
		mastery.POST("/proposals/:id/submit", middleware.RequirePolicy(policy.MasteryProposalSubmit), deps.mastery.Submit)
		mastery.POST("/proposals/:id/review", deps.mastery.Review)
		mastery.GET("/snapshots/current", middleware.RequirePolicy(policy.MasterySnapshotRead), deps.mastery.Current)
		mastery.GET("/models", middleware.RequirePolicy(policy.MasteryReferenceRead), deps.mastery.Models)
		mastery.GET("/models/:id/levels", middleware.RequirePolicy(policy.MasteryReferenceRead), deps.mastery.Levels)

		mastery.POST("/snapshot-runs", middleware.RequirePolicy(policy.MasteryRunGenerate), deps.runs.Create)
		mastery.GET("/snapshot-runs", middleware.RequirePolicy(policy.MasteryRunRead), deps.runs.List)
		mastery.GET("/snapshot-runs/:id", middleware.RequirePolicy(policy.MasteryRunRead), deps.runs.Get)
		mastery.GET("/snapshot-runs/:id/report", middleware.RequirePolicy(policy.MasteryRunRead), deps.runs.Report)
	}

	labelSets := secured.Group("/assessment-label-sets")
	{
		labelSets.GET("", middleware.RequirePolicy(policy.LabelsRead), deps.labels.ListSets)
		labelSets.POST("", middleware.RequirePolicy(policy.LabelsManage), deps.labels.CreateSet)
		labelSets.GET("/:id", middleware.RequirePolicy(policy.LabelsRead), deps.labels.GetSet)
		labelSets.PUT("/:id", middleware.RequirePolicy(policy.LabelsManage), deps.labels.UpdateSet)
		labelSets.POST("/:id/archive", middleware.RequirePolicy(policy.LabelsManage), deps.labels.ArchiveSet)
		labelSets.GET("/:id/labels", middleware.RequirePolicy(policy.LabelsRead), deps.labels.ListLabels)
		labelSets.POST("/:id/labels", middleware.RequirePolicy(policy.LabelsManage), deps.labels.CreateLabel)
	}
	labels := secured.Group("/assessment-labels")
	{
		labels.PUT("/:id", middleware.RequirePolicy(policy.LabelsManage), deps.labels.UpdateLabel)
		labels.POST("/:id/archive", middleware.RequirePolicy(policy.LabelsManage), deps.labels.ArchiveLabel)
	}

	secured.GET("/students/export",
		middleware.RequirePolicy(policy.StudentsExport),
		middleware.Audit(deps.audit, models.AuditActionStudentsExport, models.AuditResourceStudents),
		deps.exports.Students,
	)
	secured.GET("/admissions/export",
		middleware.RequirePolicy(policy.AdmissionsExport),
		middleware.Audit(deps.audit, models.AuditActionAdmissionsExport, models.AuditResourceAdmissions),
		deps.exports.Admissions,
	)

	return r
}
