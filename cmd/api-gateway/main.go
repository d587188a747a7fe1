package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-standby-api/api/swagger"
	"github.com/noah-isme/sma-standby-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-standby-api/internal/middleware"
	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/repository"
	"github.com/noah-isme/sma-standby-api/internal/service"
	"github.com/noah-isme/sma-standby-api/pkg/cache"
	"github.com/noah-isme/sma-standby-api/pkg/config"
	"github.com/noah-isme/sma-standby-api/pkg/database"
	"github.com/noah-isme/sma-standby-api/pkg/jobs"
	"github.com/noah-isme/sma-standby-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-standby-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-standby-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-standby-api/pkg/observability"
)

// @title SMA Standby API
// @version 1.0.0
// @description Substitute coverage, weekly standby quotas and timetable generation.
// @BasePath /api/v1
// @schemes http
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

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()

	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	assignmentRepo := repository.NewWaitingAssignmentRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, redisClient != nil)
	ranks := service.NewRankTable()

	notifyCfg := service.NotificationConfig{
		SchoolName:     cfg.Coverage.SchoolName,
		DefaultChannel: models.Channel(cfg.Coverage.DefaultChannel),
	}
	worker := service.NewNotificationWorker(assignmentRepo, teacherRepo, service.NewLogSender(logr), cacheSvc, metricsSvc, logr, notifyCfg)
	notifyQueue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
		DeadLetter: func(job jobs.Job, err error) {
			logr.Error("notification dropped", zap.String("assignment_id", job.ID), zap.Error(err))
		},
	})
	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})
	teacherSvc := service.NewTeacherService(teacherRepo, ranks, nil, logr)
	curriculumSvc := service.NewCurriculumService(classRepo, subjectRepo, nil, logr)
	rosterSvc := service.NewRosterService(teacherRepo, rosterRepo, ranks, db, logr)
	notificationSvc := service.NewNotificationService(assignmentRepo, notifyQueue, cacheSvc, metricsSvc, logr, notifyCfg)
	coverageSvc := service.NewCoverageService(rosterSvc, teacherRepo, assignmentRepo, notificationSvc, cacheSvc, db, metricsSvc, nil, logr,
		service.CoverageConfig{SnapshotTTL: cfg.Coverage.SnapshotTTL})
	timetableSvc := service.NewTimetableService(timetableRepo, classRepo, subjectRepo, teacherRepo, db, metricsSvc, nil, logr,
		service.TimetableConfig{ProposalTTL: cfg.Scheduler.ProposalTTL, MaxAttempts: cfg.Scheduler.MaxAttempts})
	reportSvc := service.NewReportService(assignmentRepo, timetableRepo, cacheSvc, nil, logr,
		service.ReportConfig{CacheTTL: cfg.Reports.CacheTTL, RightToLeft: true})

	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	curriculumHandler := handler.NewCurriculumHandler(curriculumSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc, coverageSvc)
	coverageHandler := handler.NewCoverageHandler(coverageSvc, notificationSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))

	admin := api.Group("")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/teachers", teacherHandler.List)
		admin.POST("/teachers", teacherHandler.Create)
		admin.GET("/teachers/:id", teacherHandler.Get)
		admin.PUT("/teachers/:id", teacherHandler.Update)
		admin.GET("/ranks/quota", teacherHandler.Quota)

		admin.GET("/classes", curriculumHandler.ListClasses)
		admin.POST("/classes", curriculumHandler.CreateClass)
		admin.GET("/subjects", curriculumHandler.ListSubjects)
		admin.POST("/subjects", curriculumHandler.CreateSubject)

		admin.POST("/roster/weeks", rosterHandler.StartWeek)
		admin.GET("/roster/weeks/:weekStart", rosterHandler.Get)

		admin.POST("/coverage/allocations", coverageHandler.Allocate)
		admin.DELETE("/coverage/allocations/:batchId", coverageHandler.Undo)
		admin.POST("/coverage/assignments/:id/notify", coverageHandler.Notify)

		admin.POST("/timetables/generate", timetableHandler.Generate)
		admin.POST("/timetables", timetableHandler.Save)
		admin.GET("/timetables", timetableHandler.List)
		admin.GET("/timetables/:id/sessions", timetableHandler.Sessions)
		admin.PATCH("/timetables/:id/sessions/:sessionId", timetableHandler.LockSession)
		admin.DELETE("/timetables/:id", timetableHandler.Discard)

		admin.GET("/reports/waiting", reportHandler.Waiting)
		admin.GET("/reports/export", reportHandler.Export)

		admin.GET("/metrics/summary", metricsHandler.Snapshot)
	}

	staff := api.Group("")
	staff.Use(internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	{
		staff.GET("/coverage/assignments", coverageHandler.Assignments)
		staff.GET("/coverage/assignments/:id/message", coverageHandler.Message)
		staff.POST("/coverage/assignments/:id/confirm", coverageHandler.Confirm)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
