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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sidang-online/sidang-api/api/swagger"
	"github.com/sidang-online/sidang-api/internal/handler"
	"github.com/sidang-online/sidang-api/internal/middleware"
	"github.com/sidang-online/sidang-api/internal/models"
	"github.com/sidang-online/sidang-api/internal/repository"
	"github.com/sidang-online/sidang-api/internal/roster"
	"github.com/sidang-online/sidang-api/internal/scheduler"
	"github.com/sidang-online/sidang-api/internal/service"
	"github.com/sidang-online/sidang-api/pkg/cache"
	"github.com/sidang-online/sidang-api/pkg/config"
	"github.com/sidang-online/sidang-api/pkg/database"
	"github.com/sidang-online/sidang-api/pkg/jobs"
	"github.com/sidang-online/sidang-api/pkg/logger"
	corsmiddleware "github.com/sidang-online/sidang-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sidang-online/sidang-api/pkg/middleware/requestid"
	"github.com/sidang-online/sidang-api/pkg/storage"
)

// @title Sidang Online API
// @version 1.0.0
// @description Thesis defense scheduling service
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	lecturerRepo := repository.NewLecturerRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	defenseRepo := repository.NewDefenseRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sidang-api",
	})
	lecturerService := service.NewLecturerService(lecturerRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, validate, logr)

	engine := scheduler.New(logr)
	rosterParser := roster.NewParser(cfg.Scheduler.MaxRosterRows)
	scheduleService := service.NewDefenseScheduleService(
		engine,
		lecturerRepo,
		studentRepo,
		defenseRepo,
		db,
		cacheRepo,
		rosterParser,
		userRepo,
		metrics,
		validate,
		logr,
		cfg.Scheduler,
	)

	exportService := service.NewExportService(defenseRepo, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)
	exportQueue := jobs.NewQueue("exports", exportService.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
		Observer:   metrics.ObserveExportJob,
	})
	exportService.SetQueue(exportQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	authHandler := handler.NewAuthHandler(authService)
	lecturerHandler := handler.NewLecturerHandler(lecturerService)
	studentHandler := handler.NewStudentHandler(studentService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService, exportService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	// Download links carry their own signed token; everything else
	// under the prefix requires a valid access token.
	api.GET("/exports/download/:token", scheduleHandler.DownloadExport)

	protected := api.Group("", middleware.JWT(authService))

	lecturers := protected.Group("/lecturers")
	lecturers.GET("", lecturerHandler.List)
	lecturers.GET("/:id", lecturerHandler.Get)
	lecturers.POST("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), lecturerHandler.Create)
	lecturers.PUT("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), lecturerHandler.Update)
	lecturers.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), lecturerHandler.Delete)

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff), studentHandler.Create)
	students.PUT("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff), studentHandler.Update)
	students.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), studentHandler.Delete)

	schedules := protected.Group("/defense-schedules")
	schedules.GET("", scheduleHandler.ListBatches)
	schedules.GET("/:id", scheduleHandler.GetBatch)
	schedules.POST("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff), scheduleHandler.Generate)
	protected.POST("/roster/import", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff), scheduleHandler.ImportRoster)
	schedules.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), scheduleHandler.DeleteBatch)
	schedules.POST("/:id/archive", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), scheduleHandler.ArchiveBatch)
	schedules.POST("/:id/export", scheduleHandler.CreateExport)

	exports := protected.Group("/exports")
	exports.GET("/jobs/:jobId", scheduleHandler.GetExportJob)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
