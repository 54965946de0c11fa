package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/elimu-fund/bursary-api/api/swagger"
	"github.com/elimu-fund/bursary-api/internal/handler"
	"github.com/elimu-fund/bursary-api/internal/middleware"
	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/repository"
	"github.com/elimu-fund/bursary-api/internal/service"
	"github.com/elimu-fund/bursary-api/pkg/cache"
	"github.com/elimu-fund/bursary-api/pkg/config"
	"github.com/elimu-fund/bursary-api/pkg/database"
	"github.com/elimu-fund/bursary-api/pkg/jobs"
	"github.com/elimu-fund/bursary-api/pkg/logger"
	"github.com/elimu-fund/bursary-api/pkg/mailer"
	corsmiddleware "github.com/elimu-fund/bursary-api/pkg/middleware/cors"
	reqidmiddleware "github.com/elimu-fund/bursary-api/pkg/middleware/requestid"
	"github.com/elimu-fund/bursary-api/pkg/storage"
)

// @title County Bursary Fund API
// @version 1.0.0
// @description Application lifecycle service for the county bursary fund
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
		logr.Sugar().Warnw("redis unavailable, reference cache disabled", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "bursary-api",
	})

	notifySvc := service.NewNotifyService(notificationRepo, profileRepo, userRepo,
		mailer.New(cfg.SMTP), cfg.Notify.EmailsOn, cfg.SMTP.FromName,
		jobs.QueueConfig{
			Workers:    cfg.Notify.Workers,
			BufferSize: cfg.Notify.BufferSize,
			MaxRetries: cfg.Notify.MaxRetries,
			RetryDelay: cfg.Notify.RetryDelay,
		}, logr)

	eligibilitySvc := service.NewEligibilityService(profileRepo, documentRepo, applicationRepo, periodRepo, logr)
	lifecycleSvc := service.NewLifecycleService(applicationRepo, documentRepo, profileRepo, userRepo, notifySvc, metricsSvc, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, profileRepo, periodRepo, eligibilitySvc, lifecycleSvc, validate, logr)
	profileSvc := service.NewProfileService(profileRepo, documentRepo, applicationRepo, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, profileRepo, applicationRepo, uploadStore, cfg.Uploads.MaxFileSizeBytes, logr)
	reviewSvc := service.NewReviewService(reviewRepo, applicationRepo, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, validate, logr)
	referenceSvc := service.NewReferenceService(referenceRepo, redisClient, cfg.Cache.ReferenceTTL, logr)
	reportSvc := service.NewReportService(reportRepo, applicationRepo, reportStore, signer,
		cfg.APIPrefix+"/admin/reports",
		jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
		}, metricsSvc, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notifySvc.Start(ctx)
	defer notifySvc.Stop()
	reportSvc.Start(ctx)
	defer reportSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc, eligibilitySvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc, lifecycleSvc)
	adminHandler := handler.NewAdminApplicationHandler(applicationSvc, lifecycleSvc, reviewSvc, documentSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)
	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	reference := api.Group("/reference")
	{
		reference.GET("/counties", referenceHandler.Counties)
		reference.GET("/counties/:id/sub-counties", referenceHandler.SubCounties)
		reference.GET("/sub-counties/:id/wards", referenceHandler.Wards)
		reference.GET("/institutions", referenceHandler.Institutions)
	}
	api.GET("/periods/active", periodHandler.Active)

	student := api.Group("/student", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		student.POST("/profile", profileHandler.Create)
		student.PUT("/profile", profileHandler.Update)
		student.GET("/profile", profileHandler.Get)
		student.GET("/profile/completeness", profileHandler.Completeness)
		student.GET("/eligibility", profileHandler.Eligibility)

		student.POST("/documents", documentHandler.UploadProfileDocument)
		student.GET("/documents", documentHandler.ListProfileDocuments)
		student.DELETE("/documents/:id", documentHandler.DeleteProfileDocument)

		student.POST("/applications", applicationHandler.Create)
		student.GET("/applications", applicationHandler.List)
		student.GET("/applications/:id", applicationHandler.Get)
		student.PUT("/applications/:id", applicationHandler.Update)
		student.POST("/applications/:id/submit", applicationHandler.Submit)
		student.GET("/applications/:id/history", applicationHandler.History)
		student.POST("/applications/:id/documents", documentHandler.UploadApplicationDocument)
		student.GET("/applications/:id/documents", documentHandler.ListApplicationDocuments)
		student.POST("/applications/:id/documents/link", documentHandler.LinkProfileDocument)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.GET("/applications", adminHandler.List)
		admin.GET("/applications/summary", adminHandler.Summary)
		admin.POST("/applications/bulk-status", adminHandler.BulkUpdate)
		admin.GET("/applications/:id", adminHandler.Get)
		admin.PATCH("/applications/:id/status", adminHandler.UpdateStatus)
		admin.GET("/applications/:id/history", adminHandler.History)
		admin.POST("/applications/:id/scores", adminHandler.Score)
		admin.GET("/applications/:id/scores", adminHandler.Scores)
		admin.GET("/applications/:id/documents", adminHandler.Documents)

		admin.GET("/periods", periodHandler.List)
		admin.POST("/periods", periodHandler.Create)
		admin.GET("/periods/:id", periodHandler.Get)
		admin.PUT("/periods/:id", periodHandler.Update)
		admin.POST("/periods/:id/activate", periodHandler.Activate)
		admin.DELETE("/periods/:id", periodHandler.Delete)

		admin.POST("/reports", reportHandler.Create)
		admin.GET("/reports/:id", reportHandler.Get)
	}
	// Download is authenticated by its signed token, not a session.
	api.GET("/admin/reports/:id/download", reportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
