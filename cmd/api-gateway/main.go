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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-stats-api/api/swagger"
	"github.com/noah-isme/exam-stats-api/internal/handler"
	internalmiddleware "github.com/noah-isme/exam-stats-api/internal/middleware"
	"github.com/noah-isme/exam-stats-api/internal/models"
	"github.com/noah-isme/exam-stats-api/internal/repository"
	"github.com/noah-isme/exam-stats-api/internal/service"
	"github.com/noah-isme/exam-stats-api/pkg/cache"
	"github.com/noah-isme/exam-stats-api/pkg/config"
	"github.com/noah-isme/exam-stats-api/pkg/database"
	"github.com/noah-isme/exam-stats-api/pkg/jobs"
	"github.com/noah-isme/exam-stats-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-stats-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-stats-api/pkg/middleware/requestid"
)

// @title Exam Stats API
// @version 1.0.0
// @description Exam result statistics: progress and top-performer badges, unit rankings and exports
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching and run lock disabled", zap.Error(err))
	} else {
		redisClient = client
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	examRepo := repository.NewExamRepository(db)
	resultRepo := repository.NewResultRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	statsRunRepo := repository.NewStatsRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, redisClient != nil)

	var statsWorker *service.StatsWorker
	statsQueue := jobs.NewQueue("stats", func(ctx context.Context, job jobs.Job) error {
		return statsWorker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:     1,
		BufferSize:  2,
		MaxRetries:  cfg.Stats.WorkerRetries,
		RetryDelay:  cfg.Stats.RetryDelay,
		Logger:      logr,
		OnExhausted: func(job jobs.Job, err error) {
			metricsSvc.RecordStatsJobExhausted()
			logr.Error("statistics run abandoned", zap.String("run_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		},
	})

	statsSvc := service.NewStatisticsService(resultRepo, examRepo, directoryRepo, statsRunRepo, cacheRepo, statsQueue, cacheSvc, metricsSvc, logr, service.StatisticsServiceConfig{
		LockTTL: cfg.Stats.LockTTL,
	})
	statsWorker = service.NewStatsWorker(statsRunRepo, statsSvc, cfg.Stats.WorkerRetries, logr)
	statsQueue.Start(ctx)
	defer statsQueue.Stop()

	leaderboardSvc := service.NewLeaderboardService(directoryRepo, resultRepo, examRepo, cacheSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(directoryRepo, nil, cfg.Exports.Enabled, logr)
	examSvc := service.NewExamService(examRepo, resultRepo, directoryRepo, leaderboardSvc, validate, logr)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)

	statsHandler := handler.NewStatsHandler(statsSvc, leaderboardSvc, exportSvc, validate)
	examHandler := handler.NewExamHandler(examSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingFunc(cacheRepo.Ping),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api.GET("/system/metrics", metricsHandler.Summary)

	exams := api.Group("/exams")
	exams.GET("", examHandler.List)
	exams.POST("", admin, examHandler.Create)
	exams.DELETE("/:id", admin, examHandler.Delete)
	api.DELETE("/students/:id/results", admin, examHandler.DeleteStudentResults)

	if cfg.Stats.Enabled {
		statsGroup := api.Group("/stats")
		statsGroup.POST("/recompute", admin, statsHandler.Recompute)
		statsGroup.POST("/recompute/sync", admin, statsHandler.RecomputeSync)
		statsGroup.POST("/aggregate", admin, statsHandler.Aggregate)
		statsGroup.POST("/progress", admin, statsHandler.Progress)
		statsGroup.GET("/runs/:id", statsHandler.Run)
		statsGroup.GET("/students", statsHandler.Students)
		statsGroup.GET("/districts", statsHandler.Rankings(models.UnitDistrict))
		statsGroup.GET("/schools", statsHandler.Rankings(models.UnitSchool))
		statsGroup.GET("/teachers", statsHandler.Rankings(models.UnitTeacher))
		statsGroup.GET("/exams/:id", statsHandler.ExamBoard)
		statsGroup.GET("/export/:unit", statsHandler.Export)
	} else {
		logr.Info("statistics API disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown", zap.Error(err))
	}
}
