package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-stats-api/internal/models"
	"github.com/noah-isme/exam-stats-api/internal/repository"
	"github.com/noah-isme/exam-stats-api/internal/service"
	"github.com/noah-isme/exam-stats-api/internal/stats"
	"github.com/noah-isme/exam-stats-api/pkg/cache"
	"github.com/noah-isme/exam-stats-api/pkg/config"
	"github.com/noah-isme/exam-stats-api/pkg/database"
	"github.com/noah-isme/exam-stats-api/pkg/logger"
)

// stats-runner executes the statistics pipeline once and exits. It is the entry point
// for an external scheduler.
//
//	stats-runner [-from STEP | -resume]
//	stats-runner token -user ID -email EMAIL [-role ADMIN]
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

	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(mintToken(cfg, logr, os.Args[2:]))
	}
	os.Exit(recompute(cfg, logr, os.Args[1:]))
}

func recompute(cfg *config.Config, logr *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("stats-runner", flag.ContinueOnError)
	from := fs.String("from", string(stats.StepReset), "step to start from")
	resume := fs.Bool("resume", false, "restart the latest failed run at its failed step")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	step, err := stats.ParseStep(*from)
	if err != nil {
		logr.Error("invalid step", zap.String("from", *from), zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Error("connect postgres", zap.Error(err))
		return 1
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, running without lock", zap.Error(err))
	} else {
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	runRepo := repository.NewStatsRunRepository(db)
	if *resume {
		latest, err := runRepo.Latest(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			logr.Info("no previous run, starting from the beginning")
		case err != nil:
			logr.Error("load latest run", zap.Error(err))
			return 1
		case latest.Status == models.StatsRunFailed:
			if step, err = stats.ParseStep(latest.Step); err != nil {
				logr.Error("latest run has no resumable step", zap.String("run_id", latest.ID), zap.String("step", latest.Step))
				return 1
			}
			logr.Info("resuming failed run", zap.String("run_id", latest.ID), zap.String("step", latest.Step))
		default:
			logr.Info("latest run did not fail, starting from the beginning", zap.String("run_id", latest.ID), zap.String("status", string(latest.Status)))
		}
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, redisClient != nil)
	svc := service.NewStatisticsService(
		repository.NewResultRepository(db),
		repository.NewExamRepository(db),
		repository.NewDirectoryRepository(db),
		runRepo,
		cacheRepo,
		nil,
		cacheSvc,
		metricsSvc,
		logr,
		service.StatisticsServiceConfig{LockTTL: cfg.Stats.LockTTL},
	)

	run, err := svc.RunFrom(ctx, step)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if run != nil {
			fields = append(fields, zap.String("run_id", run.ID), zap.String("step", run.Step))
		}
		logr.Error("statistics run failed", fields...)
		return 1
	}

	logr.Info("statistics run finished",
		zap.String("run_id", run.ID),
		zap.Int("periods", run.Periods),
		zap.Int("progress_flags", run.ProgressFlags),
		zap.Int("district_awards", run.DistrictAwards),
		zap.Int("republic_awards", run.RepublicAwards),
		zap.Int("units_updated", run.UnitsUpdated),
		zap.Int("skipped", run.Skipped),
	)
	return 0
}

func mintToken(cfg *config.Config, logr *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id")
	email := fs.String("email", "", "user email")
	role := fs.String("role", string(models.RoleAdmin), "role claim")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "token: -user is required")
		return 2
	}

	auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)
	token, expiresAt, err := auth.IssueToken(*userID, *email, models.UserRole(*role))
	if err != nil {
		logr.Error("issue token", zap.Error(err))
		return 1
	}
	fmt.Println(token)
	logr.Info("token issued", zap.String("user_id", *userID), zap.Time("expires_at", expiresAt))
	return 0
}
