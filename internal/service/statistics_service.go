package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/exam-stats-api/internal/models"
	"github.com/noah-isme/exam-stats-api/internal/stats"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/jobs"
)

// StatsRunLockKey guards the pipeline against concurrent runs.
const StatsRunLockKey = "stats:run:lock"

// StatsJobType tags pipeline jobs on the queue.
const StatsJobType = "stats_recompute"

type resultStore interface {
	ListRecords(ctx context.Context) ([]models.ResultRecord, error)
	ListRecordsByExams(ctx context.Context, examIDs []string) ([]models.ResultRecord, error)
	ListRecordsBefore(ctx context.Context, before time.Time) ([]models.ResultRecord, error)
	BulkUpdate(ctx context.Context, updates []models.ResultUpdate) (int, error)
	ResetDerived(ctx context.Context) (int64, error)
}

type examCatalog interface {
	ExamDates(ctx context.Context) ([]time.Time, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Exam, error)
}

type unitDirectory interface {
	ResetUnitScores(ctx context.Context) error
	RecomputeRates(ctx context.Context) error
	Rates(ctx context.Context) ([]models.UnitRate, error)
	BulkUpdateUnitScores(ctx context.Context, kind models.UnitKind, scores []models.UnitScore) (int, error)
	ApplyStudentRollups(ctx context.Context, rollups []models.StudentRollup) (int, error)
}

type statsRunStore interface {
	Create(ctx context.Context, run *models.StatsRun) error
	Update(ctx context.Context, run *models.StatsRun) error
	FindByID(ctx context.Context, id string) (*models.StatsRun, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type runLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// StatisticsServiceConfig tunes the pipeline.
type StatisticsServiceConfig struct {
	LockTTL time.Duration
}

// ProgressReport summarises an incremental progress pass.
type ProgressReport struct {
	Period         stats.Period `json:"period"`
	Flagged        int          `json:"flagged"`
	ResultsUpdated int          `json:"results_updated"`
	Skipped        int          `json:"skipped"`
}

// AggregationReport summarises a score aggregation pass.
type AggregationReport struct {
	UnitsUpdated int `json:"units_updated"`
	Skipped      int `json:"skipped"`
}

// StatisticsService drives the recompute pipeline against the result store, the exam
// catalog and the organisational directory.
type StatisticsService struct {
	results   resultStore
	exams     examCatalog
	directory unitDirectory
	runs      statsRunStore
	locker    runLocker
	queue     jobDispatcher
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       StatisticsServiceConfig
	now       func() time.Time
}

// NewStatisticsService constructs the pipeline driver. queue may be nil when runs are
// only executed synchronously.
func NewStatisticsService(results resultStore, exams examCatalog, directory unitDirectory, runs statsRunStore, locker runLocker, queue jobDispatcher, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg StatisticsServiceConfig) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &StatisticsService{
		results:   results,
		exams:     exams,
		directory: directory,
		runs:      runs,
		locker:    locker,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Recompute runs the whole pipeline synchronously.
func (s *StatisticsService) Recompute(ctx context.Context) (*models.StatsRun, error) {
	return s.RunFrom(ctx, stats.StepReset)
}

// RunFrom runs the pipeline synchronously starting at the given step.
func (s *StatisticsService) RunFrom(ctx context.Context, from stats.Step) (*models.StatsRun, error) {
	run, err := s.newRun(ctx, from, models.StatsRunRunning)
	if err != nil {
		return nil, err
	}
	if err := s.Execute(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Schedule records a queued run and hands it to the background queue.
func (s *StatisticsService) Schedule(ctx context.Context, from stats.Step) (*models.StatsRun, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "background runs are not configured")
	}
	run, err := s.newRun(ctx, from, models.StatsRunQueued)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: StatsJobType}); err != nil {
		s.fail(ctx, run, err)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrStatsRunActive.Code, appErrors.ErrStatsRunActive.Status, "statistics runs are already queued")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue statistics run")
	}
	return run, nil
}

// GetRun returns a recorded run.
func (s *StatisticsService) GetRun(ctx context.Context, id string) (*models.StatsRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "statistics run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics run")
	}
	return run, nil
}

func (s *StatisticsService) newRun(ctx context.Context, from stats.Step, status models.StatsRunStatus) (*models.StatsRun, error) {
	if _, err := stats.PipelineFrom(from); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	run := &models.StatsRun{
		ID:        uuid.NewString(),
		Status:    status,
		Step:      string(from),
		StartedAt: s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record statistics run")
	}
	return run, nil
}

// Execute takes the run lock and walks the pipeline from run.Step. A failed run keeps
// the failing step so it can be resumed.
func (s *StatisticsService) Execute(ctx context.Context, run *models.StatsRun) error {
	steps, err := stats.PipelineFrom(stats.Step(run.Step))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	release, err := s.lock(ctx)
	if err != nil {
		s.fail(ctx, run, err)
		return err
	}
	defer release()

	run.Status = models.StatsRunRunning
	run.Error = nil
	run.FinishedAt = nil
	logger := s.logger.With(zap.String("run_id", run.ID))
	logger.Info("statistics run started", zap.String("from", run.Step))

	var periods []stats.Period
	for _, step := range steps {
		run.Step = string(step)
		s.persist(ctx, run)

		start := time.Now()
		err := s.runStep(ctx, step, run, &periods)
		s.metrics.ObserveStatsStep(string(step), err == nil, time.Since(start))
		if err != nil {
			logger.Error("statistics step failed", zap.String("step", string(step)), zap.Error(err))
			s.fail(ctx, run, err)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("statistics step %s failed", step))
		}
		logger.Debug("statistics step finished", zap.String("step", string(step)), zap.Duration("duration", time.Since(start)))
	}

	finished := s.now()
	run.Status = models.StatsRunSucceeded
	run.Step = string(stats.StepSucceeded)
	run.FinishedAt = &finished
	s.persist(ctx, run)
	s.metrics.RecordStatsRun(true)
	s.invalidateReadModels(ctx)

	logger.Info("statistics run finished",
		zap.Int("periods", run.Periods),
		zap.Int("progress_flags", run.ProgressFlags),
		zap.Int("district_awards", run.DistrictAwards),
		zap.Int("republic_awards", run.RepublicAwards),
		zap.Int("results_updated", run.ResultsUpdated),
		zap.Int("units_updated", run.UnitsUpdated),
		zap.Int("skipped", run.Skipped),
	)
	return nil
}

func (s *StatisticsService) runStep(ctx context.Context, step stats.Step, run *models.StatsRun, periods *[]stats.Period) error {
	switch step {
	case stats.StepReset:
		return s.reset(ctx)
	case stats.StepRates:
		if err := s.directory.RecomputeRates(ctx); err != nil {
			return err
		}
		return nil
	case stats.StepProgress:
		return s.progress(ctx, run)
	case stats.StepPeriods:
		found, err := s.periods(ctx)
		if err != nil {
			return err
		}
		*periods = found
		run.Periods = len(found)
		return nil
	case stats.StepTopPerformers:
		if *periods == nil {
			found, err := s.periods(ctx)
			if err != nil {
				return err
			}
			*periods = found
			run.Periods = len(found)
		}
		return s.topPerformers(ctx, run, *periods)
	case stats.StepAggregation:
		report, err := s.aggregate(ctx)
		if err != nil {
			return err
		}
		run.UnitsUpdated += report.UnitsUpdated
		run.Skipped += report.Skipped
		return nil
	}
	return fmt.Errorf("step %s has no handler", step)
}

func (s *StatisticsService) reset(ctx context.Context) error {
	if _, err := s.results.ResetDerived(ctx); err != nil {
		return err
	}
	return s.directory.ResetUnitScores(ctx)
}

func (s *StatisticsService) progress(ctx context.Context, run *models.StatsRun) error {
	records, err := s.results.ListRecords(ctx)
	if err != nil {
		return err
	}
	histories, skipped := stats.GroupByStudent(records)
	s.warnSkipped("progress", skipped)
	run.Skipped += skipped

	outcome := stats.DetectProgress(histories)
	updated, err := s.results.BulkUpdate(ctx, outcome.Updates)
	if err != nil {
		return err
	}
	run.ProgressFlags += outcome.Flagged
	run.ResultsUpdated += updated
	return nil
}

func (s *StatisticsService) periods(ctx context.Context) ([]stats.Period, error) {
	dates, err := s.exams.ExamDates(ctx)
	if err != nil {
		return nil, err
	}
	periods := stats.Periods(dates)
	if len(periods) == 0 {
		s.logger.Info("no exams recorded, nothing to rank")
	}
	return periods, nil
}

func (s *StatisticsService) topPerformers(ctx context.Context, run *models.StatsRun, periods []stats.Period) error {
	for _, period := range periods {
		from, to := period.Bounds()
		exams, err := s.exams.ListBetween(ctx, from, to)
		if err != nil {
			return err
		}
		if len(exams) == 0 {
			s.logger.Info("no exams in period", zap.Stringer("period", period))
			continue
		}
		ids := make([]string, len(exams))
		for i, exam := range exams {
			ids[i] = exam.ID
		}
		records, err := s.results.ListRecordsByExams(ctx, ids)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			s.logger.Info("no results in period", zap.Stringer("period", period))
			continue
		}

		district := stats.SelectDistrictTop(records)
		updated, err := s.results.BulkUpdate(ctx, district.Updates)
		if err != nil {
			return err
		}
		run.DistrictAwards += district.Awarded
		run.ResultsUpdated += updated

		republic := stats.SelectRepublicTop(stats.ApplyUpdates(records, district.Updates))
		updated, err = s.results.BulkUpdate(ctx, republic.Updates)
		if err != nil {
			return err
		}
		run.RepublicAwards += republic.Awarded
		run.ResultsUpdated += updated
	}
	return nil
}

// Aggregate runs the score aggregation alone under the run lock.
func (s *StatisticsService) Aggregate(ctx context.Context) (*AggregationReport, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	report, err := s.aggregate(ctx)
	s.metrics.ObserveStatsStep(string(stats.StepAggregation), err == nil, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate scores")
	}
	s.invalidateReadModels(ctx)
	return report, nil
}

func (s *StatisticsService) aggregate(ctx context.Context) (*AggregationReport, error) {
	records, err := s.results.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	rateRows, err := s.directory.Rates(ctx)
	if err != nil {
		return nil, err
	}

	skipped := 0
	for _, rec := range records {
		if !rec.Resolved() {
			skipped++
		}
	}
	s.warnSkipped("aggregation", skipped)

	rates := stats.NewRates(rateRows)
	totals := stats.SumScores(records)
	rollups := stats.RollupStudents(records)

	kinds := []models.UnitKind{models.UnitStudent, models.UnitTeacher, models.UnitSchool, models.UnitDistrict}
	counts := make([]int, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			n, err := s.directory.BulkUpdateUnitScores(gctx, kind, totals.UnitScores(kind, rates))
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	g.Go(func() error {
		_, err := s.directory.ApplyStudentRollups(gctx, rollups)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &AggregationReport{Skipped: skipped}
	for _, n := range counts {
		report.UnitsUpdated += n
	}
	return report, nil
}

// MarkProgress flags progress on each student's latest result up to the end of period.
func (s *StatisticsService) MarkProgress(ctx context.Context, period stats.Period) (*ProgressReport, error) {
	if !period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid period")
	}
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	_, end := period.Bounds()
	records, err := s.results.ListRecordsBefore(ctx, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	histories, skipped := stats.GroupByStudent(records)
	s.warnSkipped("incremental progress", skipped)

	outcome := stats.DetectLatestProgress(histories)
	updated, err := s.results.BulkUpdate(ctx, outcome.Updates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	s.logger.Info("incremental progress marked", zap.Stringer("period", period), zap.Int("flagged", outcome.Flagged))
	s.invalidateReadModels(ctx)
	return &ProgressReport{Period: period, Flagged: outcome.Flagged, ResultsUpdated: updated, Skipped: skipped}, nil
}

func (s *StatisticsService) lock(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := s.locker.AcquireLock(ctx, StatsRunLockKey, token, s.cfg.LockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire statistics lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrStatsRunActive, "")
	}
	return func() {
		if err := s.locker.ReleaseLock(context.Background(), StatsRunLockKey, token); err != nil {
			s.logger.Warn("release statistics lock", zap.Error(err))
		}
	}, nil
}

func (s *StatisticsService) fail(ctx context.Context, run *models.StatsRun, cause error) {
	msg := cause.Error()
	finished := s.now()
	run.Status = models.StatsRunFailed
	run.Error = &msg
	run.FinishedAt = &finished
	s.persist(ctx, run)
	s.metrics.RecordStatsRun(false)
}

func (s *StatisticsService) persist(ctx context.Context, run *models.StatsRun) {
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Warn("persist statistics run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *StatisticsService) warnSkipped(stage string, skipped int) {
	if skipped > 0 {
		s.logger.Warn("skipped results with unresolved references", zap.String("stage", stage), zap.Int("skipped", skipped))
	}
}

func (s *StatisticsService) invalidateReadModels(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCachePattern); err != nil {
		s.logger.Warn("invalidate statistics cache", zap.Error(err))
	}
}

// StatsWorker executes queued pipeline runs.
type StatsWorker struct {
	runs       statsRunStore
	executor   *StatisticsService
	maxRetries int
	logger     *zap.Logger
}

// NewStatsWorker constructs a worker.
func NewStatsWorker(runs statsRunStore, executor *StatisticsService, maxRetries int, logger *zap.Logger) *StatsWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &StatsWorker{runs: runs, executor: executor, maxRetries: maxRetries, logger: logger}
}

// Handle processes a queue job. Retries resume from the step that failed.
func (w *StatsWorker) Handle(ctx context.Context, job jobs.Job) error {
	run, err := w.runs.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load statistics run %s: %w", job.ID, err)
	}
	if run.Status == models.StatsRunSucceeded {
		return nil
	}
	err = w.executor.Execute(ctx, run)
	if err != nil && job.Attempt < w.maxRetries {
		w.logger.Sugar().Warnw("statistics run will be retried", "run_id", run.ID, "step", run.Step, "attempt", job.Attempt+1, "error", err)
	}
	return err
}
