package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

const statsRunColumns = "id, status, step, periods, progress_flags, district_awards, republic_awards, results_updated, units_updated, skipped, error, started_at, finished_at"

// StatsRunRepository persists pipeline run records.
type StatsRunRepository struct {
	db *sqlx.DB
}

// NewStatsRunRepository constructs a StatsRunRepository.
func NewStatsRunRepository(db *sqlx.DB) *StatsRunRepository {
	return &StatsRunRepository{db: db}
}

// Create inserts a run record.
func (r *StatsRunRepository) Create(ctx context.Context, run *models.StatsRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	const query = `INSERT INTO stats_runs (` + statsRunColumns + `)
        VALUES (:id, :status, :step, :periods, :progress_flags, :district_awards, :republic_awards, :results_updated, :units_updated, :skipped, :error, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create stats run: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a run.
func (r *StatsRunRepository) Update(ctx context.Context, run *models.StatsRun) error {
	const query = `UPDATE stats_runs SET status = :status, step = :step, periods = :periods,
        progress_flags = :progress_flags, district_awards = :district_awards, republic_awards = :republic_awards,
        results_updated = :results_updated, units_updated = :units_updated, skipped = :skipped,
        error = :error, finished_at = :finished_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("update stats run: %w", err)
	}
	return nil
}

// FindByID fetches a run by ID.
func (r *StatsRunRepository) FindByID(ctx context.Context, id string) (*models.StatsRun, error) {
	query := fmt.Sprintf("SELECT %s FROM stats_runs WHERE id = $1", statsRunColumns)
	var run models.StatsRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// Latest returns the most recently started run.
func (r *StatsRunRepository) Latest(ctx context.Context) (*models.StatsRun, error) {
	query := fmt.Sprintf("SELECT %s FROM stats_runs ORDER BY started_at DESC LIMIT 1", statsRunColumns)
	var run models.StatsRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		return nil, err
	}
	return &run, nil
}
