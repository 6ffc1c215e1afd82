package models

import "time"

// StatsRunStatus is the terminal or in-flight state of a pipeline run.
type StatsRunStatus string

const (
	StatsRunQueued    StatsRunStatus = "QUEUED"
	StatsRunRunning   StatsRunStatus = "RUNNING"
	StatsRunSucceeded StatsRunStatus = "SUCCEEDED"
	StatsRunFailed    StatsRunStatus = "FAILED"
)

// StatsRun records one execution of the statistics pipeline. Step is the step in
// progress, the terminal state, or for a failed run the step that failed.
type StatsRun struct {
	ID             string         `db:"id" json:"id"`
	Status         StatsRunStatus `db:"status" json:"status"`
	Step           string         `db:"step" json:"step"`
	Periods        int            `db:"periods" json:"periods"`
	ProgressFlags  int            `db:"progress_flags" json:"progress_flags"`
	DistrictAwards int            `db:"district_awards" json:"district_awards"`
	RepublicAwards int            `db:"republic_awards" json:"republic_awards"`
	ResultsUpdated int            `db:"results_updated" json:"results_updated"`
	UnitsUpdated   int            `db:"units_updated" json:"units_updated"`
	Skipped        int            `db:"skipped" json:"skipped"`
	Error          *string        `db:"error" json:"error,omitempty"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}
