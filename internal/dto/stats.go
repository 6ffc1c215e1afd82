package dto

import "github.com/noah-isme/exam-stats-api/internal/models"

// RecomputeRequest is the optional body of POST /stats/recompute. From resumes the
// pipeline at a step.
type RecomputeRequest struct {
	From string `json:"from" validate:"omitempty,oneof=RESET RATES PROGRESS PERIODS TOP_PERFORMERS AGGREGATION"`
}

// ProgressRequest selects the period for an incremental progress pass.
type ProgressRequest struct {
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// RunAcceptedResponse acknowledges a queued run.
type RunAcceptedResponse struct {
	ID     string                `json:"id"`
	Status models.StatsRunStatus `json:"status"`
	Step   string                `json:"step"`
}

// ExportQuery selects the encoding of a ranking export.
type ExportQuery struct {
	Format     string `form:"format" validate:"required,oneof=csv pdf xlsx"`
	DistrictID string `form:"district_id" validate:"omitempty,uuid"`
}
