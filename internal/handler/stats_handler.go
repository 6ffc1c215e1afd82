package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/exam-stats-api/internal/dto"
	"github.com/noah-isme/exam-stats-api/internal/middleware"
	"github.com/noah-isme/exam-stats-api/internal/models"
	"github.com/noah-isme/exam-stats-api/internal/service"
	"github.com/noah-isme/exam-stats-api/internal/stats"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/response"
)

type statsRunner interface {
	Schedule(ctx context.Context, from stats.Step) (*models.StatsRun, error)
	RunFrom(ctx context.Context, from stats.Step) (*models.StatsRun, error)
	GetRun(ctx context.Context, id string) (*models.StatsRun, error)
	Aggregate(ctx context.Context) (*service.AggregationReport, error)
	MarkProgress(ctx context.Context, period stats.Period) (*service.ProgressReport, error)
}

type statsReader interface {
	Rankings(ctx context.Context, kind models.UnitKind, filter models.UnitRankingFilter) (*service.RankingPage, bool, error)
	BadgeHolders(ctx context.Context, filter models.StudentBadgeFilter) (*service.BadgePage, bool, error)
	ExamBoard(ctx context.Context, examID string) (*service.ExamBoard, bool, error)
}

type rankingExporter interface {
	ExportRanking(ctx context.Context, unit string, format string, districtID string) (*service.ExportFile, error)
}

// StatsHandler exposes the statistics pipeline and its read models.
type StatsHandler struct {
	runner    statsRunner
	reader    statsReader
	exporter  rankingExporter
	validator *validator.Validate
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(runner statsRunner, reader statsReader, exporter rankingExporter, validate *validator.Validate) *StatsHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &StatsHandler{runner: runner, reader: reader, exporter: exporter, validator: validate}
}

// Recompute godoc
// @Summary Queue a full statistics recompute
// @Tags Statistics
// @Accept json
// @Produce json
// @Param payload body dto.RecomputeRequest false "Optional resume step"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/recompute [post]
func (h *StatsHandler) Recompute(c *gin.Context) {
	from, ok := h.bindStep(c)
	if !ok {
		return
	}
	run, err := h.runner.Schedule(c.Request.Context(), from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.RunAcceptedResponse{ID: run.ID, Status: run.Status, Step: run.Step})
}

// RecomputeSync godoc
// @Summary Run a full statistics recompute and wait for it
// @Tags Statistics
// @Accept json
// @Produce json
// @Param payload body dto.RecomputeRequest false "Optional resume step"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/recompute/sync [post]
func (h *StatsHandler) RecomputeSync(c *gin.Context) {
	from, ok := h.bindStep(c)
	if !ok {
		return
	}
	run, err := h.runner.RunFrom(c.Request.Context(), from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

func (h *StatsHandler) bindStep(c *gin.Context) (stats.Step, bool) {
	var req dto.RecomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return "", false
	}
	req.From = strings.ToUpper(strings.TrimSpace(req.From))
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step"))
		return "", false
	}
	if req.From == "" {
		return stats.StepReset, true
	}
	return stats.Step(req.From), true
}

// Run godoc
// @Summary Get a statistics run
// @Tags Statistics
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /stats/runs/{id} [get]
func (h *StatsHandler) Run(c *gin.Context) {
	run, err := h.runner.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Aggregate godoc
// @Summary Recalculate unit scores from current result scores
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/aggregate [post]
func (h *StatsHandler) Aggregate(c *gin.Context) {
	report, err := h.runner.Aggregate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Progress godoc
// @Summary Flag progress on the latest results up to a month
// @Tags Statistics
// @Accept json
// @Produce json
// @Param payload body dto.ProgressRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /stats/progress [post]
func (h *StatsHandler) Progress(c *gin.Context) {
	var req dto.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period"))
		return
	}
	report, err := h.runner.MarkProgress(c.Request.Context(), stats.Period{Year: req.Year, Month: time.Month(req.Month)})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Students godoc
// @Summary List students holding a badge
// @Tags Statistics
// @Produce json
// @Param badge query string true "progress, district or republic"
// @Param district_id query string false "District ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /stats/students [get]
func (h *StatsHandler) Students(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.StudentBadgeFilter{
		Badge:      strings.TrimSpace(c.Query("badge")),
		DistrictID: strings.TrimSpace(c.Query("district_id")),
		Page:       page,
		PageSize:   size,
	}
	result, hit, err := h.reader.BadgeHolders(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: result.Total}, middleware.ExtractMeta(c))
}

// Rankings godoc
// @Summary Rank districts, schools or teachers by average score
// @Tags Statistics
// @Produce json
// @Param district_id query string false "District ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /stats/districts [get]
// @Router /stats/schools [get]
// @Router /stats/teachers [get]
func (h *StatsHandler) Rankings(kind models.UnitKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, size := pageParams(c)
		filter := models.UnitRankingFilter{DistrictID: strings.TrimSpace(c.Query("district_id")), Page: page, PageSize: size}
		result, hit, err := h.reader.Rankings(c.Request.Context(), kind, filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetCacheHit(c, hit)
		response.JSON(c, http.StatusOK, result.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: result.Total}, middleware.ExtractMeta(c))
	}
}

// ExamBoard godoc
// @Summary Results of one exam ordered by total score
// @Tags Statistics
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /stats/exams/{id} [get]
func (h *StatsHandler) ExamBoard(c *gin.Context) {
	board, hit, err := h.reader.ExamBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, board, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a ranking
// @Tags Statistics
// @Produce octet-stream
// @Param unit path string true "districts, schools or teachers"
// @Param format query string true "csv, pdf or xlsx"
// @Param district_id query string false "District ID"
// @Success 200 {file} file
// @Router /stats/export/{unit} [get]
func (h *StatsHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query"))
		return
	}
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "format must be csv, pdf or xlsx"))
		return
	}
	file, err := h.exporter.ExportRanking(c.Request.Context(), c.Param("unit"), query.Format, query.DistrictID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
