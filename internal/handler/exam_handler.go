package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-stats-api/internal/dto"
	"github.com/noah-isme/exam-stats-api/internal/models"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/response"
)

type examService interface {
	List(ctx context.Context, query dto.ExamListQuery) ([]models.Exam, *models.Pagination, error)
	Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error)
	Delete(ctx context.Context, id string) (int64, error)
	DeleteStudentResults(ctx context.Context, studentID string) (int64, error)
}

// ExamHandler exposes the exam catalog.
type ExamHandler struct {
	service examService
}

// NewExamHandler constructs the handler.
func NewExamHandler(service examService) *ExamHandler {
	return &ExamHandler{service: service}
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	var query dto.ExamListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query"))
		return
	}
	exams, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, pagination)
}

// Create godoc
// @Summary Create exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	exam, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Delete godoc
// @Summary Delete exam and its results
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
	removed, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteResultsResponse{Deleted: removed}, nil)
}

// DeleteStudentResults godoc
// @Summary Delete every result of a student
// @Tags Exams
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [delete]
func (h *ExamHandler) DeleteStudentResults(c *gin.Context) {
	removed, err := h.service.DeleteStudentResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteResultsResponse{Deleted: removed}, nil)
}
