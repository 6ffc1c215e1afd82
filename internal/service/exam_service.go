package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-stats-api/internal/dto"
	"github.com/noah-isme/exam-stats-api/internal/models"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type examStore interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) (int64, error)
}

type resultRemover interface {
	DeleteByStudents(ctx context.Context, studentIDs []string) (int64, error)
}

type studentLookup interface {
	FindStudent(ctx context.Context, id string) (*models.Student, error)
}

type readModelInvalidator interface {
	Invalidate(ctx context.Context)
}

// ExamService manages the exam catalog and result removal.
type ExamService struct {
	exams     examStore
	results   resultRemover
	students  studentLookup
	views     readModelInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs the service.
func NewExamService(exams examStore, results resultRemover, students studentLookup, views readModelInvalidator, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{exams: exams, results: results, students: students, views: views, validator: validate, logger: logger}
}

// List returns a page of exams.
func (s *ExamService) List(ctx context.Context, query dto.ExamListQuery) ([]models.Exam, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query")
	}
	filter := models.ExamFilter{Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if query.From != "" {
		from, _ := time.Parse(dateLayout, query.From)
		filter.From = &from
	}
	if query.To != "" {
		to, _ := time.Parse(dateLayout, query.To)
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}

	exams, total, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create registers an exam.
func (s *ExamService) Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, _ := time.Parse(dateLayout, req.Date)
	exam := &models.Exam{Name: strings.TrimSpace(req.Name), Code: req.Code, Date: date}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Delete removes an exam and every result recorded for it.
func (s *ExamService) Delete(ctx context.Context, id string) (int64, error) {
	if _, err := s.exams.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	removed, err := s.exams.Delete(ctx, id)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	s.logger.Info("exam deleted", zap.String("exam_id", id), zap.Int64("results_removed", removed))
	s.invalidate(ctx)
	return removed, nil
}

// DeleteStudentResults removes every result of a student.
func (s *ExamService) DeleteStudentResults(ctx context.Context, studentID string) (int64, error) {
	if strings.TrimSpace(studentID) == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	student, err := s.students.FindStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	removed, err := s.results.DeleteByStudents(ctx, []string{student.ID})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student results")
	}
	s.logger.Info("student results deleted", zap.String("student_id", student.ID), zap.String("student", student.FullName()), zap.Int64("results_removed", removed))
	s.invalidate(ctx)
	return removed, nil
}

func (s *ExamService) invalidate(ctx context.Context) {
	if s.views != nil {
		s.views.Invalidate(ctx)
	}
}
