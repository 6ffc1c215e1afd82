package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

const examColumns = "id, name, code, exam_date, created_at, updated_at"

// ExamRepository manages persistence for exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams matching the filter, newest first, along with the total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY exam_date DESC, name ASC LIMIT %d OFFSET %d", examColumns, base, size, (page-1)*size)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// ListBetween returns every exam dated in [from, to) in chronological order.
func (r *ExamRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE exam_date >= $1 AND exam_date < $2 ORDER BY exam_date ASC, id ASC", examColumns)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, from, to); err != nil {
		return nil, fmt.Errorf("list exams between: %w", err)
	}
	return exams, nil
}

// ExamDates returns the date of every exam.
func (r *ExamRepository) ExamDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, "SELECT exam_date FROM exams ORDER BY exam_date ASC"); err != nil {
		return nil, fmt.Errorf("list exam dates: %w", err)
	}
	return dates, nil
}

// FindByID fetches an exam by ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE id = $1", examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, name, code, exam_date, created_at, updated_at)
        VALUES (:id, :name, :code, :exam_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Delete removes an exam together with its results.
func (r *ExamRepository) Delete(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM student_results WHERE exam_id = $1", id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("delete exam results: %w", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, "DELETE FROM exams WHERE id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("delete exam: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit exam delete: %w", err)
	}
	return removed, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
