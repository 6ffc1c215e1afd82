package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

// recordSelect joins each result to its exam and walks the student's chain. A student
// without a direct school or district inherits it from the teacher and school.
const recordSelect = `SELECT r.id AS result_id, s.id AS student_id, e.id AS exam_id, e.exam_date,
        r.total_score, r.status, r.score,
        s.teacher_id,
        COALESCE(s.school_id, t.school_id) AS school_id,
        COALESCE(s.district_id, sc.district_id) AS district_id
    FROM student_results r
    LEFT JOIN students s ON s.id = r.student_id
    LEFT JOIN exams e ON e.id = r.exam_id
    LEFT JOIN teachers t ON t.id = s.teacher_id
    LEFT JOIN schools sc ON sc.id = COALESCE(s.school_id, t.school_id)`

// ResultRepository manages student results and their derived fields.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// ListRecords returns every result with its resolved chain.
func (r *ResultRepository) ListRecords(ctx context.Context) ([]models.ResultRecord, error) {
	return r.selectRecords(ctx, "list result records", recordSelect+" ORDER BY e.exam_date ASC, r.id ASC")
}

// ListRecordsByExams returns results of the given exams.
func (r *ResultRepository) ListRecordsByExams(ctx context.Context, examIDs []string) ([]models.ResultRecord, error) {
	if len(examIDs) == 0 {
		return []models.ResultRecord{}, nil
	}
	query := recordSelect + " WHERE r.exam_id = ANY($1) ORDER BY e.exam_date ASC, r.id ASC"
	return r.selectRecords(ctx, "list result records by exams", query, pq.Array(examIDs))
}

// ListRecordsBefore returns results of exams dated before the cut-off.
func (r *ResultRepository) ListRecordsBefore(ctx context.Context, before time.Time) ([]models.ResultRecord, error) {
	query := recordSelect + " WHERE e.exam_date < $1 ORDER BY e.exam_date ASC, r.id ASC"
	return r.selectRecords(ctx, "list result records before", query, before)
}

func (r *ResultRepository) selectRecords(ctx context.Context, op, query string, args ...interface{}) ([]models.ResultRecord, error) {
	var records []models.ResultRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

// BulkUpdate writes status and score for every update in one transaction.
func (r *ResultRepository) BulkUpdate(ctx context.Context, updates []models.ResultUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	const query = `UPDATE student_results SET status = :status, score = :score, updated_at = NOW() WHERE id = :id`
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("prepare result update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("update result %s: %w", u.ResultID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit result updates: %w", err)
	}
	return len(updates), nil
}

// ResetDerived restores every result to the baseline status and score.
func (r *ResultRepository) ResetDerived(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE student_results SET status = '', score = $1, updated_at = NOW()", models.BaseResultScore)
	if err != nil {
		return 0, fmt.Errorf("reset result scores: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// DeleteByExams removes results belonging to the given exams.
func (r *ResultRepository) DeleteByExams(ctx context.Context, examIDs []string) (int64, error) {
	return r.deleteWhere(ctx, "exam_id", examIDs)
}

// DeleteByStudents removes results belonging to the given students.
func (r *ResultRepository) DeleteByStudents(ctx context.Context, studentIDs []string) (int64, error) {
	return r.deleteWhere(ctx, "student_id", studentIDs)
}

func (r *ResultRepository) deleteWhere(ctx context.Context, column string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM student_results WHERE %s = ANY($1)", column)
	res, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete results by %s: %w", column, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// ExamBoard lists the results of one exam, best first.
func (r *ResultRepository) ExamBoard(ctx context.Context, examID string) ([]models.ExamResultRow, error) {
	const query = `SELECT r.id AS result_id, s.id AS student_id, s.last_name, s.first_name,
            d.name AS district_name, r.total_score, r.status, r.score
        FROM student_results r
        JOIN students s ON s.id = r.student_id
        LEFT JOIN teachers t ON t.id = s.teacher_id
        LEFT JOIN schools sc ON sc.id = COALESCE(s.school_id, t.school_id)
        LEFT JOIN districts d ON d.id = COALESCE(s.district_id, sc.district_id)
        WHERE r.exam_id = $1
        ORDER BY r.total_score DESC, s.last_name ASC, s.first_name ASC`
	var rows []models.ExamResultRow
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("list exam board: %w", err)
	}
	return rows, nil
}
