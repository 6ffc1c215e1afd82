package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var examRowColumns = []string{"id", "name", "code", "exam_date", "created_at", "updated_at"}

func TestExamRepositoryListWithDateRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, code, exam_date, created_at, updated_at FROM exams WHERE 1=1 AND exam_date >= $1 AND exam_date < $2 ORDER BY exam_date DESC, name ASC LIMIT 20 OFFSET 20")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(examRowColumns).AddRow("e1", "January", 1, from, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exams")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	exams, total, err := repo.List(context.Background(), models.ExamFilter{From: &from, To: &to, Page: 2, PageSize: 0})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "January", exams[0].Name)
	assert.Equal(t, 21, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListBetweenAndDates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM exams WHERE exam_date >= $1 AND exam_date < $2 ORDER BY exam_date ASC")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(examRowColumns).
			AddRow("e3", "March A", 3, from, now, now).
			AddRow("e4", "March B", 4, from.AddDate(0, 0, 14), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT exam_date FROM exams ORDER BY exam_date ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"exam_date"}).AddRow(from).AddRow(to))

	exams, err := repo.ListBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.Len(t, exams, 2)

	dates, err := repo.ExamDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{from, to}, dates)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM exams WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{Name: "April", Code: 4, Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(context.Background(), exam))
	assert.NotEmpty(t, exam.ID)
	assert.False(t, exam.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_results WHERE exam_id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exams WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.Delete(context.Background(), "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDeleteRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_results")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exams")).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete exam")
	require.NoError(t, mock.ExpectationsWereMet())
}
