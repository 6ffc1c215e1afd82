package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

var unitTables = map[models.UnitKind]string{
	models.UnitStudent:  "students",
	models.UnitTeacher:  "teachers",
	models.UnitSchool:   "schools",
	models.UnitDistrict: "districts",
}

// Rates count the students attached to each unit, directly or through the chain.
const (
	recomputeDistrictRates = `UPDATE districts d SET rate = (
            SELECT COUNT(*) FROM students s
            LEFT JOIN teachers t ON t.id = s.teacher_id
            LEFT JOIN schools sc ON sc.id = COALESCE(s.school_id, t.school_id)
            WHERE COALESCE(s.district_id, sc.district_id) = d.id)`
	recomputeSchoolRates = `UPDATE schools sc SET rate = (
            SELECT COUNT(*) FROM students s
            LEFT JOIN teachers t ON t.id = s.teacher_id
            WHERE COALESCE(s.school_id, t.school_id) = sc.id)`
	recomputeTeacherRates = `UPDATE teachers t SET rate = (
            SELECT COUNT(*) FROM students s WHERE s.teacher_id = t.id)`
)

// DirectoryRepository reads and writes the organisational hierarchy: districts,
// schools, teachers and the aggregate fields of students.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs a DirectoryRepository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const studentColumns = "id, code, last_name, first_name, middle_name, grade, teacher_id, school_id, district_id, status, max_level, score, average_score, created_at, updated_at"

// FindStudent fetches a student by ID.
func (r *DirectoryRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ResetUnitScores zeroes aggregates on every level, clears student badges and
// district rates.
func (r *DirectoryRepository) ResetUnitScores(ctx context.Context) error {
	statements := []string{
		"UPDATE students SET status = '', max_level = '', score = 0, average_score = 0, updated_at = NOW()",
		"UPDATE teachers SET score = 0, average_score = 0",
		"UPDATE schools SET score = 0, average_score = 0",
		"UPDATE districts SET score = 0, average_score = 0, rate = 0",
	}
	return r.execAll(ctx, "reset unit scores", statements)
}

// RecomputeRates refreshes the rate of every district, school and teacher.
func (r *DirectoryRepository) RecomputeRates(ctx context.Context) error {
	return r.execAll(ctx, "recompute rates", []string{recomputeDistrictRates, recomputeSchoolRates, recomputeTeacherRates})
}

func (r *DirectoryRepository) execAll(ctx context.Context, op string, statements []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

// Rates lists the stored rate of every district, school and teacher.
func (r *DirectoryRepository) Rates(ctx context.Context) ([]models.UnitRate, error) {
	const query = `SELECT 'district' AS kind, id, rate FROM districts
        UNION ALL SELECT 'school' AS kind, id, rate FROM schools
        UNION ALL SELECT 'teacher' AS kind, id, rate FROM teachers`
	var rates []models.UnitRate
	if err := r.db.SelectContext(ctx, &rates, query); err != nil {
		return nil, fmt.Errorf("list unit rates: %w", err)
	}
	return rates, nil
}

// BulkUpdateUnitScores writes score and average for units of one kind in a single statement.
func (r *DirectoryRepository) BulkUpdateUnitScores(ctx context.Context, kind models.UnitKind, scores []models.UnitScore) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	table, ok := unitTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown unit kind %q", kind)
	}
	ids := make([]string, len(scores))
	totals := make([]int64, len(scores))
	averages := make([]float64, len(scores))
	for i, s := range scores {
		ids[i] = s.ID
		totals[i] = int64(s.Score)
		averages[i] = s.AverageScore
	}
	query := fmt.Sprintf(`UPDATE %s AS u SET score = v.score, average_score = v.average_score
        FROM unnest($1::text[], $2::bigint[], $3::float8[]) AS v(id, score, average_score)
        WHERE u.id::text = v.id`, table)
	res, err := r.db.ExecContext(ctx, query, pq.Array(ids), pq.Array(totals), pq.Array(averages))
	if err != nil {
		return 0, fmt.Errorf("update %s scores: %w", kind, err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// ApplyStudentRollups writes the badge union and best level onto students.
func (r *DirectoryRepository) ApplyStudentRollups(ctx context.Context, rollups []models.StudentRollup) (int, error) {
	if len(rollups) == 0 {
		return 0, nil
	}
	ids := make([]string, len(rollups))
	statuses := make([]string, len(rollups))
	levels := make([]string, len(rollups))
	for i, ro := range rollups {
		ids[i] = ro.StudentID
		statuses[i] = ro.Status
		levels[i] = ro.MaxLevel
	}
	const query = `UPDATE students AS s SET status = v.status, max_level = v.max_level, updated_at = NOW()
        FROM unnest($1::text[], $2::text[], $3::text[]) AS v(id, status, max_level)
        WHERE s.id::text = v.id`
	res, err := r.db.ExecContext(ctx, query, pq.Array(ids), pq.Array(statuses), pq.Array(levels))
	if err != nil {
		return 0, fmt.Errorf("apply student rollups: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Rankings lists districts, schools or teachers ordered by average score.
func (r *DirectoryRepository) Rankings(ctx context.Context, kind models.UnitKind, filter models.UnitRankingFilter) ([]models.UnitRanking, int, error) {
	from, parent := "", "p.name"
	switch kind {
	case models.UnitDistrict:
		from, parent = "FROM districts u WHERE 1=1", "NULL::text"
	case models.UnitSchool:
		from = "FROM schools u LEFT JOIN districts p ON p.id = u.district_id WHERE 1=1"
	case models.UnitTeacher:
		from = "FROM teachers u LEFT JOIN schools p ON p.id = u.school_id WHERE 1=1"
	default:
		return nil, 0, fmt.Errorf("unknown unit kind %q", kind)
	}

	var args []interface{}
	if filter.DistrictID != "" {
		switch kind {
		case models.UnitDistrict:
			from += " AND u.id = $1"
		case models.UnitSchool:
			from += " AND u.district_id = $1"
		case models.UnitTeacher:
			from += " AND p.district_id = $1"
		}
		args = append(args, filter.DistrictID)
	}

	name := "u.name"
	if kind == models.UnitTeacher {
		name = "u.full_name"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT u.id, %s AS name, %s AS parent_name, u.rate, u.score, u.average_score %s ORDER BY u.average_score DESC, u.score DESC, %s ASC LIMIT %d OFFSET %d",
		name, parent, from, name, size, (page-1)*size)

	var rows []models.UnitRanking
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s rankings: %w", kind, err)
	}
	for i := range rows {
		rows[i].Rank = (page-1)*size + i + 1
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s rankings: %w", kind, err)
	}
	return rows, total, nil
}

// ListBadgeHolders lists students whose status carries the given badge label.
func (r *DirectoryRepository) ListBadgeHolders(ctx context.Context, filter models.StudentBadgeFilter) ([]models.StudentBadgeRow, int, error) {
	base := `FROM students s
        LEFT JOIN teachers t ON t.id = s.teacher_id
        LEFT JOIN schools sc ON sc.id = COALESCE(s.school_id, t.school_id)
        LEFT JOIN districts d ON d.id = COALESCE(s.district_id, sc.district_id)
        WHERE s.status LIKE $1`
	args := []interface{}{"%" + escapeLike(filter.Badge) + "%"}
	if filter.DistrictID != "" {
		base += " AND d.id = $2"
		args = append(args, filter.DistrictID)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT s.id AS student_id, s.code, s.last_name, s.first_name, s.middle_name, s.grade,
            d.name AS district_name, s.status, s.max_level, s.score %s
        ORDER BY s.score DESC, s.last_name ASC LIMIT %d OFFSET %d`, base, size, (page-1)*size)

	var rows []models.StudentBadgeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list badge holders: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count badge holders: %w", err)
	}
	return rows, total, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
