package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// StudentResult is one student's outcome on one exam. TotalScore is the raw exam
// score; Status and Score are derived by the statistics pipeline.
type StudentResult struct {
	ID          string         `db:"id" json:"id"`
	StudentID   string         `db:"student_id" json:"student_id"`
	ExamID      string         `db:"exam_id" json:"exam_id"`
	Grade       int            `db:"grade" json:"grade"`
	Disciplines types.JSONText `db:"disciplines" json:"disciplines"`
	TotalScore  int            `db:"total_score" json:"total_score"`
	Status      string         `db:"status" json:"status"`
	Score       int            `db:"score" json:"score"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// BaseResultScore is the derived score every result starts from before bonuses.
const BaseResultScore = 1

// ResultRecord is a result joined to its exam date and the student's resolved
// organisational chain. Nil StudentID or ExamDate means the reference did not resolve.
type ResultRecord struct {
	ResultID   string     `db:"result_id"`
	StudentID  *string    `db:"student_id"`
	ExamID     *string    `db:"exam_id"`
	ExamDate   *time.Time `db:"exam_date"`
	TotalScore int        `db:"total_score"`
	Status     string     `db:"status"`
	Score      int        `db:"score"`
	TeacherID  *string    `db:"teacher_id"`
	SchoolID   *string    `db:"school_id"`
	DistrictID *string    `db:"district_id"`
}

// Resolved reports whether the student and exam references are usable.
func (r ResultRecord) Resolved() bool {
	return r.StudentID != nil && *r.StudentID != "" && r.ExamDate != nil
}

// ResultUpdate carries the derived fields written back for one result.
type ResultUpdate struct {
	ResultID string `db:"id"`
	Status   string `db:"status"`
	Score    int    `db:"score"`
}

// ExamResultRow is one line of an exam result board.
type ExamResultRow struct {
	ResultID     string  `db:"result_id" json:"result_id"`
	StudentID    string  `db:"student_id" json:"student_id"`
	LastName     string  `db:"last_name" json:"last_name"`
	FirstName    string  `db:"first_name" json:"first_name"`
	DistrictName *string `db:"district_name" json:"district_name,omitempty"`
	TotalScore   int     `db:"total_score" json:"total_score"`
	Level        string  `db:"-" json:"level"`
	Status       string  `db:"status" json:"status"`
	Score        int     `db:"score" json:"score"`
}
