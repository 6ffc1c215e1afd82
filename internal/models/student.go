package models

import "time"

// Student is a learner sitting exams. Status, MaxLevel, Score and AverageScore are
// maintained by the statistics pipeline.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Code         int64     `db:"code" json:"code"`
	LastName     string    `db:"last_name" json:"last_name"`
	FirstName    string    `db:"first_name" json:"first_name"`
	MiddleName   string    `db:"middle_name" json:"middle_name"`
	Grade        int       `db:"grade" json:"grade"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	SchoolID     *string   `db:"school_id" json:"school_id,omitempty"`
	DistrictID   *string   `db:"district_id" json:"district_id,omitempty"`
	Status       string    `db:"status" json:"status"`
	MaxLevel     string    `db:"max_level" json:"max_level"`
	Score        int       `db:"score" json:"score"`
	AverageScore float64   `db:"average_score" json:"average_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts the way they are printed on result sheets.
func (s Student) FullName() string {
	name := s.LastName
	for _, part := range []string{s.FirstName, s.MiddleName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// StudentBadgeFilter scopes badge listings.
type StudentBadgeFilter struct {
	Badge      string
	DistrictID string
	Page       int
	PageSize   int
}

// StudentBadgeRow is a student holding a badge, with its district for display.
type StudentBadgeRow struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	Code         int64   `db:"code" json:"code"`
	LastName     string  `db:"last_name" json:"last_name"`
	FirstName    string  `db:"first_name" json:"first_name"`
	MiddleName   string  `db:"middle_name" json:"middle_name"`
	Grade        int     `db:"grade" json:"grade"`
	DistrictName *string `db:"district_name" json:"district_name,omitempty"`
	Status       string  `db:"status" json:"status"`
	MaxLevel     string  `db:"max_level" json:"max_level"`
	Score        int     `db:"score" json:"score"`
}
