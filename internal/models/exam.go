package models

import "time"

// Exam is a dated exam sitting. Results reference it by ID.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      int       `db:"code" json:"code"`
	Date      time.Time `db:"exam_date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamFilter narrows exam listings.
type ExamFilter struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
