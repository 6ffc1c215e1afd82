package dto

// CreateExamRequest is the payload of POST /exams. Date uses the YYYY-MM-DD layout.
type CreateExamRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Code int    `json:"code" validate:"min=0"`
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ExamListQuery filters GET /exams.
type ExamListQuery struct {
	From     string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// DeleteResultsResponse reports how many results a delete removed.
type DeleteResultsResponse struct {
	Deleted int64 `json:"deleted"`
}
