package models

// UnitKind names a level of the organisational hierarchy.
type UnitKind string

const (
	UnitStudent  UnitKind = "student"
	UnitTeacher  UnitKind = "teacher"
	UnitSchool   UnitKind = "school"
	UnitDistrict UnitKind = "district"
)

// UnitRate is the normalisation denominator of one unit.
type UnitRate struct {
	Kind UnitKind `db:"kind"`
	ID   string   `db:"id"`
	Rate float64  `db:"rate"`
}

// UnitScore is the aggregated score written back for one unit.
type UnitScore struct {
	Kind         UnitKind `json:"kind"`
	ID           string   `json:"id"`
	Score        int      `json:"score"`
	AverageScore float64  `json:"average_score"`
}

// StudentRollup carries the per-student badge summary derived from its results.
type StudentRollup struct {
	StudentID string `db:"id"`
	Status    string `db:"status"`
	MaxLevel  string `db:"max_level"`
}

// UnitRankingFilter scopes unit ranking listings.
type UnitRankingFilter struct {
	DistrictID string
	Page       int
	PageSize   int
}

// UnitRanking is one row of a district, school or teacher leaderboard.
type UnitRanking struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	ParentName   *string `db:"parent_name" json:"parent_name,omitempty"`
	Rate         float64 `db:"rate" json:"rate"`
	Score        int     `db:"score" json:"score"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	Rank         int     `db:"-" json:"rank"`
}
