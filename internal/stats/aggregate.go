package stats

import (
	"sort"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

// Rates holds normalisation denominators per unit kind and id.
type Rates map[models.UnitKind]map[string]float64

// NewRates indexes a flat rate listing.
func NewRates(rows []models.UnitRate) Rates {
	rates := make(Rates)
	for _, row := range rows {
		rates.Set(row.Kind, row.ID, row.Rate)
	}
	return rates
}

// Set stores the rate of one unit.
func (r Rates) Set(kind models.UnitKind, id string, rate float64) {
	byID, ok := r[kind]
	if !ok {
		byID = make(map[string]float64)
		r[kind] = byID
	}
	byID[id] = rate
}

// For returns the rate of a unit; zero, negative or missing rates count as 1.
func (r Rates) For(kind models.UnitKind, id string) float64 {
	rate := r[kind][id]
	if rate <= 0 {
		return 1
	}
	return rate
}

// Average divides score by rate, treating a non-positive rate as 1.
func Average(score int, rate float64) float64 {
	if rate <= 0 {
		rate = 1
	}
	return float64(score) / rate
}

// Totals are summed result scores per unit.
type Totals map[models.UnitKind]map[string]int

// SumScores adds each resolved result's score into its student and into every linked
// unit of its chain. Absent links are skipped.
func SumScores(records []models.ResultRecord) Totals {
	totals := Totals{
		models.UnitStudent:  {},
		models.UnitTeacher:  {},
		models.UnitSchool:   {},
		models.UnitDistrict: {},
	}
	for _, rec := range records {
		if !rec.Resolved() {
			continue
		}
		totals[models.UnitStudent][*rec.StudentID] += rec.Score
		addLink(totals[models.UnitTeacher], rec.TeacherID, rec.Score)
		addLink(totals[models.UnitSchool], rec.SchoolID, rec.Score)
		addLink(totals[models.UnitDistrict], rec.DistrictID, rec.Score)
	}
	return totals
}

func addLink(bucket map[string]int, id *string, score int) {
	if id == nil || *id == "" {
		return
	}
	bucket[*id] += score
}

// UnitScores turns the totals of one kind into write rows, ordered by id.
func (t Totals) UnitScores(kind models.UnitKind, rates Rates) []models.UnitScore {
	bucket := t[kind]
	out := make([]models.UnitScore, 0, len(bucket))
	for id, score := range bucket {
		out = append(out, models.UnitScore{
			Kind:         kind,
			ID:           id,
			Score:        score,
			AverageScore: Average(score, rates.For(kind, id)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RollupStudents summarises each student's results: the union of their badges in
// chronological order and the label of their best tier.
func RollupStudents(records []models.ResultRecord) []models.StudentRollup {
	histories, _ := GroupByStudent(records)
	out := make([]models.StudentRollup, 0, len(histories))
	for _, h := range histories {
		var badges BadgeSet
		best := TierE
		for i, rec := range h.Results {
			badges.Merge(ParseBadges(rec.Status))
			if tier := Classify(rec.TotalScore); i == 0 || tier > best {
				best = tier
			}
		}
		out = append(out, models.StudentRollup{
			StudentID: h.StudentID,
			Status:    badges.String(),
			MaxLevel:  best.String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
