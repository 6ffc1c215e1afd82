package stats

import (
	"sort"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

// StudentHistory is one student's results in exam-date order.
type StudentHistory struct {
	StudentID string
	Results   []models.ResultRecord
}

// UnitGroup is the set of records sharing one organisational unit.
type UnitGroup struct {
	UnitID  string
	Records []models.ResultRecord
}

// GroupByStudent buckets resolved records by student, keeping students in order of
// first sighting and sorting each history by exam date (ties by result id). The
// second return value counts records skipped because a reference did not resolve.
func GroupByStudent(records []models.ResultRecord) ([]StudentHistory, int) {
	index := make(map[string]int)
	histories := make([]StudentHistory, 0)
	skipped := 0
	for _, rec := range records {
		if !rec.Resolved() {
			skipped++
			continue
		}
		id := *rec.StudentID
		pos, ok := index[id]
		if !ok {
			pos = len(histories)
			index[id] = pos
			histories = append(histories, StudentHistory{StudentID: id})
		}
		histories[pos].Results = append(histories[pos].Results, rec)
	}
	for i := range histories {
		sortChronologically(histories[i].Results)
	}
	return histories, skipped
}

// GroupByDistrict buckets resolved records by the student's district. Records without a
// district are left out; they still count for jurisdiction-wide selection.
func GroupByDistrict(records []models.ResultRecord) []UnitGroup {
	index := make(map[string]int)
	groups := make([]UnitGroup, 0)
	for _, rec := range records {
		if !rec.Resolved() || rec.DistrictID == nil || *rec.DistrictID == "" {
			continue
		}
		id := *rec.DistrictID
		pos, ok := index[id]
		if !ok {
			pos = len(groups)
			index[id] = pos
			groups = append(groups, UnitGroup{UnitID: id})
		}
		groups[pos].Records = append(groups[pos].Records, rec)
	}
	return groups
}

// FilterPeriod keeps resolved records whose exam falls in p.
func FilterPeriod(records []models.ResultRecord, p Period) []models.ResultRecord {
	out := make([]models.ResultRecord, 0, len(records))
	for _, rec := range records {
		if rec.Resolved() && p.Contains(*rec.ExamDate) {
			out = append(out, rec)
		}
	}
	return out
}

// ApplyUpdates returns a copy of records with the derived fields of updates applied.
func ApplyUpdates(records []models.ResultRecord, updates []models.ResultUpdate) []models.ResultRecord {
	byID := make(map[string]models.ResultUpdate, len(updates))
	for _, u := range updates {
		byID[u.ResultID] = u
	}
	out := make([]models.ResultRecord, len(records))
	copy(out, records)
	for i := range out {
		if u, ok := byID[out[i].ResultID]; ok {
			out[i].Status = u.Status
			out[i].Score = u.Score
		}
	}
	return out
}

func sortChronologically(results []models.ResultRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].ExamDate, results[j].ExamDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return results[i].ResultID < results[j].ResultID
	})
}
