package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

func chained(rec models.ResultRecord, teacher, school string, score int) models.ResultRecord {
	if teacher != "" {
		rec.TeacherID = strPtr(teacher)
	}
	if school != "" {
		rec.SchoolID = strPtr(school)
	}
	rec.Score = score
	return rec
}

func TestSumScoresFollowsChain(t *testing.T) {
	date := day(2024, time.May, 2)
	unresolved := record("r9", "", "d1", date, 50)

	totals := SumScores([]models.ResultRecord{
		chained(record("r1", "s1", "d1", date, 47), "t1", "sc1", 16),
		chained(record("r2", "s1", "d1", date, 30), "t1", "sc1", 1),
		chained(record("r3", "s2", "d1", date, 20), "", "sc1", 1),
		chained(record("r4", "s3", "", date, 20), "", "", 11),
		unresolved,
	})

	assert.Equal(t, map[string]int{"s1": 17, "s2": 1, "s3": 11}, totals[models.UnitStudent])
	assert.Equal(t, map[string]int{"t1": 17}, totals[models.UnitTeacher])
	assert.Equal(t, map[string]int{"sc1": 18}, totals[models.UnitSchool])
	assert.Equal(t, map[string]int{"d1": 18}, totals[models.UnitDistrict])
}

func TestUnitScoresAverageUsesRate(t *testing.T) {
	totals := Totals{models.UnitDistrict: {"d2": 9, "d1": 12}}
	rates := NewRates([]models.UnitRate{{Kind: models.UnitDistrict, ID: "d1", Rate: 4}})

	scores := totals.UnitScores(models.UnitDistrict, rates)

	require.Len(t, scores, 2)
	assert.Equal(t, models.UnitScore{Kind: models.UnitDistrict, ID: "d1", Score: 12, AverageScore: 3}, scores[0])
	assert.Equal(t, models.UnitScore{Kind: models.UnitDistrict, ID: "d2", Score: 9, AverageScore: 9}, scores[1])
}

func TestRatesDefaultToOne(t *testing.T) {
	rates := NewRates([]models.UnitRate{
		{Kind: models.UnitSchool, ID: "sc1", Rate: 0},
		{Kind: models.UnitSchool, ID: "sc2", Rate: -3},
	})

	assert.Equal(t, 1.0, rates.For(models.UnitSchool, "sc1"))
	assert.Equal(t, 1.0, rates.For(models.UnitSchool, "sc2"))
	assert.Equal(t, 1.0, rates.For(models.UnitTeacher, "missing"))
	assert.Equal(t, 5.0, Average(5, 0))
}

func TestRollupStudents(t *testing.T) {
	recs := []models.ResultRecord{
		scored(record("r2", "s1", "d1", day(2024, time.February, 1), 48), string(BadgeProgress)+", "+string(BadgeDistrictTop), 16),
		scored(record("r1", "s1", "d1", day(2024, time.January, 1), 20), "", 1),
		scored(record("r3", "s1", "d1", day(2024, time.March, 1), 40), string(BadgeDistrictTop), 6),
		scored(record("r4", "s2", "d1", day(2024, time.March, 1), 3), "", 1),
	}

	rollups := RollupStudents(recs)

	require.Len(t, rollups, 2)
	assert.Equal(t, models.StudentRollup{
		StudentID: "s1",
		Status:    string(BadgeProgress) + ", " + string(BadgeDistrictTop),
		MaxLevel:  "Lisey",
	}, rollups[0])
	assert.Equal(t, models.StudentRollup{StudentID: "s2", Status: "", MaxLevel: "E"}, rollups[1])
}
