package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func record(id, student, district string, date time.Time, total int) models.ResultRecord {
	rec := models.ResultRecord{
		ResultID:   id,
		ExamID:     strPtr("exam-" + date.Format("200601")),
		ExamDate:   timePtr(date),
		TotalScore: total,
		Score:      models.BaseResultScore,
	}
	if student != "" {
		rec.StudentID = strPtr(student)
	}
	if district != "" {
		rec.DistrictID = strPtr(district)
	}
	return rec
}

func TestGroupByStudentOrdersByExamDate(t *testing.T) {
	records := []models.ResultRecord{
		record("r3", "s1", "d1", day(2024, time.March, 1), 30),
		record("r4", "s2", "d1", day(2024, time.January, 1), 10),
		record("r1", "s1", "d1", day(2024, time.January, 1), 10),
		record("r2", "s1", "d1", day(2024, time.February, 1), 20),
		record("orphan", "", "d1", day(2024, time.February, 1), 49),
	}

	histories, skipped := GroupByStudent(records)

	require.Len(t, histories, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "s1", histories[0].StudentID)
	assert.Equal(t, "s2", histories[1].StudentID)
	ids := []string{}
	for _, r := range histories[0].Results {
		ids = append(ids, r.ResultID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
}

func TestGroupByDistrictSkipsMissingDistrict(t *testing.T) {
	records := []models.ResultRecord{
		record("r1", "s1", "d1", day(2024, time.January, 1), 10),
		record("r2", "s2", "", day(2024, time.January, 1), 10),
		record("r3", "s3", "d2", day(2024, time.January, 1), 10),
		record("r4", "s4", "d1", day(2024, time.January, 1), 10),
	}

	groups := GroupByDistrict(records)

	require.Len(t, groups, 2)
	assert.Equal(t, "d1", groups[0].UnitID)
	assert.Len(t, groups[0].Records, 2)
	assert.Equal(t, "d2", groups[1].UnitID)
}

func TestFilterPeriodAndApplyUpdates(t *testing.T) {
	records := []models.ResultRecord{
		record("r1", "s1", "d1", day(2024, time.January, 31), 10),
		record("r2", "s1", "d1", day(2024, time.February, 1), 20),
	}
	jan := FilterPeriod(records, Period{Year: 2024, Month: time.January})
	require.Len(t, jan, 1)
	assert.Equal(t, "r1", jan[0].ResultID)

	updated := ApplyUpdates(records, []models.ResultUpdate{{ResultID: "r2", Status: "x", Score: 6}})
	assert.Equal(t, "x", updated[1].Status)
	assert.Equal(t, 6, updated[1].Score)
	assert.Equal(t, "", records[1].Status)
}
