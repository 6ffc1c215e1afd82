package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/models"
)

func historyOf(student string, totals ...int) StudentHistory {
	h := StudentHistory{StudentID: student}
	for i, total := range totals {
		rec := record(student+"-r"+string(rune('a'+i)), student, "d1", day(2024, time.Month(i+1), 10), total)
		h.Results = append(h.Results, rec)
	}
	return h
}

func updatesByID(updates []models.ResultUpdate) map[string]models.ResultUpdate {
	out := make(map[string]models.ResultUpdate, len(updates))
	for _, u := range updates {
		out[u.ResultID] = u
	}
	return out
}

func TestDetectProgressFlagsTierIncrease(t *testing.T) {
	out := DetectProgress([]StudentHistory{historyOf("s1", 20, 20, 47)})

	require.Len(t, out.Updates, 3)
	assert.Equal(t, 1, out.Flagged)
	byID := updatesByID(out.Updates)
	assert.Equal(t, models.ResultUpdate{ResultID: "s1-ra", Status: "", Score: 1}, byID["s1-ra"])
	assert.Equal(t, models.ResultUpdate{ResultID: "s1-rb", Status: "", Score: 1}, byID["s1-rb"])
	assert.Equal(t, models.ResultUpdate{ResultID: "s1-rc", Status: string(BadgeProgress), Score: 11}, byID["s1-rc"])
}

func TestDetectProgressIgnoresDecrease(t *testing.T) {
	out := DetectProgress([]StudentHistory{historyOf("s1", 47, 20)})

	assert.Equal(t, 0, out.Flagged)
	byID := updatesByID(out.Updates)
	assert.Equal(t, 1, byID["s1-rb"].Score)
	assert.Equal(t, "", byID["s1-rb"].Status)
}

func TestDetectProgressSameTierIncreaseDoesNotQualify(t *testing.T) {
	out := DetectProgress([]StudentHistory{historyOf("s1", 16, 25, 26)})

	byID := updatesByID(out.Updates)
	assert.Equal(t, "", byID["s1-rb"].Status)
	assert.Equal(t, string(BadgeProgress), byID["s1-rc"].Status)
	assert.Equal(t, 1, out.Flagged)
}

func TestDetectProgressTracksBestSoFar(t *testing.T) {
	// D, B, C, A: the drop to C must not become the new baseline.
	out := DetectProgress([]StudentHistory{historyOf("s1", 20, 36, 30, 34, 42)})

	byID := updatesByID(out.Updates)
	assert.Equal(t, string(BadgeProgress), byID["s1-rb"].Status)
	assert.Equal(t, "", byID["s1-rc"].Status)
	assert.Equal(t, "", byID["s1-rd"].Status)
	assert.Equal(t, string(BadgeProgress), byID["s1-re"].Status)
	assert.Equal(t, 2, out.Flagged)
}

func TestDetectProgressSkipsSingleResult(t *testing.T) {
	out := DetectProgress([]StudentHistory{historyOf("s1", 49), {StudentID: "s2"}})
	assert.Empty(t, out.Updates)
	assert.Equal(t, 0, out.Flagged)
}

func TestDetectProgressIdempotent(t *testing.T) {
	history := historyOf("s1", 10, 30, 20, 45, 50)
	first := DetectProgress([]StudentHistory{history})

	applied := ApplyUpdates(history.Results, first.Updates)
	second := DetectProgress([]StudentHistory{{StudentID: "s1", Results: applied}})

	assert.Equal(t, first, second)
}

func TestDetectLatestProgress(t *testing.T) {
	out := DetectLatestProgress([]StudentHistory{
		historyOf("s1", 20, 30, 47),
		historyOf("s2", 40, 30, 41),
		historyOf("s3", 49),
	})

	require.Len(t, out.Updates, 2)
	byID := updatesByID(out.Updates)
	assert.Equal(t, models.ResultUpdate{ResultID: "s1-rc", Status: string(BadgeProgress), Score: 11}, byID["s1-rc"])
	assert.Equal(t, models.ResultUpdate{ResultID: "s2-rc", Status: "", Score: 1}, byID["s2-rc"])
	assert.Equal(t, 1, out.Flagged)
}
