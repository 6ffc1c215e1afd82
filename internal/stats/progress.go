package stats

import "github.com/noah-isme/exam-stats-api/internal/models"

// ProgressOutcome is the write set produced by a progress pass.
type ProgressOutcome struct {
	Updates []models.ResultUpdate
	Flagged int
}

// DetectProgress recomputes progress badges over complete histories. Every result of a
// student with at least two results is reset to the baseline; a later result is flagged
// when its tier is above the tier of the best score seen so far and the score itself is
// higher. The first result is never flagged. Only TotalScore is read, so repeated runs
// produce the same output.
func DetectProgress(histories []StudentHistory) ProgressOutcome {
	var out ProgressOutcome
	for _, h := range histories {
		if len(h.Results) < 2 {
			continue
		}
		best := h.Results[0].TotalScore
		out.Updates = append(out.Updates, baseline(h.Results[0]))
		for _, cur := range h.Results[1:] {
			update := baseline(cur)
			if improved(cur.TotalScore, best) {
				update.Status = string(BadgeProgress)
				update.Score += ProgressBonus
				best = cur.TotalScore
				out.Flagged++
			}
			out.Updates = append(out.Updates, update)
		}
	}
	return out
}

// DetectLatestProgress evaluates only the most recent result of each history against
// the maximum of all earlier results. The latest result is reset before evaluation.
func DetectLatestProgress(histories []StudentHistory) ProgressOutcome {
	var out ProgressOutcome
	for _, h := range histories {
		n := len(h.Results)
		if n < 2 {
			continue
		}
		prevMax := h.Results[0].TotalScore
		for _, r := range h.Results[1 : n-1] {
			if r.TotalScore > prevMax {
				prevMax = r.TotalScore
			}
		}
		latest := h.Results[n-1]
		update := baseline(latest)
		if improved(latest.TotalScore, prevMax) {
			update.Status = string(BadgeProgress)
			update.Score += ProgressBonus
			out.Flagged++
		}
		out.Updates = append(out.Updates, update)
	}
	return out
}

func improved(current, best int) bool {
	return current > best && Classify(current) > Classify(best)
}

func baseline(rec models.ResultRecord) models.ResultUpdate {
	return models.ResultUpdate{ResultID: rec.ResultID, Status: "", Score: models.BaseResultScore}
}
