package stats

import "github.com/noah-isme/exam-stats-api/internal/models"

// AwardOutcome is the write set produced by a top-performer pass.
type AwardOutcome struct {
	Updates []models.ResultUpdate
	Awarded int
}

// SelectDistrictTop awards BadgeDistrictTop to every record holding the maximum total
// score of its district, provided that maximum reaches the Lisey threshold. Records must
// already be restricted to one period.
func SelectDistrictTop(records []models.ResultRecord) AwardOutcome {
	var out AwardOutcome
	for _, group := range GroupByDistrict(records) {
		award(group.Records, BadgeDistrictTop, &out)
	}
	return out
}

// SelectRepublicTop awards BadgeRepublicTop across all records of a period regardless of
// district.
func SelectRepublicTop(records []models.ResultRecord) AwardOutcome {
	resolved := make([]models.ResultRecord, 0, len(records))
	for _, rec := range records {
		if rec.Resolved() {
			resolved = append(resolved, rec)
		}
	}
	var out AwardOutcome
	award(resolved, BadgeRepublicTop, &out)
	return out
}

func award(records []models.ResultRecord, badge Badge, out *AwardOutcome) {
	if len(records) == 0 {
		return
	}
	max := records[0].TotalScore
	for _, rec := range records[1:] {
		if rec.TotalScore > max {
			max = rec.TotalScore
		}
	}
	if max < LiseyThreshold {
		return
	}
	for _, rec := range records {
		if rec.TotalScore != max {
			continue
		}
		badges := ParseBadges(rec.Status)
		score := rec.Score
		if badges.Add(badge) {
			score += TopBonus
			out.Awarded++
		}
		out.Updates = append(out.Updates, models.ResultUpdate{
			ResultID: rec.ResultID,
			Status:   badges.String(),
			Score:    score,
		})
	}
}
