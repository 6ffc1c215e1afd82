package stats

// Tier is an ordinal achievement bucket. Higher values are better.
type Tier int

const (
	TierE Tier = iota
	TierD
	TierC
	TierB
	TierA
	TierLisey
)

// LiseyThreshold is the lowest total score in the top tier. It doubles as the
// qualification floor for top-performer awards.
const LiseyThreshold = 47

var tierLabels = [...]string{"E", "D", "C", "B", "A", "Lisey"}

// Classify maps a raw total score to its tier. Negative scores fall into E.
func Classify(totalScore int) Tier {
	switch {
	case totalScore >= LiseyThreshold:
		return TierLisey
	case totalScore >= 42:
		return TierA
	case totalScore >= 35:
		return TierB
	case totalScore >= 26:
		return TierC
	case totalScore >= 16:
		return TierD
	default:
		return TierE
	}
}

// String returns the display label of the tier.
func (t Tier) String() string {
	if t < TierE || int(t) >= len(tierLabels) {
		return tierLabels[TierE]
	}
	return tierLabels[t]
}
