package stats

import "strings"

// Badge is a label awarded to a result for a qualifying event.
type Badge string

const (
	BadgeProgress    Badge = "İnkişaf edən şagird"
	BadgeDistrictTop Badge = "Ayın şagirdi"
	BadgeRepublicTop Badge = "Respublika üzrə ayın şagirdi"
)

// Bonus points attached to each badge.
const (
	ProgressBonus = 10
	TopBonus      = 5
)

const badgeSeparator = ", "

var badgeKeys = map[string]Badge{
	"progress": BadgeProgress,
	"district": BadgeDistrictTop,
	"republic": BadgeRepublicTop,
}

// BadgeByKey resolves the short API key of a badge.
func BadgeByKey(key string) (Badge, bool) {
	b, ok := badgeKeys[strings.ToLower(strings.TrimSpace(key))]
	return b, ok
}

// BadgeSet is an insertion-ordered set of badges.
type BadgeSet struct {
	items []Badge
}

// ParseBadges reads a rendered status string back into a set. Unknown labels are kept.
func ParseBadges(status string) BadgeSet {
	var set BadgeSet
	for _, part := range strings.Split(status, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		set.Add(Badge(label))
	}
	return set
}

// Add appends b unless already present and reports whether it was added.
func (s *BadgeSet) Add(b Badge) bool {
	if b == "" || s.Has(b) {
		return false
	}
	s.items = append(s.items, b)
	return true
}

// Merge adds every badge of other in its order.
func (s *BadgeSet) Merge(other BadgeSet) {
	for _, b := range other.items {
		s.Add(b)
	}
}

// Has reports membership.
func (s BadgeSet) Has(b Badge) bool {
	for _, item := range s.items {
		if item == b {
			return true
		}
	}
	return false
}

// Len returns the number of badges.
func (s BadgeSet) Len() int {
	return len(s.items)
}

// Badges returns a copy of the ordered badges.
func (s BadgeSet) Badges() []Badge {
	out := make([]Badge, len(s.items))
	copy(out, s.items)
	return out
}

// String renders the comma-joined display form stored in status columns.
func (s BadgeSet) String() string {
	labels := make([]string, len(s.items))
	for i, b := range s.items {
		labels[i] = string(b)
	}
	return strings.Join(labels, badgeSeparator)
}
