package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBadgeSetAccumulatesInOrder(t *testing.T) {
	var set BadgeSet
	assert.True(t, set.Add(BadgeProgress))
	assert.True(t, set.Add(BadgeDistrictTop))
	assert.False(t, set.Add(BadgeProgress))
	assert.True(t, set.Add(BadgeRepublicTop))

	assert.Equal(t, "İnkişaf edən şagird, Ayın şagirdi, Respublika üzrə ayın şagirdi", set.String())
	assert.Equal(t, 3, set.Len())
}

func TestParseBadgesRoundTrip(t *testing.T) {
	set := ParseBadges("Ayın şagirdi,  Respublika üzrə ayın şagirdi, , Ayın şagirdi")
	assert.Equal(t, []Badge{BadgeDistrictTop, BadgeRepublicTop}, set.Badges())
	assert.Equal(t, "Ayın şagirdi, Respublika üzrə ayın şagirdi", set.String())

	empty := ParseBadges("")
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "", empty.String())
}

func TestBadgeSetMerge(t *testing.T) {
	a := ParseBadges(string(BadgeProgress))
	b := ParseBadges("Ayın şagirdi, İnkişaf edən şagird")
	a.Merge(b)
	assert.Equal(t, []Badge{BadgeProgress, BadgeDistrictTop}, a.Badges())
}

func TestBadgeByKey(t *testing.T) {
	b, ok := BadgeByKey(" Republic ")
	assert.True(t, ok)
	assert.Equal(t, BadgeRepublicTop, b)

	_, ok = BadgeByKey("best")
	assert.False(t, ok)
}
