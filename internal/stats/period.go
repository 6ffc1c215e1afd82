package stats

import (
	"fmt"
	"sort"
	"time"
)

// Period is a calendar month used to scope top-performer selection.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Valid reports whether the month is in range and the year is positive.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Before orders periods chronologically.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Bounds returns the first instant of the period and the first instant of the next one, in UTC.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls in the period.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Periods returns the distinct periods of the given dates in ascending order.
func Periods(dates []time.Time) []Period {
	seen := make(map[Period]struct{}, len(dates))
	out := make([]Period, 0)
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		p := PeriodOf(d)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
