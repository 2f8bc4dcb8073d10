// Package calendar owns the sparse day-indexed content calendar.
//
// A calendar is stored as a map from day number to day data. Days absent
// from the map are rest days; no empty records are materialized for them.
package calendar

import (
	"sort"

	"github.com/adstudio/studio/internal/domain"
)

// Index is an immutable sparse calendar. Build a new one to change it.
type Index struct {
	days    map[int]domain.CalendarDay
	period  int
	highest int
}

// Build indexes days by day number, discarding entries whose number is
// not a positive integer. When a day number repeats, the later entry wins.
func Build(days []domain.CalendarDay, period int) *Index {
	ix := &Index{days: make(map[int]domain.CalendarDay, len(days))}
	if period > 0 {
		ix.period = period
	}
	for _, d := range days {
		if d.Day < 1 {
			continue
		}
		ix.days[d.Day] = d
		if d.Day > ix.highest {
			ix.highest = d.Day
		}
	}
	return ix
}

// Empty reports whether no day is scheduled.
func (ix *Index) Empty() bool {
	return ix == nil || len(ix.days) == 0
}

// Len is the number of scheduled days.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.days)
}

// Period is the nominal period the calendar was built with.
func (ix *Index) Period() int {
	if ix == nil {
		return 0
	}
	return ix.period
}

// Day returns the data for day n, if scheduled.
func (ix *Index) Day(n int) (domain.CalendarDay, bool) {
	if ix == nil {
		return domain.CalendarDay{}, false
	}
	d, ok := ix.days[n]
	return d, ok
}

// DayType is the first post's type if the day has posts, "Story" if it has
// only stories, and "Rest" otherwise.
func (ix *Index) DayType(n int) string {
	d, ok := ix.Day(n)
	switch {
	case ok && len(d.Posts) > 0:
		return d.Posts[0].Type
	case ok && len(d.Stories) > 0:
		return domain.DayTypeStory
	default:
		return domain.DayTypeRest
	}
}

// MaxDay is the larger of the nominal period and the highest day present,
// so trailing rest days omitted by the backend still render.
func (ix *Index) MaxDay() int {
	if ix == nil {
		return 0
	}
	return max(ix.period, ix.highest)
}

// Days returns the scheduled days in ascending order.
func (ix *Index) Days() []domain.CalendarDay {
	if ix == nil {
		return nil
	}
	out := make([]domain.CalendarDay, 0, len(ix.days))
	for _, d := range ix.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// DaySummary is one cell of a rendered calendar grid.
type DaySummary struct {
	Day     int    `json:"day"`
	Type    string `json:"type"`
	Posts   int    `json:"posts"`
	Stories int    `json:"stories"`
}

// Grid summarizes every day from 1 to MaxDay, rest days included.
func (ix *Index) Grid() []DaySummary {
	n := ix.MaxDay()
	out := make([]DaySummary, 0, n)
	for day := 1; day <= n; day++ {
		d, _ := ix.Day(day)
		out = append(out, DaySummary{
			Day:     day,
			Type:    ix.DayType(day),
			Posts:   len(d.Posts),
			Stories: len(d.Stories),
		})
	}
	return out
}
