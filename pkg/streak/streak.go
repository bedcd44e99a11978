// Package streak derives streak statistics from dated journal entries.
//
// All day arithmetic is done on calendar dates: an entry date is read in
// its own location and "today" in the caller's location, so a change of
// clock offset never moves an entry to a different day.
package streak

import (
	"sort"
	"time"

	"selah/pkg/domain"
)

// WeekDays is the width of the trailing window counted by WeeklyEntries,
// today included.
const WeekDays = 7

// Calculate returns the streak snapshot for entries as seen on today.
// previousLongest is the durable maximum recorded earlier; the result's
// Longest never drops below it. Entries without a date are ignored.
// Multiple entries on one calendar day count as a single streak day.
func Calculate(entries []domain.JournalEntry, today time.Time, previousLongest int) domain.StreakSnapshot {
	if previousLongest < 0 {
		previousLongest = 0
	}
	dated := datedEntries(entries)
	if len(dated) == 0 {
		return domain.StreakSnapshot{Longest: previousLongest}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dayNumber(dated[i].Date) > dayNumber(dated[j].Date)
	})

	todayDay := dayNumber(today)
	last := dated[0].Date
	lastDay := dayNumber(last)

	current := 0
	if todayDay-lastDay <= 1 {
		current = 1
		prev := lastDay
		for _, e := range dated[1:] {
			day := dayNumber(e.Date)
			gap := prev - day
			if gap == 0 {
				continue
			}
			if gap > 1 {
				break
			}
			current++
			prev = day
		}
	}

	weekStart := todayDay - (WeekDays - 1)
	weekly := 0
	for _, e := range dated {
		if day := dayNumber(e.Date); day >= weekStart && day <= todayDay {
			weekly++
		}
	}

	return domain.StreakSnapshot{
		Current:       current,
		Longest:       max(current, previousLongest),
		LastEntry:     &last,
		WeeklyEntries: weekly,
	}
}

// LongestRun returns the longest run of consecutive calendar days that
// have at least one entry, anywhere in the history.
func LongestRun(entries []domain.JournalEntry) int {
	seen := make(map[int64]struct{}, len(entries))
	days := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		day := dayNumber(e.Date)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// CalendarDate truncates t to midnight UTC of its calendar day in loc.
// It is the canonical form in which entry dates are stored.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datedEntries(entries []domain.JournalEntry) []domain.JournalEntry {
	out := make([]domain.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
