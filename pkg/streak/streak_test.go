package streak

import (
	"testing"
	"time"

	"selah/pkg/domain"
)

var today = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

func daysAgo(n int) domain.JournalEntry {
	return domain.JournalEntry{Date: CalendarDate(today.AddDate(0, 0, -n), time.UTC)}
}

func entriesAt(offsets ...int) []domain.JournalEntry {
	out := make([]domain.JournalEntry, 0, len(offsets))
	for _, n := range offsets {
		out = append(out, daysAgo(n))
	}
	return out
}

func TestCalculateEmpty(t *testing.T) {
	got := Calculate(nil, today, 0)
	if got.Current != 0 || got.Longest != 0 || got.LastEntry != nil || got.WeeklyEntries != 0 {
		t.Fatalf("expected zero snapshot, got %+v", got)
	}
}

func TestCalculateCurrent(t *testing.T) {
	cases := []struct {
		name    string
		offsets []int
		want    int
	}{
		{"single today", []int{0}, 1},
		{"single yesterday", []int{1}, 1},
		{"lapsed two days", []int{2}, 0},
		{"run ending today", []int{0, 1, 2, 3, 4}, 5},
		{"run ending yesterday", []int{1, 2, 3}, 3},
		{"unordered input", []int{2, 0, 1}, 3},
		{"gap of one day keeps run", []int{0, 1}, 2},
		{"gap of two days breaks run", []int{0, 2, 3}, 1},
		{"old history ignored after lapse", []int{3, 4, 5, 6}, 0},
		{"run stops at first gap", []int{0, 1, 3, 4, 5, 6}, 2},
		{"same day collapsed", []int{0, 0, 1, 1, 2}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(entriesAt(tc.offsets...), today, 0)
			if got.Current != tc.want {
				t.Fatalf("current = %d, want %d", got.Current, tc.want)
			}
			if got.Longest < got.Current {
				t.Fatalf("longest %d below current %d", got.Longest, got.Current)
			}
		})
	}
}

func TestCalculateWeeklyBoundary(t *testing.T) {
	got := Calculate(entriesAt(0, 3, 6, 7, 10), today, 0)
	if got.WeeklyEntries != 3 {
		t.Fatalf("weeklyEntries = %d, want 3", got.WeeklyEntries)
	}
	got = Calculate(entriesAt(0, 0, 6), today, 0)
	if got.WeeklyEntries != 3 {
		t.Fatalf("weeklyEntries counts entries, got %d want 3", got.WeeklyEntries)
	}
}

func TestCalculateLongestUsesPrevious(t *testing.T) {
	got := Calculate(entriesAt(0, 1), today, 9)
	if got.Longest != 9 {
		t.Fatalf("longest = %d, want 9", got.Longest)
	}
	got = Calculate(entriesAt(0, 1, 2), today, 2)
	if got.Longest != 3 {
		t.Fatalf("longest = %d, want 3", got.Longest)
	}
	got = Calculate(nil, today, 4)
	if got.Longest != 4 || got.Current != 0 {
		t.Fatalf("empty with history: got %+v", got)
	}
}

func TestCalculateLastEntry(t *testing.T) {
	entries := entriesAt(5, 2, 9)
	got := Calculate(entries, today, 0)
	if got.LastEntry == nil {
		t.Fatal("expected last entry")
	}
	if want := daysAgo(2).Date; !got.LastEntry.Equal(want) {
		t.Fatalf("lastEntry = %v, want %v", got.LastEntry, want)
	}
}

func TestCalculateSkipsUndatedEntries(t *testing.T) {
	entries := append(entriesAt(0, 1), domain.JournalEntry{ID: "broken"})
	got := Calculate(entries, today, 0)
	if got.Current != 2 || got.WeeklyEntries != 2 {
		t.Fatalf("undated entry should be ignored, got %+v", got)
	}
	got = Calculate([]domain.JournalEntry{{ID: "only-broken"}}, today, 0)
	if got.LastEntry != nil || got.Current != 0 {
		t.Fatalf("expected zero snapshot, got %+v", got)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	entries := entriesAt(3, 0, 1, 1, 8)
	first := Calculate(entries, today, 1)
	second := Calculate(entries, today, 1)
	if first.Current != second.Current || first.Longest != second.Longest ||
		first.WeeklyEntries != second.WeeklyEntries || !first.LastEntry.Equal(*second.LastEntry) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if !entries[0].Date.Equal(daysAgo(3).Date) {
		t.Fatal("input slice must not be reordered")
	}
}

func TestCalculateUsesCalendarDays(t *testing.T) {
	// Late-evening "today" and an early-morning entry yesterday are one day apart.
	lateToday := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	entry := domain.JournalEntry{Date: time.Date(2024, 3, 14, 0, 1, 0, 0, time.UTC)}
	got := Calculate([]domain.JournalEntry{entry}, lateToday, 0)
	if got.Current != 1 {
		t.Fatalf("current = %d, want 1", got.Current)
	}
}

func TestLongestRun(t *testing.T) {
	cases := []struct {
		name    string
		offsets []int
		want    int
	}{
		{"empty", nil, 0},
		{"single", []int{40}, 1},
		{"older run wins", []int{0, 1, 20, 21, 22, 23}, 4},
		{"duplicates collapse", []int{5, 5, 6, 6, 7}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LongestRun(entriesAt(tc.offsets...)); got != tc.want {
				t.Fatalf("LongestRun = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
	got := CalendarDate(instant, loc)
	want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("CalendarDate = %v, want %v", got, want)
	}
}
