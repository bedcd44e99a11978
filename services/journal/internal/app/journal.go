package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"selah/internal/util"
	"selah/pkg/domain"
	"selah/pkg/state"
	"selah/pkg/store"
	"selah/pkg/streak"
)

const (
	maxEntryRunes = 20000
	// maxProjectionLoads bounds reloads while writers keep racing a load.
	maxProjectionLoads = 3
)

// journalState is the per-user projection. Entries are kept newest date
// first; Longest mirrors the durable streak record.
type journalState struct {
	Entries []domain.JournalEntry
	Longest int
	Today   time.Time
}

type journal struct {
	state    *state.Container[journalState]
	streak   *state.Container[domain.StreakSnapshot]
	stop     func()
	loadedAt time.Time
}

func newJournal(initial journalState, loadedAt time.Time) *journal {
	src := state.New(initial)
	derived, stop := state.Derive(src, func(s journalState) domain.StreakSnapshot {
		return streak.Calculate(s.Entries, s.Today, s.Longest)
	})
	return &journal{state: src, streak: derived, stop: stop, loadedAt: loadedAt}
}

// EntryInput is the caller-supplied part of a journal entry.
type EntryInput struct {
	// Date is YYYY-MM-DD or RFC 3339; blank means today.
	Date      string
	Mood      domain.Mood
	Gratitude []string
	Content   string
	Prayer    string
}

// EntryFilter narrows ListEntries. Since is a calendar day, inclusive.
type EntryFilter struct {
	Since time.Time
	Limit int
}

// AddEntry stores a new entry and updates the user's projection.
func (a *App) AddEntry(ctx context.Context, userID string, in EntryInput) (domain.JournalEntry, error) {
	entry, err := a.buildEntry(userID, in)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if err := a.store.CreateEntry(entry); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("create entry: %w", err)
	}
	a.updateJournal(userID, func(s journalState) journalState {
		entries := make([]domain.JournalEntry, 0, len(s.Entries)+1)
		entries = append(entries, entry)
		for _, e := range s.Entries {
			if e.ID != entry.ID {
				entries = append(entries, e)
			}
		}
		sortEntries(entries)
		s.Entries = entries
		return s
	})
	a.scheduleReconcile(ctx, userID)
	return entry, nil
}

// ListEntries returns the user's entries, newest date first.
func (a *App) ListEntries(ctx context.Context, userID string, filter EntryFilter) ([]domain.JournalEntry, error) {
	j, err := a.journal(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := j.state.Get().Entries
	out := make([]domain.JournalEntry, 0, len(entries))
	since := filter.Since
	if !since.IsZero() {
		since = streak.CalendarDate(since, time.UTC)
	}
	for _, e := range entries {
		if !since.IsZero() && e.Date.Before(since) {
			break
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// GetEntry returns one entry owned by the user.
func (a *App) GetEntry(userID, id string) (domain.JournalEntry, error) {
	entry, ok, err := a.store.GetEntry(userID, id)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("get entry: %w", err)
	}
	if !ok {
		return domain.JournalEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

// DeleteEntry removes an entry owned by the user. Entries of other users
// are reported as not found.
func (a *App) DeleteEntry(ctx context.Context, userID, id string) error {
	ok, err := a.store.DeleteEntry(userID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	a.updateJournal(userID, func(s journalState) journalState {
		entries := make([]domain.JournalEntry, 0, len(s.Entries))
		for _, e := range s.Entries {
			if e.ID != id {
				entries = append(entries, e)
			}
		}
		s.Entries = entries
		return s
	})
	a.scheduleReconcile(ctx, userID)
	return nil
}

// Streak returns the user's streak snapshot as of today. When the current
// run beats the durable record the record is raised first.
func (a *App) Streak(ctx context.Context, userID string) (domain.StreakSnapshot, error) {
	j, err := a.journal(ctx, userID)
	if err != nil {
		return domain.StreakSnapshot{}, err
	}
	today := a.Today()
	if !j.state.Get().Today.Equal(today) {
		j.state.Update(func(s journalState) journalState {
			s.Today = today
			return s
		})
	}
	snap := j.streak.Get()
	if snap.Longest > j.state.Get().Longest {
		stored, err := a.store.RaiseLongestStreak(userID, snap.Longest, a.now())
		if err != nil {
			return domain.StreakSnapshot{}, fmt.Errorf("raise longest streak: %w", err)
		}
		a.mergeLongest(j, stored)
		snap = j.streak.Get()
	}
	return snap, nil
}

// ReconcileStreak recomputes the longest run over the user's full history
// and raises the durable record to it. Records never decrease.
func (a *App) ReconcileStreak(ctx context.Context, userID string) error {
	entries, err := a.store.ListEntries(userID, store.EntryQuery{})
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	stored, err := a.store.RaiseLongestStreak(userID, streak.LongestRun(entries), a.now())
	if err != nil {
		return fmt.Errorf("raise longest streak: %w", err)
	}
	a.updateJournal(userID, func(s journalState) journalState {
		s.Longest = max(s.Longest, stored)
		return s
	})
	util.LoggerFromContext(ctx).Debug("streak reconciled", "user_id", userID, "longest", stored)
	return nil
}

func (a *App) mergeLongest(j *journal, longest int) {
	j.state.Update(func(s journalState) journalState {
		s.Longest = max(s.Longest, longest)
		return s
	})
}

// updateJournal applies fn to the user's projection when one is loaded.
// Unloaded users pick the change up from the store on their next read.
func (a *App) updateJournal(userID string, fn func(journalState) journalState) {
	a.mu.Lock()
	a.generations[userID]++
	j := a.journals[userID]
	a.mu.Unlock()
	if j != nil {
		j.state.Update(fn)
	}
}

func (a *App) scheduleReconcile(ctx context.Context, userID string) {
	logger := util.LoggerFromContext(ctx)
	if a.queue != nil {
		_, err := a.queue.Enqueue(ctx, userID)
		if err == nil {
			return
		}
		logger.Warn("enqueue streak reconcile failed, running inline", "user_id", userID, "err", err)
	}
	if err := a.ReconcileStreak(ctx, userID); err != nil {
		logger.Warn("streak reconcile failed", "user_id", userID, "err", err)
	}
}

// journal returns the user's projection, loading it from the store when
// absent or older than the projection TTL.
func (a *App) journal(ctx context.Context, userID string) (*journal, error) {
	a.mu.Lock()
	j := a.journals[userID]
	a.mu.Unlock()
	if j != nil && a.now().Sub(j.loadedAt) < a.projectionTTL {
		return j, nil
	}
	v, err, _ := a.loads.Do(userID, func() (any, error) {
		var loaded *journal
		for attempt := 0; attempt < maxProjectionLoads; attempt++ {
			gen := a.generation(userID)
			var err error
			if loaded, err = a.loadJournal(userID); err != nil {
				return nil, err
			}
			if a.storeJournal(userID, loaded, gen) {
				util.LoggerFromContext(ctx).Debug("journal projection loaded", "user_id", userID, "entries", len(loaded.state.Get().Entries))
				return loaded, nil
			}
			loaded.stop()
		}
		// Writers kept landing mid-read; serve a fresh read without caching it.
		util.LoggerFromContext(ctx).Debug("journal projection contended", "user_id", userID)
		return a.loadJournal(userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*journal), nil
}

func (a *App) generation(userID string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[userID]
}

func (a *App) loadJournal(userID string) (*journal, error) {
	entries, err := a.store.ListEntries(userID, store.EntryQuery{})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	record, _, err := a.store.GetStreakRecord(userID)
	if err != nil {
		return nil, fmt.Errorf("get streak record: %w", err)
	}
	sortEntries(entries)
	return newJournal(journalState{
		Entries: entries,
		Longest: record.Longest,
		Today:   a.Today(),
	}, a.now()), nil
}

// storeJournal caches j unless the user's entries changed after gen was
// read, in which case j may predate the change and is rejected.
func (a *App) storeJournal(userID string, j *journal, gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generations[userID] != gen {
		return false
	}
	if prev, ok := a.journals[userID]; ok {
		prev.stop()
	} else if len(a.journals) >= a.maxProjections {
		var oldestID string
		var oldest time.Time
		for id, candidate := range a.journals {
			if oldestID == "" || candidate.loadedAt.Before(oldest) {
				oldestID, oldest = id, candidate.loadedAt
			}
		}
		a.journals[oldestID].stop()
		delete(a.journals, oldestID)
	}
	a.journals[userID] = j
	return true
}

func (a *App) buildEntry(userID string, in EntryInput) (domain.JournalEntry, error) {
	now := a.now()
	date := streak.CalendarDate(now, a.loc)
	if raw := strings.TrimSpace(in.Date); raw != "" {
		parsed, err := a.parseEntryDate(raw)
		if err != nil {
			return domain.JournalEntry{}, ErrInvalidDate
		}
		date = parsed
	}
	if !in.Mood.Valid() {
		return domain.JournalEntry{}, ErrInvalidMood
	}
	gratitude := make([]string, 0, len(in.Gratitude))
	for _, g := range in.Gratitude {
		if g = strings.TrimSpace(g); g != "" {
			gratitude = append(gratitude, g)
		}
	}
	content := strings.TrimSpace(in.Content)
	prayer := strings.TrimSpace(in.Prayer)
	if content == "" && len(gratitude) == 0 {
		return domain.JournalEntry{}, ErrEntryEmpty
	}
	if utf8.RuneCountInString(content) > maxEntryRunes || utf8.RuneCountInString(prayer) > maxEntryRunes {
		return domain.JournalEntry{}, ErrEntryTooLong
	}
	return domain.JournalEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		Mood:      in.Mood,
		Gratitude: gratitude,
		Content:   content,
		Prayer:    prayer,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// parseEntryDate accepts a plain calendar date or an RFC 3339 instant and
// returns its canonical calendar date. A plain date is taken as written;
// an instant is placed on its day in the configured location.
func (a *App) parseEntryDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return streak.CalendarDate(t, a.loc), nil
}

func sortEntries(entries []domain.JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
