package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"selah/pkg/domain"
)

// Dashboard is the home screen summary for one user.
type Dashboard struct {
	Entries         []domain.JournalEntry `json:"entries"`
	Prayers         []domain.Prayer       `json:"prayers"`
	Streak          domain.StreakSnapshot `json:"streak"`
	ActivePrayers   int                   `json:"activePrayers"`
	AnsweredPrayers int                   `json:"answeredPrayers"`
}

// Dashboard loads recent entries, prayers and the streak concurrently.
func (a *App) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	var out Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := a.ListEntries(gctx, userID, EntryFilter{Limit: a.recentEntries})
		out.Entries = entries
		return err
	})
	g.Go(func() error {
		prayers, err := a.ListPrayers(userID)
		out.Prayers = prayers
		return err
	})
	g.Go(func() error {
		snap, err := a.Streak(gctx, userID)
		out.Streak = snap
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	for _, p := range out.Prayers {
		if p.Status == domain.PrayerAnswered {
			out.AnsweredPrayers++
		} else {
			out.ActivePrayers++
		}
	}
	return out, nil
}
