package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"selah/pkg/domain"
)

// CreatePrayer records a new active prayer request.
func (a *App) CreatePrayer(userID, request string, category domain.PrayerCategory) (domain.Prayer, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return domain.Prayer{}, ErrPrayerRequired
	}
	if utf8.RuneCountInString(request) > maxEntryRunes {
		return domain.Prayer{}, ErrEntryTooLong
	}
	if !category.Valid() {
		return domain.Prayer{}, ErrInvalidCategory
	}
	now := a.now().UTC()
	prayer := domain.Prayer{
		ID:        uuid.NewString(),
		UserID:    userID,
		Request:   request,
		Category:  category,
		Status:    domain.PrayerActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreatePrayer(prayer); err != nil {
		return domain.Prayer{}, fmt.Errorf("create prayer: %w", err)
	}
	return prayer, nil
}

// ListPrayers returns the user's prayers, newest first.
func (a *App) ListPrayers(userID string) ([]domain.Prayer, error) {
	prayers, err := a.store.ListPrayers(userID)
	if err != nil {
		return nil, fmt.Errorf("list prayers: %w", err)
	}
	return prayers, nil
}

// AnswerPrayer marks a prayer answered with note. The note and answered
// date are set together and the transition cannot be undone.
func (a *App) AnswerPrayer(userID, id, note string) (domain.Prayer, error) {
	prayer, ok, err := a.store.GetPrayer(userID, id)
	if err != nil {
		return domain.Prayer{}, fmt.Errorf("get prayer: %w", err)
	}
	if !ok {
		return domain.Prayer{}, ErrPrayerNotFound
	}
	if prayer.Status == domain.PrayerAnswered {
		return domain.Prayer{}, ErrPrayerAlreadyAnswered
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxEntryRunes {
		return domain.Prayer{}, ErrEntryTooLong
	}
	now := a.now().UTC()
	answered, err := a.store.AnswerPrayer(userID, id, note, now)
	if err != nil {
		return domain.Prayer{}, fmt.Errorf("answer prayer: %w", err)
	}
	if !answered {
		// Lost to a concurrent answer or delete.
		if _, ok, err := a.store.GetPrayer(userID, id); err == nil && !ok {
			return domain.Prayer{}, ErrPrayerNotFound
		}
		return domain.Prayer{}, ErrPrayerAlreadyAnswered
	}
	prayer.Status = domain.PrayerAnswered
	prayer.AnsweredNote = note
	prayer.AnsweredDate = &now
	prayer.UpdatedAt = now
	return prayer, nil
}

// DeletePrayer removes a prayer owned by the user.
func (a *App) DeletePrayer(userID, id string) error {
	ok, err := a.store.DeletePrayer(userID, id)
	if err != nil {
		return fmt.Errorf("delete prayer: %w", err)
	}
	if !ok {
		return ErrPrayerNotFound
	}
	return nil
}
