package store

import (
	"time"

	"selah/pkg/domain"
)

// EntryQuery narrows ListEntries. Zero values mean no bound.
type EntryQuery struct {
	Since time.Time
	Limit int
}

// Store defines persistence for users, journal entries, prayers, community
// posts, streak records and the verse index. Every per-user lookup is
// scoped by user ID; a record owned by someone else is reported as absent.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// journal entries, newest date first
	CreateEntry(domain.JournalEntry) error
	ListEntries(userID string, q EntryQuery) ([]domain.JournalEntry, error)
	GetEntry(userID, id string) (domain.JournalEntry, bool, error)
	DeleteEntry(userID, id string) (bool, error)

	// prayers, newest first
	CreatePrayer(domain.Prayer) error
	ListPrayers(userID string) ([]domain.Prayer, error)
	GetPrayer(userID, id string) (domain.Prayer, bool, error)
	// AnswerPrayer moves an active prayer to answered; false when no active
	// prayer with that id belongs to userID.
	AnswerPrayer(userID, id, note string, at time.Time) (bool, error)
	DeletePrayer(userID, id string) (bool, error)

	// community; wall is stored with the post when non-nil
	SharePost(post domain.CommunityPost, wall *domain.PrayerWallItem) error
	ListPosts(limit int) ([]domain.CommunityPost, error)
	ListPrayerWall(limit int) ([]domain.PrayerWallItem, error)

	// streaks
	GetStreakRecord(userID string) (domain.StreakRecord, bool, error)
	RaiseLongestStreak(userID string, longest int, at time.Time) (int, error)

	// verse index
	UpsertVerse(v domain.BibleVerse, embedding []float32) error
	SearchVerses(embedding []float32, limit int, threshold float64) ([]domain.BibleVerse, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
