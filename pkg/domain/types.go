package domain

import "time"

type Mood string

const (
	MoodGrateful   Mood = "grateful"
	MoodPeaceful   Mood = "peaceful"
	MoodJoyful     Mood = "joyful"
	MoodHopeful    Mood = "hopeful"
	MoodReflective Mood = "reflective"
	MoodTroubled   Mood = "troubled"
	MoodAnxious    Mood = "anxious"
	MoodSeeking    Mood = "seeking"
)

// Valid reports whether m is empty or one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case "", MoodGrateful, MoodPeaceful, MoodJoyful, MoodHopeful,
		MoodReflective, MoodTroubled, MoodAnxious, MoodSeeking:
		return true
	}
	return false
}

type PrayerCategory string

const (
	CategoryThanksgiving PrayerCategory = "thanksgiving"
	CategoryIntercession PrayerCategory = "intercession"
	CategoryPetition     PrayerCategory = "petition"
	CategoryConfession   PrayerCategory = "confession"
	CategoryPraise       PrayerCategory = "praise"
	CategoryGuidance     PrayerCategory = "guidance"
)

// Valid reports whether c is a known category.
func (c PrayerCategory) Valid() bool {
	switch c {
	case CategoryThanksgiving, CategoryIntercession, CategoryPetition,
		CategoryConfession, CategoryPraise, CategoryGuidance:
		return true
	}
	return false
}

type PrayerStatus string

const (
	PrayerActive   PrayerStatus = "active"
	PrayerAnswered PrayerStatus = "answered"
)

type ShareType string

const (
	SharePost      ShareType = "post"
	SharePrayer    ShareType = "prayer"
	ShareTestimony ShareType = "testimony"
	SharePraise    ShareType = "praise"
)

// Valid reports whether s is a known share type.
func (s ShareType) Valid() bool {
	switch s {
	case SharePost, SharePrayer, ShareTestimony, SharePraise:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName returns the profile name, falling back to the email local part.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			if i == 0 {
				break
			}
			return u.Email[:i]
		}
	}
	if u.Email != "" {
		return u.Email
	}
	return "User"
}

// JournalEntry is one dated record. Date is the calendar day the entry
// belongs to and may differ from CreatedAt.
type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	Mood      Mood      `json:"mood,omitempty"`
	Gratitude []string  `json:"gratitude"`
	Content   string    `json:"content,omitempty"`
	Prayer    string    `json:"prayer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Prayer struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Request      string         `json:"request"`
	Category     PrayerCategory `json:"category"`
	Status       PrayerStatus   `json:"status"`
	AnsweredNote string         `json:"answeredNote,omitempty"`
	AnsweredDate *time.Time     `json:"answeredDate,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type CommunityPost struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	UserName       *string   `json:"userName"`
	Mood           Mood      `json:"mood,omitempty"`
	Gratitude      []string  `json:"gratitude"`
	Content        string    `json:"content,omitempty"`
	Prayer         string    `json:"prayer,omitempty"`
	ShareType      ShareType `json:"shareType"`
	IsAnonymous    bool      `json:"isAnonymous"`
	JournalEntryID string    `json:"journalEntryId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type PrayerWallItem struct {
	ID            string    `json:"id"`
	PostID        string    `json:"postId"`
	UserID        string    `json:"-"`
	PrayerRequest string    `json:"prayerRequest"`
	Anonymous     bool      `json:"anonymous"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StreakRecord is the durable per-user maximum streak.
type StreakRecord struct {
	UserID    string    `json:"userId"`
	Longest   int       `json:"longest"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StreakSnapshot is derived from a user's entries and never stored as-is.
type StreakSnapshot struct {
	Current       int        `json:"current"`
	Longest       int        `json:"longest"`
	LastEntry     *time.Time `json:"lastEntry"`
	WeeklyEntries int        `json:"weeklyEntries"`
}

type Testament string

const (
	OldTestament Testament = "old"
	NewTestament Testament = "new"
)

type BibleVerse struct {
	ID         string    `json:"id"`
	Book       string    `json:"book"`
	Chapter    int       `json:"chapter"`
	Verse      int       `json:"verse"`
	Text       string    `json:"text"`
	Testament  Testament `json:"testament,omitempty"`
	Similarity float64   `json:"similarity,omitempty"`
}
