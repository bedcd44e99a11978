package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type JournalEntryModel struct {
	ID        string                      `gorm:"primaryKey"`
	UserID    string                      `gorm:"not null;index:idx_entries_user_date,priority:1"`
	EntryDate time.Time                   `gorm:"type:date;not null;index:idx_entries_user_date,priority:2"`
	Mood      string                      `gorm:"size:32"`
	Gratitude datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Content   string                      `gorm:"type:text"`
	Prayer    string                      `gorm:"type:text"`
	CreatedAt time.Time                   `gorm:"not null"`
	UpdatedAt time.Time                   `gorm:"not null"`
}

func (JournalEntryModel) TableName() string { return "journal_entries" }

type PrayerModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;index"`
	Request      string `gorm:"type:text;not null"`
	Category     string `gorm:"size:32;not null"`
	Status       string `gorm:"size:16;not null;index"`
	AnsweredNote string `gorm:"type:text"`
	AnsweredDate *time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (PrayerModel) TableName() string { return "prayers" }

type CommunityPostModel struct {
	ID             string                      `gorm:"primaryKey"`
	UserID         string                      `gorm:"not null;index"`
	UserName       *string                     `gorm:"size:255"`
	Mood           string                      `gorm:"size:32"`
	Gratitude      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Content        string                      `gorm:"type:text"`
	Prayer         string                      `gorm:"type:text"`
	ShareType      string                      `gorm:"size:16;not null"`
	IsAnonymous    bool                        `gorm:"not null"`
	JournalEntryID *string
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (CommunityPostModel) TableName() string { return "community_posts" }

type PrayerWallModel struct {
	ID            string    `gorm:"primaryKey"`
	PostID        string    `gorm:"not null;index"`
	UserID        string    `gorm:"not null"`
	PrayerRequest string    `gorm:"type:text;not null"`
	Anonymous     bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

func (PrayerWallModel) TableName() string { return "prayer_wall" }

type StreakRecordModel struct {
	UserID    string    `gorm:"primaryKey"`
	Longest   int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StreakRecordModel) TableName() string { return "streak_records" }

type BibleVerseModel struct {
	ID        string           `gorm:"primaryKey"`
	Book      string           `gorm:"not null;uniqueIndex:idx_verse_ref,priority:1"`
	Chapter   int              `gorm:"not null;uniqueIndex:idx_verse_ref,priority:2"`
	Verse     int              `gorm:"not null;uniqueIndex:idx_verse_ref,priority:3"`
	Text      string           `gorm:"type:text;not null"`
	Testament string           `gorm:"size:8"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time        `gorm:"not null"`
}

func (BibleVerseModel) TableName() string { return "bible_verses" }

// verseMatch is a search row: the verse plus its computed similarity.
type verseMatch struct {
	BibleVerseModel
	Similarity float64
}
