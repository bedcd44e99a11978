package store

import (
	"strings"

	"gorm.io/datatypes"

	"selah/pkg/domain"
)

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func entryToModel(e domain.JournalEntry) JournalEntryModel {
	return JournalEntryModel{
		ID:        e.ID,
		UserID:    e.UserID,
		EntryDate: e.Date,
		Mood:      string(e.Mood),
		Gratitude: datatypes.NewJSONSlice(nonNil(e.Gratitude)),
		Content:   e.Content,
		Prayer:    e.Prayer,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func entryFromModel(m JournalEntryModel) domain.JournalEntry {
	return domain.JournalEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		Date:      m.EntryDate.UTC(),
		Mood:      domain.Mood(m.Mood),
		Gratitude: nonNil([]string(m.Gratitude)),
		Content:   m.Content,
		Prayer:    m.Prayer,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func prayerToModel(p domain.Prayer) PrayerModel {
	return PrayerModel{
		ID:           p.ID,
		UserID:       p.UserID,
		Request:      p.Request,
		Category:     string(p.Category),
		Status:       string(p.Status),
		AnsweredNote: p.AnsweredNote,
		AnsweredDate: p.AnsweredDate,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func prayerFromModel(m PrayerModel) domain.Prayer {
	status := domain.PrayerStatus(m.Status)
	if status == "" {
		status = domain.PrayerActive
	}
	return domain.Prayer{
		ID:           m.ID,
		UserID:       m.UserID,
		Request:      m.Request,
		Category:     domain.PrayerCategory(m.Category),
		Status:       status,
		AnsweredNote: m.AnsweredNote,
		AnsweredDate: m.AnsweredDate,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func postToModel(p domain.CommunityPost) CommunityPostModel {
	var entryID *string
	if id := strings.TrimSpace(p.JournalEntryID); id != "" {
		entryID = &id
	}
	return CommunityPostModel{
		ID:             p.ID,
		UserID:         p.UserID,
		UserName:       p.UserName,
		Mood:           string(p.Mood),
		Gratitude:      datatypes.NewJSONSlice(nonNil(p.Gratitude)),
		Content:        p.Content,
		Prayer:         p.Prayer,
		ShareType:      string(p.ShareType),
		IsAnonymous:    p.IsAnonymous,
		JournalEntryID: entryID,
		CreatedAt:      p.CreatedAt,
	}
}

func postFromModel(m CommunityPostModel) domain.CommunityPost {
	entryID := ""
	if m.JournalEntryID != nil {
		entryID = *m.JournalEntryID
	}
	return domain.CommunityPost{
		ID:             m.ID,
		UserID:         m.UserID,
		UserName:       m.UserName,
		Mood:           domain.Mood(m.Mood),
		Gratitude:      nonNil([]string(m.Gratitude)),
		Content:        m.Content,
		Prayer:         m.Prayer,
		ShareType:      domain.ShareType(m.ShareType),
		IsAnonymous:    m.IsAnonymous,
		JournalEntryID: entryID,
		CreatedAt:      m.CreatedAt,
	}
}

func wallToModel(w domain.PrayerWallItem) PrayerWallModel {
	return PrayerWallModel{
		ID:            w.ID,
		PostID:        w.PostID,
		UserID:        w.UserID,
		PrayerRequest: w.PrayerRequest,
		Anonymous:     w.Anonymous,
		CreatedAt:     w.CreatedAt,
	}
}

func wallFromModel(m PrayerWallModel) domain.PrayerWallItem {
	return domain.PrayerWallItem{
		ID:            m.ID,
		PostID:        m.PostID,
		UserID:        m.UserID,
		PrayerRequest: m.PrayerRequest,
		Anonymous:     m.Anonymous,
		CreatedAt:     m.CreatedAt,
	}
}

func verseFromModel(m BibleVerseModel) domain.BibleVerse {
	return domain.BibleVerse{
		ID:        m.ID,
		Book:      m.Book,
		Chapter:   m.Chapter,
		Verse:     m.Verse,
		Text:      m.Text,
		Testament: domain.Testament(m.Testament),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
