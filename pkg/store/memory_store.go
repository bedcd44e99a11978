package store

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"selah/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user ID
	email   map[string]string      // email -> user ID
	entries map[string]domain.JournalEntry
	prayers map[string]domain.Prayer
	posts   []domain.CommunityPost
	wall    []domain.PrayerWallItem
	streaks map[string]domain.StreakRecord
	verses  map[string]memoryVerse // key: book/chapter/verse
}

type memoryVerse struct {
	verse     domain.BibleVerse
	embedding []float32
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		entries: make(map[string]domain.JournalEntry),
		prayers: make(map[string]domain.Prayer),
		streaks: make(map[string]domain.StreakRecord),
		verses:  make(map[string]memoryVerse),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) CreateEntry(e domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Gratitude = append([]string(nil), nonNil(e.Gratitude)...)
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryStore) ListEntries(userID string, q EntryQuery) ([]domain.JournalEntry, error) {
	m.mu.RLock()
	res := make([]domain.JournalEntry, 0)
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if !q.Since.IsZero() && e.Date.Before(q.Since) {
			continue
		}
		res = append(res, e)
	}
	m.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.After(res[j].Date)
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

func (m *MemoryStore) GetEntry(userID, id string) (domain.JournalEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return domain.JournalEntry{}, false, nil
	}
	return e, true, nil
}

func (m *MemoryStore) DeleteEntry(userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return false, nil
	}
	delete(m.entries, id)
	return true, nil
}

func (m *MemoryStore) CreatePrayer(p domain.Prayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prayers[p.ID] = p
	return nil
}

func (m *MemoryStore) ListPrayers(userID string) ([]domain.Prayer, error) {
	m.mu.RLock()
	res := make([]domain.Prayer, 0)
	for _, p := range m.prayers {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	m.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) GetPrayer(userID, id string) (domain.Prayer, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prayers[id]
	if !ok || p.UserID != userID {
		return domain.Prayer{}, false, nil
	}
	return p, true, nil
}

func (m *MemoryStore) AnswerPrayer(userID, id, note string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prayers[id]
	if !ok || p.UserID != userID || p.Status != domain.PrayerActive {
		return false, nil
	}
	answered := at
	p.Status = domain.PrayerAnswered
	p.AnsweredNote = note
	p.AnsweredDate = &answered
	p.UpdatedAt = at
	m.prayers[id] = p
	return true, nil
}

func (m *MemoryStore) DeletePrayer(userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prayers[id]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(m.prayers, id)
	return true, nil
}

func (m *MemoryStore) SharePost(post domain.CommunityPost, wall *domain.PrayerWallItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, post)
	if wall != nil {
		m.wall = append(m.wall, *wall)
	}
	return nil
}

func (m *MemoryStore) ListPosts(limit int) ([]domain.CommunityPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.CommunityPost, 0, len(m.posts))
	for i := len(m.posts) - 1; i >= 0 && (limit <= 0 || len(res) < limit); i-- {
		res = append(res, m.posts[i])
	}
	return res, nil
}

func (m *MemoryStore) ListPrayerWall(limit int) ([]domain.PrayerWallItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.PrayerWallItem, 0, len(m.wall))
	for i := len(m.wall) - 1; i >= 0 && (limit <= 0 || len(res) < limit); i-- {
		res = append(res, m.wall[i])
	}
	return res, nil
}

func (m *MemoryStore) GetStreakRecord(userID string) (domain.StreakRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.streaks[userID]
	return r, ok, nil
}

func (m *MemoryStore) RaiseLongestStreak(userID string, longest int, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.streaks[userID]
	if !ok {
		r = domain.StreakRecord{UserID: userID, UpdatedAt: at.UTC()}
	}
	if longest > r.Longest {
		r.Longest = longest
		r.UpdatedAt = at.UTC()
	}
	m.streaks[userID] = r
	return r.Longest, nil
}

func (m *MemoryStore) UpsertVerse(v domain.BibleVerse, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := verseKey(v)
	if prev, ok := m.verses[key]; ok {
		v.ID = prev.verse.ID
	}
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}
	m.verses[key] = memoryVerse{verse: v, embedding: append([]float32(nil), embedding...)}
	return nil
}

// SearchVerses ranks by cosine similarity, matching the Postgres query.
func (m *MemoryStore) SearchVerses(embedding []float32, limit int, threshold float64) ([]domain.BibleVerse, error) {
	if limit <= 0 {
		return []domain.BibleVerse{}, nil
	}
	m.mu.RLock()
	res := make([]domain.BibleVerse, 0)
	for _, mv := range m.verses {
		sim := cosineSimilarity(embedding, mv.embedding)
		if sim <= threshold {
			continue
		}
		v := mv.verse
		v.Similarity = sim
		res = append(res, v)
	}
	m.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Similarity > res[j].Similarity })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func verseKey(v domain.BibleVerse) string {
	return strings.ToLower(v.Book) + "/" + strconv.Itoa(v.Chapter) + "/" + strconv.Itoa(v.Verse)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
