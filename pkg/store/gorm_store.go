package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"selah/pkg/domain"
)

const migrateLockID int64 = 51734209

const defaultEmbeddingDim = 768

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the verse embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormStore opens the DB and applies pending migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim := opts.EmbeddingDim
	if embeddingDim <= 0 {
		embeddingDim = defaultEmbeddingDim
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return runMigrations(tx, embeddingDim)
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateEntry stores a new journal entry.
func (s *GormStore) CreateEntry(e domain.JournalEntry) error {
	model := entryToModel(e)
	return s.db.Create(&model).Error
}

// ListEntries returns a user's entries ordered by entry date, newest first.
func (s *GormStore) ListEntries(userID string, q EntryQuery) ([]domain.JournalEntry, error) {
	tx := s.db.Where("user_id = ?", userID)
	if !q.Since.IsZero() {
		tx = tx.Where("entry_date >= ?", q.Since)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var models []JournalEntryModel
	if err := tx.Order("entry_date DESC").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.JournalEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, entryFromModel(m))
	}
	return entries, nil
}

// GetEntry returns one entry owned by userID.
func (s *GormStore) GetEntry(userID, id string) (domain.JournalEntry, bool, error) {
	var model JournalEntryModel
	if err := s.db.First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.JournalEntry{}, false, nil
		}
		return domain.JournalEntry{}, false, err
	}
	return entryFromModel(model), true, nil
}

// DeleteEntry removes an entry owned by userID and reports whether it existed.
func (s *GormStore) DeleteEntry(userID, id string) (bool, error) {
	res := s.db.Delete(&JournalEntryModel{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreatePrayer stores a new prayer request.
func (s *GormStore) CreatePrayer(p domain.Prayer) error {
	model := prayerToModel(p)
	return s.db.Create(&model).Error
}

// ListPrayers returns a user's prayers, newest first.
func (s *GormStore) ListPrayers(userID string) ([]domain.Prayer, error) {
	var models []PrayerModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	prayers := make([]domain.Prayer, 0, len(models))
	for _, m := range models {
		prayers = append(prayers, prayerFromModel(m))
	}
	return prayers, nil
}

// GetPrayer returns one prayer owned by userID.
func (s *GormStore) GetPrayer(userID, id string) (domain.Prayer, bool, error) {
	var model PrayerModel
	if err := s.db.First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Prayer{}, false, nil
		}
		return domain.Prayer{}, false, err
	}
	return prayerFromModel(model), true, nil
}

// AnswerPrayer sets status, note and date in one conditional update, so of
// several concurrent answers only one matches the active row.
func (s *GormStore) AnswerPrayer(userID, id, note string, at time.Time) (bool, error) {
	res := s.db.Model(&PrayerModel{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, string(domain.PrayerActive)).
		Updates(map[string]any{
			"status":        string(domain.PrayerAnswered),
			"answered_note": note,
			"answered_date": at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeletePrayer removes a prayer owned by userID.
func (s *GormStore) DeletePrayer(userID, id string) (bool, error) {
	res := s.db.Delete(&PrayerModel{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SharePost stores a community post and, when given, its prayer wall row
// in one transaction.
func (s *GormStore) SharePost(post domain.CommunityPost, wall *domain.PrayerWallItem) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model := postToModel(post)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if wall == nil {
			return nil
		}
		wallModel := wallToModel(*wall)
		return tx.Create(&wallModel).Error
	})
}

// ListPosts returns the newest community posts.
func (s *GormStore) ListPosts(limit int) ([]domain.CommunityPost, error) {
	var models []CommunityPostModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	posts := make([]domain.CommunityPost, 0, len(models))
	for _, m := range models {
		posts = append(posts, postFromModel(m))
	}
	return posts, nil
}

// ListPrayerWall returns the newest prayer wall items.
func (s *GormStore) ListPrayerWall(limit int) ([]domain.PrayerWallItem, error) {
	var models []PrayerWallModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.PrayerWallItem, 0, len(models))
	for _, m := range models {
		items = append(items, wallFromModel(m))
	}
	return items, nil
}

// GetStreakRecord returns the durable streak record for a user.
func (s *GormStore) GetStreakRecord(userID string) (domain.StreakRecord, bool, error) {
	var model StreakRecordModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StreakRecord{}, false, nil
		}
		return domain.StreakRecord{}, false, err
	}
	return domain.StreakRecord{UserID: model.UserID, Longest: model.Longest, UpdatedAt: model.UpdatedAt}, true, nil
}

// RaiseLongestStreak records longest if it exceeds the stored value and
// returns the value now stored. The stored value never decreases.
func (s *GormStore) RaiseLongestStreak(userID string, longest int, at time.Time) (int, error) {
	if longest < 0 {
		longest = 0
	}
	var stored int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		model := StreakRecordModel{UserID: userID, Longest: longest, UpdatedAt: at.UTC()}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "longest"}, Value: gorm.Expr("GREATEST(streak_records.longest, EXCLUDED.longest)")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr(
					"CASE WHEN EXCLUDED.longest > streak_records.longest THEN EXCLUDED.updated_at ELSE streak_records.updated_at END",
				)},
			},
		}).Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&StreakRecordModel{}).Where("user_id = ?", userID).Pluck("longest", &stored).Error
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// UpsertVerse stores a verse and its embedding, keyed by reference.
func (s *GormStore) UpsertVerse(v domain.BibleVerse, embedding []float32) error {
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return err
	}
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}
	vec := pgvector.NewVector(embedding)
	model := BibleVerseModel{
		ID:        v.ID,
		Book:      v.Book,
		Chapter:   v.Chapter,
		Verse:     v.Verse,
		Text:      v.Text,
		Testament: string(v.Testament),
		Embedding: &vec,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book"}, {Name: "chapter"}, {Name: "verse"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "testament", "embedding"}),
	}).Create(&model).Error
}

// SearchVerses returns verses whose cosine similarity to embedding is
// above threshold, most similar first.
func (s *GormStore) SearchVerses(embedding []float32, limit int, threshold float64) ([]domain.BibleVerse, error) {
	if limit <= 0 {
		return []domain.BibleVerse{}, nil
	}
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []verseMatch
	if err := s.db.Model(&BibleVerseModel{}).
		Select("*, 1 - (embedding <=> ?) AS similarity", vec).
		Where("embedding IS NOT NULL AND 1 - (embedding <=> ?) > ?", vec, threshold).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	verses := make([]domain.BibleVerse, 0, len(rows))
	for _, row := range rows {
		v := verseFromModel(row.BibleVerseModel)
		v.Similarity = row.Similarity
		verses = append(verses, v)
	}
	return verses, nil
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.embeddingDim > 0 && len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.embeddingDim)
	}
	return nil
}
