package store

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies the versioned schema. Callers hold the advisory
// migration lock so concurrent replicas do not race on the same IDs.
func runMigrations(db *gorm.DB, embeddingDim int) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&UserModel{}, &JournalEntryModel{}, &PrayerModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prayers", "journal_entries", "users")
			},
		},
		{
			ID: "0002_community",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CommunityPostModel{}, &PrayerWallModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prayer_wall", "community_posts")
			},
		},
		{
			ID: "0003_streak_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&StreakRecordModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("streak_records")
			},
		},
		{
			ID: "0004_bible_verses",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
					return fmt.Errorf("create pgvector extension: %w", err)
				}
				return tx.AutoMigrate(&BibleVerseModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("bible_verses")
			},
		},
		{
			ID: "0005_user_foreign_keys",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`
					DO $$
					BEGIN
						IF NOT EXISTS (
							SELECT 1 FROM information_schema.table_constraints
							WHERE table_schema = 'public' AND constraint_name = 'journal_entries_user_id_fkey'
						) THEN
							ALTER TABLE journal_entries
							ADD CONSTRAINT journal_entries_user_id_fkey
							FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;
						END IF;
						IF NOT EXISTS (
							SELECT 1 FROM information_schema.table_constraints
							WHERE table_schema = 'public' AND constraint_name = 'prayers_user_id_fkey'
						) THEN
							ALTER TABLE prayers
							ADD CONSTRAINT prayers_user_id_fkey
							FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;
						END IF;
						IF NOT EXISTS (
							SELECT 1 FROM information_schema.table_constraints
							WHERE table_schema = 'public' AND constraint_name = 'prayer_wall_post_id_fkey'
						) THEN
							ALTER TABLE prayer_wall
							ADD CONSTRAINT prayer_wall_post_id_fkey
							FOREIGN KEY (post_id) REFERENCES community_posts(id) ON DELETE CASCADE;
						END IF;
					END $$;
				`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`
					ALTER TABLE journal_entries DROP CONSTRAINT IF EXISTS journal_entries_user_id_fkey;
					ALTER TABLE prayers DROP CONSTRAINT IF EXISTS prayers_user_id_fkey;
					ALTER TABLE prayer_wall DROP CONSTRAINT IF EXISTS prayer_wall_post_id_fkey;
				`).Error
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// The column type follows the configured embedding model and may change
	// between deployments, so it is reconciled on every start.
	if err := db.Exec(fmt.Sprintf(
		"ALTER TABLE bible_verses ALTER COLUMN embedding TYPE vector(%d)", embeddingDim,
	)).Error; err != nil {
		return fmt.Errorf("alter verse embedding type: %w", err)
	}
	return nil
}
