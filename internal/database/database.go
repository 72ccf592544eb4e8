// Package database owns the GORM connection used by the dev gateway and the
// seeder. The client core never imports this; it only sees the gateway API.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trailtalk/trailtalk/internal/config"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/models"
)

// Initialize opens a Postgres connection from config.
func Initialize(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connected", zap.String("database", cfg.DBName))
	return db, nil
}

// InitializeMemory opens an in-memory SQLite database with all relations
// migrated. Used by tests and by the dev gateway's ephemeral mode.
func InitializeMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs auto-migration for all relations the gateway exposes.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			logger.Log.Warn("Could not create uuid-ossp extension", zap.Error(err))
		}
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes creates performance indexes beyond what the model tags declare.
func createIndexes(db *gorm.DB) error {
	// Feed queries scan posts newest-first, optionally by author
	db.Exec("CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at DESC)")

	// Interaction counts group by post_id; flag checks pair it with user_id
	db.Exec("CREATE INDEX IF NOT EXISTS idx_post_likes_post ON post_likes (post_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_reposts_post ON reposts (post_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_bookmarks_post ON bookmarks (post_id)")

	// Comment threads read in created_at order per post
	db.Exec("CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments (post_id, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_comments_user ON comments (user_id)")

	// Following-feed resolution starts from the follower side
	db.Exec("CREATE INDEX IF NOT EXISTS idx_follows_follower ON follows (follower_user_id)")

	return nil
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity.
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
