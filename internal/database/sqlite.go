package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// Open connects to the SQLite database at dbPath and migrates the schema.
// The handle is returned rather than stashed in a package global so that
// tests and the composition root each own their database lifecycle.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database connected and migrated")
	return db, nil
}

// Migrate applies the schema and any custom data migrations.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.CollectionItem{},
		&models.CollectionGroup{},
		&models.SharedCollection{},
		&models.CollectionComment{},
		&models.CollectionCollaborator{},
		&models.AnalyticsCounter{},
		&KVEntry{},
		&Session{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return runDataMigrations(db)
}
