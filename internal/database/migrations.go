package database

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// KVEntry is the durable string key-value table backing the local store.
type KVEntry struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time
}

// Session is an opaque bearer token bound to a user.
type Session struct {
	Token     string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// runDataMigrations applies idempotent data fixups after schema changes.
func runDataMigrations(db *gorm.DB) error {
	if err := backfillDefaultGroups(db); err != nil {
		return err
	}
	if err := normalizeGroupNames(db); err != nil {
		return err
	}
	return nil
}

// backfillDefaultGroups materializes a "Default" group row for every user
// that has collection items but no group rows. Older data predates the
// collection_groups table.
func backfillDefaultGroups(db *gorm.DB) error {
	var userIDs []string
	if err := db.Model(&models.CollectionItem{}).Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}

	created := 0
	for _, uid := range userIDs {
		var count int64
		db.Model(&models.CollectionGroup{}).Where("user_id = ? AND name = ?", uid, models.DefaultGroupName).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&models.CollectionGroup{UserID: uid, Name: models.DefaultGroupName}).Error; err != nil {
			log.Printf("Migration: failed to backfill default group for user %s: %v", uid, err)
			continue
		}
		created++
	}

	if created > 0 {
		log.Printf("Migration: backfilled %d default groups", created)
	}
	return nil
}

// normalizeGroupNames points items with a NULL or empty group at the
// default group so the unique index holds.
func normalizeGroupNames(db *gorm.DB) error {
	result := db.Exec(`UPDATE collection_items SET group_name = ? WHERE group_name IS NULL OR group_name = ''`, models.DefaultGroupName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Migration: normalized %d item group names", result.RowsAffected)
	}
	return nil
}
