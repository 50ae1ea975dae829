package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/metrics"
	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// Share link lifetimes selectable at creation time.
var shareExpiries = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

const defaultShareExpiry = 7 * 24 * time.Hour

// ErrShareNotFound is returned when a token does not resolve to an
// active share.
var ErrShareNotFound = errors.New("share not found or expired")

// ShareService manages expiring share links to collection groups.
type ShareService struct {
	db            *gorm.DB
	purgeInterval time.Duration
}

// NewShareService creates a share service.
func NewShareService(db *gorm.DB) *ShareService {
	return &ShareService{db: db, purgeInterval: time.Hour}
}

// CreateShare issues a share token for one of the user's groups.
// expiresIn is one of "1h", "24h", "7d", "30d"; anything else gets the
// default of 7 days.
func (s *ShareService) CreateShare(userID, groupName, expiresIn string) (*models.SharedCollection, error) {
	if userID == "" {
		return nil, errors.New("authentication required")
	}
	if groupName == "" {
		groupName = models.DefaultGroupName
	}

	var count int64
	if err := s.db.Model(&models.CollectionGroup{}).
		Where("user_id = ? AND name = ?", userID, groupName).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("group %q not found", groupName)
	}

	expiry, ok := shareExpiries[expiresIn]
	if !ok {
		expiry = defaultShareExpiry
	}

	share := models.SharedCollection{
		ShareToken: uuid.New().String(),
		UserID:     userID,
		GroupName:  groupName,
		ExpiresAt:  time.Now().Add(expiry),
	}
	if err := s.db.Create(&share).Error; err != nil {
		return nil, err
	}

	s.updateActiveGauge()
	return &share, nil
}

// ResolveShare looks up an active share by token and increments its view
// count. Expired or revoked shares resolve to ErrShareNotFound.
func (s *ShareService) ResolveShare(token string) (*models.SharedCollection, error) {
	var share models.SharedCollection
	err := s.db.First(&share, "share_token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	if !share.Active(time.Now()) {
		return nil, ErrShareNotFound
	}

	share.ViewCount++
	if err := s.db.Model(&share).Update("view_count", share.ViewCount).Error; err != nil {
		log.Printf("Share service: failed to bump view count for %s: %v", token, err)
	}
	metrics.ShareViewsTotal.Inc()

	return &share, nil
}

// ListShares returns all of a user's share links, newest first.
func (s *ShareService) ListShares(userID string) ([]models.SharedCollection, error) {
	var shares []models.SharedCollection
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&shares).Error
	return shares, err
}

// RevokeShare marks a share unusable. Only the owner can revoke.
func (s *ShareService) RevokeShare(userID, token string) error {
	result := s.db.Model(&models.SharedCollection{}).
		Where("share_token = ? AND user_id = ?", token, userID).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShareNotFound
	}
	s.updateActiveGauge()
	return nil
}

// PurgeExpired deletes shares past their expiry, plus their comments and
// analytics counters. Returns the number of shares removed.
func (s *ShareService) PurgeExpired() int64 {
	var expired []models.SharedCollection
	if err := s.db.Where("expires_at < ?", time.Now()).Find(&expired).Error; err != nil {
		log.Printf("Share service: purge lookup failed: %v", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	tokens := make([]string, len(expired))
	for i, share := range expired {
		tokens[i] = share.ShareToken
	}

	s.db.Delete(&models.CollectionComment{}, "share_token IN ?", tokens)
	s.db.Delete(&models.AnalyticsCounter{}, "share_token IN ?", tokens)
	result := s.db.Delete(&models.SharedCollection{}, "share_token IN ?", tokens)
	if result.Error != nil {
		log.Printf("Share service: purge failed: %v", result.Error)
		return 0
	}

	s.updateActiveGauge()
	return result.RowsAffected
}

// Start runs the expired-share purge loop until the context is done.
func (s *ShareService) Start(ctx context.Context) {
	log.Println("Share service started: purging expired share links hourly")

	if n := s.PurgeExpired(); n > 0 {
		log.Printf("Share service: purged %d expired shares", n)
	}

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Share service stopping...")
			return
		case <-ticker.C:
			if n := s.PurgeExpired(); n > 0 {
				log.Printf("Share service: purged %d expired shares", n)
			}
		}
	}
}

func (s *ShareService) updateActiveGauge() {
	var count int64
	if err := s.db.Model(&models.SharedCollection{}).
		Where("revoked = ? AND expires_at > ?", false, time.Now()).
		Count(&count).Error; err != nil {
		return
	}
	metrics.ActiveShares.Set(float64(count))
}
