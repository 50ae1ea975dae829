package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// AnalyticsService keeps per-share view counters. Counters are
// best-effort: a failed write is logged, never surfaced to the viewer.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates an analytics service.
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// RecordView bumps the view counter for a share token.
func (a *AnalyticsService) RecordView(shareToken string) {
	if shareToken == "" {
		return
	}
	counter := models.AnalyticsCounter{
		ShareToken:   shareToken,
		Views:        1,
		LastViewedAt: time.Now(),
	}
	err := a.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "share_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"views":          gorm.Expr("views + 1"),
			"last_viewed_at": time.Now(),
		}),
	}).Create(&counter).Error
	if err != nil {
		log.Printf("Analytics: failed to record view for %s: %v", shareToken, err)
	}
}

// GetCounter returns the counter for a share token; a token that was
// never viewed yields a zero counter, not an error.
func (a *AnalyticsService) GetCounter(shareToken string) (*models.AnalyticsCounter, error) {
	var counter models.AnalyticsCounter
	err := a.db.First(&counter, "share_token = ?", shareToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.AnalyticsCounter{ShareToken: shareToken}, nil
		}
		return nil, err
	}
	return &counter, nil
}

// TotalsForUser sums view counts across all of a user's share links.
func (a *AnalyticsService) TotalsForUser(userID string) (int64, error) {
	var total int64
	err := a.db.Model(&models.AnalyticsCounter{}).
		Joins("JOIN shared_collections ON shared_collections.share_token = analytics_counters.share_token").
		Where("shared_collections.user_id = ?", userID).
		Select("COALESCE(SUM(analytics_counters.views), 0)").
		Scan(&total).Error
	return total, err
}
