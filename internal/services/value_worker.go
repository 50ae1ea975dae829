package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/metrics"
	"github.com/stubbs41/collectthemall/backend/internal/models"
	"github.com/stubbs41/collectthemall/backend/internal/store"
)

// ValueWorker recomputes group value aggregates in the background.
// Aggregates are not kept transactionally consistent with item
// mutations; this worker is what brings them back in line, on a ticker
// and on demand after imports or price refreshes.
type ValueWorker struct {
	db       *gorm.DB
	store    *store.Store
	interval time.Duration
	kick     chan struct{}
}

// NewValueWorker creates a worker recomputing every 15 minutes.
func NewValueWorker(db *gorm.DB, st *store.Store) *ValueWorker {
	return &ValueWorker{
		db:       db,
		store:    st,
		interval: 15 * time.Minute,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an out-of-band recompute. Coalesces when one is already
// pending.
func (w *ValueWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Start runs the recompute loop until the context is done.
func (w *ValueWorker) Start(ctx context.Context) {
	log.Printf("Value worker started: recomputing group values every %v", w.interval)

	w.recomputeAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Value worker stopping...")
			return
		case <-ticker.C:
			w.recomputeAll(ctx)
		case <-w.kick:
			w.recomputeAll(ctx)
		}
	}
}

// recomputeAll recomputes aggregates for every user with group rows and
// refreshes the fleet-wide gauges.
func (w *ValueWorker) recomputeAll(ctx context.Context) {
	var userIDs []string
	if err := w.db.WithContext(ctx).Model(&models.CollectionGroup{}).
		Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		log.Printf("Value worker: failed to list users: %v", err)
		return
	}

	totalValue := 0.0
	for _, uid := range userIDs {
		groups, err := w.store.RecomputeGroupValues(ctx, uid)
		if err != nil {
			log.Printf("Value worker: recompute failed for user %s: %v", uid, err)
			continue
		}
		for _, g := range groups {
			totalValue += g.TotalValue
		}
	}

	var itemCount int64
	if err := w.db.WithContext(ctx).Model(&models.CollectionItem{}).Count(&itemCount).Error; err == nil {
		metrics.CollectionItemsTotal.Set(float64(itemCount))
	}
	metrics.CollectionValueUSD.Set(totalValue)
}
