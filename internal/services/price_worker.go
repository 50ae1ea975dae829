package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/models"
	"github.com/stubbs41/collectthemall/backend/internal/store"
)

// cardLookup is the slice of the catalog client the price worker needs.
type cardLookup interface {
	FindCardsByIDs(ctx context.Context, ids []string) ([]models.Card, error)
}

// PriceWorker refreshes stored market prices from the card catalog.
// Collection rows carry the price from the moment they were added; this
// worker is what keeps them from going stale. After a refresh it kicks
// the value worker so group aggregates follow.
type PriceWorker struct {
	db       *gorm.DB
	catalog  cardLookup
	prices   *store.PriceCache
	values   *ValueWorker
	interval time.Duration
}

// NewPriceWorker creates a worker refreshing prices every 6 hours.
func NewPriceWorker(db *gorm.DB, catalog cardLookup, prices *store.PriceCache, values *ValueWorker) *PriceWorker {
	return &PriceWorker{
		db:       db,
		catalog:  catalog,
		prices:   prices,
		values:   values,
		interval: 6 * time.Hour,
	}
}

// Start runs the refresh loop until the context is done.
func (w *PriceWorker) Start(ctx context.Context) {
	log.Printf("Price worker started: refreshing market prices every %v", w.interval)

	w.refreshAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Price worker stopping...")
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

// refreshAll looks up every card anyone owns or wants and writes fresh
// positive prices back onto the rows and into the price cache. Cards the
// catalog cannot resolve keep their last known price.
func (w *PriceWorker) refreshAll(ctx context.Context) {
	var cardIDs []string
	if err := w.db.WithContext(ctx).Model(&models.CollectionItem{}).
		Distinct("card_id").Pluck("card_id", &cardIDs).Error; err != nil {
		log.Printf("Price worker: failed to list cards: %v", err)
		return
	}
	if len(cardIDs) == 0 {
		return
	}

	cards, err := w.catalog.FindCardsByIDs(ctx, cardIDs)
	if err != nil {
		log.Printf("Price worker: catalog lookup failed: %v", err)
		return
	}

	updated := 0
	for _, card := range cards {
		if card.MarketPrice <= 0 {
			continue
		}
		result := w.db.WithContext(ctx).Model(&models.CollectionItem{}).
			Where("card_id = ?", card.ID).
			Update("market_price", card.MarketPrice)
		if result.Error != nil {
			log.Printf("Price worker: failed to update price for %s: %v", card.ID, result.Error)
			continue
		}
		if w.prices != nil {
			w.prices.StorePrice(card.ID, card.MarketPrice)
		}
		updated += int(result.RowsAffected)
	}

	log.Printf("Price worker: refreshed %d of %d cards, %d rows updated",
		len(cards), len(cardIDs), updated)

	if updated > 0 && w.values != nil {
		w.values.Kick()
	}
}
