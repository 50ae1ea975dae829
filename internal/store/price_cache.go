package store

import (
	"encoding/json"
	"log"
	"time"

	"github.com/stubbs41/collectthemall/backend/internal/localstore"
)

const priceKeyPrefix = "price:"

// PriceCache remembers the last known positive market price per card.
// Freshly created collection rows can carry a zero price until the next
// price refresh runs; the cache papers over that gap for display.
//
// It is advisory only. Persisted value aggregates are computed from the
// backend rows, never from this cache, so displayed and stored totals
// cannot split-brain.
type PriceCache struct {
	store localstore.Store
}

type priceEntry struct {
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPriceCache creates a price cache on top of the given local store.
func NewPriceCache(store localstore.Store) *PriceCache {
	return &PriceCache{store: store}
}

// GetBestPrice returns freshPrice when positive. Otherwise it falls back
// to the last persisted positive price for the card, or 0 if none exists.
func (c *PriceCache) GetBestPrice(cardID string, freshPrice float64) float64 {
	if freshPrice > 0 {
		return freshPrice
	}
	raw, ok := c.store.Get(priceKeyPrefix + cardID)
	if !ok {
		return 0
	}
	var entry priceEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Printf("Price cache: corrupt entry for card %s: %v", cardID, err)
		return 0
	}
	return entry.Price
}

// StorePrice persists a positive price, overwriting any previous value.
// Non-positive prices are ignored; the cache only ever holds prices
// worth falling back to.
func (c *PriceCache) StorePrice(cardID string, price float64) {
	if price <= 0 || cardID == "" {
		return
	}
	raw, err := json.Marshal(priceEntry{Price: price, UpdatedAt: time.Now()})
	if err != nil {
		return
	}
	if err := c.store.Set(priceKeyPrefix+cardID, string(raw)); err != nil {
		log.Printf("Price cache: failed to store price for card %s: %v", cardID, err)
	}
}
