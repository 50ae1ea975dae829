package models

import (
	"time"
)

// Card is catalog metadata for one Pokémon card, as returned by the
// external card catalog. Market prices are a property of the card, not
// of any one user's collection entry.
type Card struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SetID          string     `json:"set_id"`
	SetName        string     `json:"set_name"`
	Number         string     `json:"number"`
	Rarity         string     `json:"rarity"`
	ImageURL       string     `json:"image_url"`
	ImageURLLarge  string     `json:"image_url_large"`
	MarketPrice    float64    `json:"market_price"`
	PriceUpdatedAt *time.Time `json:"price_updated_at,omitempty"`
}

// CardSearchResult is one page of a catalog query.
type CardSearchResult struct {
	Cards      []Card `json:"cards"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	HasMore    bool   `json:"has_more"`
}
