// Package catalog is the client for the external Pokémon card catalog.
// It is the only source of card metadata and market pricing; nothing in
// this service owns card data.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/stubbs41/collectthemall/backend/internal/metrics"
	"github.com/stubbs41/collectthemall/backend/internal/models"
)

const (
	defaultBaseURL = "https://api.pokemontcg.io/v2"
	defaultTimeout = 30 * time.Second

	// batchChunkSize is the number of card IDs per batched lookup
	// request. Chunks are issued sequentially to bound catalog load.
	batchChunkSize = 50

	// cardCacheSize bounds the in-process card detail cache.
	cardCacheSize = 1000
)

// Client talks to the card catalog API with request pacing and an LRU
// card detail cache in front of it.
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	cache   *lru.Cache[string, models.Card]
}

// NewClient creates a catalog client. The API key is optional; without
// it the catalog applies stricter anonymous rate limits, so we pace
// requests to 2/s either way.
func NewClient(apiKey string) *Client {
	cache, err := lru.New[string, models.Card](cardCacheSize)
	if err != nil {
		// Only happens for a non-positive size.
		panic(err)
	}
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		cache:   cache,
	}
}

type cardListResponse struct {
	Data       []apiCard `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Count      int       `json:"count"`
	TotalCount int       `json:"totalCount"`
}

type cardResponse struct {
	Data apiCard `json:"data"`
}

type apiCard struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Number     string         `json:"number"`
	Rarity     string         `json:"rarity"`
	Set        apiSet         `json:"set"`
	Images     apiImages      `json:"images"`
	TCGPlayer  *apiTCGPlayer  `json:"tcgplayer"`
	CardMarket *apiCardMarket `json:"cardmarket"`
}

type apiSet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type apiTCGPlayer struct {
	URL       string                    `json:"url"`
	UpdatedAt string                    `json:"updatedAt"`
	Prices    map[string]apiPriceRange `json:"prices"`
}

type apiPriceRange struct {
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Market float64 `json:"market"`
}

type apiCardMarket struct {
	Prices apiCardMarketPrices `json:"prices"`
}

type apiCardMarketPrices struct {
	AverageSellPrice float64 `json:"averageSellPrice"`
	TrendPrice       float64 `json:"trendPrice"`
}

// QueryOptions describe one page of a catalog query.
type QueryOptions struct {
	Query    string
	Page     int
	PageSize int
}

// FindCardsByQueries runs a paged catalog query.
func (c *Client) FindCardsByQueries(ctx context.Context, opts QueryOptions) (*models.CardSearchResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 250 {
		pageSize = 30
	}

	params := url.Values{}
	params.Set("q", opts.Query)
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))

	var listResp cardListResponse
	if err := c.get(ctx, "/cards?"+params.Encode(), &listResp); err != nil {
		return nil, err
	}

	cards := make([]models.Card, len(listResp.Data))
	for i, ac := range listResp.Data {
		cards[i] = convertCard(ac)
		c.cache.Add(cards[i].ID, cards[i])
	}

	return &models.CardSearchResult{
		Cards:      cards,
		TotalCount: listResp.TotalCount,
		Page:       listResp.Page,
		PageSize:   listResp.PageSize,
		HasMore:    listResp.TotalCount > listResp.Page*listResp.PageSize,
	}, nil
}

// FindCardsByIDs resolves card metadata for a list of IDs. Lookups are
// chunked and the chunks issued sequentially; a failed chunk is skipped
// and logged rather than failing the whole batch, so callers degrade to
// placeholders for the missing cards.
func (c *Client) FindCardsByIDs(ctx context.Context, ids []string) ([]models.Card, error) {
	found := make([]models.Card, 0, len(ids))
	var missing []string

	for _, id := range ids {
		if card, ok := c.cache.Get(id); ok {
			metrics.CatalogCacheHits.Inc()
			found = append(found, card)
			continue
		}
		metrics.CatalogCacheMisses.Inc()
		missing = append(missing, id)
	}

	chunks := chunkIDs(missing, batchChunkSize)
	metrics.CatalogBatchChunks.Observe(float64(len(chunks)))

	for _, chunk := range chunks {
		cards, err := c.fetchChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			log.Printf("Catalog: chunk lookup failed for %d ids: %v", len(chunk), err)
			continue
		}
		for _, card := range cards {
			c.cache.Add(card.ID, card)
			found = append(found, card)
		}
	}

	return found, nil
}

// GetCard fetches a single card, preferring the LRU cache.
func (c *Client) GetCard(ctx context.Context, id string) (*models.Card, error) {
	if card, ok := c.cache.Get(id); ok {
		metrics.CatalogCacheHits.Inc()
		return &card, nil
	}
	metrics.CatalogCacheMisses.Inc()

	var resp cardResponse
	if err := c.get(ctx, "/cards/"+url.PathEscape(id), &resp); err != nil {
		if err == errNotFound {
			return nil, nil
		}
		return nil, err
	}

	card := convertCard(resp.Data)
	c.cache.Add(card.ID, card)
	return &card, nil
}

func (c *Client) fetchChunk(ctx context.Context, ids []string) ([]models.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	terms := make([]string, len(ids))
	for i, id := range ids {
		terms[i] = fmt.Sprintf("id:%q", id)
	}
	params := url.Values{}
	params.Set("q", strings.Join(terms, " OR "))
	params.Set("pageSize", fmt.Sprintf("%d", batchChunkSize))

	var listResp cardListResponse
	if err := c.get(ctx, "/cards?"+params.Encode(), &listResp); err != nil {
		return nil, err
	}

	cards := make([]models.Card, len(listResp.Data))
	for i, ac := range listResp.Data {
		cards[i] = convertCard(ac)
	}
	return cards, nil
}

var errNotFound = fmt.Errorf("catalog: not found")

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.CatalogRequestsTotal.WithLabelValues("success").Inc()
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		metrics.CatalogRequestsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("catalog API returned status %d", resp.StatusCode)
	}

	metrics.CatalogRequestsTotal.WithLabelValues("success").Inc()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}

// chunkIDs splits ids into slices of at most size elements, preserving order.
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// tcgplayerVariantOrder is the preference order for picking a market
// price out of the variant price map.
var tcgplayerVariantOrder = []string{
	"normal",
	"holofoil",
	"reverseHolofoil",
	"1stEditionNormal",
	"1stEditionHolofoil",
	"unlimited",
	"unlimitedHolofoil",
}

// marketPrice extracts the best available market price for a card,
// preferring TCGPlayer variants in order and falling back to the
// CardMarket trend price.
func marketPrice(ac apiCard) float64 {
	if ac.TCGPlayer != nil {
		for _, variant := range tcgplayerVariantOrder {
			if p, ok := ac.TCGPlayer.Prices[variant]; ok && p.Market > 0 {
				return p.Market
			}
		}
		// Unknown variant names still beat no price at all.
		for _, p := range ac.TCGPlayer.Prices {
			if p.Market > 0 {
				return p.Market
			}
		}
	}
	if ac.CardMarket != nil {
		if ac.CardMarket.Prices.TrendPrice > 0 {
			return ac.CardMarket.Prices.TrendPrice
		}
		if ac.CardMarket.Prices.AverageSellPrice > 0 {
			return ac.CardMarket.Prices.AverageSellPrice
		}
	}
	return 0
}

func convertCard(ac apiCard) models.Card {
	now := time.Now()
	return models.Card{
		ID:             ac.ID,
		Name:           ac.Name,
		SetID:          ac.Set.ID,
		SetName:        ac.Set.Name,
		Number:         ac.Number,
		Rarity:         ac.Rarity,
		ImageURL:       ac.Images.Small,
		ImageURLLarge:  ac.Images.Large,
		MarketPrice:    marketPrice(ac),
		PriceUpdatedAt: &now,
	}
}
