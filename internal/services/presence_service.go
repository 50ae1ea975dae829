package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stubbs41/collectthemall/backend/internal/metrics"
)

// presenceTTL is how long a viewer counts as present after their last
// heartbeat. The UI heartbeats every 10s, so 30s tolerates two misses.
const presenceTTL = 30 * time.Second

// PresenceService tracks who is currently viewing a shared collection.
// Entries live in Redis with a TTL, so stale viewers age out without a
// cleanup pass.
type PresenceService struct {
	rdb *redis.Client
}

// Viewer is one active viewer of a shared collection.
type Viewer struct {
	ViewerID string `json:"viewer_id"`
	Name     string `json:"name"`
}

// NewPresenceService creates a presence service on the given Redis client.
func NewPresenceService(rdb *redis.Client) *PresenceService {
	return &PresenceService{rdb: rdb}
}

func presenceKey(shareToken, viewerID string) string {
	return fmt.Sprintf("presence:%s:%s", shareToken, viewerID)
}

// Heartbeat records that viewerID is looking at the shared collection.
// Each call refreshes the TTL.
func (p *PresenceService) Heartbeat(ctx context.Context, shareToken, viewerID, name string) error {
	if shareToken == "" || viewerID == "" {
		return fmt.Errorf("share token and viewer id are required")
	}
	metrics.PresenceHeartbeats.Inc()
	return p.rdb.Set(ctx, presenceKey(shareToken, viewerID), name, presenceTTL).Err()
}

// Leave drops the viewer immediately instead of waiting for TTL expiry.
func (p *PresenceService) Leave(ctx context.Context, shareToken, viewerID string) error {
	return p.rdb.Del(ctx, presenceKey(shareToken, viewerID)).Err()
}

// ActiveViewers lists everyone whose heartbeat has not expired.
func (p *PresenceService) ActiveViewers(ctx context.Context, shareToken string) ([]Viewer, error) {
	pattern := fmt.Sprintf("presence:%s:*", shareToken)
	prefix := fmt.Sprintf("presence:%s:", shareToken)

	var viewers []Viewer
	iter := p.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name, err := p.rdb.Get(ctx, key).Result()
		if err != nil {
			// Expired between SCAN and GET.
			continue
		}
		viewers = append(viewers, Viewer{
			ViewerID: strings.TrimPrefix(key, prefix),
			Name:     name,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return viewers, nil
}
