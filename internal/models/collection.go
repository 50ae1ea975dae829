package models

import (
	"time"
)

// CollectionType partitions a user's collection into cards they own and
// cards they are hunting for.
type CollectionType string

const (
	TypeHave CollectionType = "have"
	TypeWant CollectionType = "want"
)

// DefaultGroupName is the group every user gets implicitly. It can never
// be renamed or deleted.
const DefaultGroupName = "Default"

// ValidCollectionType reports whether t is one of the known collection types.
func ValidCollectionType(t CollectionType) bool {
	return t == TypeHave || t == TypeWant
}

// CollectionItem is one (owner, card, type, group) tuple. The four-column
// unique index enforces at most one row per combination; quantity zero is
// expressed by deleting the row, never by storing it.
type CollectionItem struct {
	ID             uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         string         `json:"user_id" gorm:"not null;uniqueIndex:idx_owner_card_type_group"`
	CardID         string         `json:"card_id" gorm:"not null;uniqueIndex:idx_owner_card_type_group;index"`
	CardName       string         `json:"card_name"`
	CardImageURL   string         `json:"card_image_url"`
	CollectionType CollectionType `json:"collection_type" gorm:"not null;uniqueIndex:idx_owner_card_type_group;default:'have'"`
	GroupName      string         `json:"group_name" gorm:"not null;uniqueIndex:idx_owner_card_type_group;default:'Default'"`
	Quantity       int            `json:"quantity" gorm:"default:1"`
	MarketPrice    float64        `json:"market_price"`
	AddedAt        time.Time      `json:"added_at"`
}

// CollectionGroup is a named partition of a user's collection. The value
// columns are aggregates recomputed on demand, not kept transactionally
// consistent with item mutations.
type CollectionGroup struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      string    `json:"user_id" gorm:"not null;uniqueIndex:idx_owner_group_name"`
	Name        string    `json:"name" gorm:"not null;uniqueIndex:idx_owner_group_name"`
	Description string    `json:"description"`
	HaveValue   float64   `json:"have_value"`
	WantValue   float64   `json:"want_value"`
	TotalValue  float64   `json:"total_value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CardRef is the caller-supplied card identity for an add operation.
// Only ID is required; the rest is denormalized onto the item row so the
// UI can render without a catalog round-trip.
type CardRef struct {
	ID          string  `json:"id" binding:"required"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url"`
	MarketPrice float64 `json:"market_price"`
}

// GroupSnapshot holds one group's items split by collection type,
// keyed by card ID.
type GroupSnapshot struct {
	Have map[string]CollectionItem `json:"have"`
	Want map[string]CollectionItem `json:"want"`
}

// NewGroupSnapshot returns an empty snapshot for one group.
func NewGroupSnapshot() *GroupSnapshot {
	return &GroupSnapshot{
		Have: make(map[string]CollectionItem),
		Want: make(map[string]CollectionItem),
	}
}

// Items returns the map for the given collection type.
func (g *GroupSnapshot) Items(t CollectionType) map[string]CollectionItem {
	if t == TypeWant {
		return g.Want
	}
	return g.Have
}

// Snapshot is the cached view of every group for one user. It is valid
// only while FetchedAt is within the configured TTL and no mutation has
// marked it stale.
type Snapshot struct {
	Groups    map[string]*GroupSnapshot `json:"groups"`
	FetchedAt time.Time                 `json:"fetched_at"`
}

// EmptySnapshot returns a snapshot with no groups, used for the
// unauthenticated case.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Groups: make(map[string]*GroupSnapshot)}
}

// Group returns the snapshot for the named group, creating it if absent.
func (s *Snapshot) Group(name string) *GroupSnapshot {
	g, ok := s.Groups[name]
	if !ok {
		g = NewGroupSnapshot()
		s.Groups[name] = g
	}
	return g
}

// Clone returns a deep copy of the snapshot's group and item maps.
// Snapshots handed to callers are treated as immutable; mutations patch
// a clone and swap it in.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Groups:    make(map[string]*GroupSnapshot, len(s.Groups)),
		FetchedAt: s.FetchedAt,
	}
	for name, g := range s.Groups {
		ng := NewGroupSnapshot()
		for id, item := range g.Have {
			ng.Have[id] = item
		}
		for id, item := range g.Want {
			ng.Want[id] = item
		}
		out.Groups[name] = ng
	}
	return out
}

// TotalItems counts items across all groups and types.
func (s *Snapshot) TotalItems() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Have) + len(g.Want)
	}
	return n
}
