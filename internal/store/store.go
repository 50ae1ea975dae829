// Package store owns the authenticated user's collection state. It
// abstracts the per-row table model into a nested group -> type -> card
// view, caches that view with a TTL, and serializes same-key mutations
// so rapid add/remove calls cannot lose updates.
package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/metrics"
	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// SnapshotTTL is how long a fetched snapshot stays valid with no
// intervening mutation.
const SnapshotTTL = 10 * time.Minute

// Store is the single source of truth for collection state. Construct
// one per composition root and inject it; it holds per-user snapshot
// caches internally.
//
// Business operations never return raw errors: failures are folded into
// the discriminated result types and logged here.
type Store struct {
	db     *gorm.DB
	prices *PriceCache
	ttl    time.Duration

	mu        sync.RWMutex
	snapshots map[string]*cachedSnapshot

	locks *keyLocks
}

type cachedSnapshot struct {
	snap  *models.Snapshot
	stale bool
}

// NewStore creates a collection store. prices may be nil; it is only a
// display-level fallback and never feeds persisted aggregates.
func NewStore(db *gorm.DB, prices *PriceCache) *Store {
	return &Store{
		db:        db,
		prices:    prices,
		ttl:       SnapshotTTL,
		snapshots: make(map[string]*cachedSnapshot),
		locks:     newKeyLocks(),
	}
}

// FetchAll replaces the in-memory snapshot for the user from the backend
// rows. An empty userID is the common transient state during startup,
// not an error: it yields an empty snapshot silently. Backend failures
// are logged and also yield an empty snapshot.
func (s *Store) FetchAll(ctx context.Context, userID string) *models.Snapshot {
	if userID == "" {
		return models.EmptySnapshot()
	}

	metrics.SnapshotFetchesTotal.Inc()

	snap, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		log.Printf("Collection store: fetch failed for user %s: %v", userID, err)
		return models.EmptySnapshot()
	}

	s.mu.Lock()
	s.snapshots[userID] = &cachedSnapshot{snap: snap}
	s.mu.Unlock()

	return snap
}

// Snapshot returns the cached snapshot when it is still valid, otherwise
// it re-fetches. This is the read path the API layer uses.
func (s *Store) Snapshot(ctx context.Context, userID string) *models.Snapshot {
	if userID == "" {
		return models.EmptySnapshot()
	}

	s.mu.RLock()
	cached, ok := s.snapshots[userID]
	s.mu.RUnlock()

	if ok && !cached.stale && time.Since(cached.snap.FetchedAt) < s.ttl {
		metrics.SnapshotCacheHits.Inc()
		return cached.snap
	}

	metrics.SnapshotCacheMisses.Inc()
	return s.FetchAll(ctx, userID)
}

// Invalidate marks the user's snapshot stale so the next read re-fetches.
func (s *Store) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.snapshots[userID]; ok && !cached.stale {
		cached.stale = true
		metrics.SnapshotInvalidations.Inc()
	}
}

// Clear drops the user's cached snapshot entirely, for sign-out teardown.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, userID)
}

// loadSnapshot reads all rows for the user and folds them into the
// nested view. A "Default" group is materialized on first access, and
// every group row appears in the snapshot even when empty.
func (s *Store) loadSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	defaultGroup := models.CollectionGroup{UserID: userID, Name: models.DefaultGroupName}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, models.DefaultGroupName).
		FirstOrCreate(&defaultGroup).Error; err != nil {
		return nil, err
	}

	var groups []models.CollectionGroup
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&groups).Error; err != nil {
		return nil, err
	}

	var items []models.CollectionItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, err
	}

	snap := models.EmptySnapshot()
	snap.FetchedAt = time.Now()
	for _, g := range groups {
		snap.Group(g.Name)
	}
	for _, item := range items {
		if s.prices != nil {
			// Display fallback only; the row keeps its stored price and
			// persisted aggregates are computed from rows, not from here.
			s.prices.StorePrice(item.CardID, item.MarketPrice)
			item.MarketPrice = s.prices.GetBestPrice(item.CardID, item.MarketPrice)
		}
		snap.Group(item.GroupName).Items(item.CollectionType)[item.CardID] = item
	}

	return snap, nil
}

// AddCard inserts the (card, type, group) row with quantity 1 or
// increments an existing row. The snapshot is patched optimistically
// with the confirmed quantity, then invalidated so the next read goes
// back to the source of truth.
func (s *Store) AddCard(ctx context.Context, userID string, card models.CardRef, ctype models.CollectionType, groupName string) models.AddResult {
	if userID == "" {
		return s.addResult(models.AddError(models.ErrKindAuth, "authentication required"))
	}
	if card.ID == "" {
		return s.addResult(models.AddError(models.ErrKindValidation, "card is missing an identifier"))
	}
	if !models.ValidCollectionType(ctype) {
		return s.addResult(models.AddError(models.ErrKindValidation, "unknown collection type"))
	}
	if groupName == "" {
		groupName = models.DefaultGroupName
	}

	unlock := s.locks.lock(mutationKey(userID, card.ID, ctype, groupName))
	defer unlock()

	// Adding to a group materializes it, same as the default group on
	// first access.
	group := models.CollectionGroup{UserID: userID, Name: groupName}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, groupName).
		FirstOrCreate(&group).Error; err != nil {
		log.Printf("Collection store: failed to ensure group %q for user %s: %v", groupName, userID, err)
		return s.addResult(models.AddError(models.ErrKindBackend, "failed to add card"))
	}

	now := time.Now()
	var item models.CollectionItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND card_id = ? AND collection_type = ? AND group_name = ?",
			userID, card.ID, ctype, groupName).
		First(&item).Error

	var result models.AddResult
	switch {
	case err == nil:
		item.Quantity++
		item.AddedAt = now
		if card.MarketPrice > 0 {
			item.MarketPrice = card.MarketPrice
		}
		if saveErr := s.db.WithContext(ctx).Save(&item).Error; saveErr != nil {
			log.Printf("Collection store: failed to increment card %s for user %s: %v", card.ID, userID, saveErr)
			return s.addResult(models.AddError(models.ErrKindBackend, "failed to add card"))
		}
		result = models.AddResult{Status: models.AddStatusUpdated, NewQuantity: item.Quantity}

	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CollectionItem{
			UserID:         userID,
			CardID:         card.ID,
			CardName:       card.Name,
			CardImageURL:   card.ImageURL,
			CollectionType: ctype,
			GroupName:      groupName,
			Quantity:       1,
			MarketPrice:    card.MarketPrice,
			AddedAt:        now,
		}
		if createErr := s.db.WithContext(ctx).Create(&item).Error; createErr != nil {
			log.Printf("Collection store: failed to insert card %s for user %s: %v", card.ID, userID, createErr)
			return s.addResult(models.AddError(models.ErrKindBackend, "failed to add card"))
		}
		result = models.AddResult{Status: models.AddStatusAdded, NewQuantity: 1}

	default:
		log.Printf("Collection store: lookup failed for card %s, user %s: %v", card.ID, userID, err)
		return s.addResult(models.AddError(models.ErrKindBackend, "failed to add card"))
	}

	if s.prices != nil {
		s.prices.StorePrice(card.ID, card.MarketPrice)
	}
	s.patchSnapshot(userID, item)
	s.Invalidate(userID)
	return s.addResult(result)
}

// RemoveCard decrements or deletes the matching row. With decrementOnly
// set and quantity above one the row is decremented; in every other case
// the row is deleted outright. Decrementing to zero is removal, never a
// stored zero-quantity row.
func (s *Store) RemoveCard(ctx context.Context, userID, cardID string, ctype models.CollectionType, groupName string, decrementOnly bool) models.RemoveResult {
	if userID == "" {
		return s.removeResult(models.RemoveError(models.ErrKindAuth, "authentication required"))
	}
	if cardID == "" {
		return s.removeResult(models.RemoveError(models.ErrKindValidation, "card is missing an identifier"))
	}
	if groupName == "" {
		groupName = models.DefaultGroupName
	}

	unlock := s.locks.lock(mutationKey(userID, cardID, ctype, groupName))
	defer unlock()

	var item models.CollectionItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND card_id = ? AND collection_type = ? AND group_name = ?",
			userID, cardID, ctype, groupName).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.removeResult(models.RemoveResult{Status: models.RemoveStatusNotFound})
		}
		log.Printf("Collection store: lookup failed for card %s, user %s: %v", cardID, userID, err)
		return s.removeResult(models.RemoveError(models.ErrKindBackend, "failed to remove card"))
	}

	if decrementOnly && item.Quantity > 1 {
		item.Quantity--
		item.AddedAt = time.Now()
		if saveErr := s.db.WithContext(ctx).Save(&item).Error; saveErr != nil {
			log.Printf("Collection store: failed to decrement card %s for user %s: %v", cardID, userID, saveErr)
			return s.removeResult(models.RemoveError(models.ErrKindBackend, "failed to remove card"))
		}
		s.patchSnapshot(userID, item)
		s.Invalidate(userID)
		return s.removeResult(models.RemoveResult{Status: models.RemoveStatusDecremented, NewQuantity: item.Quantity})
	}

	if delErr := s.db.WithContext(ctx).Delete(&item).Error; delErr != nil {
		log.Printf("Collection store: failed to delete card %s for user %s: %v", cardID, userID, delErr)
		return s.removeResult(models.RemoveError(models.ErrKindBackend, "failed to remove card"))
	}
	s.dropFromSnapshot(userID, item)
	s.Invalidate(userID)
	return s.removeResult(models.RemoveResult{Status: models.RemoveStatusRemoved})
}

// CreateGroup creates a named group. Creation is unrestricted except for
// duplicates; only rename and delete protect the default group.
func (s *Store) CreateGroup(ctx context.Context, userID, name, description string) models.GroupResult {
	if userID == "" {
		return s.groupResult("create", models.GroupResult{Status: models.GroupStatusError, Message: "authentication required"})
	}
	if name == "" {
		return s.groupResult("create", models.GroupResult{Status: models.GroupStatusInvalid, Message: "group name must not be empty"})
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.CollectionGroup{}).
		Where("user_id = ? AND name = ?", userID, name).Count(&count).Error; err != nil {
		log.Printf("Collection store: group lookup failed for user %s: %v", userID, err)
		return s.groupResult("create", models.GroupResult{Status: models.GroupStatusError, Message: "failed to create group"})
	}
	if count > 0 {
		return s.groupResult("create", models.GroupResult{Status: models.GroupStatusInvalid, Message: "group already exists"})
	}

	group := models.CollectionGroup{UserID: userID, Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		log.Printf("Collection store: failed to create group %q for user %s: %v", name, userID, err)
		return s.groupResult("create", models.GroupResult{Status: models.GroupStatusError, Message: "failed to create group"})
	}

	s.Invalidate(userID)
	return s.groupResult("create", models.GroupResult{Status: models.GroupStatusOK})
}

// RenameGroup renames a group and re-tags every item row in it. The
// default group is protected.
func (s *Store) RenameGroup(ctx context.Context, userID, oldName, newName string) models.GroupResult {
	if userID == "" {
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusError, Message: "authentication required"})
	}
	if oldName == models.DefaultGroupName {
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusInvalid, Message: "the default group cannot be renamed"})
	}
	if newName == "" {
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusInvalid, Message: "group name must not be empty"})
	}
	if newName == oldName {
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusOK})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.CollectionGroup
		if err := tx.Where("user_id = ? AND name = ?", userID, oldName).First(&group).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.CollectionGroup{}).
			Where("user_id = ? AND name = ?", userID, newName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errGroupExists
		}

		group.Name = newName
		if err := tx.Save(&group).Error; err != nil {
			return err
		}
		return tx.Model(&models.CollectionItem{}).
			Where("user_id = ? AND group_name = ?", userID, oldName).
			Update("group_name", newName).Error
	})

	switch {
	case err == nil:
		s.Invalidate(userID)
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusOK})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusNotFound, Message: "group not found"})
	case errors.Is(err, errGroupExists):
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusInvalid, Message: "a group with that name already exists"})
	default:
		log.Printf("Collection store: failed to rename group %q for user %s: %v", oldName, userID, err)
		return s.groupResult("rename", models.GroupResult{Status: models.GroupStatusError, Message: "failed to rename group"})
	}
}

var errGroupExists = errors.New("group already exists")

// DeleteGroup deletes a group and cascades to all items in it. The
// default group is protected.
func (s *Store) DeleteGroup(ctx context.Context, userID, name string) models.GroupResult {
	if userID == "" {
		return s.groupResult("delete", models.GroupResult{Status: models.GroupStatusError, Message: "authentication required"})
	}
	if name == models.DefaultGroupName {
		return s.groupResult("delete", models.GroupResult{Status: models.GroupStatusInvalid, Message: "the default group cannot be deleted"})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.CollectionGroup
		if err := tx.Where("user_id = ? AND name = ?", userID, name).First(&group).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND group_name = ?", userID, name).
			Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})

	switch {
	case err == nil:
		s.Invalidate(userID)
		return s.groupResult("delete", models.GroupResult{Status: models.GroupStatusOK})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.groupResult("delete", models.GroupResult{Status: models.GroupStatusNotFound, Message: "group not found"})
	default:
		log.Printf("Collection store: failed to delete group %q for user %s: %v", name, userID, err)
		return s.groupResult("delete", models.GroupResult{Status: models.GroupStatusError, Message: "failed to delete group"})
	}
}

// RecomputeGroupValues recomputes have/want/total value for every group
// from the backend rows and persists the aggregates on the group rows.
// It is a full recomputation by design; it reads row prices, never the
// price cache, so persisted totals cannot drift from the source of truth.
func (s *Store) RecomputeGroupValues(ctx context.Context, userID string) ([]models.CollectionGroup, error) {
	if userID == "" {
		return nil, nil
	}

	var groups []models.CollectionGroup
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&groups).Error; err != nil {
		return nil, err
	}

	var items []models.CollectionItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, err
	}

	type totals struct{ have, want float64 }
	byGroup := make(map[string]*totals, len(groups))
	for _, g := range groups {
		byGroup[g.Name] = &totals{}
	}
	for _, item := range items {
		t, ok := byGroup[item.GroupName]
		if !ok {
			t = &totals{}
			byGroup[item.GroupName] = t
		}
		value := item.MarketPrice * float64(item.Quantity)
		if item.CollectionType == models.TypeWant {
			t.want += value
		} else {
			t.have += value
		}
	}

	for i := range groups {
		t := byGroup[groups[i].Name]
		groups[i].HaveValue = t.have
		groups[i].WantValue = t.want
		groups[i].TotalValue = t.have + t.want
		if err := s.db.WithContext(ctx).Save(&groups[i]).Error; err != nil {
			log.Printf("Collection store: failed to persist values for group %q, user %s: %v", groups[i].Name, userID, err)
		}
	}

	return groups, nil
}

// patchSnapshot applies a confirmed mutation so reads between the
// mutation and the next fetch see the new quantity. The patch goes onto
// a clone that replaces the cached pointer; snapshots already handed to
// callers are never written to, so concurrent readers need no lock.
func (s *Store) patchSnapshot(userID string, item models.CollectionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.snapshots[userID]
	if !ok {
		return
	}
	snap := cached.snap.Clone()
	snap.Group(item.GroupName).Items(item.CollectionType)[item.CardID] = item
	cached.snap = snap
}

func (s *Store) dropFromSnapshot(userID string, item models.CollectionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.snapshots[userID]
	if !ok {
		return
	}
	snap := cached.snap.Clone()
	delete(snap.Group(item.GroupName).Items(item.CollectionType), item.CardID)
	cached.snap = snap
}

func (s *Store) addResult(r models.AddResult) models.AddResult {
	metrics.MutationsTotal.WithLabelValues("add", string(r.Status)).Inc()
	return r
}

func (s *Store) removeResult(r models.RemoveResult) models.RemoveResult {
	metrics.MutationsTotal.WithLabelValues("remove", string(r.Status)).Inc()
	return r
}

func (s *Store) groupResult(op string, r models.GroupResult) models.GroupResult {
	metrics.MutationsTotal.WithLabelValues("group_"+op, string(r.Status)).Inc()
	return r
}
