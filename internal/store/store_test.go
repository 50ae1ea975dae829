package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stubbs41/collectthemall/backend/internal/database"
	"github.com/stubbs41/collectthemall/backend/internal/localstore"
	"github.com/stubbs41/collectthemall/backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestDB(t), NewPriceCache(localstore.NewMemoryStore()))
}

func testCard(id string, price float64) models.CardRef {
	return models.CardRef{
		ID:          id,
		Name:        "Pikachu",
		ImageURL:    "https://images.example/" + id + ".png",
		MarketPrice: price,
	}
}

func TestFetchAllUnauthenticated(t *testing.T) {
	s := newTestStore(t)

	snap := s.FetchAll(context.Background(), "")
	assert.Empty(t, snap.Groups, "unauthenticated fetch should yield an empty snapshot")
}

func TestFetchAllMaterializesDefaultGroup(t *testing.T) {
	s := newTestStore(t)

	snap := s.FetchAll(context.Background(), "user-1")
	require.Contains(t, snap.Groups, models.DefaultGroupName)
	assert.Empty(t, snap.Group(models.DefaultGroupName).Have)
	assert.Empty(t, snap.Group(models.DefaultGroupName).Want)

	var count int64
	s.db.Model(&models.CollectionGroup{}).
		Where("user_id = ? AND name = ?", "user-1", models.DefaultGroupName).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFetchAllIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddCard(ctx, "user-1", testCard("xy1-1", 2.50), models.TypeHave, "")
	s.AddCard(ctx, "user-1", testCard("xy1-2", 0), models.TypeWant, "")

	first := s.FetchAll(ctx, "user-1")
	second := s.FetchAll(ctx, "user-1")

	assert.Equal(t, first.Groups, second.Groups,
		"two fetches with no intervening mutation should agree modulo fetch time")
}

func TestAddCardQuantityMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := s.AddCard(ctx, "user-1", testCard("base1-4", 100), models.TypeHave, "")
	require.Equal(t, models.AddStatusAdded, first.Status)
	require.Equal(t, 1, first.NewQuantity)

	second := s.AddCard(ctx, "user-1", testCard("base1-4", 100), models.TypeHave, "")
	require.Equal(t, models.AddStatusUpdated, second.Status)
	require.Equal(t, 2, second.NewQuantity)

	snap := s.FetchAll(ctx, "user-1")
	item, ok := snap.Group(models.DefaultGroupName).Have["base1-4"]
	require.True(t, ok)
	assert.Equal(t, second.NewQuantity, item.Quantity,
		"returned quantity must match the stored quantity")
}

func TestAddCardValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		card   models.CardRef
		ctype  models.CollectionType
		kind   models.ErrorKind
	}{
		{"no session", "", testCard("xy1-1", 0), models.TypeHave, models.ErrKindAuth},
		{"missing card id", "user-1", models.CardRef{Name: "Mew"}, models.TypeHave, models.ErrKindValidation},
		{"bad type", "user-1", testCard("xy1-1", 0), models.CollectionType("stash"), models.ErrKindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.AddCard(ctx, tt.userID, tt.card, tt.ctype, "")
			assert.Equal(t, models.AddStatusError, result.Status)
			assert.Equal(t, tt.kind, result.Kind)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestAddCardSeparateKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same card in have and want, and in two groups, are distinct rows.
	s.CreateGroup(ctx, "user-1", "Binder", "")
	r1 := s.AddCard(ctx, "user-1", testCard("sv1-25", 1), models.TypeHave, "")
	r2 := s.AddCard(ctx, "user-1", testCard("sv1-25", 1), models.TypeWant, "")
	r3 := s.AddCard(ctx, "user-1", testCard("sv1-25", 1), models.TypeHave, "Binder")

	assert.Equal(t, models.AddStatusAdded, r1.Status)
	assert.Equal(t, models.AddStatusAdded, r2.Status)
	assert.Equal(t, models.AddStatusAdded, r3.Status)

	var count int64
	s.db.Model(&models.CollectionItem{}).Where("user_id = ?", "user-1").Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestRemoveCardDecrementThenRemoveBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddCard(ctx, "user-1", testCard("neo1-17", 8), models.TypeHave, "")
	s.AddCard(ctx, "user-1", testCard("neo1-17", 8), models.TypeHave, "")

	dec := s.RemoveCard(ctx, "user-1", "neo1-17", models.TypeHave, "", true)
	require.Equal(t, models.RemoveStatusDecremented, dec.Status)
	require.Equal(t, 1, dec.NewQuantity)

	// Quantity 1 with decrementOnly still deletes: zero-quantity rows are
	// never stored.
	rem := s.RemoveCard(ctx, "user-1", "neo1-17", models.TypeHave, "", true)
	require.Equal(t, models.RemoveStatusRemoved, rem.Status)

	var count int64
	s.db.Model(&models.CollectionItem{}).Where("user_id = ? AND card_id = ?", "user-1", "neo1-17").Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRemoveCardNotFound(t *testing.T) {
	s := newTestStore(t)

	result := s.RemoveCard(context.Background(), "user-1", "missing-1", models.TypeHave, "", false)
	assert.Equal(t, models.RemoveStatusNotFound, result.Status)
}

func TestRemoveCardDeletesWholeRowWithoutDecrementOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.AddCard(ctx, "user-1", testCard("base1-2", 0), models.TypeHave, "")
	}

	result := s.RemoveCard(ctx, "user-1", "base1-2", models.TypeHave, "", false)
	assert.Equal(t, models.RemoveStatusRemoved, result.Status)

	snap := s.FetchAll(ctx, "user-1")
	assert.NotContains(t, snap.Group(models.DefaultGroupName).Have, "base1-2")
}

func TestDefaultGroupProtection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddCard(ctx, "user-1", testCard("xy7-54", 3), models.TypeHave, "")
	before := s.FetchAll(ctx, "user-1")

	del := s.DeleteGroup(ctx, "user-1", models.DefaultGroupName)
	assert.Equal(t, models.GroupStatusInvalid, del.Status)

	ren := s.RenameGroup(ctx, "user-1", models.DefaultGroupName, "Anything")
	assert.Equal(t, models.GroupStatusInvalid, ren.Status)

	after := s.FetchAll(ctx, "user-1")
	assert.Equal(t, before.Groups, after.Groups, "failed group operations must leave the snapshot unchanged")
}

func TestCreateGroup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := s.CreateGroup(ctx, "user-1", "Vacation Binder", "cards from the trip")
	require.Equal(t, models.GroupStatusOK, result.Status)

	dup := s.CreateGroup(ctx, "user-1", "Vacation Binder", "")
	assert.Equal(t, models.GroupStatusInvalid, dup.Status)

	empty := s.CreateGroup(ctx, "user-1", "", "")
	assert.Equal(t, models.GroupStatusInvalid, empty.Status)

	snap := s.FetchAll(ctx, "user-1")
	assert.Contains(t, snap.Groups, "Vacation Binder")
}

func TestRenameGroupRetagsItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateGroup(ctx, "user-1", "Old Binder", "")
	s.AddCard(ctx, "user-1", testCard("sm1-1", 1), models.TypeHave, "Old Binder")
	s.AddCard(ctx, "user-1", testCard("sm1-2", 1), models.TypeWant, "Old Binder")

	result := s.RenameGroup(ctx, "user-1", "Old Binder", "New Binder")
	require.Equal(t, models.GroupStatusOK, result.Status)

	snap := s.FetchAll(ctx, "user-1")
	assert.NotContains(t, snap.Groups, "Old Binder")
	require.Contains(t, snap.Groups, "New Binder")
	assert.Len(t, snap.Group("New Binder").Have, 1)
	assert.Len(t, snap.Group("New Binder").Want, 1)

	missing := s.RenameGroup(ctx, "user-1", "Gone", "Elsewhere")
	assert.Equal(t, models.GroupStatusNotFound, missing.Status)
}

func TestDeleteGroupCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateGroup(ctx, "user-1", "Doomed", "")
	s.AddCard(ctx, "user-1", testCard("ex1-9", 4), models.TypeHave, "Doomed")
	s.AddCard(ctx, "user-1", testCard("ex1-10", 4), models.TypeHave, "Doomed")

	result := s.DeleteGroup(ctx, "user-1", "Doomed")
	require.Equal(t, models.GroupStatusOK, result.Status)

	var items int64
	s.db.Model(&models.CollectionItem{}).Where("user_id = ? AND group_name = ?", "user-1", "Doomed").Count(&items)
	assert.Equal(t, int64(0), items, "deleting a group must cascade to its items")

	snap := s.FetchAll(ctx, "user-1")
	assert.NotContains(t, snap.Groups, "Doomed")
}

func TestRecomputeGroupValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db := s.db
	require.NoError(t, db.Create(&models.CollectionGroup{UserID: "user-1", Name: models.DefaultGroupName}).Error)
	seed := []models.CollectionItem{
		{UserID: "user-1", CardID: "a-1", CollectionType: models.TypeHave, GroupName: models.DefaultGroupName, Quantity: 2, MarketPrice: 1.00, AddedAt: time.Now()},
		{UserID: "user-1", CardID: "a-2", CollectionType: models.TypeHave, GroupName: models.DefaultGroupName, Quantity: 5, MarketPrice: 0, AddedAt: time.Now()},
		{UserID: "user-1", CardID: "a-3", CollectionType: models.TypeWant, GroupName: models.DefaultGroupName, Quantity: 1, MarketPrice: 3.00, AddedAt: time.Now()},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	groups, err := s.RecomputeGroupValues(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	assert.InDelta(t, 2.00, groups[0].HaveValue, 1e-9)
	assert.InDelta(t, 3.00, groups[0].WantValue, 1e-9)
	assert.InDelta(t, 5.00, groups[0].TotalValue, 1e-9)

	// And the aggregates are persisted on the row.
	var stored models.CollectionGroup
	require.NoError(t, db.First(&stored, "user_id = ? AND name = ?", "user-1", models.DefaultGroupName).Error)
	assert.InDelta(t, 5.00, stored.TotalValue, 1e-9)
}

func TestRecomputeIgnoresPriceCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A cached price exists for the card, but the row price is zero. The
	// persisted aggregate must come from the row, not the cache.
	s.prices.StorePrice("b-1", 9.99)
	require.NoError(t, s.db.Create(&models.CollectionGroup{UserID: "user-1", Name: models.DefaultGroupName}).Error)
	require.NoError(t, s.db.Create(&models.CollectionItem{
		UserID: "user-1", CardID: "b-1", CollectionType: models.TypeHave,
		GroupName: models.DefaultGroupName, Quantity: 3, MarketPrice: 0, AddedAt: time.Now(),
	}).Error)

	groups, err := s.RecomputeGroupValues(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Zero(t, groups[0].TotalValue)

	// The snapshot, in contrast, shows the display fallback.
	snap := s.FetchAll(ctx, "user-1")
	item := snap.Group(models.DefaultGroupName).Have["b-1"]
	assert.InDelta(t, 9.99, item.MarketPrice, 1e-9)
}

func TestSnapshotTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := s.FetchAll(ctx, "user-1")
	cachedAt := first.FetchedAt

	// Within TTL the cached snapshot is served as-is.
	same := s.Snapshot(ctx, "user-1")
	assert.Equal(t, cachedAt, same.FetchedAt)

	// Beyond TTL the next access re-fetches.
	s.mu.Lock()
	s.snapshots["user-1"].snap.FetchedAt = time.Now().Add(-s.ttl - time.Second)
	s.mu.Unlock()

	refreshed := s.Snapshot(ctx, "user-1")
	assert.True(t, refreshed.FetchedAt.After(cachedAt), "expired snapshot must force a re-fetch")
}

func TestMutationInvalidatesSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.FetchAll(ctx, "user-1")
	s.AddCard(ctx, "user-1", testCard("swsh1-1", 2), models.TypeHave, "")

	s.mu.RLock()
	cached := s.snapshots["user-1"]
	s.mu.RUnlock()

	assert.True(t, cached.stale, "a successful mutation must invalidate the whole snapshot")

	// The optimistic patch is visible before the re-fetch.
	item, ok := cached.snap.Group(models.DefaultGroupName).Have["swsh1-1"]
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)
}

func TestMutationLeavesHandedOutSnapshotAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := s.FetchAll(ctx, "user-1")

	s.AddCard(ctx, "user-1", testCard("sv1-7", 2), models.TypeHave, "")
	assert.NotContains(t, before.Group(models.DefaultGroupName).Have, "sv1-7",
		"a snapshot already returned to a caller must never change under it")

	after := s.FetchAll(ctx, "user-1")
	assert.Contains(t, after.Group(models.DefaultGroupName).Have, "sv1-7")
}

func TestSnapshotReadsSafeDuringMutations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.FetchAll(ctx, "user-1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot(ctx, "user-1")
			total := 0
			for _, g := range snap.Groups {
				total += len(g.Have) + len(g.Want)
			}
			_ = snap.TotalItems()
			_ = total
		}
	}()

	for i := 0; i < 50; i++ {
		s.AddCard(ctx, "user-1", testCard("sv2-40", 1), models.TypeHave, "")
	}
	for i := 0; i < 50; i++ {
		s.RemoveCard(ctx, "user-1", "sv2-40", models.TypeHave, "", true)
	}
	close(stop)
	wg.Wait()

	snap := s.FetchAll(ctx, "user-1")
	assert.NotContains(t, snap.Group(models.DefaultGroupName).Have, "sv2-40")
}

func TestClearDropsSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.FetchAll(ctx, "user-1")
	s.Clear("user-1")

	s.mu.RLock()
	_, ok := s.snapshots["user-1"]
	s.mu.RUnlock()
	assert.False(t, ok)
}
