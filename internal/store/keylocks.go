package store

import (
	"fmt"
	"sync"

	"github.com/stubbs41/collectthemall/backend/internal/models"
)

// keyLocks serializes mutations per (user, card, type, group) key. The
// existence-check-then-write pattern in add/remove is two round-trips;
// holding the key's lock across both closes the lost-update race between
// concurrent same-key mutations.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key, creating it on first use, and returns
// the unlock func. Lock entries are kept for the life of the store; the
// key space is bounded by the user's distinct (card, type, group) tuples.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func mutationKey(userID, cardID string, ctype models.CollectionType, groupName string) string {
	return fmt.Sprintf("%s|%s|%s|%s", userID, cardID, ctype, groupName)
}
