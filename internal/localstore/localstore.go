// Package localstore provides a durable string-keyed get/set/remove
// store, the server-side analog of browser local storage. It backs the
// price persistence cache and per-user UI preferences such as the last
// selected group.
package localstore

import (
	"errors"
	"log"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stubbs41/collectthemall/backend/internal/database"
)

// Store is a simple last-writer-wins key-value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// DBStore persists entries in the kv_entries table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a store backed by the given database handle.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Get(key string) (string, bool) {
	var entry database.KVEntry
	err := s.db.First(&entry, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Local store: failed to read key %s: %v", key, err)
		}
		return "", false
	}
	return entry.Value, true
}

func (s *DBStore) Set(key, value string) error {
	entry := database.KVEntry{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *DBStore) Remove(key string) error {
	return s.db.Delete(&database.KVEntry{}, "key = ?", key).Error
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
