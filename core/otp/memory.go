package otp

import (
	"sync"
	"time"
)

// MemoryRepository is the in-process Repository. It is the production store
// for a single-process deployment; swap it for a TTL-capable key-value store
// when running more than one instance.
type MemoryRepository struct {
	mu    sync.RWMutex
	table map[string]Record
}

var _ Repository = (*MemoryRepository)(nil) // interface compliance check

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{table: make(map[string]Record)}
}

func (repo *MemoryRepository) Save(rec Record) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.table[rec.Identity] = rec
	return nil
}

func (repo *MemoryRepository) Get(identity string) (Record, bool, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	rec, ok := repo.table[identity]
	return rec, ok, nil
}

func (repo *MemoryRepository) Delete(identity string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.table, identity)
	return nil
}

func (repo *MemoryRepository) DeleteExpired(now time.Time) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var n int
	for identity, rec := range repo.table {
		if !now.Before(rec.ExpiresAt) {
			delete(repo.table, identity)
			n++
		}
	}
	return n, nil
}
