package store

import (
	"context"
	"sort"
	"sync"

	"papertrade/internal/domain"
)

// Compile-time interface checks.
var _ KV = (*MemoryStore)(nil)
var _ TradeJournal = (*MemoryStore)(nil)

// MemoryStore implements KV and TradeJournal in memory. It backs tests and
// the "memory" storage backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	trades []domain.Trade
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores a single value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// SetMany stores all values under one lock.
func (s *MemoryStore) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()
	return nil
}

// Clear removes keys, or everything when none are given.
func (s *MemoryStore) Clear(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		s.values = make(map[string]string)
		return nil
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// RecordTrade appends a trade.
func (s *MemoryStore) RecordTrade(_ context.Context, trade domain.Trade) error {
	s.mu.Lock()
	s.trades = append(s.trades, trade)
	s.mu.Unlock()
	return nil
}

// ListTrades returns trades newest first.
func (s *MemoryStore) ListTrades(_ context.Context, limit int) ([]domain.Trade, error) {
	s.mu.RLock()
	out := make([]domain.Trade, 0, len(s.trades))
	for i := len(s.trades) - 1; i >= 0; i-- {
		out = append(out, s.trades[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
