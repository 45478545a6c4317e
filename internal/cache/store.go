// Package cache keeps content store query results for a bounded time and
// serves them while the upstream is refreshed or unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/nirman-site/internal/sanity"
)

// Entry is one cached query result. NoResult marks a query that matched
// nothing, so repeated lookups of missing documents stay cheap.
type Entry struct {
	Value    json.RawMessage `json:"value,omitempty"`
	NoResult bool            `json:"no_result,omitempty"`
	StoredAt time.Time       `json:"stored_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

func (e *Entry) decode(out any) error {
	if e.NoResult {
		return sanity.ErrNoResult
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return fmt.Errorf("failed to decode cached value: %w", err)
	}
	return nil
}

// Store persists entries. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e *Entry) error {
	if e == nil {
		return fmt.Errorf("cache: nil entry for %q", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = *e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
