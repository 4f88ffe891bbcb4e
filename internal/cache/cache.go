// Package cache memoizes generation results per request context so that an
// identical (prompt, prior choices) pair within one session never re-issues a
// network call.
package cache

import (
	"encoding/json"

	"story-client/internal/models"
)

// Key is the deterministic identity of one request context. It is used for
// memoization only, never for persistence.
type Key string

// NewKey derives the cache key from the prompt and the ordered prior
// choices. Canonical JSON keeps the encoding total, order-sensitive and
// collision-resistant: two logically distinct contexts never collide and the
// same context always maps to the same key.
func NewKey(prompt string, priorChoices []string) Key {
	payload := struct {
		Prompt       string   `json:"prompt"`
		PriorChoices []string `json:"previousChoices"`
	}{
		Prompt:       prompt,
		PriorChoices: priorChoices,
	}
	// Marshal of strings and string slices cannot fail.
	raw, _ := json.Marshal(payload)
	return Key(raw)
}

// Store is an in-memory memoization map. Lifetime is the owning service's
// lifetime; there is no eviction policy, growth is bounded only by session
// length in practice.
type Store struct {
	entries map[Key]models.CacheEntry
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{entries: make(map[Key]models.CacheEntry)}
}

// Get returns the memoized entry for key, if any. The returned choices slice
// is a copy so callers cannot mutate the cached value.
func (s *Store) Get(key Key) (models.CacheEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	return models.CacheEntry{
		StoryText: entry.StoryText,
		Choices:   append([]string(nil), entry.Choices...),
	}, true
}

// Put memoizes entry under key, overwriting any previous value.
func (s *Store) Put(key Key, entry models.CacheEntry) {
	s.entries[key] = models.CacheEntry{
		StoryText: entry.StoryText,
		Choices:   append([]string(nil), entry.Choices...),
	}
}

// Len reports the number of memoized contexts.
func (s *Store) Len() int {
	return len(s.entries)
}
