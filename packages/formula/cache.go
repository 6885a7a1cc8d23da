package formula

import "sync"

// DefaultCacheCapacity is the number of formulas whose tokens are kept.
const DefaultCacheCapacity = 2048

// TokenCache stores token sequences keyed by the exact formula text. when
// full, the oldest inserted key is evicted; lookups do not refresh age.
// cached slices are shared and never modified.
type TokenCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]Token
	order    []string // insertion order, oldest first
}

// NewTokenCache creates a cache holding at most capacity formulas. a
// capacity below 1 falls back to DefaultCacheCapacity.
func NewTokenCache(capacity int) *TokenCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &TokenCache{
		capacity: capacity,
		entries:  make(map[string][]Token),
	}
}

// Get returns the cached tokens for text.
func (tc *TokenCache) Get(text string) ([]Token, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tokens, ok := tc.entries[text]
	return tokens, ok
}

// Put stores tokens for text and returns the key evicted to make room, if
// any. storing an existing key keeps the first entry.
func (tc *TokenCache) Put(text string, tokens []Token) (evicted string, didEvict bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if _, exists := tc.entries[text]; exists {
		return "", false
	}
	if len(tc.entries) >= tc.capacity {
		evicted = tc.order[0]
		tc.order[0] = ""
		tc.order = tc.order[1:]
		delete(tc.entries, evicted)
		didEvict = true
	}
	tc.entries[text] = tokens
	tc.order = append(tc.order, text)
	return evicted, didEvict
}

// Len returns the number of cached formulas.
func (tc *TokenCache) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.entries)
}

// Capacity returns the configured bound.
func (tc *TokenCache) Capacity() int {
	return tc.capacity
}

// Clear removes all entries
func (tc *TokenCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries = make(map[string][]Token)
	tc.order = nil
}
