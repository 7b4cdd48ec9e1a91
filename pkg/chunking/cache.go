// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

// TokenizationCache avoids redundant tokenizer calls within one chunking run
// or batch. It is bounded but deliberately not an LRU: when a sub-store
// reaches capacity, half of its entries are evicted in map iteration order.
type TokenizationCache struct {
	estimates     map[string]int
	tokenizations map[string][]int
	maxSize       int
	enabled       bool
}

const defaultCacheSize = 1000

// NewTokenizationCache creates an enabled cache holding up to maxSize
// entries per sub-store.
func NewTokenizationCache(maxSize int) *TokenizationCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &TokenizationCache{
		estimates:     make(map[string]int),
		tokenizations: make(map[string][]int),
		maxSize:       maxSize,
		enabled:       true,
	}
}

// DisabledTokenizationCache creates a pass-through cache that stores nothing.
func DisabledTokenizationCache() *TokenizationCache {
	c := NewTokenizationCache(defaultCacheSize)
	c.enabled = false
	return c
}

// Estimate returns the cached token-count estimate for text.
func (c *TokenizationCache) Estimate(text string) (int, bool) {
	if !c.enabled {
		return 0, false
	}
	n, ok := c.estimates[text]
	return n, ok
}

// PutEstimate caches a token-count estimate, evicting half the sub-store on
// overflow.
func (c *TokenizationCache) PutEstimate(text string, count int) {
	if !c.enabled {
		return
	}
	if len(c.estimates) >= c.maxSize {
		evictHalf(c.estimates, c.maxSize)
	}
	c.estimates[text] = count
}

// Tokens returns the cached full tokenization for text.
func (c *TokenizationCache) Tokens(text string) ([]int, bool) {
	if !c.enabled {
		return nil, false
	}
	tokens, ok := c.tokenizations[text]
	return tokens, ok
}

// PutTokens caches a full tokenization, evicting half the sub-store on
// overflow.
func (c *TokenizationCache) PutTokens(text string, tokens []int) {
	if !c.enabled {
		return
	}
	if len(c.tokenizations) >= c.maxSize {
		evictHalf(c.tokenizations, c.maxSize)
	}
	c.tokenizations[text] = tokens
}

// Clear drops all cached entries.
func (c *TokenizationCache) Clear() {
	clear(c.estimates)
	clear(c.tokenizations)
}

// Stats returns the estimate store size, tokenization store size and the
// configured capacity.
func (c *TokenizationCache) Stats() (int, int, int) {
	return len(c.estimates), len(c.tokenizations), c.maxSize
}

func evictHalf[V any](m map[string]V, maxSize int) {
	drop := maxSize / 2
	for k := range m {
		if drop <= 0 {
			break
		}
		delete(m, k)
		drop--
	}
}
