package pager

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ───────────────────────────────────────────────────────────────────────────
// Per-transaction container cache
// ───────────────────────────────────────────────────────────────────────────
//
// TxContainerCache is the topmost tier of spec §4.4's three-tier hierarchy: a
// cache private to one PageReadTransaction, keyed by the transaction-log key
// stamped onto a PageReference during descent. It is checked first, before
// the transaction log overlay and before the shared BufferManager, since a
// transaction that has already paid to reconstruct a versioned page once
// should never pay for it again. Entries expire after a short TTL so a
// long-lived transaction does not pin an unbounded amount of memory for
// pages it visited once and will not revisit.
type TxContainerCache struct {
	cache *lru.LRU[int64, *ReconstructedPage]
}

// TxContainerCacheConfig configures a TxContainerCache.
type TxContainerCacheConfig struct {
	MaxEntries int           // default 256
	TTL        time.Duration // default 30s
}

// NewTxContainerCache creates a per-transaction container cache.
func NewTxContainerCache(cfg TxContainerCacheConfig) *TxContainerCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 256
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TxContainerCache{cache: lru.NewLRU[int64, *ReconstructedPage](maxEntries, nil, ttl)}
}

// Get returns the reconstructed page cached under a transaction-log key.
func (c *TxContainerCache) Get(logKey int64) (*ReconstructedPage, bool) {
	return c.cache.Get(logKey)
}

// Put caches a reconstructed page under a transaction-log key.
func (c *TxContainerCache) Put(logKey int64, page *ReconstructedPage) {
	c.cache.Add(logKey, page)
}

// Len reports the current number of cached entries, for diagnostics.
func (c *TxContainerCache) Len() int { return c.cache.Len() }
