package credits

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/warp/creative-boost/metrics"
)

// =============================================================================
// SUMMARY CACHE - Memoised output aggregation per (client, month)
// =============================================================================

// outputAggregate is the part of a summary derived from the output log.
// Ledger fields and client names are never cached.
type outputAggregate struct {
	Credits   OutputCredits
	ItemCount int
}

// SummaryCache memoises output aggregation. Writes to the output log invalidate
// the affected key; catalog changes flush everything.
//
// A generation counter guards against a reader storing an aggregate it computed
// before a concurrent invalidation: Set only succeeds if no invalidation happened
// since the matching Generation call.
type SummaryCache struct {
	mu         sync.Mutex
	items      *cache.Cache
	generation uint64
}

// NewSummaryCache creates a cache whose entries expire after ttl.
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	return &SummaryCache{items: cache.New(ttl, 2*ttl)}
}

func cacheKey(clientID string, p Period) string {
	return clientID + "|" + p.String()
}

func (c *SummaryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *SummaryCache) get(clientID string, p Period) (outputAggregate, bool) {
	if x, found := c.items.Get(cacheKey(clientID, p)); found {
		metrics.SummaryCacheLookups.WithLabelValues("hit").Inc()
		return x.(outputAggregate), true
	}
	metrics.SummaryCacheLookups.WithLabelValues("miss").Inc()
	return outputAggregate{}, false
}

func (c *SummaryCache) set(clientID string, p Period, agg outputAggregate, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.items.Set(cacheKey(clientID, p), agg, cache.DefaultExpiration)
}

// Invalidate drops the entry for one client month.
func (c *SummaryCache) Invalidate(clientID string, p Period) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.items.Delete(cacheKey(clientID, p))
}

// Flush drops every entry.
func (c *SummaryCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.items.Flush()
}

func (c *SummaryCache) Len() int { return c.items.ItemCount() }
