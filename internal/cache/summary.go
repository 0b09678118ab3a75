package cache

import (
	"context"
	"time"

	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/report"
)

// Summarizer produces range summaries.
type Summarizer interface {
	Summarize(ctx context.Context, tenant string, req report.Request) (report.Summary, error)
}

// SummaryCache memoizes range summaries per tenant. Any committed ledger
// change drops the tenant's entries.
type SummaryCache struct {
	next   Summarizer
	lru    *LRUCache[report.Summary]
	logger *log.Logger
}

func NewSummaryCache(next Summarizer, maxSize int, ttl time.Duration, logger *log.Logger) *SummaryCache {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SummaryCache{
		next:   next,
		lru:    NewLRUCache[report.Summary](maxSize, ttl),
		logger: logger.WithComponent(log.ComponentCache),
	}
}

func tenantPrefix(tenant string) string { return tenant + "\x00" }

// Summarize serves from the cache when possible. Relative ranges embed the
// current day in the key, so a cached "today" never outlives its date.
func (c *SummaryCache) Summarize(ctx context.Context, tenant string, req report.Request) (report.Summary, error) {
	key := tenantPrefix(tenant) + time.Now().UTC().Format(time.DateOnly) + "|" + req.CacheKey()
	if s, ok := c.lru.Get(key); ok {
		return s, nil
	}
	s, err := c.next.Summarize(ctx, tenant, req)
	if err != nil {
		return report.Summary{}, err
	}
	c.lru.Set(key, s)
	return s, nil
}

// LedgerChanged invalidates the tenant's cached summaries.
func (c *SummaryCache) LedgerChanged(ctx context.Context, ch ledger.Change) {
	if n := c.InvalidateTenant(ch.Tenant); n > 0 {
		c.logger.DebugContext(ctx, "Summary cache invalidated",
			log.FieldTenant, ch.Tenant,
			log.FieldOperation, ch.Operation,
			"entries", n)
	}
}

// InvalidateTenant drops the tenant's cached summaries and reports how many
// went. It serves changes committed by other processes.
func (c *SummaryCache) InvalidateTenant(tenant string) int {
	return c.lru.DeletePrefix(tenantPrefix(tenant))
}

// CleanExpired lets a Manager sweep the cache.
func (c *SummaryCache) CleanExpired() int { return c.lru.CleanExpired() }

// Size returns the number of cached summaries.
func (c *SummaryCache) Size() int { return c.lru.Size() }

// Stats reports hit and eviction counters for /metrics.
func (c *SummaryCache) Stats() Stats { return c.lru.Stats() }

var (
	_ ledger.Observer = (*SummaryCache)(nil)
	_ Cache[int]      = (*LRUCache[int])(nil)
)
