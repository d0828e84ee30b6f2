package recurrence

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/mo"
)

// CacheConfig holds configuration for the parsed-rule cache
type CacheConfig struct {
	TTL        time.Duration // How long a parsed rule stays valid
	MaxEntries int           // Least recently used rules are evicted past this size
}

// DefaultCacheConfig provides sensible defaults for rule caching
var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

// RuleCache memoizes Parse by rule text. Failed parses are cached as well, so
// a broken rule is not re-parsed on every completion.
type RuleCache struct {
	entries *expirable.LRU[string, mo.Result[Rule]]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewRuleCache creates a cache with the given configuration
func NewRuleCache(config CacheConfig) *RuleCache {
	size := config.MaxEntries
	if size <= 0 {
		size = DefaultCacheConfig.MaxEntries
	}
	return &RuleCache{
		entries: expirable.NewLRU[string, mo.Result[Rule]](size, nil, config.TTL),
	}
}

// Parse returns the cached result for text, parsing it on a miss
func (c *RuleCache) Parse(text string) (Rule, error) {
	if result, ok := c.entries.Get(text); ok {
		c.hits.Add(1)
		return result.Get()
	}
	c.misses.Add(1)

	rule, err := Parse(text)
	if err != nil {
		c.entries.Add(text, mo.Err[Rule](err))
		return Rule{}, err
	}
	c.entries.Add(text, mo.Ok(rule))
	return rule, nil
}

// Purge drops every cached rule
func (c *RuleCache) Purge() {
	c.entries.Purge()
}

// Stats returns cache statistics
func (c *RuleCache) Stats() CacheStats {
	return CacheStats{
		Entries: c.entries.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// CacheStats provides information about cache performance
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}
