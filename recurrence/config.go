package recurrence

import (
	"time"
)

// Config holds configuration options for rule parsing and date computation
type Config struct {
	// Cache configuration
	CacheEnabled bool
	Cache        CacheConfig

	// Location is the zone every occurrence is computed in. nil means time.Local.
	Location *time.Location
}

// DefaultConfig provides sensible defaults for production use
var DefaultConfig = Config{
	CacheEnabled: true,
	Cache:        DefaultCacheConfig,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = Config{
	CacheEnabled: true,
	Cache: CacheConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 100,
	},
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = Config{
	CacheEnabled: false,
}

// Engine bundles the parser and calculator configured by a Config.
type Engine struct {
	cache      *RuleCache
	calculator *Calculator
}

// NewEngine creates a recurrence engine with the default configuration
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultConfig)
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config Config) *Engine {
	var cache *RuleCache
	if config.CacheEnabled {
		cache = NewRuleCache(config.Cache)
	}

	return &Engine{
		cache:      cache,
		calculator: NewCalculator(config.Location),
	}
}

// Parse parses rule text, going through the cache when enabled
func (e *Engine) Parse(text string) (Rule, error) {
	if e.cache == nil {
		return Parse(text)
	}
	return e.cache.Parse(text)
}

// Next delegates to the engine's calculator
func (e *Engine) Next(anchor time.Time, hasTime bool, rule Rule) (Occurrence, bool) {
	return e.calculator.Next(anchor, hasTime, rule).Get()
}

// Location returns the zone occurrences are computed in
func (e *Engine) Location() *time.Location {
	return e.calculator.Location()
}

// CacheStats reports cache statistics; zero when caching is disabled
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}
