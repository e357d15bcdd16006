package tolerance

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const (
	cacheTTL     = 60 * time.Second
	maxCacheKeys = 50
)

type cacheEntry struct {
	value      float64
	computedAt time.Time
}

// Calculator produces the baseline price tolerance for an instrument:
// ATR times the symbol/timeframe multiplier, clamped to the configured
// bounds. Values are cached per (symbol, timeframe, params) key so the
// tolerance stays stable for the TTL even as ATR wiggles tick to tick.
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
	order []string // insertion order, oldest first
	now   func() time.Time
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// BaseTolerance returns the cached baseline tolerance, recomputing it
// when the entry is older than the TTL. The cache holds at most 50 keys;
// inserting beyond that evicts the oldest entry.
func (c *Calculator) BaseTolerance(symbol, timeframe string, atr float64, p config.ToleranceParams) float64 {
	key := fmt.Sprintf("%s|%s|%+v", symbol, timeframe, p)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache[key]; ok && c.now().Sub(entry.computedAt) < cacheTTL {
		return entry.value
	}

	value := atr * p.ATRMultiplier
	if value < p.MinTolerance {
		value = p.MinTolerance
	}
	if value > p.MaxTolerance {
		value = p.MaxTolerance
	}

	if _, exists := c.cache[key]; !exists {
		c.order = append(c.order, key)
		if len(c.order) > maxCacheKeys {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
		}
	}
	c.cache[key] = cacheEntry{value: value, computedAt: c.now()}
	return value
}

// Invalidate drops every cached entry for a symbol, used after a config
// reload changes that symbol's params.
func (c *Calculator) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	prefix := symbol + "|"
	for _, key := range c.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.cache, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
