package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weldcfg/configurator/internal/compatibility"
	"github.com/weldcfg/configurator/internal/core"
)

// resultCache is a process-memory LRU cache in front of the graph port's
// parameterized searches, keyed on (kind, predicate-hash, attribute-hash)
// (SPEC_FULL "Graph-query result LRU cache"). Invalidated only by TTL —
// the catalogue is read-only from the core's perspective (spec §9).
type resultCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, cacheEntry]
	ttl   time.Duration
}

type cacheEntry struct {
	result   core.SearchResult
	cachedAt time.Time
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c, _ := lru.New[string, cacheEntry](size)
	return &resultCache{lru: c, ttl: ttl}
}

func (c *resultCache) get(key string) (core.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Get(key)
	if !ok {
		return core.SearchResult{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		c.lru.Remove(key)
		return core.SearchResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, result core.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheEntry{result: result, cachedAt: time.Now()})
}

// cacheKey builds a stable key from kind, the predicate's anchor GINs,
// and the attribute bag, independent of map iteration order.
func cacheKey(op string, kind core.ComponentKind, predicate core.CompatibilityPredicate, bag core.ParameterBag) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", op, kind)

	var anchors []string
	if p, ok := predicate.(compatibility.Predicate); ok {
		anchors = append(anchors, p.AnchorGINs...)
	} else {
		for _, a := range predicate.Anchors() {
			anchors = append(anchors, string(a))
		}
	}
	sort.Strings(anchors)
	for _, a := range anchors {
		fmt.Fprintf(h, "anchor:%s|", a)
	}

	var attrNames []string
	for name := range bag.Attributes {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)
	for _, name := range attrNames {
		fmt.Fprintf(h, "%s=%s|", name, bag.Attributes[name])
	}
	if bag.DirectProductMention != "" {
		fmt.Fprintf(h, "mention=%s|", bag.DirectProductMention)
	}

	return hex.EncodeToString(h.Sum(nil))
}
