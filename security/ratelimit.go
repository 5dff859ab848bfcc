package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxEntries bounds the number of distinct identifiers tracked
// simultaneously before least-recently-used eviction kicks in.
const defaultMaxEntries = 10000

// rateLimiterEntry tracks a limiter and its last access time.
type rateLimiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier rate limiting using the token bucket
// algorithm, with LRU eviction to prevent unbounded memory growth. The
// identifier is typically a client IP address.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*list.Element // identifier -> list element
	lruList    *list.List               // LRU list of *rateLimiterEntry
	rate       int
	burst      int
	maxEntries int
	logger     *slog.Logger
}

// NewRateLimiter creates a new rate limiter allowing requestsPerSecond with
// the given burst per identifier.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		limiters:   make(map[string]*list.Element),
		lruList:    list.New(),
		rate:       requestsPerSecond,
		burst:      burst,
		maxEntries: defaultMaxEntries,
		logger:     logger,
	}
}

// Allow reports whether a request from the given identifier may proceed.
// A zero configured rate disables limiting entirely.
func (rl *RateLimiter) Allow(identifier string) bool {
	if rl == nil || rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	elem, ok := rl.limiters[identifier]
	if !ok {
		if rl.lruList.Len() >= rl.maxEntries {
			rl.evictOldest()
		}
		entry := &rateLimiterEntry{
			identifier: identifier,
			limiter:    rate.NewLimiter(rate.Limit(rl.rate), rl.burst),
			lastAccess: time.Now(),
		}
		elem = rl.lruList.PushFront(entry)
		rl.limiters[identifier] = elem
	} else {
		entry := elem.Value.(*rateLimiterEntry)
		entry.lastAccess = time.Now()
		rl.lruList.MoveToFront(elem)
	}

	return elem.Value.(*rateLimiterEntry).limiter.Allow()
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (rl *RateLimiter) evictOldest() {
	oldest := rl.lruList.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*rateLimiterEntry)
	rl.lruList.Remove(oldest)
	delete(rl.limiters, entry.identifier)
	rl.logger.Debug("Evicted rate limiter entry",
		"identifier", entry.identifier,
		"last_access", entry.lastAccess)
}

// Len returns the number of identifiers currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lruList.Len()
}
