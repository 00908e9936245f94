package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxRequestsPerWindow is the default request budget per client
	// within one window
	DefaultMaxRequestsPerWindow = 100

	// DefaultWindow is the default sliding window length
	DefaultWindow = 60 * time.Second

	// DefaultCleanupInterval is how often the idle-entry cleanup runs
	DefaultCleanupInterval = time.Minute

	// DefaultMaxClients is the maximum number of client keys to track
	DefaultMaxClients = 10000

	// UnknownClientKey is the shared bucket for requests whose client IP
	// cannot be derived. All such requests count against one window.
	UnknownClientKey = "unknown"
)

// clientEntry tracks the request timestamps for one client key
type clientEntry struct {
	key        string
	requests   []time.Time // timestamps within the trailing window
	lastAccess time.Time
}

// RateLimiter is a sliding-window rate limiter keyed by client IP. Each
// client gets maxPerWindow requests per window; a rejected request is not
// recorded, so hammering a blocked limit does not extend the block.
//
// Tracked clients are bounded: an LRU list caps the map at maxClients and a
// background loop evicts entries idle past the window. Call Stop to
// terminate the loop.
type RateLimiter struct {
	entries         map[string]*list.Element // client key -> list element
	lruList         *list.List               // LRU list of *clientEntry
	mu              sync.RWMutex
	maxPerWindow    int
	window          time.Duration
	maxClients      int
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	// Statistics
	totalBlocked   int64
	totalAllowed   int64
	totalEvictions int64
	totalCleanups  int64
}

// NewRateLimiter creates a sliding-window rate limiter with the defaults
// (100 requests per 60s, 10,000 tracked clients)
func NewRateLimiter(logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(
		DefaultMaxRequestsPerWindow,
		DefaultWindow,
		DefaultMaxClients,
		logger,
	)
}

// NewRateLimiterWithConfig creates a sliding-window rate limiter with custom
// limits
func NewRateLimiterWithConfig(maxPerWindow int, window time.Duration, maxClients int, logger *slog.Logger) *RateLimiter {
	return newRateLimiterWithCleanupInterval(maxPerWindow, window, maxClients, DefaultCleanupInterval, logger)
}

// newRateLimiterWithCleanupInterval exists so tests can shrink the cleanup
// cadence
func newRateLimiterWithCleanupInterval(maxPerWindow int, window time.Duration, maxClients int, cleanupInterval time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxRequestsPerWindow
		logger.Warn("Invalid maxPerWindow, using default", "max_per_window", maxPerWindow)
	}
	if window <= 0 {
		window = DefaultWindow
		logger.Warn("Invalid window, using default", "window", window)
	}
	if maxClients < 0 {
		maxClients = DefaultMaxClients
		logger.Warn("Invalid maxClients, using default", "max_clients", maxClients)
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
		logger.Warn("Invalid cleanupInterval, using default", "cleanup_interval", cleanupInterval)
	}

	rl := &RateLimiter{
		entries:         make(map[string]*list.Element),
		lruList:         list.New(),
		maxPerWindow:    maxPerWindow,
		window:          window,
		maxClients:      maxClients,
		logger:          logger,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	logger.Info("Rate limiter initialized",
		"max_per_window", maxPerWindow,
		"window", window,
		"max_clients", maxClients)

	return rl
}

// Allow reports whether a request from the given client key is admitted.
// Timestamps outside the window are pruned first; if the remaining count has
// reached the limit the request is rejected without being recorded,
// otherwise it is recorded and admitted.
func (rl *RateLimiter) Allow(clientKey string) bool {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, exists := rl.entries[clientKey]; exists {
		rl.lruList.MoveToFront(elem)
		entry := elem.Value.(*clientEntry)
		entry.lastAccess = now

		// Prune timestamps outside the window in place
		n := 0
		for _, t := range entry.requests {
			if t.After(windowStart) {
				entry.requests[n] = t
				n++
			}
		}
		entry.requests = entry.requests[:n]

		if len(entry.requests) >= rl.maxPerWindow {
			rl.totalBlocked++
			rl.logger.Warn("Rate limit exceeded",
				"client", clientKey,
				"requests_in_window", len(entry.requests),
				"max_per_window", rl.maxPerWindow,
				"window", rl.window,
				"total_blocked", rl.totalBlocked)
			return false
		}

		entry.requests = append(entry.requests, now)
		rl.totalAllowed++
		return true
	}

	// New client key; evict the least recently used entry at capacity
	if rl.maxClients > 0 && len(rl.entries) >= rl.maxClients {
		rl.evictLRU()
	}

	entry := &clientEntry{
		key:        clientKey,
		requests:   []time.Time{now},
		lastAccess: now,
	}
	elem := rl.lruList.PushFront(entry)
	rl.entries[clientKey] = elem

	rl.totalAllowed++
	rl.logger.Debug("New client tracked for rate limiting",
		"client", clientKey,
		"total_tracked_clients", len(rl.entries))
	return true
}

// evictLRU removes the least recently used entry. Must be called with the
// mutex held.
func (rl *RateLimiter) evictLRU() {
	elem := rl.lruList.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*clientEntry)
	delete(rl.entries, entry.key)
	rl.lruList.Remove(elem)
	rl.totalEvictions++

	rl.logger.Debug("Rate limiter LRU eviction",
		"client", entry.key,
		"total_evictions", rl.totalEvictions,
		"current_clients", len(rl.entries))
}

// cleanupLoop periodically removes idle entries until Stop is called
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup removes entries that have been idle for more than twice the window
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	maxIdleTime := rl.window * 2
	removed := 0

	var next *list.Element
	for elem := rl.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*clientEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(rl.entries, entry.key)
			rl.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		rl.totalCleanups++
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.entries),
			"total_cleanups", rl.totalCleanups)
	}
}

// Stop terminates the cleanup goroutine. Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
		rl.logger.Debug("Rate limiter stopped")
	})
}

// LimiterStats holds rate limiter statistics for monitoring
type LimiterStats struct {
	CurrentClients int     // Current number of tracked client keys
	MaxClients     int     // Maximum tracked clients (0 = unlimited)
	TotalBlocked   int64   // Total requests rejected
	TotalAllowed   int64   // Total requests admitted
	TotalEvictions int64   // Total LRU evictions
	TotalCleanups  int64   // Total cleanup passes that removed entries
	MaxPerWindow   int     // Request budget per window
	Window         string  // Window duration
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() LimiterStats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	stats := LimiterStats{
		CurrentClients: len(rl.entries),
		MaxClients:     rl.maxClients,
		TotalBlocked:   rl.totalBlocked,
		TotalAllowed:   rl.totalAllowed,
		TotalEvictions: rl.totalEvictions,
		TotalCleanups:  rl.totalCleanups,
		MaxPerWindow:   rl.maxPerWindow,
		Window:         rl.window.String(),
	}

	if rl.maxClients > 0 {
		stats.MemoryPressure = float64(stats.CurrentClients) / float64(rl.maxClients) * 100.0
	}

	return stats
}
