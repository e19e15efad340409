package cache

import (
	"sync"
	"time"
)

// Stats tracks cache effectiveness counters. All fields are guarded by the
// internal mutex; Snapshot returns a consistent copy.
type Stats struct {
	mu            sync.Mutex
	hits          uint64
	misses        uint64
	invalidations uint64
	reaped        uint64
	startedAt     time.Time
	lastCleanup   time.Time
}

// NewStats creates a Stats with the uptime clock started now.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// Hit records a cache hit.
func (s *Stats) Hit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

// Miss records a cache miss.
func (s *Stats) Miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// Invalidated records n entries deleted by mutation-driven invalidation.
func (s *Stats) Invalidated(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.invalidations += uint64(n)
	s.mu.Unlock()
}

// Reaped records n entries removed by the periodic reaper and stamps the
// last-cleanup time.
func (s *Stats) Reaped(n int) {
	s.mu.Lock()
	s.reaped += uint64(n)
	s.lastCleanup = time.Now()
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of all counters plus derived figures.
type Snapshot struct {
	InstanceID    string        `json:"instance_id"`
	Hits          uint64        `json:"hits"`
	Misses        uint64        `json:"misses"`
	Evictions     uint64        `json:"evictions"`
	Invalidations uint64        `json:"invalidations"`
	Reaped        uint64        `json:"reaped"`
	CacheSize     int           `json:"cache_size"`
	HitRate       float64       `json:"hit_rate"`
	Uptime        time.Duration `json:"uptime"`
	LastCleanup   time.Time     `json:"last_cleanup"`
}

// Snapshot combines the counters with the store-side figures supplied by the
// caller.
func (s *Stats) Snapshot(instanceID string, cacheSize int, evictions uint64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		InstanceID:    instanceID,
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     evictions,
		Invalidations: s.invalidations,
		Reaped:        s.reaped,
		CacheSize:     cacheSize,
		Uptime:        time.Since(s.startedAt),
		LastCleanup:   s.lastCleanup,
	}
	if total := s.hits + s.misses; total > 0 {
		snap.HitRate = float64(s.hits) / float64(total)
	}
	return snap
}
