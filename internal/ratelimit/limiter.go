// Package ratelimit keeps one token bucket per client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Store manages rate limiters for multiple clients
type Store struct {
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store handing out requestsPerSec/burst buckets. Buckets
// unused for longer than idle are evicted by a background sweep; idle of zero
// disables the sweep.
func NewStore(requestsPerSec float64, burst int, idle time.Duration) *Store {
	s := &Store{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(requestsPerSec),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if idle > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *Store) get(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = s.now()
	return e
}

// Allow reports whether a request for key may proceed now.
func (s *Store) Allow(key string) bool {
	return s.get(key).limiter.AllowN(s.now(), 1)
}

// RetryAfter returns how long key has to wait for its next token.
func (s *Store) RetryAfter(key string) time.Duration {
	r := s.get(key).limiter.ReserveN(s.now(), 1)
	defer r.CancelAt(s.now())
	if !r.OK() {
		return time.Second
	}
	return r.DelayFrom(s.now())
}

// Reset forgets the bucket for key
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, key)
}

// Count returns the number of tracked limiters
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Close stops the background sweep.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.limiters, key)
		}
	}
}
