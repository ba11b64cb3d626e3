package ratelimiter

import (
	"net/http"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/logging"
	"golang.org/x/time/rate"
)

var failedAuthLimiter = newLimiter()
var newSessionLimiter = newLimiter()

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type store struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	cleanupStarted bool
}

func newLimiter() *store {
	return &store{
		limiters: make(map[string]*limiterEntry),
	}
}

// WaitOnFailedAuth blocks the current goroutine until the rate limiter allows a request
// Two failed attempts without limiting, thereafter one attempt every 3 seconds
func WaitOnFailedAuth(r *http.Request) {
	ip := logging.GetIpAddress(r)
	_ = failedAuthLimiter.Get(ip, 1, 6).WaitN(r.Context(), 3)
}

// IsAllowedNewSession returns true if the client may open another upload session
// Twenty sessions are allowed without rate limiting, thereafter one every second
func IsAllowedNewSession(r *http.Request) bool {
	return newSessionLimiter.Get(logging.GetIpAddress(r), 1, 20).Allow()
}

// Get returns the rate limiter for the given key
func (s *store) Get(key string, r rate.Limit, burst int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(r, burst),
		}
	}

	e.lastSeen = time.Now()
	s.limiters[key] = e
	s.startCleanup(12 * time.Hour)
	return e.limiter
}

// startCleanup starts a goroutine that continuously cleans up old entries from the store.
// Must be called with the mutex held
func (s *store) startCleanup(maxIdle time.Duration) {
	if s.cleanupStarted {
		return
	}
	s.cleanupStarted = true
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		for range ticker.C {
			s.removeIdle(time.Now(), maxIdle)
		}
	}()
}

func (s *store) removeIdle(now time.Time, maxIdle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.limiters {
		if now.Sub(v.lastSeen) > maxIdle {
			delete(s.limiters, k)
		}
	}
}
