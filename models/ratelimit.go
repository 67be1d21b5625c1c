// kotatsu/models/ratelimit.go
package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter tracks a token-bucket limiter per client IP. It lives at the
// HTTP boundary; the posting engine itself only consults the ban registry.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time

	every  time.Duration
	burst  int
	expire time.Duration
}

// NewRateLimiter creates a limiter store and starts its pruning loop.
func NewRateLimiter(every time.Duration, burst int, prune, expire time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
		expire:   expire,
	}
	go rl.cleanup(prune)
	return rl
}

// GetLimiter retrieves or creates the limiter for an IP address.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.limiters[ip] = limiter
	}
	rl.lastSeen[ip] = time.Now()
	return limiter
}

// cleanup periodically drops entries for IPs not seen within the expiry window.
func (rl *RateLimiter) cleanup(prune time.Duration) {
	for range time.Tick(prune) {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.expire)
		for ip, lastSeen := range rl.lastSeen {
			if lastSeen.Before(cutoff) {
				delete(rl.limiters, ip)
				delete(rl.lastSeen, ip)
			}
		}
		rl.mu.Unlock()
	}
}
