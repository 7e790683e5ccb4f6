// Package ratelimit keeps token-bucket limiters per key, usually a client IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

func NewKeyed(r rate.Limit, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*entry),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

// PerMinute builds a limiter allowing n events per minute with a burst of n.
func PerMinute(n int) *Keyed {
	return NewKeyed(rate.Every(time.Minute/time.Duration(n)), n)
}

func (k *Keyed) Allow(key string) bool {
	return k.get(key).Allow()
}

func (k *Keyed) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = k.now()
	return e.limiter
}

// Prune drops limiters not used within idle and returns how many remain.
func (k *Keyed) Prune(idle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-idle)
	for key, e := range k.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(k.limiters, key)
		}
	}
	return len(k.limiters)
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// ClientIP prefers the first X-Forwarded-For hop, then the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
