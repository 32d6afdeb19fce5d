package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/domain/providers"
)

// rateLimiter counts requests per key in fixed windows. Counters live in the
// shared store when one is configured, else in process memory.
type rateLimiter struct {
	counter providers.CounterProvider
	limit   int
	window  time.Duration
	local   *localRateLimiter
}

func newRateLimiter(counter providers.CounterProvider, limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		local:   newLocalRateLimiter(time.Now),
	}
}

// allow reports whether the request under key may proceed and, when it may
// not, how long the caller should wait. If the shared store fails, the
// in-process counters take over.
func (l *rateLimiter) allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.counter == nil {
		return l.local.allow(key, l.limit, l.window)
	}

	count, ttl, err := l.counter.Increment(ctx, key, l.window)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, counting in memory")
		return l.local.allow(key, l.limit, l.window)
	}
	if count > int64(l.limit) {
		return false, ttl
	}
	return true, ttl
}

type localRateLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	states    map[string]*localRateState
	nextSweep time.Time
}

type localRateState struct {
	count   int
	resetAt time.Time
}

func newLocalRateLimiter(now func() time.Time) *localRateLimiter {
	return &localRateLimiter{now: now, states: make(map[string]*localRateState)}
}

func (l *localRateLimiter) allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now, window)

	state, ok := l.states[key]
	if !ok || !now.Before(state.resetAt) {
		state = &localRateState{resetAt: now.Add(window)}
		l.states[key] = state
	}

	if state.count >= limit {
		return false, state.resetAt.Sub(now)
	}

	state.count++
	return true, state.resetAt.Sub(now)
}

// sweep drops expired windows, at most once per window.
func (l *localRateLimiter) sweep(now time.Time, window time.Duration) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, state := range l.states {
		if !now.Before(state.resetAt) {
			delete(l.states, key)
		}
	}
	l.nextSweep = now.Add(window)
}

func (l *localRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
