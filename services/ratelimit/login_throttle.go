package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig holds per-username token bucket settings
type ThrottleConfig struct {
	Every   time.Duration // one token is restored every interval
	Burst   int
	IdleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle limits login attempts per username with a token bucket.
// A successful login resets the bucket, so in practice only failures drain it.
type LoginThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	limit   rate.Limit
	every   time.Duration
	burst   int
	idleTTL time.Duration
}

// NewLoginThrottle creates a new LoginThrottle
func NewLoginThrottle(cfg ThrottleConfig) *LoginThrottle {
	if cfg.Every <= 0 {
		cfg.Every = 12 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	return &LoginThrottle{
		entries: make(map[string]*throttleEntry),
		limit:   rate.Every(cfg.Every),
		every:   cfg.Every,
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
	}
}

// Allow consumes one attempt for username at now and reports whether it is permitted
func (t *LoginThrottle) Allow(username string, now time.Time) bool {
	key := normalizeUsername(username)

	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries[key]
	if !ok {
		ent = &throttleEntry{lim: rate.NewLimiter(t.limit, t.burst)}
		t.entries[key] = ent
	}
	ent.lastSeen = now
	return ent.lim.AllowN(now, 1)
}

// Reset forgets all attempts recorded for username
func (t *LoginThrottle) Reset(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, normalizeUsername(username))
}

// Cleanup removes usernames idle for longer than the idle TTL
func (t *LoginThrottle) Cleanup(now time.Time) int {
	cutoff := now.Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Cleanup every interval until ctx is cancelled
func (t *LoginThrottle) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.Cleanup(now)
			}
		}
	}()
}

// RetryAfter returns how long a throttled username waits for its next attempt
func (t *LoginThrottle) RetryAfter() time.Duration {
	return t.every
}

// Len returns the number of tracked usernames
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
