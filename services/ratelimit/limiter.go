// Package ratelimit bounds request rates per client with an in-process
// sliding window and throttles repeated login failures per username.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 100
	DefaultMaxClients  = 10000
)

// Config holds sliding window limiter settings
type Config struct {
	Window      time.Duration
	MaxRequests int
	MaxClients  int
}

// Decision is the outcome of a single admission check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds
func (d Decision) RetryAfterSeconds() int {
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Stats is a point-in-time view of the limiter
type Stats struct {
	Clients   int
	Evictions uint64
	Denials   uint64
}

// clientWindow holds the admitted timestamps of one client, oldest first
type clientWindow struct {
	key     string
	stamps  []time.Time
	element *list.Element
}

// prune drops timestamps at or before cutoff
func (w *clientWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// SlidingWindowLimiter admits at most MaxRequests per client within any
// trailing Window. Client state is bounded by MaxClients with LRU eviction.
// Safe for concurrent use.
type SlidingWindowLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	lru       *list.List // front is most recently seen
	window    time.Duration
	max       int
	capacity  int
	evictions uint64
	denials   uint64
	logger    *zap.Logger
}

// NewSlidingWindowLimiter creates a new SlidingWindowLimiter.
// Non-positive settings fall back to the defaults.
func NewSlidingWindowLimiter(cfg Config, logger *zap.Logger) *SlidingWindowLimiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlidingWindowLimiter{
		clients:  make(map[string]*clientWindow),
		lru:      list.New(),
		window:   cfg.Window,
		max:      cfg.MaxRequests,
		capacity: cfg.MaxClients,
		logger:   logger,
	}
}

// Window returns the configured window length
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// Limit returns the configured maximum requests per window
func (l *SlidingWindowLimiter) Limit() int {
	return l.max
}

// Admit records a request from clientKey at now if the client is under its limit.
// Pruning and appending happen under one lock so concurrent callers for the
// same key never admit more than the limit.
func (l *SlidingWindowLimiter) Admit(clientKey string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.touch(clientKey)
	w.prune(now.Add(-l.window))

	if len(w.stamps) >= l.max {
		l.denials++
		return Decision{
			Allowed:    false,
			Limit:      l.max,
			Remaining:  0,
			RetryAfter: l.window,
		}
	}

	w.stamps = append(w.stamps, now)
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(w.stamps),
	}
}

// Sweep removes clients whose every timestamp has left the window.
// Returns the number of clients removed.
func (l *SlidingWindowLimiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for e := l.lru.Back(); e != nil; {
		prev := e.Prev()
		w := e.Value.(*clientWindow)
		w.prune(cutoff)
		if len(w.stamps) == 0 {
			l.remove(w)
			removed++
		}
		e = prev
	}
	return removed
}

// StartJanitor runs Sweep every interval until ctx is cancelled.
// A non-positive interval disables the janitor.
func (l *SlidingWindowLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	l.logger.Info("started rate limit janitor", zap.Duration("interval", interval))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if removed := l.Sweep(now); removed > 0 {
					l.logger.Debug("swept idle rate limit clients", zap.Int("removed", removed))
				}
			case <-ctx.Done():
				l.logger.Info("stopping rate limit janitor")
				return
			}
		}
	}()
}

// Stats returns current limiter statistics
func (l *SlidingWindowLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Clients:   len(l.clients),
		Evictions: l.evictions,
		Denials:   l.denials,
	}
}

// touch returns the window for key, creating it and evicting the least
// recently seen client if capacity is reached. Caller holds l.mu.
func (l *SlidingWindowLimiter) touch(key string) *clientWindow {
	if w, ok := l.clients[key]; ok {
		l.lru.MoveToFront(w.element)
		return w
	}

	if l.lru.Len() >= l.capacity {
		if oldest := l.lru.Back(); oldest != nil {
			l.remove(oldest.Value.(*clientWindow))
			l.evictions++
		}
	}

	w := &clientWindow{key: key}
	w.element = l.lru.PushFront(w)
	l.clients[key] = w
	return w
}

// remove deletes w from the map and list. Caller holds l.mu.
func (l *SlidingWindowLimiter) remove(w *clientWindow) {
	l.lru.Remove(w.element)
	delete(l.clients, w.key)
}
