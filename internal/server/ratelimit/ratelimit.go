// Package ratelimit provides per-client token bucket rate limiting backed by
// golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket pairs a client's limiter with the limit it was built from.
type bucket struct {
	limiter *rate.Limiter
	limit   int
}

func newBucket(endpoint *EndpointConfig) *bucket {
	burst := endpoint.Burst
	if burst <= 0 {
		burst = endpoint.Limit
	}
	every := rate.Limit(float64(endpoint.Limit) / endpoint.Window.Seconds())
	return &bucket{limiter: rate.NewLimiter(every, burst), limit: endpoint.Limit}
}

// take consumes one token at now if one is available.
func (b *bucket) take(now time.Time) Info {
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     b.limit,
		Remaining: max(0, int(tokens)),
		ResetTime: now,
	}
	if missing := float64(b.limiter.Burst()) - tokens; missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second)))
	}
	if !allowed {
		r := b.limiter.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return info
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter keeps one bucket per client and matched endpoint, plus one per
// client for everything under the default limit.
type Limiter struct {
	config    Config
	whitelist map[string]bool
	blacklist map[string]bool
	exempt    map[string]bool
	now       func() time.Time

	mu       sync.Mutex
	buckets  map[string]*bucket
	lastUsed map[string]time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter. A cleanup goroutine removing idle buckets
// runs until Stop when cfg.CleanupInterval is positive.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	l := &Limiter{
		config:    cfg,
		whitelist: toSet(cfg.Whitelist),
		blacklist: toSet(cfg.Blacklist),
		exempt:    toSet(cfg.Exempt),
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		lastUsed:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		l.stop = make(chan struct{})
		l.done = make(chan struct{})
		go l.cleanup(cfg.CleanupInterval)
	}
	return l
}

// Allow checks whether a request from clientID to path may proceed and
// consumes a token when it does.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	switch {
	case !l.config.Enabled, l.whitelist[clientID], l.exempt[path]:
		return true, Info{Allowed: true}
	case l.blacklist[clientID]:
		return false, Info{}
	}

	endpoint := MatchEndpoint(path, method, l.config.Endpoints)
	if endpoint == nil {
		endpoint = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	}
	if endpoint.Limit <= 0 || endpoint.Window <= 0 {
		return true, Info{Allowed: true}
	}

	key := bucketKey(clientID, endpoint)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(endpoint)
		l.buckets[key] = b
	}
	l.lastUsed[key] = now

	info := b.take(now)
	return info.Allowed, info
}

// bucketKey names the bucket by the matched endpoint, not the request path,
// so every path under the default limit shares one bucket per client.
func bucketKey(clientID string, endpoint *EndpointConfig) string {
	if endpoint.Path == "" {
		return clientID + ":default"
	}
	return clientID + ":" + endpoint.Method + ":" + endpoint.Path
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanup(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle removes buckets unused for longer than the idle timeout.
func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-l.config.IdleTimeout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, used := range l.lastUsed {
		if used.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastUsed, key)
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to exit. It is safe
// to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.stop != nil {
			close(l.stop)
			<-l.done
		}
	})
}
