package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/sanity"
)

// DefaultRevalidate is how long a result is served before it is refreshed.
const DefaultRevalidate = 30 * time.Second

// Querier runs content store queries. *sanity.Client implements it.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
}

// Cached serves query results from a Store for up to the revalidation
// interval. Concurrent misses for one key share a single upstream query,
// and a failed refresh falls back to the last stored result.
type Cached struct {
	upstream   Querier
	store      Store
	revalidate time.Duration
	group      singleflight.Group
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	// generations counts invalidations per document type; "" counts
	// full invalidations. A refresh that started before an invalidation
	// does not write its result back.
	genMu       sync.Mutex
	generations map[string]uint64
}

// Option configures Cached.
type Option func(*Cached)

// WithRevalidate sets the staleness bound.
func WithRevalidate(d time.Duration) Option {
	return func(c *Cached) {
		if d > 0 {
			c.revalidate = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cached) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records lookups on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cached) { c.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cached) { c.now = now }
}

// New wraps upstream with store.
func New(upstream Querier, store Store, opts ...Option) *Cached {
	c := &Cached{
		upstream:   upstream,
		store:      store,
		revalidate: DefaultRevalidate,
		log:        logger.NewNop(),
		now:        time.Now,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Revalidate returns the staleness bound.
func (c *Cached) Revalidate() time.Duration {
	return c.revalidate
}

// Query implements Querier.
func (c *Cached) Query(ctx context.Context, query string, params map[string]any, out any) error {
	key, err := Key(query, params)
	if err != nil {
		return err
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", logger.String("key", key), logger.Error(err))
		entry = nil
	}
	if entry != nil && entry.Age(c.now()) < c.revalidate {
		err := entry.decode(out)
		if err == nil || errors.Is(err, sanity.ErrNoResult) {
			if entry.NoResult {
				c.metrics.CacheLookup(metrics.CacheNegative)
			} else {
				c.metrics.CacheLookup(metrics.CacheHit)
			}
			return err
		}
		c.log.Warn("dropping unreadable cache entry", logger.String("key", key), logger.Error(err))
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn("cache delete failed", logger.String("key", key), logger.Error(err))
		}
		entry = nil
	}

	gen := c.generation(key)
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.refresh(ctx, key, gen, query, params)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if entry != nil {
				c.metrics.CacheLookup(metrics.CacheStale)
				c.log.Warn("serving stale content",
					logger.String("key", key),
					logger.Duration("age", entry.Age(c.now())),
					logger.Error(res.Err),
				)
				return entry.decode(out)
			}
			c.metrics.CacheLookup(metrics.CacheError)
			return res.Err
		}
		c.metrics.CacheLookup(metrics.CacheMiss)
		return res.Val.(*Entry).decode(out)
	}
}

// refresh queries upstream and stores the outcome. It runs detached from
// the caller's cancellation because other callers may be waiting on it.
func (c *Cached) refresh(ctx context.Context, key string, gen uint64, query string, params map[string]any) (*Entry, error) {
	ctx = context.WithoutCancel(ctx)
	start := c.now()

	var raw json.RawMessage
	err := c.upstream.Query(ctx, query, params, &raw)

	entry := &Entry{StoredAt: c.now()}
	switch {
	case errors.Is(err, sanity.ErrNoResult):
		entry.NoResult = true
	case err != nil:
		c.metrics.ObserveUpstream("error", c.now().Sub(start))
		return nil, err
	default:
		entry.Value = raw
	}
	c.metrics.ObserveUpstream("ok", c.now().Sub(start))

	if c.generation(key) != gen {
		c.log.Debug("discarding result invalidated during refresh", logger.String("key", key))
		return entry, nil
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		c.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
	}
	return entry, nil
}

// Invalidate drops cached results for one document type, or every result
// when docType is empty.
func (c *Cached) Invalidate(ctx context.Context, docType string) error {
	prefix := ""
	if docType != "" {
		prefix = docType + ":"
	}
	c.genMu.Lock()
	c.generations[docType]++
	c.genMu.Unlock()

	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("failed to invalidate %q: %w", docType, err)
	}
	c.log.Info("cache invalidated", logger.String("type", docType))
	return nil
}

// generation returns the invalidation count covering key: full
// invalidations plus those of the key's document type.
func (c *Cached) generation(key string) uint64 {
	tag, _, _ := strings.Cut(key, ":")
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generations[""] + c.generations[tag]
}

var docTypePattern = regexp.MustCompile(`_type\s*==\s*"([A-Za-z0-9_.-]+)"`)

// Key derives the cache key for a query. Keys start with the queried
// document type ("service:…") so Invalidate can drop one type at a time;
// queries without a type filter use "any".
func Key(query string, params map[string]any) (string, error) {
	tag := "any"
	if m := docTypePattern.FindStringSubmatch(query); m != nil {
		tag = m[1]
	}

	// encoding/json sorts map keys, so equal params give equal bytes.
	encoded := []byte("{}")
	if len(params) > 0 {
		var err error
		encoded, err = json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("failed to encode params: %w", err)
		}
	}

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(encoded)
	return tag + ":" + hex.EncodeToString(h.Sum(nil)[:16]), nil
}
