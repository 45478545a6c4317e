// Package metrics defines the Prometheus metrics exported by the site.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "nirman_site"

// Cache lookup outcomes.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheStale    = "stale"
	CacheNegative = "negative"
	CacheError    = "error"
)

// MaxUnknownKinds bounds the distinct kind labels of UnknownKinds. Kinds
// seen after the limit is reached, and kinds longer than maxKindLen, are
// counted as OtherKind.
const (
	MaxUnknownKinds = 50
	OtherKind       = "other"
	maxKindLen      = 64
)

// Metrics holds the site's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
	UnknownKinds       *prometheus.CounterVec
	PagesRendered      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec

	kindsMu sync.Mutex
	kinds   map[string]struct{}
}

// New creates and registers all metrics on reg. A nil reg uses a fresh
// registry so tests never collide on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		kinds: make(map[string]struct{}),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Content cache lookups by outcome",
			},
			[]string{"result"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "cache",
				Name:      "upstream_duration_seconds",
				Help:      "Duration of content store queries made on a cache miss",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"status"},
		),
		UnknownKinds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "render",
				Name:      "unknown_kinds_total",
				Help:      "Rich content nodes skipped because no handler exists",
			},
			[]string{"category", "kind"},
		),
		PagesRendered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "render",
				Name:      "pages_total",
				Help:      "Pages rendered by route and status",
			},
			[]string{"route", "status"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// CacheLookup counts one cache lookup outcome.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveUpstream records how long an upstream query took.
func (m *Metrics) ObserveUpstream(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(status).Observe(d.Seconds())
}

// UnknownKind counts a skipped rich content node.
func (m *Metrics) UnknownKind(category, kind string) {
	if m == nil {
		return
	}
	m.UnknownKinds.WithLabelValues(category, m.kindLabel(category, kind)).Inc()
}

// kindLabel admits kind as a label value while fewer than MaxUnknownKinds
// distinct kinds have been seen.
func (m *Metrics) kindLabel(category, kind string) string {
	if kind == "" || len(kind) > maxKindLen {
		return OtherKind
	}
	key := category + "\x00" + kind
	m.kindsMu.Lock()
	defer m.kindsMu.Unlock()
	if _, ok := m.kinds[key]; ok {
		return kind
	}
	if len(m.kinds) >= MaxUnknownKinds {
		return OtherKind
	}
	m.kinds[key] = struct{}{}
	return kind
}

// PageRendered counts one rendered page.
func (m *Metrics) PageRendered(route, status string) {
	if m == nil {
		return
	}
	m.PagesRendered.WithLabelValues(route, status).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, code).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method).Observe(d.Seconds())
}
