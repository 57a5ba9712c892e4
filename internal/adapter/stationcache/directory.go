// Package stationcache puts an in-memory LRU in front of a station directory.
// Telegrams from the same posts arrive every day, so nearly every lookup after
// warm-up is a hit.
package stationcache

import (
	"context"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/observability"
)

const kindManual = "manual"

// Directory wraps a domain.StationDirectory with an LRU cache. Only positive
// answers are cached so a station registered after a miss is picked up on
// the next telegram.
type Directory struct {
	inner   domain.StationDirectory
	exists  *lruCache[bool]
	cache   *lruCache[domain.Station]
	metrics *observability.Metrics
}

// New creates a cache decorator around a station directory.
func New(inner domain.StationDirectory, maxEntries int, metrics *observability.Metrics) *Directory {
	return &Directory{
		inner:   inner,
		exists:  newLRUCache[bool](maxEntries),
		cache:   newLRUCache[domain.Station](maxEntries),
		metrics: metrics,
	}
}

func (d *Directory) ExistsManualStation(ctx context.Context, code string) (bool, error) {
	if _, ok := d.exists.get(code); ok {
		d.hit(kindManual)
		return true, nil
	}
	d.miss(kindManual)

	start := time.Now()
	ok, err := d.inner.ExistsManualStation(ctx, code)
	d.observe(kindManual, start)
	if err != nil {
		return false, err
	}
	if ok {
		d.exists.put(code, true)
	}
	return ok, nil
}

func (d *Directory) ResolveStation(ctx context.Context, code string, kind domain.StationKind) (domain.Station, error) {
	key := string(kind) + ":" + code
	if st, ok := d.cache.get(key); ok {
		d.hit(string(kind))
		return st, nil
	}
	d.miss(string(kind))

	start := time.Now()
	st, err := d.inner.ResolveStation(ctx, code, kind)
	d.observe(string(kind), start)
	if err != nil {
		return st, err
	}
	d.cache.put(key, st)
	return st, nil
}

func (d *Directory) hit(kind string) {
	d.metrics.StationCache.WithLabelValues(kind, "hit").Inc()
}

func (d *Directory) miss(kind string) {
	d.metrics.StationCache.WithLabelValues(kind, "miss").Inc()
}

func (d *Directory) observe(kind string, start time.Time) {
	d.metrics.StationLookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
