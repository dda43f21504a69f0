package main

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// unknownLocation is the sentinel place name used when no GPS data is
// available or resolution fails
const unknownLocation = "Unknown Location"

// geocodeAttempts caps retries for transient geocoding failures
const geocodeAttempts = 3

// LocationResolver turns coordinates into human-readable place names,
// front-to-back: in-process memo, durable cache, then the geocoding backend
// with retry/backoff.
type LocationResolver struct {
	geocoder Geocoder
	cache    *GeocodeCache
	memo     *lruCache
	sleep    func(time.Duration)
	log      *zap.SugaredLogger
}

// NewLocationResolver creates a location resolver. A nil geocoder disables
// network resolution entirely; a nil cache disables durable caching.
func NewLocationResolver(geocoder Geocoder, cache *GeocodeCache, log *zap.SugaredLogger) *LocationResolver {
	return &LocationResolver{
		geocoder: geocoder,
		cache:    cache,
		memo:     newLRUCache(1024),
		sleep:    time.Sleep,
		log:      log,
	}
}

// Resolve returns a place name for the coordinate, or the sentinel when the
// coordinate is absent or every resolution path fails. Never returns "".
func (r *LocationResolver) Resolve(ctx context.Context, coord *Coordinate) string {
	if coord == nil {
		return unknownLocation
	}

	key := coordinateKey(coord.Lat, coord.Lon)
	if name, ok := r.memo.Get(key); ok {
		return name
	}

	if r.cache != nil {
		if name, ok := r.cache.Lookup(coord.Lat, coord.Lon); ok {
			r.log.Debugw("geocode cache hit", "coordinates", key, "location", name)
			r.memo.Put(key, name)
			return name
		}
	}

	if r.geocoder == nil {
		// Geocoding unconfigured: sentinel, no network calls
		return unknownLocation
	}

	name, resolved := r.resolveRemote(ctx, coord)
	if !resolved {
		// Failures are not cached; a later file with the same coordinate
		// gets another chance at the network
		return name
	}

	r.memo.Put(key, name)
	if r.cache != nil {
		if err := r.cache.Store(coord.Lat, coord.Lon, name); err != nil {
			r.log.Warnw("failed to store geocode cache entry", "coordinates", key, "error", err)
		}
	}
	return name
}

// resolveRemote calls the geocoding backend with the retry/backoff policy:
// timeouts sleep 2s and retry, empty responses sleep 1s and retry, any other
// failure aborts the loop immediately.
func (r *LocationResolver) resolveRemote(ctx context.Context, coord *Coordinate) (string, bool) {
	for attempt := 1; attempt <= geocodeAttempts; attempt++ {
		r.log.Debugw("geocoding attempt",
			"attempt", attempt, "lat", coord.Lat, "lon", coord.Lon)

		addr, err := r.geocoder.ReverseGeocode(ctx, coord.Lat, coord.Lon)
		if err != nil {
			if isGeocodeTimeout(err) {
				r.log.Debugw("geocoding timed out", "attempt", attempt)
				if attempt < geocodeAttempts {
					r.sleep(2 * time.Second)
				}
				continue
			}
			r.log.Warnw("geocoding failed", "error", err)
			break
		}

		if addr.IsEmpty() {
			r.log.Debugw("geocoder returned no results", "attempt", attempt)
			if attempt < geocodeAttempts {
				r.sleep(1 * time.Second)
			}
			continue
		}

		return placeNameFromAddress(addr), true
	}

	return unknownLocation, false
}

// placeNameFromAddress picks the best available place name from hierarchical
// address components, most specific first
func placeNameFromAddress(addr Address) string {
	for _, candidate := range []string{
		addr.City,
		addr.Town,
		addr.Village,
		addr.Suburb,
		addr.State,
		addr.County,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return unknownLocation
}

// lruCache is a small fixed-capacity least-recently-used map used to
// short-circuit repeated lookups for the same coordinate within one run.
// Owned by a single LocationResolver, never shared across instances.
type lruCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value string
}

// newLRUCache creates an LRU cache with the given capacity
func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value and marks it most recently used
func (c *lruCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, true
}

// Put inserts or refreshes a value, evicting the least recently used entry
// when over capacity
func (c *lruCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*lruEntry).value = value
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}
