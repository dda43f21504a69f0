package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// GeocodeCache is a JSON-backed database of resolved place names keyed by
// exact coordinate pairs. It survives process restarts.
type GeocodeCache struct {
	data   map[string]GeocodeCacheEntry
	path   string
	mu     sync.RWMutex
	saveMu sync.Mutex
}

// GeocodeCacheEntry represents one resolved coordinate pair
type GeocodeCacheEntry struct {
	Location   string    `json:"location"`
	InsertedAt time.Time `json:"inserted_at"`
}

// coordinateKey builds the cache key from the exact decimal coordinate pair.
// No rounding: cache hits require bit-identical repeated coordinates.
func coordinateKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// NewGeocodeCache creates or opens a geocode cache database
func NewGeocodeCache(dbPath string) (*GeocodeCache, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	cache := &GeocodeCache{
		data: make(map[string]GeocodeCacheEntry),
		path: dbPath,
	}

	// Load existing data if file exists
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %v", err)
	}

	return cache, nil
}

// load reads the JSON cache from disk
func (c *GeocodeCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If file doesn't exist, start with empty cache
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	// Handle empty file
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &c.data)
}

// save writes the JSON cache to disk. Written via a temp file and rename so a
// concurrent reader never observes a torn file. saveMu serializes the whole
// marshal+write+rename so concurrent Stores never race on the temp file.
func (c *GeocodeCache) save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	data, err := json.MarshalIndent(c.data, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Lookup returns the cached place name for an exact coordinate pair
func (c *GeocodeCache) Lookup(lat, lon float64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[coordinateKey(lat, lon)]
	if !exists {
		return "", false
	}
	return entry.Location, true
}

// Store records the resolved place name for a coordinate pair. Storing the
// same key twice overwrites the previous entry.
func (c *GeocodeCache) Store(lat, lon float64, location string) error {
	c.mu.Lock()
	c.data[coordinateKey(lat, lon)] = GeocodeCacheEntry{
		Location:   location,
		InsertedAt: time.Now(),
	}
	c.mu.Unlock()

	// Save to disk
	return c.save()
}

// Len returns the number of cached locations
func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close saves any pending changes and closes the cache
func (c *GeocodeCache) Close() error {
	return c.save()
}

// defaultCachePath returns the per-user cache database path
func defaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %v", err)
	}
	return filepath.Join(home, ".photo-organizer", "geocoding_cache.json"), nil
}
