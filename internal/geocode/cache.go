// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wneessen/ufobeep/internal/geomath"
)

// cellSize is the edge length of a cache cell in degrees (0.01° ≈ 1.1 km).
const cellSize = 1e-2

// cell identifies the cache cell a coordinate falls into.
type cell struct {
	lat, lon int32
}

type cacheEntry struct {
	address Address
	expiry  time.Time
}

// CachedGeocoder wraps a Geocoder and caches its results on a grid of roughly 1 km. Found
// addresses are kept for ttlHit, misses for ttlMiss. Concurrent lookups for the same cell, e.g.
// for several sightings reported at one place, share a single upstream request.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[cell]cacheEntry
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		entries: make(map[cell]cacheEntry),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

// Reverse returns the cached address of the cell coord falls into, or looks it up.
func (c *CachedGeocoder) Reverse(ctx context.Context, coord geomath.Coordinate) (Address, error) {
	key := cellOf(coord)
	if addr, ok := c.lookup(key); ok {
		addr.CacheHit = true
		return addr, nil
	}

	value, err, _ := c.group.Do(key.String(), func() (any, error) {
		addr, err := c.coder.Reverse(ctx, coord)
		if err != nil {
			return addr, err
		}
		c.store(key, addr)
		return addr, nil
	})
	addr, _ := value.(Address)
	return addr, err
}

// Len returns the number of cached entries.
func (c *CachedGeocoder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachedGeocoder) lookup(key cell) (Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !time.Now().Before(entry.expiry) {
		return Address{}, false
	}
	return entry.address, true
}

func (c *CachedGeocoder) store(key cell, addr Address) {
	ttl := c.ttlHit
	if !addr.AddressFound {
		ttl = c.ttlMiss
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{address: addr, expiry: now.Add(ttl)}
}

func cellOf(coord geomath.Coordinate) cell {
	return cell{
		lat: int32(math.Round(coord.Lat / cellSize)),
		lon: int32(math.Round(coord.Lon / cellSize)),
	}
}

func (k cell) String() string {
	return fmt.Sprintf("%d:%d", k.lat, k.lon)
}
