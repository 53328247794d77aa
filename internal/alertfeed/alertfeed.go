// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package alertfeed keeps the most recent proximity alerts, newest first.
package alertfeed

import (
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/sky"
	"github.com/wneessen/ufobeep/internal/tracker"
)

// DefaultSize is the default number of alerts kept in the feed.
const DefaultSize = 10

// Entry is a received alert, with the guidance relative to the origin at the time it was received.
type Entry struct {
	ID         int64
	Target     geomath.Coordinate
	Flag       string
	Filename   string
	ReportedAt time.Time
	ReceivedAt time.Time
	Guidance   tracker.Guidance
	InRange    bool

	// Filled in asynchronously after the alert was received
	Place string
	Sky   *sky.Conditions
}

// Label returns the place of the alert, or its coordinates if the place is unknown.
func (e Entry) Label() string {
	if e.Place != "" {
		return e.Place
	}
	return fmt.Sprintf("%.4f, %.4f", e.Target.Lat, e.Target.Lon)
}

// Feed is a bounded, concurrency-safe list of alerts.
type Feed struct {
	mu      sync.RWMutex
	size    int
	entries []Entry
}

// New returns a Feed that keeps at most size entries. A size below 1 uses DefaultSize.
func New(size int) *Feed {
	if size < 1 {
		size = DefaultSize
	}
	return &Feed{
		size:    size,
		entries: make([]Entry, 0, size),
	}
}

// Add puts entry at the top of the feed. An existing entry with the same non-zero ID is
// replaced. The oldest entries are dropped once the feed is full.
func (f *Feed) Add(entry Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.ID != 0 {
		for i, e := range f.entries {
			if e.ID == entry.ID {
				f.entries = append(f.entries[:i], f.entries[i+1:]...)
				break
			}
		}
	}
	f.entries = append([]Entry{entry}, f.entries...)
	if len(f.entries) > f.size {
		f.entries = f.entries[:f.size]
	}
}

// Update applies fn to the newest entry with the given target. It reports whether an entry was
// found.
func (f *Feed) Update(target geomath.Coordinate, fn func(entry *Entry)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].Target == target {
			fn(&f.entries[i])
			return true
		}
	}
	return false
}

// Find returns the newest entry with the given target.
func (f *Feed) Find(target geomath.Coordinate) (Entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, e := range f.entries {
		if e.Target == target {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the feed, newest first.
func (f *Feed) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Entry(nil), f.entries...)
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Clear removes all entries.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = f.entries[:0]
}
