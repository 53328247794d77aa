// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package heading provides the device heading samples that drive the live compass.
package heading

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
)

// Provider streams raw heading samples in degrees. The stream is closed when ctx is done.
type Provider interface {
	Name() string
	Stream(ctx context.Context) <-chan float64
}

// Sample is a single heading reading.
type Sample struct {
	Degrees float64
	Source  string
	At      time.Time
}

// Latest holds the most recent heading sample. It is safe for concurrent use.
type Latest struct {
	maxAge time.Duration

	mu     sync.RWMutex
	sample Sample
	have   bool
}

// NewLatest returns an empty holder. Samples older than maxAge are no longer reported; a maxAge
// of zero keeps samples forever.
func NewLatest(maxAge time.Duration) *Latest {
	return &Latest{maxAge: maxAge}
}

// Set stores a new sample. Non-finite values are dropped.
func (l *Latest) Set(source string, degrees float64) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sample = Sample{Degrees: geomath.NormalizeBearing(degrees), Source: source, At: time.Now()}
	l.have = true
}

// Sample returns the latest sample, if there is a current one.
func (l *Latest) Sample() (Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.have {
		return Sample{}, false
	}
	if l.maxAge > 0 && time.Since(l.sample.At) > l.maxAge {
		return Sample{}, false
	}
	return l.sample, true
}

// Heading returns the latest heading in degrees.
func (l *Latest) Heading() (float64, bool) {
	sample, ok := l.Sample()
	return sample.Degrees, ok
}

// Follow copies all samples of the provider into l until ctx is done or the stream ends.
func (l *Latest) Follow(ctx context.Context, provider Provider, log *logger.Logger) {
	log.Debug("following heading provider", slog.String("provider", provider.Name()))
	stream := provider.Stream(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case degrees, ok := <-stream:
			if !ok {
				return
			}
			l.Set(provider.Name(), degrees)
		}
	}
}
