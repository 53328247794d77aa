// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geolocation_file provides a fixed or externally maintained observer origin from a file.
package geolocation_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/geomath"
)

const (
	name = "geolocation_file"
)

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads "lat,lon" lines from a file and emits the first valid coordinate.
// Lines starting with "#" are comments. The file is re-read periodically so other tools can
// update it.
type GeolocationFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	locateFn func() (geomath.Coordinate, error)
}

// NewGeolocationFileProvider initializes a GeolocationFileProvider with a file path and default update
// interval and TTL settings.
func NewGeolocationFileProvider(path string) *GeolocationFileProvider {
	provider := &GeolocationFileProvider{
		name:   name,
		path:   path,
		period: time.Minute * 2,
		ttl:    time.Hour * 1,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// LookupStream continuously streams origin results from the file, emitting updates when the
// coordinates change or the context ends.
func (p *GeolocationFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	locate := func(context.Context) (geobus.Fix, error) {
		coord, err := p.locateFn()
		if err != nil {
			return geobus.Fix{}, err
		}
		return geobus.Fix{Coordinate: coord, Acc: geobus.AccuracyZip}, nil
	}
	return geobus.Poll(ctx, p.period, locate, func(fix geobus.Fix) geobus.Result {
		return p.createResult(key, fix)
	})
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationFileProvider) createResult(key string, fix geobus.Fix) geobus.Result {
	return geobus.Result{
		Fix:    fix,
		Key:    key,
		Source: p.name,
		At:     time.Now(),
		TTL:    p.ttl,
	}
}

// readFile returns the first valid coordinate of the file at the configured path.
func (p *GeolocationFileProvider) readFile() (geomath.Coordinate, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return geomath.Coordinate{}, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		coord := geomath.Coordinate{Lat: lat, Lon: lon}
		if !coord.Valid() {
			continue
		}
		return coord, nil
	}
	return geomath.Coordinate{}, ErrNoCoordinates
}
