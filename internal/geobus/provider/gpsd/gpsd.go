// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd provides the observer origin from a local gpsd instance.
package gpsd

import (
	"context"
	"errors"
	"time"

	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/gpspoll"
)

const (
	DefaultHost = "localhost"
	DefaultPort = "2947"
	name        = "gpsd"
)

// ErrNoFix is returned if gpsd reports less than a 2D fix.
var ErrNoFix = errors.New("gpsd has no 2D fix")

// GeolocationGPSDProvider polls gpsd for TPV reports and emits them as origin results.
type GeolocationGPSDProvider struct {
	name     string
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (gpspoll.Fix, error)
}

// NewGeolocationGPSDProvider returns a provider polling the gpsd instance at host and port.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	client := gpspoll.New(host, port)
	return &GeolocationGPSDProvider{
		name:     name,
		period:   time.Second * 30,
		ttl:      time.Minute * 2,
		locateFn: client.Poll,
	}
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream polls gpsd periodically and emits a result for the first usable fix and every
// significant change after that.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	return geobus.Poll(ctx, p.period, p.locate, func(fix geobus.Fix) geobus.Result {
		return p.createResult(key, fix)
	})
}

func (p *GeolocationGPSDProvider) locate(ctx context.Context) (geobus.Fix, error) {
	fix, err := p.locateFn(ctx)
	if err != nil {
		return geobus.Fix{}, err
	}
	if !fix.Has2DFix() {
		return geobus.Fix{}, ErrNoFix
	}
	return geobus.NewFix(geobus.Truncate(fix.Lat, geobus.TruncPrecision),
		geobus.Truncate(fix.Lon, geobus.TruncPrecision), fix.Acc), nil
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, fix geobus.Fix) geobus.Result {
	return geobus.Result{
		Fix:    fix,
		Key:    key,
		Source: p.name,
		At:     time.Now(),
		TTL:    p.ttl,
	}
}
