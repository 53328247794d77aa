// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoip estimates the observer origin from the public IP address.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/http"
)

const (
	lookupTimeout = time.Second * 5
	name          = "geoip"
)

// Service selects the IP geolocation API that is queried.
type Service int

const (
	ServiceReallyFreeGeoIP Service = iota
	ServiceGeoAPI
)

var endpoints = map[Service]string{
	ServiceReallyFreeGeoIP: "https://reallyfreegeoip.org/json/",
	ServiceGeoAPI:          "https://geoapi.info/api/geo",
}

// ErrUnknownService is returned for services without a known endpoint.
var ErrUnknownService = errors.New("unknown geoip service")

type GeolocationGeoIPProvider struct {
	name     string
	service  Service
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (geobus.Fix, error)
}

// ReallyFreeGeoIPResult is the response of reallyfreegeoip.org.
type ReallyFreeGeoIPResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// GeoAPIResult is the response of geoapi.info. Coordinates are transmitted as strings.
type GeoAPIResult struct {
	IP       string `json:"ip"`
	Location struct {
		CountryCode string `json:"country,omitempty"`
		Country     string `json:"countryName,omitempty"`
		Region      string `json:"region,omitempty"`
		City        string `json:"city,omitempty"`
		ZipCode     string `json:"postalCode,omitempty"`
		TimeZone    string `json:"timezone"`
		Coordinates struct {
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
}

// NewGeolocationGeoIPProvider returns a provider that queries the given service.
func NewGeolocationGeoIPProvider(http *http.Client, service Service) (*GeolocationGeoIPProvider, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if _, ok := endpoints[service]; !ok {
		return nil, ErrUnknownService
	}
	provider := &GeolocationGeoIPProvider{
		name:    name,
		service: service,
		http:    http,
		period:  time.Minute * 30,
		ttl:     time.Hour * 2,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationGeoIPProvider) Name() string {
	return p.name
}

// LookupStream periodically looks up the public IP location and emits changes.
func (p *GeolocationGeoIPProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	return geobus.Poll(ctx, p.period, p.locateFn, func(fix geobus.Fix) geobus.Result {
		return p.createResult(key, fix)
	})
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGeoIPProvider) createResult(key string, fix geobus.Fix) geobus.Result {
	return geobus.Result{
		Fix:    fix,
		Key:    key,
		Source: p.name,
		At:     time.Now(),
		TTL:    p.ttl,
	}
}

func (p *GeolocationGeoIPProvider) locate(ctx context.Context) (geobus.Fix, error) {
	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()

	var lat, lon, acc float64
	switch p.service {
	case ServiceGeoAPI:
		result := new(GeoAPIResult)
		if _, err := p.http.Get(ctxHttp, endpoints[p.service], result, nil, nil); err != nil {
			return geobus.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
		}
		var err error
		if lat, err = strconv.ParseFloat(result.Location.Coordinates.Latitude, 64); err != nil {
			return geobus.Fix{}, fmt.Errorf("failed to parse latitude from API response: %w", err)
		}
		if lon, err = strconv.ParseFloat(result.Location.Coordinates.Longitude, 64); err != nil {
			return geobus.Fix{}, fmt.Errorf("failed to parse longitude from API response: %w", err)
		}
		loc := result.Location
		acc = accuracy(loc.CountryCode, loc.Region, loc.City, loc.ZipCode)
	default:
		result := new(ReallyFreeGeoIPResult)
		if _, err := p.http.Get(ctxHttp, endpoints[p.service], result, nil, nil); err != nil {
			return geobus.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
		}
		lat, lon = result.Latitude, result.Longitude
		acc = accuracy(result.CountryCode, result.RegionCode, result.City, result.ZipCode)
	}

	return geobus.NewFix(geobus.Truncate(lat, geobus.TruncPrecision),
		geobus.Truncate(lon, geobus.TruncPrecision), acc), nil
}

// accuracy estimates the accuracy in meters from the most specific field the API returned.
func accuracy(country, region, city, zip string) float64 {
	switch {
	case zip != "":
		return geobus.AccuracyZip
	case city != "":
		return geobus.AccuracyCity
	case region != "":
		return geobus.AccuracyRegion
	case country != "":
		return geobus.AccuracyCountry
	default:
		return geobus.AccuracyUnknown
	}
}
