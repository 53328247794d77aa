// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode names the place of a coordinate, so that alerts can tell where a sighting was
// reported.
package geocode

import (
	"context"
	"strings"

	"github.com/wneessen/ufobeep/internal/geomath"
)

type Address struct {
	AddressFound bool
	CacheHit     bool
	Latitude     float64
	Longitude    float64
	DisplayName  string
	Country      string
	CountryCode  string
	State        string
	Municipality string
	CityDistrict string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
}

type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coord geomath.Coordinate) (Address, error)
}

// Place returns a short human readable name of the address, e.g. "Otley, England". An empty
// string is returned if the address was not found.
func (a Address) Place() string {
	if !a.AddressFound {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, part := range []string{a.City, a.Municipality, a.State} {
		if part != "" {
			parts = append(parts, part)
			break
		}
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	if len(parts) == 0 {
		return a.DisplayName
	}
	return strings.Join(parts, ", ")
}
