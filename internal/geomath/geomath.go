// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geomath implements the spherical geometry used for proximity alerts: great-circle
// distance, initial bearing and the mapping of a bearing onto the 16-point compass rose.
package geomath

import (
	"math"
)

const (
	// EarthRadiusKm is the mean earth radius used for all distance calculations.
	EarthRadiusKm = 6371.0

	// SectorWidth is the width of a single compass point sector in degrees.
	SectorWidth = 360.0 / 16
)

// Coordinate represents a geographic coordinate in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid checks if the coordinate is within the EPSG:4326 value ranges. None of the calculations
// in this package require a valid coordinate.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceKm returns the great-circle distance between a and b in kilometers. We are using the
// Haversine formula in its atan2 form.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h marginally out of [0, 1] for antipodal points.
	h = math.Min(math.Max(h, 0), 1)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// InitialBearing returns the initial compass bearing from "from" towards "to" along the great-circle
// path, normalized to [0, 360). If both coordinates are equal, the bearing is undefined and 0 is
// returned.
func InitialBearing(from, to Coordinate) float64 {
	if from == to {
		return 0
	}
	lat1 := radians(from.Lat)
	lat2 := radians(to.Lat)
	dLon := radians(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeBearing(degrees(math.Atan2(y, x)))
}

// NormalizeBearing wraps deg into [0, 360). Non-finite values yield 0.
func NormalizeBearing(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	bearing := math.Mod(deg, 360)
	if bearing < 0 {
		bearing += 360
	}
	// -1e-20 + 360 rounds to 360
	if bearing >= 360 {
		bearing = 0
	}
	return bearing
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
