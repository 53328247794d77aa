// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"math"

	"github.com/wneessen/ufobeep/internal/geomath"
)

const (
	// DistanceThreshold is the distance in meters an origin has to move before it is republished.
	DistanceThreshold = 100.0
	AccuracyThreshold = 25.0
)

// Fix is a located position together with its horizontal accuracy in meters.
type Fix struct {
	geomath.Coordinate
	Acc float64
}

// NewFix returns a Fix for the given coordinates and accuracy.
func NewFix(lat, lon, acc float64) Fix {
	return Fix{Coordinate: geomath.Coordinate{Lat: lat, Lon: lon}, Acc: acc}
}

// SignificantChange checks if the fix differs significantly from another one. A clearly better
// accuracy always counts as a change, otherwise the positions must be further apart than the
// distance threshold.
func (f Fix) SignificantChange(other Fix) bool {
	if f.Acc < other.Acc && math.Abs(f.Acc-other.Acc) > AccuracyThreshold {
		return true
	}
	return geomath.DistanceKm(f.Coordinate, other.Coordinate)*1000 > DistanceThreshold
}

// State tracks the last fix a provider has emitted.
type State struct {
	last     Fix
	haveLast bool
}

// HasChanged reports whether fix should be emitted, i.e. if it is the first one or it differs
// significantly from the last emitted fix.
func (s *State) HasChanged(fix Fix) bool {
	if !s.haveLast {
		return true
	}
	return fix.SignificantChange(s.last)
}

// Update stores fix as the last emitted one.
func (s *State) Update(fix Fix) {
	s.last = fix
	s.haveLast = true
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
