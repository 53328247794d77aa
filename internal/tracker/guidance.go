// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package tracker

import (
	"github.com/google/uuid"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/vartype"
)

// Guidance is the "look this way" information for a target. It is computed once when a session
// is opened. Without an origin, the numeric fields stay unset and the guidance is degraded.
type Guidance struct {
	Target     geomath.Coordinate
	DistanceKm vartype.VarFloat64
	Bearing    vartype.VarFloat64
	Direction  vartype.Variable[geomath.Direction]
}

// Frame is a single refresh of the live compass display.
type Frame struct {
	SessionID uuid.UUID
	Guidance  Guidance

	// Heading and Direction describe where the device is currently pointing. They are unset
	// while no heading sample is available.
	Heading   vartype.VarFloat64
	Direction vartype.Variable[geomath.Direction]

	// Relative is the clockwise turn from the current heading towards the target. It is unset
	// in degraded mode and without a heading sample.
	Relative vartype.VarFloat64
}

// NewGuidance computes the guidance from origin towards target. A nil origin results in a
// degraded Guidance.
func NewGuidance(target geomath.Coordinate, origin *geomath.Coordinate) Guidance {
	guidance := Guidance{Target: target}
	if origin == nil {
		return guidance
	}
	bearing := geomath.InitialBearing(*origin, target)
	guidance.DistanceKm.Set(geomath.DistanceKm(*origin, target))
	guidance.Bearing.Set(bearing)
	guidance.Direction.Set(geomath.DirectionFor(bearing))
	return guidance
}

// Degraded reports whether the guidance was computed without an origin.
func (g Guidance) Degraded() bool {
	return !g.DistanceKm.IsSet()
}

// newFrame derives the display values for the given heading sample. It only depends on the
// heading and the guidance fixed at open time. An unset heading yields a frame that carries the
// guidance alone.
func newFrame(id uuid.UUID, guidance Guidance, heading vartype.VarFloat64) Frame {
	frame := Frame{SessionID: id, Guidance: guidance}
	if !heading.IsSet() {
		return frame
	}
	degrees := geomath.NormalizeBearing(heading.Value())
	frame.Heading.Set(degrees)
	frame.Direction.Set(geomath.DirectionFor(degrees))
	if guidance.Bearing.IsSet() {
		frame.Relative.Set(geomath.NormalizeBearing(guidance.Bearing.Value() - degrees))
	}
	return frame
}
