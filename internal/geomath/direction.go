// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geomath

import "math"

// Direction is one of the 16 points of the compass rose.
type Direction string

const (
	North          Direction = "N"
	NorthNorthEast Direction = "NNE"
	NorthEast      Direction = "NE"
	EastNorthEast  Direction = "ENE"
	East           Direction = "E"
	EastSouthEast  Direction = "ESE"
	SouthEast      Direction = "SE"
	SouthSouthEast Direction = "SSE"
	South          Direction = "S"
	SouthSouthWest Direction = "SSW"
	SouthWest      Direction = "SW"
	WestSouthWest  Direction = "WSW"
	West           Direction = "W"
	WestNorthWest  Direction = "WNW"
	NorthWest      Direction = "NW"
	NorthNorthWest Direction = "NNW"
)

// CompassPoints lists all directions clockwise, starting at north.
var CompassPoints = [16]Direction{
	North, NorthNorthEast, NorthEast, EastNorthEast,
	East, EastSouthEast, SouthEast, SouthSouthEast,
	South, SouthSouthWest, SouthWest, WestSouthWest,
	West, WestNorthWest, NorthWest, NorthNorthWest,
}

// DirectionFor maps a bearing to the compass point whose 22.5° sector contains it. Sectors are
// centered on their label and exact boundaries are rounded half-up, i.e. 11.25° is NNE.
func DirectionFor(bearing float64) Direction {
	index := int(math.Floor(NormalizeBearing(bearing)/SectorWidth+0.5)) % len(CompassPoints)
	return CompassPoints[index]
}

// String satisfies the fmt.Stringer interface.
func (d Direction) String() string {
	return string(d)
}
