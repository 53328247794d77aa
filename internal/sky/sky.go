// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package sky estimates how well a reported sighting can be observed from the ground. It
// combines the position of the sun, the moon phase and the current weather at the sighting.
package sky

import (
	"context"
	"log/slog"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/wneessen/go-moonphase"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/vartype"
)

const (
	// DefaultTimeout limits the weather lookup so that alerts are never held back by it.
	DefaultTimeout = time.Second * 5

	// TwilightWindow is the time around sunrise and sunset that counts as twilight.
	TwilightWindow = time.Minute * 40

	cloudCoverFair = 40.0
	cloudCoverPoor = 80.0
	weatherCodeFog = 45
)

// Daylight describes the position of the sun at the sighting.
type Daylight int

const (
	DaylightUnknown Daylight = iota
	Day
	Twilight
	Night
)

// Viewing rates the conditions for spotting something in the sky.
type Viewing int

const (
	ViewingUnknown Viewing = iota
	ViewingPoor
	ViewingFair
	ViewingGood
)

// Weather is the current weather at a location.
type Weather struct {
	Time       time.Time
	Code       int
	CloudCover vartype.VarFloat64
}

// WeatherProvider is implemented by each weather API backend.
type WeatherProvider interface {
	Name() string
	Current(ctx context.Context, coord geomath.Coordinate) (Weather, error)
}

// Conditions summarizes the sky at a sighting.
type Conditions struct {
	At          time.Time
	Daylight    Daylight
	Sunrise     time.Time
	Sunset      time.Time
	MoonPhase   string
	WeatherCode vartype.Variable[int]
	CloudCover  vartype.VarFloat64
	Viewing     Viewing
}

// Reporter looks up the sky conditions for coordinates.
type Reporter struct {
	weather WeatherProvider
	logger  *logger.Logger
	timeout time.Duration
}

// New returns a Reporter. With a nil weather provider, only sun and moon are taken into account.
func New(weather WeatherProvider, log *logger.Logger) *Reporter {
	if log == nil {
		log = logger.New(slog.LevelError)
	}
	return &Reporter{
		weather: weather,
		logger:  log,
		timeout: DefaultTimeout,
	}
}

// Conditions returns the sky conditions at coord for the given time. Lookup failures are logged
// and leave the affected fields unknown.
func (r *Reporter) Conditions(ctx context.Context, coord geomath.Coordinate, at time.Time) Conditions {
	cond := Conditions{
		At:        at,
		MoonPhase: moonphase.New(at).PhaseName(),
	}
	cond.Daylight, cond.Sunrise, cond.Sunset = DaylightAt(coord, at)

	if r.weather != nil {
		ctxWeather, cancel := context.WithTimeout(ctx, r.timeout)
		weather, err := r.weather.Current(ctxWeather, coord)
		cancel()
		if err != nil {
			r.logger.Warn("failed to look up weather for sighting", logger.Err(err),
				slog.String("provider", r.weather.Name()))
		} else {
			cond.WeatherCode.Set(weather.Code)
			cond.CloudCover = weather.CloudCover
		}
	}
	cond.Viewing = rate(cond)

	return cond
}

// DaylightAt returns the position of the sun at coord and time, together with the sunrise and
// sunset of that day. During polar day or night, sunrise and sunset are zero and the daylight
// is unknown.
func DaylightAt(coord geomath.Coordinate, at time.Time) (Daylight, time.Time, time.Time) {
	at = at.UTC()
	rise, set := sunrise.SunriseSunset(coord.Lat, coord.Lon, at.Year(), at.Month(), at.Day())
	if rise.IsZero() || set.IsZero() {
		return DaylightUnknown, rise, set
	}

	switch {
	case within(at, rise, TwilightWindow), within(at, set, TwilightWindow):
		return Twilight, rise, set
	case at.After(rise) && at.Before(set):
		return Day, rise, set
	default:
		return Night, rise, set
	}
}

// Condition returns the WMO description of the weather code or an empty string.
func (c Conditions) Condition() string {
	if !c.WeatherCode.IsSet() {
		return ""
	}
	return WMOWeatherCodes[c.WeatherCode.Value()]
}

// Icon returns an emoji that represents the sky.
func (c Conditions) Icon() string {
	if c.WeatherCode.IsSet() {
		if icons, ok := WMOWeatherIcons[c.WeatherCode.Value()]; ok {
			return icons[c.Daylight == Day]
		}
	}
	if c.Daylight == Night {
		return MoonPhaseIcon[c.MoonPhase]
	}
	return "🔭"
}

func rate(cond Conditions) Viewing {
	if cond.WeatherCode.IsSet() && cond.WeatherCode.Value() >= weatherCodeFog {
		return ViewingPoor
	}
	if !cond.CloudCover.IsSet() {
		return ViewingUnknown
	}

	clouds := cond.CloudCover.Value()
	switch {
	case clouds >= cloudCoverPoor:
		return ViewingPoor
	case clouds >= cloudCoverFair:
		return ViewingFair
	case cond.Daylight == Day:
		return ViewingFair
	default:
		return ViewingGood
	}
}

func within(t, ref time.Time, window time.Duration) bool {
	d := t.Sub(ref)
	return d > -window && d < window
}

// String satisfies the fmt.Stringer interface.
func (d Daylight) String() string {
	switch d {
	case Day:
		return "day"
	case Twilight:
		return "twilight"
	case Night:
		return "night"
	default:
		return "unknown"
	}
}

// String satisfies the fmt.Stringer interface.
func (v Viewing) String() string {
	switch v {
	case ViewingPoor:
		return "poor"
	case ViewingFair:
		return "fair"
	case ViewingGood:
		return "good"
	default:
		return "unknown"
	}
}
