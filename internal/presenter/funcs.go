// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/spreak/localize"
)

var i18nVars = map[string]localize.MsgID{
	"target":          "Target",
	"nearby":          "Nearby sightings",
	"location":        "Location",
	"recent":          "Recent alerts",
	"noalerts":        "No recent alerts",
	"offline":         "Offline",
	"good":            "good",
	"fair":            "fair",
	"poor":            "poor",
	"unknown":         "unknown",
	"day":             "Day",
	"twilight":        "Twilight",
	"night":           "Night",
	"new moon":        "New moon",
	"waxing crescent": "Waxing crescent",
	"first quarter":   "First quarter",
	"waxing gibbous":  "Waxing gibbous",
	"full moon":       "Full moon",
	"waning gibbous":  "Waning gibbous",
	"third quarter":   "Third quarter",
	"waning crescent": "Waning crescent",
}

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":  timeFormat,
		"humanTime":   p.humanTime,
		"floatFormat": floatFormat,
		"distance":    p.distance,
		"pad3":        pad3,
		"emojiPad":    EmojiWithSpace,
		"loc":         p.loc,
		"lc":          strings.ToLower,
		"uc":          strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	raw, ok := i18nVars[strings.ToLower(val)]
	if !ok {
		return val
	}
	if p.localizer == nil {
		return raw
	}
	return p.localizer.Get(raw)
}

func (p *Presenter) humanTime(val time.Time) string {
	if val.IsZero() {
		return ""
	}
	return p.humanizer.NaturalTime(val)
}

// distance formats a distance in kilometers in the configured units.
func (p *Presenter) distance(km float64) string {
	if p.units == "imperial" {
		return fmt.Sprintf("%.1f mi", km/kmPerMile)
	}
	return fmt.Sprintf("%.1f km", km)
}

func timeFormat(val time.Time, layout string) string {
	return val.Format(layout)
}

func floatFormat(val float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, val)
}

// pad3 formats a heading as a zero padded three digit number of degrees.
func pad3(val float64) string {
	deg := int(math.Floor(val+0.5)) % 360
	return fmt.Sprintf("%03d", deg)
}

// EmojiWithSpace returns emoji followed by enough spaces to separate it from the following text,
// taking its display width into account. An empty emoji results in an empty string.
func EmojiWithSpace(emoji string) string {
	if emoji == "" {
		return ""
	}
	width := runewidth.StringWidth(emoji)
	if width < 2 {
		return emoji + "  "
	}
	return emoji + " "
}
