// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders the compass and the alert feed into the JSON lines consumed by
// status bars like waybar.
package presenter

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/es"
	"github.com/vorlif/spreak"

	"github.com/wneessen/ufobeep/internal/alertfeed"
	"github.com/wneessen/ufobeep/internal/config"
	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/i18n"
	"github.com/wneessen/ufobeep/internal/sighting"
	"github.com/wneessen/ufobeep/internal/sky"
	"github.com/wneessen/ufobeep/internal/tracker"
)

const (
	ClassActive  = "active"
	ClassIdle    = "idle"
	ClassOffline = "offline"

	kmPerMile = 1.609344

	// closeRangeKm is the distance below which nearby sightings are highlighted.
	closeRangeKm = 10

	iconDegraded = "🧭"
	iconTarget   = "🛸"
)

var arrows = [8]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

// Output is a single line of status bar output.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

// CompassView holds the presentation values of a compass frame. Heading and Direction are only
// meaningful if HasHeading is set.
type CompassView struct {
	Arrow      string
	HasHeading bool
	Heading    float64
	Direction  string

	Guided          bool
	DistanceKm      float64
	Bearing         float64
	TargetDirection string
	TargetIcon      string
	Target          string
}

// FeedItem holds the presentation values of an alert feed entry.
type FeedItem struct {
	Flag       string
	Place      string
	Summary    string
	ReceivedAt time.Time
	InRange    bool
	Viewing    string
	SkyIcon    string
}

// NearbyItem holds the presentation values of a sighting near the origin.
type NearbyItem struct {
	Flag       string
	DistanceKm float64
	Bearing    float64
	Direction  string
	Close      bool
	ReportedAt time.Time
}

// TemplateContext is the data the templates are executed with.
type TemplateContext struct {
	State       string
	Connected   bool
	Compass     *CompassView
	Feed        []FeedItem
	Nearby      []NearbyItem
	NearbyCount int
	RangeKm     float64
	Origin      *geomath.Coordinate
	Stats       *sighting.Stats
}

// Presenter renders TemplateContexts with the configured templates.
type Presenter struct {
	TextTemplate        *template.Template
	CompassTextTemplate *template.Template
	TooltipTemplate     *template.Template

	localizer   *spreak.Localizer
	humanizer   *humanize.Humanizer
	units       string
	defaultFlag string
}

// New parses the configured templates and checks that they render with a fully populated
// context.
func New(conf *config.Config, localizer *spreak.Localizer) (*Presenter, error) {
	collection, err := humanize.New(humanize.WithLocale(es.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		localizer:   localizer,
		humanizer:   collection.CreateHumanizer(i18n.Tag(conf.Locale)),
		units:       conf.Units,
		defaultFlag: conf.Alerts.CountryFlag,
	}

	templates := []struct {
		name string
		text string
		dst  **template.Template
	}{
		{"text", conf.Templates.Text, &pres.TextTemplate},
		{"compass_text", conf.Templates.CompassText, &pres.CompassTextTemplate},
		{"tooltip", conf.Templates.Tooltip, &pres.TooltipTemplate},
	}
	for _, tpl := range templates {
		parsed, err := template.New(tpl.name).Funcs(pres.templateFuncMap()).Parse(tpl.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", tpl.name, err)
		}
		*tpl.dst = parsed
	}

	if _, err = pres.Render(sampleContext(conf.Alerts.CountryFlag)); err != nil {
		return nil, err
	}
	return pres, nil
}

// NewCompassView converts a tracker frame into its presentation values. target is the label of
// the sighting, usually its place name.
func NewCompassView(frame tracker.Frame, target string) *CompassView {
	view := &CompassView{
		Arrow:  iconDegraded,
		Target: target,
	}
	if frame.Heading.IsSet() {
		view.HasHeading = true
		view.Heading = frame.Heading.Value()
		view.Direction = frame.Direction.Value().String()
	}
	if frame.Guidance.Degraded() {
		return view
	}
	view.Guided = true
	if frame.Relative.IsSet() {
		view.Arrow = arrowFor(frame.Relative.Value())
	}
	view.DistanceKm = frame.Guidance.DistanceKm.Value()
	view.Bearing = frame.Guidance.Bearing.Value()
	view.TargetDirection = frame.Guidance.Direction.Value().String()
	view.TargetIcon = iconTarget
	return view
}

// NewFeedItems converts the alert feed entries into their presentation values.
func (p *Presenter) NewFeedItems(entries []alertfeed.Entry) []FeedItem {
	items := make([]FeedItem, 0, len(entries))
	for _, entry := range entries {
		item := FeedItem{
			Flag:       entry.Flag,
			Place:      entry.Label(),
			ReceivedAt: entry.ReceivedAt,
			InRange:    entry.InRange,
			Viewing:    sky.ViewingUnknown.String(),
		}
		if item.Flag == "" {
			item.Flag = p.defaultFlag
		}
		if !entry.Guidance.Degraded() {
			item.Summary = fmt.Sprintf("%s %s", p.distance(entry.Guidance.DistanceKm.Value()),
				entry.Guidance.Direction.Value())
		}
		if entry.Sky != nil {
			item.Viewing = entry.Sky.Viewing.String()
			item.SkyIcon = entry.Sky.Icon()
		}
		items = append(items, item)
	}
	return items
}

// NewNearbyItems converts the sightings within rangeKm of origin into their presentation values,
// closest first. Without an origin there are no nearby items.
func (p *Presenter) NewNearbyItems(origin *geomath.Coordinate, sightings []sighting.Sighting, rangeKm float64) []NearbyItem {
	if origin == nil {
		return nil
	}
	items := make([]NearbyItem, 0, len(sightings))
	for _, s := range sightings {
		distance := geomath.DistanceKm(*origin, s.Coordinate())
		if distance > rangeKm {
			continue
		}
		bearing := geomath.InitialBearing(*origin, s.Coordinate())
		item := NearbyItem{
			Flag:       s.UserFlag.Value(),
			DistanceKm: distance,
			Bearing:    bearing,
			Direction:  geomath.DirectionFor(bearing).String(),
			Close:      distance < closeRangeKm,
		}
		if item.Flag == "" {
			item.Flag = iconTarget
		}
		if reported, err := s.Time(); err == nil {
			item.ReportedAt = reported
		}
		items = append(items, item)
	}
	slices.SortStableFunc(items, func(a, b NearbyItem) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return items
}

// Render executes the templates for ctx. While a compass is shown, the compass text template
// replaces the text template.
func (p *Presenter) Render(ctx TemplateContext) (Output, error) {
	output := Output{Class: ctx.State, Alt: ctx.State}
	if output.Class == "" {
		output.Class = ClassIdle
		output.Alt = ClassIdle
	}

	textTpl := p.TextTemplate
	if ctx.Compass != nil {
		textTpl = p.CompassTextTemplate
	}
	text, err := execute(textTpl, ctx)
	if err != nil {
		return output, err
	}
	tooltip, err := execute(p.TooltipTemplate, ctx)
	if err != nil {
		return output, err
	}
	output.Text = text
	output.Tooltip = tooltip
	return output, nil
}

// Write renders ctx and writes it as a single JSON line to w.
func (p *Presenter) Write(w io.Writer, ctx TemplateContext) error {
	output, err := p.Render(ctx)
	if err != nil {
		return err
	}
	if err = json.NewEncoder(w).Encode(output); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func execute(tpl *template.Template, ctx TemplateContext) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := tpl.Execute(buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

// arrowFor returns the arrow that points towards a target at the given clockwise turn.
func arrowFor(relative float64) string {
	idx := int(math.Floor(geomath.NormalizeBearing(relative)/45+0.5)) % len(arrows)
	return arrows[idx]
}

func sampleContext(flag string) TemplateContext {
	origin := geomath.Coordinate{Lat: 40.0, Lon: -74.0}
	target := geomath.Coordinate{Lat: 40.1, Lon: -74.0}
	guidance := tracker.NewGuidance(target, &origin)
	frame := tracker.Frame{Guidance: guidance}
	frame.Heading.Set(0)
	frame.Direction.Set(geomath.North)
	frame.Relative.Set(guidance.Bearing.Value())

	return TemplateContext{
		State:     ClassActive,
		Connected: true,
		Compass:   NewCompassView(frame, "Sample"),
		Feed: []FeedItem{{
			Flag:       flag,
			Place:      "Sample",
			Summary:    "11.1 km N",
			ReceivedAt: time.Now(),
			InRange:    true,
			Viewing:    "good",
			SkyIcon:    "🔭",
		}},
		Nearby: []NearbyItem{{
			Flag:       flag,
			DistanceKm: 5.2,
			Bearing:    90,
			Direction:  "E",
			Close:      true,
			ReportedAt: time.Now(),
		}},
		NearbyCount: 1,
		RangeKm:     50,
		Origin:      &origin,
		Stats:       &sighting.Stats{},
	}
}
