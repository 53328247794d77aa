// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package sighting implements the client side of the sighting server API.
package sighting

import (
	"errors"
	"regexp"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/vartype"
)

var (
	ErrInvalidTimestamp  = errors.New("invalid sighting timestamp")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrUploadFailed      = errors.New("sighting upload failed")

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

	// timestamps are written by browsers (toISOString) and by the server (naive isoformat)
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	}
)

// Sighting is a reported sighting as listed by the server.
type Sighting struct {
	ID           int64              `json:"id"`
	Filename     string             `json:"filename"`
	URL          string             `json:"url"`
	Lat          float64            `json:"lat"`
	Lon          float64            `json:"lon"`
	Bearing      float64            `json:"bearing"`
	Timestamp    string             `json:"timestamp"`
	DeviceID     string             `json:"device_id"`
	UserFlag     vartype.VarString  `json:"user_flag"`
	DistanceKm   vartype.VarFloat64 `json:"distance_km"`
	IdenticonURL string             `json:"identicon_url"`
}

// ProximityAlert is the payload of a realtime proximity alert.
type ProximityAlert struct {
	ID        int64             `json:"id"`
	Lat       float64           `json:"lat"`
	Lon       float64           `json:"lon"`
	Bearing   float64           `json:"bearing"`
	Timestamp string            `json:"timestamp"`
	UserFlag  vartype.VarString `json:"user_flag"`
	Filename  string            `json:"filename"`
}

// Stats are the server wide sighting statistics.
type Stats struct {
	TotalSightings    int `json:"total_sightings"`
	Recent24h         int `json:"recent_24h"`
	ActiveConnections int `json:"active_websocket_connections"`
	Countries         int `json:"countries_represented"`
}

// Report is a new sighting to be uploaded. Bearing is the direction the camera was pointing to.
type Report struct {
	Photo    string
	Position geomath.Coordinate
	Bearing  float64
	Time     time.Time
	DeviceID string
	UserFlag string
}

// UploadResult is the server response to an upload.
type UploadResult struct {
	Status     string `json:"status"`
	FileURL    string `json:"file_url"`
	SightingID int64  `json:"sighting_id"`
}

// Coordinate returns the position of the sighting.
func (s Sighting) Coordinate() geomath.Coordinate {
	return geomath.Coordinate{Lat: s.Lat, Lon: s.Lon}
}

// Time returns the parsed report time of the sighting.
func (s Sighting) Time() (time.Time, error) {
	return ParseTimestamp(s.Timestamp)
}

// Coordinate returns the position of the sighting that triggered the alert.
func (a ProximityAlert) Coordinate() geomath.Coordinate {
	return geomath.Coordinate{Lat: a.Lat, Lon: a.Lon}
}

// Time returns the parsed report time of the alert.
func (a ProximityAlert) Time() (time.Time, error) {
	return ParseTimestamp(a.Timestamp)
}

// ParseTimestamp parses the ISO 8601 timestamps used by the sighting server. Timestamps without
// a zone are interpreted as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// FormatTimestamp formats t the way browsers serialize dates, e.g. 2025-07-01T21:04:05.000Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// SlugifyFilename replaces every character the server does not accept in file names with an
// underscore.
func SlugifyFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
