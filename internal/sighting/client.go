// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sighting

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/http"
)

// DefaultListLimit is the number of sightings the server returns if no limit is given.
const DefaultListLimit = 50

// Client talks to the sighting server.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// NewClient returns a Client for the server at baseURL.
func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", parsed.Scheme)
	}
	return &Client{http: httpClient, baseURL: parsed}, nil
}

// Nearby returns the sightings within radiusKm of coord, including their distance.
func (c *Client) Nearby(ctx context.Context, coord geomath.Coordinate, radiusKm float64) ([]Sighting, error) {
	query := url.Values{}
	query.Set("lat", formatFloat(coord.Lat))
	query.Set("lon", formatFloat(coord.Lon))
	query.Set("radius", formatFloat(radiusKm))

	var sightings []Sighting
	if _, err := c.http.Get(ctx, c.endpoint("sightings", "nearby"), &sightings, query, nil); err != nil {
		return nil, fmt.Errorf("failed to fetch nearby sightings: %w", err)
	}
	return sightings, nil
}

// List returns the latest sightings, at most limit of them.
func (c *Client) List(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var sightings []Sighting
	if _, err := c.http.Get(ctx, c.endpoint("sightings"), &sightings, query, nil); err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}
	return sightings, nil
}

// Stats returns the server statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if _, err := c.http.Get(ctx, c.endpoint("stats"), &stats, nil, nil); err != nil {
		return Stats{}, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return stats, nil
}

// Report uploads a new sighting. The server broadcasts it to all connected clients.
func (c *Client) Report(ctx context.Context, report Report) (UploadResult, error) {
	if !report.Position.Valid() {
		return UploadResult{}, ErrInvalidCoordinate
	}
	if report.Time.IsZero() {
		report.Time = time.Now()
	}
	fields := map[string]string{
		"lat":       formatFloat(report.Position.Lat),
		"lon":       formatFloat(report.Position.Lon),
		"bearing":   formatFloat(geomath.NormalizeBearing(report.Bearing)),
		"timestamp": FormatTimestamp(report.Time),
		"device_id": report.DeviceID,
	}
	if report.UserFlag != "" {
		fields["user_flag"] = report.UserFlag
	}
	file := http.FormFile{
		Field: "file",
		Path:  report.Photo,
		Name:  SlugifyFilename(filepath.Base(report.Photo)),
	}

	var result UploadResult
	if _, err := c.http.PostMultipart(ctx, c.endpoint("upload"), &result, fields, file); err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload sighting: %w", err)
	}
	if result.Status != "success" {
		return result, fmt.Errorf("%w: server returned status %q", ErrUploadFailed, result.Status)
	}
	return result, nil
}

func (c *Client) endpoint(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
