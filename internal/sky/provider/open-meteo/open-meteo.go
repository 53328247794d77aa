// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hectormalot/omgo"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/http"
	"github.com/wneessen/ufobeep/internal/sky"
)

const (
	name          = "open-meteo"
	metricClouds  = "cloud_cover"
	metricWeather = "weather_code"
)

var ErrNoHTTPClient = errors.New("http client is required")

type OpenMeteo struct {
	client omgo.Client
}

// New returns an Open-Meteo weather provider that sends its requests through the given HTTP client.
func New(client *http.Client) (*OpenMeteo, error) {
	if client == nil {
		return nil, ErrNoHTTPClient
	}
	omclient, err := omgo.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo client: %w", err)
	}
	omclient.Client = client.Client
	omclient.UserAgent = http.UserAgent

	return &OpenMeteo{client: omclient}, nil
}

func (o *OpenMeteo) Name() string {
	return name
}

// Current returns the current weather code and the cloud cover of the current hour at coord.
func (o *OpenMeteo) Current(ctx context.Context, coord geomath.Coordinate) (sky.Weather, error) {
	location, err := omgo.NewLocation(coord.Lat, coord.Lon)
	if err != nil {
		return sky.Weather{}, fmt.Errorf("failed create Open-Meteo location from coordinates: %w", err)
	}
	opts := &omgo.Options{
		Timezone:      "UTC",
		HourlyMetrics: []string{metricClouds, metricWeather},
	}

	forecast, err := o.client.Forecast(ctx, location, opts)
	if err != nil {
		return sky.Weather{}, fmt.Errorf("failed to retrieve weather data from Open-Meteo API: %w", err)
	}

	weather := sky.Weather{
		Time: forecast.CurrentWeather.Time.Time,
		Code: int(forecast.CurrentWeather.WeatherCode),
	}
	hour := weather.Time.Truncate(time.Hour)
	for i, t := range forecast.HourlyTimes {
		if !t.Equal(hour) {
			continue
		}
		if clouds := forecast.HourlyMetrics[metricClouds]; i < len(clouds) {
			weather.CloudCover.Set(clouds[i])
		}
		break
	}

	return weather, nil
}
