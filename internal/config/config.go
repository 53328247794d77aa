// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kkyr/fig"
)

const (
	configEnv = "UFOBEEP"

	DefaultTextTpl        = "🛸 {{.NearbyCount}}"
	DefaultCompassTextTpl = "{{if .Compass.HasHeading}}{{.Compass.Arrow}} {{pad3 .Compass.Heading}}° " +
		"{{.Compass.Direction}}{{if .Compass.Guided}} {{end}}{{else if not .Compass.Guided}}{{.Compass.Arrow}}{{end}}" +
		"{{if .Compass.Guided}}{{emojiPad .Compass.TargetIcon}}{{distance .Compass.DistanceKm}} " +
		"{{.Compass.TargetDirection}}{{if not .Compass.HasHeading}} ({{pad3 .Compass.Bearing}}°){{end}}{{end}}"
	DefaultTooltipTpl = "{{if .Compass}}{{loc \"target\"}}: {{.Compass.Target}}\n{{end}}" +
		"{{loc \"nearby\"}}: {{.NearbyCount}} ({{distance .RangeKm}})\n" +
		"{{range .Nearby}}{{emojiPad .Flag}}{{distance .DistanceKm}} {{.Direction}}{{if .Close}} ⚠️{{end}}\n{{end}}" +
		"{{range .Feed}}{{emojiPad .Flag}}{{.Place}} {{.Summary}} · {{humanTime .ReceivedAt}}\n{{end}}" +
		"{{if .Origin}}{{loc \"location\"}}: {{floatFormat .Origin.Lat 4}}, {{floatFormat .Origin.Lon 4}}{{end}}"

	deviceIDPrefix = "mobile-"
	deviceIDLength = 9
)

var (
	ErrInvalidUnits     = errors.New("invalid units")
	ErrInvalidServerURL = errors.New("invalid server URL")
	ErrInvalidRange     = errors.New("alert range must be between 1 and 1000 km")
	ErrInvalidFeedSize  = errors.New("alert feed size must be between 1 and 100")
	ErrInvalidHeading   = errors.New("invalid heading source")
	ErrInvalidGeocoder  = errors.New("invalid geocoder provider")
	ErrInvalidInterval  = errors.New("intervals must be positive")
)

// Config represents the application's configuration structure.
type Config struct {
	// Allowed values: metric, imperial
	Units    string     `fig:"units" default:"metric"`
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Server struct {
		URL      string `fig:"url" default:"https://ufobeep.com"`
		WSURL    string `fig:"ws_url"`
		DeviceID string `fig:"device_id"`
	} `fig:"server"`

	Alerts struct {
		// Allowed values: 1 to 1000
		RangeKm              float64       `fig:"range_km" default:"50"`
		DisableNotifications bool          `fig:"disable_notifications"`
		Mute                 bool          `fig:"mute"`
		SpeechCommand        string        `fig:"speech_command" default:"espeak-ng -v {lang}"`
		ToneCommand          string        `fig:"tone_command"`
		FeedSize             int           `fig:"feed_size" default:"10"`
		CompassDelay         time.Duration `fig:"compass_delay" default:"1s"`
		CountryFlag          string        `fig:"country_flag" default:"🇺🇸"`
	} `fig:"alerts"`

	Intervals struct {
		CompassRefresh time.Duration `fig:"compass_refresh" default:"100ms"`
		LocationUpdate time.Duration `fig:"location_update" default:"30s"`
		NearbyUpdate   time.Duration `fig:"nearby_update" default:"5m"`
		Reconnect      time.Duration `fig:"reconnect" default:"3s"`
		Output         time.Duration `fig:"output" default:"30s"`
	} `fig:"intervals"`

	Templates struct {
		Text        string `fig:"text"`
		CompassText string `fig:"compass_text"`
		Tooltip     string `fig:"tooltip"`
	} `fig:"templates"`

	GeoLocation struct {
		File                   string `fig:"file"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableGeoIP           bool   `fig:"disable_geoip"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
	} `fig:"geolocation"`

	Heading struct {
		// Allowed values: gpsd, file, none
		Source string `fig:"source" default:"gpsd"`
		File   string `fig:"file"`
	} `fig:"heading"`

	GPSD struct {
		Host string `fig:"host" default:"localhost"`
		Port int    `fig:"port" default:"2947"`
	} `fig:"gpsd"`

	Geocoder struct {
		// Allowed values: nominatim, opencage, none
		Provider string `fig:"provider" default:"nominatim"`
		APIKey   string `fig:"apikey"`
	} `fig:"geocoder"`

	Sky struct {
		Disable bool `fig:"disable"`
	} `fig:"sky"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the configuration values and fills in the values that are derived from
// others.
func (c *Config) Validate() error {
	if c.Units != "metric" && c.Units != "imperial" {
		return fmt.Errorf("%w: %s", ErrInvalidUnits, c.Units)
	}
	if c.Locale == "" {
		c.Locale = getLocale()
	}

	serverURL, err := url.Parse(c.Server.URL)
	if err != nil || (serverURL.Scheme != "http" && serverURL.Scheme != "https") || serverURL.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.Server.URL)
	}
	if c.Server.WSURL == "" {
		c.Server.WSURL = websocketURL(serverURL)
	}
	if c.Server.DeviceID == "" {
		c.Server.DeviceID = NewDeviceID()
	}

	if c.Alerts.RangeKm < 1 || c.Alerts.RangeKm > 1000 {
		return fmt.Errorf("%w: %g", ErrInvalidRange, c.Alerts.RangeKm)
	}
	if c.Alerts.FeedSize < 1 || c.Alerts.FeedSize > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidFeedSize, c.Alerts.FeedSize)
	}
	if c.Alerts.CompassDelay < 0 {
		return fmt.Errorf("%w: compass delay %s", ErrInvalidInterval, c.Alerts.CompassDelay)
	}
	for name, interval := range map[string]time.Duration{
		"compass_refresh": c.Intervals.CompassRefresh,
		"location_update": c.Intervals.LocationUpdate,
		"nearby_update":   c.Intervals.NearbyUpdate,
		"reconnect":       c.Intervals.Reconnect,
		"output":          c.Intervals.Output,
	} {
		if interval <= 0 {
			return fmt.Errorf("%w: %s is %s", ErrInvalidInterval, name, interval)
		}
	}

	switch c.Heading.Source {
	case "gpsd", "none":
	case "file":
		if c.Heading.File == "" {
			home, _ := os.UserHomeDir()
			c.Heading.File = filepath.Join(home, ".config", "ufobeep", "heading")
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHeading, c.Heading.Source)
	}

	switch c.Geocoder.Provider {
	case "nominatim", "none":
	case "opencage":
		if c.Geocoder.APIKey == "" {
			return fmt.Errorf("%w: opencage requires an API key", ErrInvalidGeocoder)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidGeocoder, c.Geocoder.Provider)
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.CompassText == "" {
		c.Templates.CompassText = DefaultCompassTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "ufobeep", "geolocation")
	}

	return nil
}

// NewDeviceID returns a random identifier for this client, e.g. "mobile-4f9c2a1be".
func NewDeviceID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return deviceIDPrefix + id[:deviceIDLength]
}

// websocketURL derives the realtime endpoint from the server URL.
func websocketURL(server *url.URL) string {
	wsURL := *server
	wsURL.Scheme = "wss"
	if server.Scheme == "http" {
		wsURL.Scheme = "ws"
	}
	return wsURL.JoinPath("ws").String()
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
