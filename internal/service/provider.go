// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/wneessen/ufobeep/internal/channel"
	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/geobus/provider/geoip"
	"github.com/wneessen/ufobeep/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/ufobeep/internal/geobus/provider/gpsd"
	"github.com/wneessen/ufobeep/internal/geobus/provider/ichnaea"
	"github.com/wneessen/ufobeep/internal/geocode"
	"github.com/wneessen/ufobeep/internal/geocode/provider/opencage"
	nominatim "github.com/wneessen/ufobeep/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/ufobeep/internal/heading"
	"github.com/wneessen/ufobeep/internal/http"
	"github.com/wneessen/ufobeep/internal/i18n"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/notify"
	"github.com/wneessen/ufobeep/internal/sighting"
	"github.com/wneessen/ufobeep/internal/sky"
	openmeteo "github.com/wneessen/ufobeep/internal/sky/provider/open-meteo"
)

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.File))
	}

	if !s.config.GeoLocation.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(s.config.GPSD.Host,
			strconv.Itoa(s.config.GPSD.Port)))
	}

	if !s.config.GeoLocation.DisableGeoIP {
		gip, err := geoip.NewGeolocationGeoIPProvider(httpClient, geoip.ServiceReallyFreeGeoIP)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoIP provider: %w", err)
		}
		provider = append(provider, gip)
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}
	if len(provider) == 0 {
		return nil, fmt.Errorf("no geolocation providers enabled")
	}

	return provider, nil
}

func (s *Service) selectGeocodeProvider(lang language.Tag) (geocode.Geocoder, error) {
	switch strings.ToLower(s.config.Geocoder.Provider) {
	case "nominatim":
		return geocode.NewCachedGeocoder(nominatim.New(http.New(s.logger), lang), cacheHitTTL, cacheMissTTL), nil
	case "opencage":
		coder, err := opencage.New(http.New(s.logger), lang, s.config.Geocoder.APIKey)
		if err != nil {
			return nil, err
		}
		return geocode.NewCachedGeocoder(coder, cacheHitTTL, cacheMissTTL), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", s.config.Geocoder.Provider)
	}
}

func (s *Service) selectSkyReporter() (*sky.Reporter, error) {
	if s.config.Sky.Disable {
		return nil, nil
	}
	provider, err := openmeteo.New(http.New(s.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo weather provider: %w", err)
	}
	return sky.New(provider, s.logger), nil
}

func (s *Service) selectHeadingProvider() (heading.Provider, error) {
	switch strings.ToLower(s.config.Heading.Source) {
	case "gpsd":
		return heading.NewGPSDProvider(s.config.GPSD.Host, strconv.Itoa(s.config.GPSD.Port), s.logger), nil
	case "file":
		return heading.NewFileProvider(s.config.Heading.File, s.config.Intervals.CompassRefresh), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported heading source: %s", s.config.Heading.Source)
	}
}

func (s *Service) selectSightingClient() (*sighting.Client, error) {
	return sighting.NewClient(http.New(s.logger), s.config.Server.URL)
}

func (s *Service) selectChannel() (*channel.Client, error) {
	return channel.New(s.config.Server.WSURL, s.config.Server.DeviceID, s.logger,
		channel.WithReconnect(s.config.Intervals.Reconnect))
}

// selectNotifySinks returns the sinks alerts are delivered to. Alerts are always logged.
func (s *Service) selectNotifySinks() []notify.Sink {
	sinks := []notify.Sink{notify.NewLogSink(s.logger)}
	if !s.config.Alerts.DisableNotifications {
		sinks = append(sinks, notify.NewDesktopSink(AppName))
	}
	if !s.config.Alerts.Mute {
		if sink := s.selectAudioSink(); sink != nil {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// selectAudioSink returns the speech sink with the alert tone as fallback. If the speech command
// is unusable, only the tone is played.
func (s *Service) selectAudioSink() notify.Sink {
	tone, err := notify.NewToneSink(s.config.Alerts.ToneCommand, os.Stderr)
	if err != nil {
		s.logger.Warn("alert tone falls back to the terminal bell", logger.Err(err))
		tone, _ = notify.NewToneSink("", os.Stderr)
	}
	speech, err := notify.NewSpeechSink(s.config.Alerts.SpeechCommand, i18n.Base(i18n.Tag(s.config.Locale)))
	if err != nil {
		s.logger.Warn("speech alerts disabled, playing alert tone instead", logger.Err(err))
		return tone
	}
	return notify.NewFallbackSink(speech, tone, s.logger)
}
