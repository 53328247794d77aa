// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/sighting"
)

const (
	reportLocateTimeout = time.Second * 30
	reportHeadingWait   = time.Second * 3
	reportHeadingPoll   = time.Millisecond * 100

	msgReportSuccess localize.MsgID = "Sighting reported successfully."
	msgReportFailed  localize.MsgID = "Upload failed."
)

// ErrNoOrigin is returned if the current position could not be determined in time.
var ErrNoOrigin = errors.New("unable to determine the current location")

// Report uploads photo as a new sighting at the current position. The bearing is the current
// heading, or 0 if no heading is available. An empty flag uses the configured country flag.
func (s *Service) Report(ctx context.Context, photo, flag string) (sighting.UploadResult, error) {
	if _, err := os.Stat(photo); err != nil {
		return sighting.UploadResult{}, fmt.Errorf("failed to access photo: %w", err)
	}

	origin, err := s.locate(ctx)
	if err != nil {
		return sighting.UploadResult{}, err
	}
	bearing, ok := s.currentHeading(ctx)
	if !ok {
		s.logger.Warn("no heading available, reporting sighting with bearing 0")
	}
	if flag == "" {
		flag = s.config.Alerts.CountryFlag
	}

	result, err := s.sightings.Report(ctx, sighting.Report{
		Photo:    photo,
		Position: origin,
		Bearing:  bearing,
		Time:     time.Now(),
		DeviceID: s.config.Server.DeviceID,
		UserFlag: flag,
	})
	if err != nil {
		return result, err
	}
	s.logger.Info("sighting reported", slog.Int64("id", result.SightingID), slog.String("url", result.FileURL),
		slog.Float64("lat", origin.Lat), slog.Float64("lon", origin.Lon), slog.Float64("bearing", bearing))
	return result, nil
}

// ReportMessage returns the localized user message for the outcome of Report.
func (s *Service) ReportMessage(err error) string {
	msgID := msgReportSuccess
	if err != nil {
		msgID = msgReportFailed
	}
	if s.t == nil {
		return msgID
	}
	return s.t.Get(msgID)
}

// locate returns the current origin. If none is known yet, the geolocation providers are run
// until the first result arrives or the lookup times out.
func (s *Service) locate(ctx context.Context) (geomath.Coordinate, error) {
	if origin := s.Origin(); origin != nil {
		return *origin, nil
	}
	providers, err := s.selectGeobusProviders()
	if err != nil {
		return geomath.Coordinate{}, fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}

	ctxLocate, cancel := context.WithTimeout(ctx, reportLocateTimeout)
	defer cancel()
	result, err := s.geobus.NewOrchestrator(providers).Locate(ctxLocate, DesktopID)
	if err != nil {
		s.logger.Debug("origin lookup failed", logger.Err(err))
		return geomath.Coordinate{}, ErrNoOrigin
	}
	s.setOrigin(result.Coordinate)
	return result.Coordinate, nil
}

// currentHeading follows the heading provider for a short time and returns the first sample.
func (s *Service) currentHeading(ctx context.Context) (float64, bool) {
	if degrees, ok := s.heading.Heading(); ok {
		return degrees, true
	}
	if s.headingProv == nil {
		return 0, false
	}

	ctxHeading, cancel := context.WithTimeout(ctx, reportHeadingWait)
	var wg sync.WaitGroup
	wg.Go(func() { s.heading.Follow(ctxHeading, s.headingProv, s.logger) })
	defer func() {
		cancel()
		wg.Wait()
	}()

	ticker := time.NewTicker(reportHeadingPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctxHeading.Done():
			return s.heading.Heading()
		case <-ticker.C:
			if degrees, ok := s.heading.Heading(); ok {
				return degrees, true
			}
		}
	}
}
