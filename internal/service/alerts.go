// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/wneessen/ufobeep/internal/alertfeed"
	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/notify"
	"github.com/wneessen/ufobeep/internal/sighting"
	"github.com/wneessen/ufobeep/internal/sky"
	"github.com/wneessen/ufobeep/internal/tracker"
)

// processAlerts handles the proximity alerts received over the realtime channel.
func (s *Service) processAlerts(ctx context.Context) {
	alerts := s.channel.Alerts()
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			s.handleAlert(ctx, alert)
		}
	}
}

// handleAlert records the alert in the feed and schedules the compass towards it. Alerts outside
// the alert range of a known origin are only recorded.
func (s *Service) handleAlert(ctx context.Context, alert sighting.ProximityAlert) {
	target := alert.Coordinate()
	origin := s.Origin()
	entry := alertfeed.Entry{
		ID:         alert.ID,
		Target:     target,
		Flag:       alert.UserFlag.Value(),
		Filename:   alert.Filename,
		ReceivedAt: time.Now(),
		Guidance:   tracker.NewGuidance(target, origin),
		InRange:    true,
	}
	if reported, err := alert.Time(); err == nil {
		entry.ReportedAt = reported
	}
	if !entry.Guidance.Degraded() && entry.Guidance.DistanceKm.Value() > s.config.Alerts.RangeKm {
		entry.InRange = false
	}
	s.feed.Add(entry)

	if !entry.InRange {
		s.logger.Info("ignoring sighting outside of alert range", slog.Int64("id", alert.ID),
			slog.Float64("distance_km", entry.Guidance.DistanceKm.Value()),
			slog.Float64("range_km", s.config.Alerts.RangeKm))
		s.printOutput(ctx)
		return
	}

	s.logger.Info("received proximity alert", slog.Int64("id", alert.ID),
		slog.Float64("lat", target.Lat), slog.Float64("lon", target.Lon))
	go s.enrichAlert(ctx, target)
	s.scheduleCompass(ctx, target)
}

// scheduleCompass opens the compass towards target after the configured delay. A compass that
// is still pending is replaced.
func (s *Service) scheduleCompass(ctx context.Context, target geomath.Coordinate) {
	s.pendingLock.Lock()
	defer s.pendingLock.Unlock()

	if s.pending != nil {
		s.pending.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.config.Alerts.CompassDelay, func() {
		s.pendingLock.Lock()
		if s.pending != timer {
			s.pendingLock.Unlock()
			return
		}
		s.pending = nil
		s.pendingLock.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.tracker.Open(ctx, target, s.Origin())
	})
	s.pending = timer
}

// enrichAlert looks up the place name and the sky conditions of a sighting and adds them to its
// feed entry.
func (s *Service) enrichAlert(ctx context.Context, target geomath.Coordinate) {
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	if s.geocoder != nil {
		address, err := s.geocoder.Reverse(ctx, target)
		if err != nil {
			s.logger.Warn("failed to reverse geocode sighting", logger.Err(err),
				slog.String("provider", s.geocoder.Name()))
		} else if place := address.Place(); place != "" {
			s.feed.Update(target, func(entry *alertfeed.Entry) { entry.Place = place })
		}
	}
	if s.sky != nil {
		cond := s.sky.Conditions(ctx, target, time.Now())
		s.feed.Update(target, func(entry *alertfeed.Entry) { entry.Sky = &cond })
	}
}

// alertDetails provides the feed information of a sighting to the notification dispatcher.
func (s *Service) alertDetails(target geomath.Coordinate) (notify.Details, bool) {
	entry, ok := s.feed.Find(target)
	if !ok {
		return notify.Details{}, false
	}
	details := notify.Details{
		Flag:  entry.Flag,
		Place: entry.Place,
	}
	if details.Flag == "" {
		details.Flag = s.config.Alerts.CountryFlag
	}
	if entry.Sky != nil && entry.Sky.Viewing != sky.ViewingUnknown {
		details.Viewing = entry.Sky.Viewing.String()
	}
	return details, true
}
