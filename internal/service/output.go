// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"

	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/presenter"
	"github.com/wneessen/ufobeep/internal/tracker"
)

// Render satisfies the tracker.Renderer interface. It is called with the tracker lock held and
// therefore must not call into the tracker.
func (s *Service) Render(frame tracker.Frame) {
	target := ""
	if entry, ok := s.feed.Find(frame.Guidance.Target); ok {
		target = entry.Label()
	}
	ctx := s.templateContext()
	ctx.State = presenter.ClassActive
	ctx.Compass = presenter.NewCompassView(frame, target)
	s.writeOutput(ctx, false)
}

// printOutput writes the idle output. While the compass is active, the tracker renders a frame on
// open and on every refresh instead.
func (s *Service) printOutput(context.Context) {
	if s.tracker.State() == tracker.Active {
		return
	}
	s.writeOutput(s.templateContext(), true)
}

func (s *Service) templateContext() presenter.TemplateContext {
	ctx := presenter.TemplateContext{
		State:     presenter.ClassIdle,
		Connected: s.channel.Connected(),
		Feed:      s.presenter.NewFeedItems(s.feed.Entries()),
		RangeKm:   s.config.Alerts.RangeKm,
		Origin:    s.Origin(),
	}
	if !ctx.Connected {
		ctx.State = presenter.ClassOffline
	}

	s.nearbyLock.RLock()
	ctx.NearbyCount = len(s.nearby)
	ctx.Nearby = s.presenter.NewNearbyItems(ctx.Origin, s.nearby, ctx.RangeKm)
	if s.stats != nil {
		stats := *s.stats
		ctx.Stats = &stats
	}
	s.nearbyLock.RUnlock()

	return ctx
}

// writeOutput renders ctx and writes it to the output. Unless force is set, output identical
// to the previous line is skipped.
func (s *Service) writeOutput(ctx presenter.TemplateContext, force bool) {
	output, err := s.presenter.Render(ctx)
	if err != nil {
		s.logger.Error("failed to render output", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if !force && output == s.lastOutput {
		return
	}
	s.lastOutput = output
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode output", logger.Err(err))
	}
}
