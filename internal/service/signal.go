// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals dismisses the compass on SIGUSR1 and logs the current state on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.logger.Debug("dismissing compass")
				s.shutdown()
				s.printOutput(ctx)
			case syscall.SIGUSR2:
				attrs := []any{
					slog.String("compass", s.tracker.State().String()),
					slog.Bool("connected", s.channel.Connected()),
					slog.Int("nearby", s.NearbyCount()),
					slog.Int("alerts", s.feed.Len()),
				}
				if origin := s.Origin(); origin != nil {
					attrs = append(attrs, slog.Float64("latitude", origin.Lat),
						slog.Float64("longitude", origin.Lon))
				}
				s.logger.Info("current state", attrs...)
			}
		}
	}
}
