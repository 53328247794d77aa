// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires the location, alert, compass and output components together.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/ufobeep/internal/alertfeed"
	"github.com/wneessen/ufobeep/internal/config"
	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/geocode"
	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/heading"
	"github.com/wneessen/ufobeep/internal/i18n"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/notify"
	"github.com/wneessen/ufobeep/internal/presenter"
	"github.com/wneessen/ufobeep/internal/sighting"
	"github.com/wneessen/ufobeep/internal/sky"
	"github.com/wneessen/ufobeep/internal/tracker"
)

const (
	DesktopID = "ufobeep"
	AppName   = "UFOBeep"

	cacheHitTTL  = time.Hour * 24
	cacheMissTTL = time.Minute * 10

	headingMaxAge       = time.Second * 5
	enrichTimeout       = time.Second * 15
	subscriptionBufSize = 32
)

// alertChannel is the realtime connection to the sighting server.
type alertChannel interface {
	Run(ctx context.Context)
	Alerts() <-chan sighting.ProximityAlert
	SendLocation(coord geomath.Coordinate) error
	Connected() bool
	Reconnect()
}

// sightingAPI is the REST API of the sighting server.
type sightingAPI interface {
	Nearby(ctx context.Context, coord geomath.Coordinate, radiusKm float64) ([]sighting.Sighting, error)
	Stats(ctx context.Context) (sighting.Stats, error)
	Report(ctx context.Context, report sighting.Report) (sighting.UploadResult, error)
}

type Service struct {
	config       *config.Config
	logger       *logger.Logger
	t            *spreak.Localizer
	scheduler    gocron.Scheduler
	geobus       *geobus.GeoBus
	orchestrator *geobus.Orchestrator
	presenter    *presenter.Presenter
	channel      alertChannel
	sightings    sightingAPI
	geocoder     geocode.Geocoder
	sky          *sky.Reporter
	dispatcher   *notify.Dispatcher
	tracker      *tracker.Tracker
	feed         *alertfeed.Feed
	heading      *heading.Latest
	headingProv  heading.Provider
	output       io.Writer
	SignalSrc    signalSource

	originLock sync.RWMutex
	origin     *geomath.Coordinate

	nearbyLock sync.RWMutex
	nearby     []sighting.Sighting
	stats      *sighting.Stats

	outputLock sync.Mutex
	lastOutput presenter.Output

	pendingLock sync.Mutex
	pending     *time.Timer
}

// New creates the service and all of its components from conf.
func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (*Service, error) {
	if log == nil {
		log = logger.New(slog.LevelInfo)
	}
	if conf == nil {
		return nil, fmt.Errorf("config is required")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		t:         t,
		scheduler: scheduler,
		geobus:    geobus.New(log),
		presenter: pres,
		feed:      alertfeed.New(conf.Alerts.FeedSize),
		heading:   heading.NewLatest(headingMaxAge),
		output:    os.Stdout,
		SignalSrc: stdLibSignalSource{},
	}

	if service.sightings, err = service.selectSightingClient(); err != nil {
		return nil, fmt.Errorf("failed to create sighting client: %w", err)
	}
	if service.channel, err = service.selectChannel(); err != nil {
		return nil, fmt.Errorf("failed to create realtime channel: %w", err)
	}
	if service.geocoder, err = service.selectGeocodeProvider(i18n.Tag(conf.Locale)); err != nil {
		return nil, fmt.Errorf("failed to create geocode provider: %w", err)
	}
	if service.sky, err = service.selectSkyReporter(); err != nil {
		return nil, fmt.Errorf("failed to create sky reporter: %w", err)
	}
	if service.headingProv, err = service.selectHeadingProvider(); err != nil {
		return nil, fmt.Errorf("failed to create heading provider: %w", err)
	}

	service.dispatcher = notify.NewDispatcher(t, log, service.selectNotifySinks()...)
	service.dispatcher.SetDetails(service.alertDetails)
	service.tracker = tracker.New(service.heading, service.dispatcher, service, log,
		tracker.WithInterval(conf.Intervals.CompassRefresh))

	return service, nil
}

// Run starts all components and blocks until ctx is cancelled. On return, the compass is
// always closed.
func (s *Service) Run(ctx context.Context) error {
	providers, err := s.selectGeobusProviders()
	if err != nil {
		return fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}
	s.orchestrator = s.geobus.NewOrchestrator(providers)

	// Start scheduled jobs
	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printOutput,
		"output_job"); err != nil {
		return err
	}
	if err = s.createScheduledJob(ctx, s.config.Intervals.LocationUpdate, s.pushLocation,
		"location_update_job"); err != nil {
		return err
	}
	if err = s.createScheduledJob(ctx, s.config.Intervals.NearbyUpdate, s.refreshNearby,
		"nearby_update_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	// Subscribe to origin updates from the geobus
	sub, unsub := s.geobus.Subscribe(DesktopID, subscriptionBufSize)

	var wg sync.WaitGroup
	wg.Go(func() { s.processLocationUpdates(ctx, sub) })
	wg.Go(func() { s.orchestrator.Track(ctx, DesktopID) })
	wg.Go(func() { s.channel.Run(ctx) })
	wg.Go(func() { s.processAlerts(ctx) })
	wg.Go(func() { s.dispatcher.Run(ctx) })
	wg.Go(func() { s.monitorSleepResume(ctx) })
	if s.headingProv != nil {
		wg.Go(func() { s.heading.Follow(ctx, s.headingProv, s.logger) })
	}
	s.printOutput(ctx)

	// Wait for the context to cancel
	<-ctx.Done()
	s.shutdown()
	unsub()
	wg.Wait()

	if err = s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

// Origin returns a copy of the current observer position, or nil if it is not known yet.
func (s *Service) Origin() *geomath.Coordinate {
	s.originLock.RLock()
	defer s.originLock.RUnlock()
	if s.origin == nil {
		return nil
	}
	origin := *s.origin
	return &origin
}

func (s *Service) setOrigin(coord geomath.Coordinate) {
	s.originLock.Lock()
	s.origin = &coord
	s.originLock.Unlock()
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// shutdown cancels a pending compass and closes the active one.
func (s *Service) shutdown() {
	s.pendingLock.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.pendingLock.Unlock()
	s.tracker.Close()
}

// processLocationUpdates applies the origin updates of the geobus subscription.
func (s *Service) processLocationUpdates(ctx context.Context, sub <-chan geobus.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received origin update", slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon),
				slog.String("source", r.Source))
			s.updateLocation(ctx, r.Coordinate)
		}
	}
}

// updateLocation stores the new origin, reports it to the server and refreshes the nearby
// sightings. An active compass keeps the guidance it was opened with.
func (s *Service) updateLocation(ctx context.Context, coord geomath.Coordinate) {
	if !coord.Valid() {
		s.logger.Debug("invalid coordinates, skipping origin update",
			slog.Float64("lat", coord.Lat), slog.Float64("lon", coord.Lon))
		return
	}
	s.setOrigin(coord)
	s.pushLocation(ctx)
	s.refreshNearby(ctx)
	s.printOutput(ctx)
}

// pushLocation sends the current origin over the realtime channel.
func (s *Service) pushLocation(context.Context) {
	origin := s.Origin()
	if origin == nil {
		return
	}
	if err := s.channel.SendLocation(*origin); err != nil {
		s.logger.Debug("failed to send location update", logger.Err(err))
	}
}

// refreshNearby fetches the sightings within the alert range of the current origin and the
// server statistics.
func (s *Service) refreshNearby(ctx context.Context) {
	origin := s.Origin()
	if origin == nil {
		s.logger.Debug("no origin available yet, skipping nearby sightings update")
		return
	}

	nearby, err := s.sightings.Nearby(ctx, *origin, s.config.Alerts.RangeKm)
	if err != nil {
		s.logger.Error("failed to fetch nearby sightings", logger.Err(err))
		return
	}
	s.nearbyLock.Lock()
	s.nearby = nearby
	s.nearbyLock.Unlock()
	s.logger.Debug("nearby sightings updated", slog.Int("count", len(nearby)))

	stats, err := s.sightings.Stats(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch sighting statistics", logger.Err(err))
		return
	}
	s.nearbyLock.Lock()
	s.stats = &stats
	s.nearbyLock.Unlock()
}

// NearbyCount returns the number of sightings within the alert range.
func (s *Service) NearbyCount() int {
	s.nearbyLock.RLock()
	defer s.nearbyLock.RUnlock()
	return len(s.nearby)
}
