// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package tracker owns the lifecycle of the live compass that points the user towards a reported
// sighting. A Tracker is either Idle or Active; while Active, a periodic refresh renders the
// current device heading until the session is closed.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/job"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/vartype"
)

// DefaultInterval is the default refresh cadence of an active session.
const DefaultInterval = time.Millisecond * 100

// State is the lifecycle state of a Tracker.
type State int

const (
	Idle State = iota
	Active
)

// HeadingSource provides the latest device heading sample. The boolean is false if there is no
// current sample.
type HeadingSource interface {
	Heading() (float64, bool)
}

// AlertSink receives the one-shot alert of each opened session. Implementations must not block.
type AlertSink interface {
	Alert(guidance Guidance)
}

// Renderer displays refresh frames. Render is called with the tracker lock held, so it must not
// call back into the Tracker.
type Renderer interface {
	Render(frame Frame)
}

// Stopper stops a periodic refresh. Stop must not return before the refresh has stopped ticking.
type Stopper interface {
	Stop()
}

// Scheduler starts periodic refreshes.
type Scheduler interface {
	Schedule(ctx context.Context, interval time.Duration, task func(context.Context)) Stopper
}

// Session describes an open compass session.
type Session struct {
	ID       uuid.UUID
	Target   geomath.Coordinate
	Origin   *geomath.Coordinate
	Guidance Guidance
	OpenedAt time.Time
}

// Tracker mediates between incoming targets and the continuous heading updates. At most one
// session, and therefore at most one refresh, is alive at any time.
type Tracker struct {
	heading   HeadingSource
	sink      AlertSink
	renderer  Renderer
	logger    *logger.Logger
	interval  time.Duration
	scheduler Scheduler

	mu      sync.Mutex
	session *Session
	refresh Stopper
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval sets the refresh cadence of active sessions.
func WithInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.interval = interval
		}
	}
}

// WithScheduler replaces the scheduler that drives the refresh.
func WithScheduler(scheduler Scheduler) Option {
	return func(t *Tracker) {
		if scheduler != nil {
			t.scheduler = scheduler
		}
	}
}

// New returns an idle Tracker. Any of heading, sink or renderer may be nil.
func New(heading HeadingSource, sink AlertSink, renderer Renderer, log *logger.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = logger.New(slog.LevelError)
	}
	tracker := &Tracker{
		heading:   heading,
		sink:      sink,
		renderer:  renderer,
		logger:    log,
		interval:  DefaultInterval,
		scheduler: jobScheduler{},
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker
}

// Open starts a new session towards target. A session that is still active is stopped first.
// The guidance is computed once from origin and is not recomputed for the lifetime of the
// session. With a nil origin the session runs in degraded mode without numeric guidance. Open
// renders the first frame right away and emits exactly one alert per call.
func (t *Tracker) Open(ctx context.Context, target geomath.Coordinate, origin *geomath.Coordinate) Guidance {
	session := &Session{
		ID:       uuid.New(),
		Target:   target,
		Guidance: NewGuidance(target, origin),
		OpenedAt: time.Now(),
	}
	if origin != nil {
		originCopy := *origin
		session.Origin = &originCopy
	}

	heading := t.currentHeading()
	t.mu.Lock()
	t.stopRefresh()
	t.session = session
	t.refresh = t.scheduler.Schedule(ctx, t.interval, func(context.Context) {
		t.refreshSession(session.ID)
	})
	t.render(newFrame(session.ID, session.Guidance, heading))
	t.mu.Unlock()

	if session.Guidance.Degraded() {
		t.logger.Warn("opening compass without origin, no directional guidance available",
			slog.String("session", session.ID.String()))
	} else {
		t.logger.Info("compass opened", slog.String("session", session.ID.String()),
			slog.Float64("distance_km", session.Guidance.DistanceKm.Value()),
			slog.Float64("bearing", session.Guidance.Bearing.Value()),
			slog.String("direction", session.Guidance.Direction.String()))
	}
	if t.sink != nil {
		t.sink.Alert(session.Guidance)
	}

	return session.Guidance
}

// Close stops the refresh of the active session and returns the Tracker to Idle. Calling Close
// on an idle Tracker is a no-op.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return
	}
	t.stopRefresh()
	t.logger.Debug("compass closed", slog.String("session", t.session.ID.String()))
	t.session = nil
}

// Tick returns the display frame for the given heading sample. It is a pure function of the
// heading and the guidance of the active session. If the Tracker is idle, false is returned.
func (t *Tracker) Tick(heading float64) (Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Frame{}, false
	}
	return newFrame(t.session.ID, t.session.Guidance, vartype.NewVariable(heading)), true
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Idle
	}
	return Active
}

// Session returns a copy of the active session.
func (t *Tracker) Session() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Session{}, false
	}
	return *t.session, true
}

// refreshSession renders a frame for the latest heading sample, as long as the session that
// scheduled the refresh is still the active one. Without a sample the frame shows the guidance
// alone.
func (t *Tracker) refreshSession(id uuid.UUID) {
	heading := t.currentHeading()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.session.ID != id {
		return
	}
	t.render(newFrame(id, t.session.Guidance, heading))
}

func (t *Tracker) currentHeading() vartype.VarFloat64 {
	var heading vartype.VarFloat64
	if t.heading == nil {
		return heading
	}
	if degrees, ok := t.heading.Heading(); ok {
		heading.Set(degrees)
	}
	return heading
}

// render requires t.mu to be held.
func (t *Tracker) render(frame Frame) {
	if t.renderer != nil {
		t.renderer.Render(frame)
	}
}

// stopRefresh requires t.mu to be held.
func (t *Tracker) stopRefresh() {
	if t.refresh == nil {
		return
	}
	t.refresh.Stop()
	t.refresh = nil
}

// String satisfies the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

type jobScheduler struct {
	runner job.Runner
}

func (s jobScheduler) Schedule(ctx context.Context, interval time.Duration, task func(context.Context)) Stopper {
	return s.runner.Schedule(ctx, interval, task)
}
