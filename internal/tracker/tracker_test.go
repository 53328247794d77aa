// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package tracker

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
)

var (
	testOrigin  = geomath.Coordinate{Lat: 40.0, Lon: -74.0}
	testTarget  = geomath.Coordinate{Lat: 40.1, Lon: -74.0}
	testTarget2 = geomath.Coordinate{Lat: 40.0, Lon: -73.9}
)

type fakeHeading struct {
	mu    sync.Mutex
	value float64
	ok    bool
}

func (h *fakeHeading) Heading() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.ok
}

func (h *fakeHeading) set(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = value
	h.ok = true
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []Guidance
}

func (s *recordingSink) Alert(g Guidance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, g)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type recordingRenderer struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recordingRenderer) Render(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingRenderer) snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

type fakeScheduler struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

type fakeHandle struct {
	scheduler *fakeScheduler
	task      func(context.Context)
	interval  time.Duration
	stopped   bool
}

func (s *fakeScheduler) Schedule(_ context.Context, interval time.Duration, task func(context.Context)) Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := &fakeHandle{scheduler: s, task: task, interval: interval}
	s.handles = append(s.handles, handle)
	return handle
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := 0
	for _, h := range s.handles {
		if !h.stopped {
			live++
		}
	}
	return live
}

func (h *fakeHandle) Stop() {
	h.scheduler.mu.Lock()
	defer h.scheduler.mu.Unlock()
	h.stopped = true
}

func testTracker(opts ...Option) (*Tracker, *fakeHeading, *recordingSink, *recordingRenderer) {
	heading := &fakeHeading{}
	sink := &recordingSink{}
	renderer := &recordingRenderer{}
	log := logger.NewLogger(slog.LevelDebug, io.Discard)
	return New(heading, sink, renderer, log, opts...), heading, sink, renderer
}

func TestNew(t *testing.T) {
	t.Run("new tracker is idle", func(t *testing.T) {
		tracker, _, _, _ := testTracker()
		if tracker.State() != Idle {
			t.Errorf("expected tracker to be idle, got %s", tracker.State())
		}
		if _, ok := tracker.Session(); ok {
			t.Error("expected no session on a new tracker")
		}
		if tracker.interval != DefaultInterval {
			t.Errorf("expected default interval %s, got %s", DefaultInterval, tracker.interval)
		}
	})
	t.Run("options are applied", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, _, _, _ := testTracker(WithInterval(time.Second), WithScheduler(scheduler))
		if tracker.interval != time.Second {
			t.Errorf("expected interval to be 1s, got %s", tracker.interval)
		}
		if tracker.scheduler != scheduler {
			t.Error("expected scheduler to be replaced")
		}
	})
	t.Run("invalid options are ignored", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithInterval(-1), WithScheduler(nil))
		if tracker.interval != DefaultInterval {
			t.Errorf("expected default interval %s, got %s", DefaultInterval, tracker.interval)
		}
		if tracker.scheduler == nil {
			t.Error("expected default scheduler to be kept")
		}
	})
	t.Run("nil collaborators are tolerated", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker := New(nil, nil, nil, nil, WithScheduler(scheduler))
		tracker.Open(t.Context(), testTarget, &testOrigin)
		scheduler.handles[0].task(t.Context())
		tracker.Close()
	})
}

func TestTracker_Open(t *testing.T) {
	t.Run("open computes guidance once and alerts once", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, _, sink, _ := testTracker(WithScheduler(scheduler))
		guidance := tracker.Open(t.Context(), testTarget, &testOrigin)

		if guidance.Degraded() {
			t.Fatal("expected guidance to not be degraded")
		}
		if math.Abs(guidance.DistanceKm.Value()-11.12) > 0.01 {
			t.Errorf("expected distance to be about 11.12km, got %f", guidance.DistanceKm.Value())
		}
		if b := guidance.Bearing.Value(); b > 1e-6 && b < 360-1e-6 {
			t.Errorf("expected bearing to be about 0, got %f", b)
		}
		if guidance.Direction.Value() != geomath.North {
			t.Errorf("expected direction to be N, got %s", guidance.Direction.Value())
		}
		if sink.count() != 1 {
			t.Errorf("expected exactly one alert, got %d", sink.count())
		}
		if tracker.State() != Active {
			t.Errorf("expected tracker to be active, got %s", tracker.State())
		}
		if scheduler.live() != 1 {
			t.Errorf("expected one live refresh, got %d", scheduler.live())
		}
		if scheduler.handles[0].interval != DefaultInterval {
			t.Errorf("expected refresh interval %s, got %s", DefaultInterval, scheduler.handles[0].interval)
		}
	})
	t.Run("open without origin runs in degraded mode", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, heading, sink, renderer := testTracker(WithScheduler(scheduler))
		guidance := tracker.Open(t.Context(), testTarget, nil)

		if !guidance.Degraded() {
			t.Fatal("expected guidance to be degraded")
		}
		if guidance.DistanceKm.IsSet() || guidance.Bearing.IsSet() || guidance.Direction.IsSet() {
			t.Error("expected no numeric guidance in degraded mode")
		}
		if sink.count() != 1 {
			t.Errorf("expected exactly one alert, got %d", sink.count())
		}
		if tracker.State() != Active {
			t.Errorf("expected tracker to be active, got %s", tracker.State())
		}

		heading.set(95)
		scheduler.handles[0].task(t.Context())
		frames := renderer.snapshot()
		if len(frames) != 2 {
			t.Fatalf("expected opening and refresh frame, got %d", len(frames))
		}
		if frames[0].Heading.IsSet() {
			t.Error("expected opening frame without heading")
		}
		if frames[1].Direction.Value() != geomath.East {
			t.Errorf("expected frame direction to be E, got %s", frames[1].Direction)
		}
		if frames[1].Relative.IsSet() {
			t.Error("expected no relative bearing in degraded mode")
		}
	})
	t.Run("reopening keeps exactly one live refresh", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, heading, sink, renderer := testTracker(WithScheduler(scheduler))
		tracker.Open(t.Context(), testTarget, &testOrigin)
		tracker.Open(t.Context(), testTarget2, &testOrigin)

		if scheduler.live() != 1 {
			t.Fatalf("expected one live refresh, got %d", scheduler.live())
		}
		if !scheduler.handles[0].stopped {
			t.Error("expected first refresh to be stopped")
		}
		if sink.count() != 2 {
			t.Errorf("expected two alerts, got %d", sink.count())
		}
		session, ok := tracker.Session()
		if !ok {
			t.Fatal("expected an active session")
		}
		if session.Target != testTarget2 {
			t.Errorf("expected session target to be %v, got %v", testTarget2, session.Target)
		}
		if session.Guidance.Direction.Value() != geomath.East {
			t.Errorf("expected direction to be E, got %s", session.Guidance.Direction.Value())
		}

		opened := len(renderer.snapshot())
		if opened != 2 {
			t.Fatalf("expected one frame per open, got %d", opened)
		}

		// A tick of the old refresh that was already in flight must not render anything.
		heading.set(10)
		scheduler.handles[0].task(t.Context())
		if frames := renderer.snapshot(); len(frames) != opened {
			t.Fatalf("expected stale refresh to render nothing, got %d frames", len(frames)-opened)
		}
		scheduler.handles[1].task(t.Context())
		frames := renderer.snapshot()
		if len(frames) != opened+1 {
			t.Fatalf("expected one new frame, got %d", len(frames)-opened)
		}
		if frames[opened].SessionID != session.ID {
			t.Errorf("expected frame of session %s, got %s", session.ID, frames[opened].SessionID)
		}

		tracker.Close()
		if scheduler.live() != 0 {
			t.Errorf("expected no live refresh after close, got %d", scheduler.live())
		}
	})
	t.Run("origin changes after open do not affect the session", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithScheduler(&fakeScheduler{}))
		origin := testOrigin
		guidance := tracker.Open(t.Context(), testTarget, &origin)
		origin.Lat = 50

		session, ok := tracker.Session()
		if !ok {
			t.Fatal("expected an active session")
		}
		if session.Origin == nil || session.Origin.Lat != testOrigin.Lat {
			t.Errorf("expected session origin to be %v, got %v", testOrigin, session.Origin)
		}
		if session.Guidance.DistanceKm.Value() != guidance.DistanceKm.Value() {
			t.Error("expected guidance to be unchanged")
		}
	})
}

func TestTracker_Close(t *testing.T) {
	t.Run("close is idempotent", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, _, _, _ := testTracker(WithScheduler(scheduler))
		tracker.Open(t.Context(), testTarget, &testOrigin)

		tracker.Close()
		if tracker.State() != Idle {
			t.Errorf("expected tracker to be idle, got %s", tracker.State())
		}
		tracker.Close()
		if tracker.State() != Idle {
			t.Errorf("expected tracker to be idle, got %s", tracker.State())
		}
		if scheduler.live() != 0 {
			t.Errorf("expected no live refresh, got %d", scheduler.live())
		}
	})
	t.Run("close on a new tracker is a no-op", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithScheduler(&fakeScheduler{}))
		tracker.Close()
		if tracker.State() != Idle {
			t.Errorf("expected tracker to be idle, got %s", tracker.State())
		}
	})
	t.Run("refresh after close renders nothing", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, heading, _, renderer := testTracker(WithScheduler(scheduler))
		heading.set(180)
		tracker.Open(t.Context(), testTarget, &testOrigin)
		tracker.Close()
		opened := len(renderer.snapshot())
		scheduler.handles[0].task(t.Context())
		if frames := renderer.snapshot(); len(frames) != opened {
			t.Errorf("expected no frames after close, got %d", len(frames)-opened)
		}
	})
}

func TestTracker_Tick(t *testing.T) {
	t.Run("tick on idle tracker returns nothing", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithScheduler(&fakeScheduler{}))
		if _, ok := tracker.Tick(90); ok {
			t.Error("expected tick on idle tracker to return false")
		}
	})
	t.Run("tick is a function of the heading only", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithScheduler(&fakeScheduler{}))
		tracker.Open(t.Context(), testTarget, &testOrigin)
		defer tracker.Close()

		tests := []struct {
			heading   float64
			display   float64
			direction geomath.Direction
		}{
			{0, 0, geomath.North},
			{90, 90, geomath.East},
			{450, 90, geomath.East},
			{-45, 315, geomath.NorthWest},
			{11.25, 11.25, geomath.NorthNorthEast},
			{math.NaN(), 0, geomath.North},
		}
		for _, tc := range tests {
			first, ok := tracker.Tick(tc.heading)
			if !ok {
				t.Fatal("expected tick on active tracker to return a frame")
			}
			second, _ := tracker.Tick(tc.heading)
			if first.Heading != second.Heading || first.Direction != second.Direction ||
				first.Relative.Value() != second.Relative.Value() {
				t.Errorf("expected identical frames for heading %f", tc.heading)
			}
			if first.Heading.Value() != tc.display {
				t.Errorf("expected display bearing %f, got %f", tc.display, first.Heading.Value())
			}
			if first.Direction.Value() != tc.direction {
				t.Errorf("expected direction %s, got %s", tc.direction, first.Direction)
			}
		}
	})
	t.Run("relative bearing points to the target", func(t *testing.T) {
		tracker, _, _, _ := testTracker(WithScheduler(&fakeScheduler{}))
		tracker.Open(t.Context(), testTarget2, &testOrigin)
		defer tracker.Close()

		frame, _ := tracker.Tick(0)
		if math.Abs(frame.Relative.Value()-frame.Guidance.Bearing.Value()) > 1e-9 {
			t.Errorf("expected relative bearing to equal target bearing, got %f", frame.Relative.Value())
		}
		frame, _ = tracker.Tick(frame.Guidance.Bearing.Value())
		if r := frame.Relative.Value(); r > 1e-9 && r < 360-1e-9 {
			t.Errorf("expected relative bearing to be 0 when facing the target, got %f", r)
		}
	})
}

func TestTracker_refresh(t *testing.T) {
	t.Run("refresh without heading sample renders the guidance", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, _, _, renderer := testTracker(WithScheduler(scheduler))
		guidance := tracker.Open(t.Context(), testTarget, &testOrigin)
		defer tracker.Close()

		for range 50 {
			scheduler.handles[0].task(t.Context())
		}
		frames := renderer.snapshot()
		if len(frames) != 51 {
			t.Fatalf("expected opening frame and 50 refresh frames, got %d", len(frames))
		}
		for _, frame := range frames {
			if frame.Heading.IsSet() || frame.Direction.IsSet() || frame.Relative.IsSet() {
				t.Fatal("expected frame without heading values")
			}
			if frame.Guidance.DistanceKm.Value() != guidance.DistanceKm.Value() ||
				frame.Guidance.Direction.Value() != geomath.North {
				t.Errorf("expected frame to carry the opening guidance, got %+v", frame.Guidance)
			}
		}
	})
	t.Run("heading sample arriving later is rendered", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, heading, _, renderer := testTracker(WithScheduler(scheduler))
		tracker.Open(t.Context(), testTarget2, &testOrigin)
		defer tracker.Close()

		heading.set(90)
		scheduler.handles[0].task(t.Context())
		frames := renderer.snapshot()
		last := frames[len(frames)-1]
		if !last.Heading.IsSet() || last.Direction.Value() != geomath.East {
			t.Errorf("expected frame facing E, got %s", last.Direction)
		}
		want := geomath.NormalizeBearing(last.Guidance.Bearing.Value() - 90)
		if math.Abs(last.Relative.Value()-want) > 1e-9 {
			t.Errorf("expected relative bearing %f, got %f", want, last.Relative.Value())
		}
	})
	t.Run("opening with a heading sample renders it", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		tracker, heading, _, renderer := testTracker(WithScheduler(scheduler))
		heading.set(270)
		tracker.Open(t.Context(), testTarget, &testOrigin)
		defer tracker.Close()

		frames := renderer.snapshot()
		if len(frames) != 1 {
			t.Fatalf("expected one opening frame, got %d", len(frames))
		}
		if frames[0].Heading.Value() != 270 || frames[0].Direction.Value() != geomath.West {
			t.Errorf("expected heading 270 W, got %f %s", frames[0].Heading.Value(), frames[0].Direction)
		}
	})
	t.Run("periodic refresh with the job runner", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			tracker, heading, sink, renderer := testTracker()
			heading.set(200)

			tracker.Open(t.Context(), testTarget, &testOrigin)
			tracker.Open(t.Context(), testTarget2, &testOrigin)
			session, _ := tracker.Session()

			time.Sleep(time.Second + time.Millisecond)
			synctest.Wait()
			// one frame for each open, then the refresh of the second session
			frames := renderer.snapshot()
			if len(frames) != 12 {
				t.Fatalf("expected 12 frames, got %d", len(frames))
			}
			for _, frame := range frames[1:] {
				if frame.SessionID != session.ID {
					t.Fatalf("expected frames of session %s only, got %s", session.ID, frame.SessionID)
				}
				if frame.Direction.Value() != geomath.SouthSouthWest {
					t.Errorf("expected direction SSW, got %s", frame.Direction)
				}
			}

			tracker.Close()
			rendered := len(renderer.snapshot())
			time.Sleep(time.Second)
			synctest.Wait()
			if got := len(renderer.snapshot()); got != rendered {
				t.Errorf("expected ticking to stop after close, got %d new frames", got-rendered)
			}
			if sink.count() != 2 {
				t.Errorf("expected two alerts, got %d", sink.count())
			}
		})
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Active, "active"},
		{State(99), "unknown"},
	}
	for _, tc := range tests {
		if tc.state.String() != tc.want {
			t.Errorf("expected state string %q, got %q", tc.want, tc.state.String())
		}
	}
}
