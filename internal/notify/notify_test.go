// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/tracker"
)

var (
	origin = geomath.Coordinate{Lat: 40.0, Lon: -74.0}
	target = geomath.Coordinate{Lat: 40.1, Lon: -74.0}
)

type recordingSink struct {
	name string
	err  error
	wait time.Duration

	mu   sync.Mutex
	msgs []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Notify(ctx context.Context, msg Message) error {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func TestDispatcher_Compose(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	t.Run("guided alert with distance and direction", func(t *testing.T) {
		msg := dispatcher.Compose(tracker.NewGuidance(target, &origin), Details{})
		want := "UFO spotted 11 kilometers N of you at bearing 0 degrees. Go outside and look up now!"
		if msg.Speech != want {
			t.Errorf("expected speech %q, got %q", want, msg.Speech)
		}
		if msg.Body != want {
			t.Errorf("expected body %q, got %q", want, msg.Body)
		}
		if msg.Title != "UFO Sighting Alert" {
			t.Errorf("expected title %q, got %q", "UFO Sighting Alert", msg.Title)
		}
		if msg.Urgency != UrgencyCritical {
			t.Errorf("expected critical urgency, got %d", msg.Urgency)
		}
	})
	t.Run("distance and bearing are rounded", func(t *testing.T) {
		guidance := tracker.NewGuidance(geomath.Coordinate{Lat: 40.0, Lon: -73.9}, &origin)
		msg := dispatcher.Compose(guidance, Details{})
		want := "UFO spotted 9 kilometers E of you at bearing 90 degrees. Go outside and look up now!"
		if msg.Speech != want {
			t.Errorf("expected speech %q, got %q", want, msg.Speech)
		}
	})
	t.Run("degraded alert without origin", func(t *testing.T) {
		msg := dispatcher.Compose(tracker.NewGuidance(target, nil), Details{})
		want := "UFO sighting alert. New sighting reported nearby."
		if msg.Speech != want {
			t.Errorf("expected speech %q, got %q", want, msg.Speech)
		}
		if msg.Urgency != UrgencyNormal {
			t.Errorf("expected normal urgency, got %d", msg.Urgency)
		}
	})
	t.Run("details are added to title and body", func(t *testing.T) {
		details := Details{Flag: "🇪🇸", Place: "Roswell, United States", Viewing: "good"}
		msg := dispatcher.Compose(tracker.NewGuidance(target, &origin), details)
		if msg.Title != "🇪🇸 UFO Sighting Alert" {
			t.Errorf("expected flag in title, got %q", msg.Title)
		}
		lines := strings.Split(msg.Body, "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 body lines, got %d: %q", len(lines), msg.Body)
		}
		if lines[1] != "Reported near Roswell, United States" {
			t.Errorf("expected place line, got %q", lines[1])
		}
		if lines[2] != "Viewing conditions: good" {
			t.Errorf("expected viewing line, got %q", lines[2])
		}
		if strings.Contains(msg.Speech, "Roswell") {
			t.Error("expected speech to contain only the alert")
		}
	})
}

func TestDispatcher_Run(t *testing.T) {
	t.Run("alerts are delivered to all sinks", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			first := &recordingSink{name: "first"}
			failing := &recordingSink{name: "failing", err: errors.New("intentionally failing")}
			dispatcher := NewDispatcher(nil, logger.New(slog.LevelError), first, failing)
			dispatcher.SetDetails(func(coord geomath.Coordinate) (Details, bool) {
				if coord != target {
					t.Errorf("expected details lookup for %v, got %v", target, coord)
				}
				return Details{Place: "Somewhere"}, true
			})

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			go dispatcher.Run(ctx)

			dispatcher.Alert(tracker.NewGuidance(target, &origin))
			dispatcher.Alert(tracker.NewGuidance(target, nil))
			synctest.Wait()

			for _, sink := range []*recordingSink{first, failing} {
				msgs := sink.messages()
				if len(msgs) != 2 {
					t.Fatalf("expected sink %s to receive 2 messages, got %d", sink.name, len(msgs))
				}
				if !strings.Contains(msgs[0].Body, "Reported near Somewhere") {
					t.Errorf("expected details in body, got %q", msgs[0].Body)
				}
				if msgs[1].Urgency != UrgencyNormal {
					t.Errorf("expected second message to be degraded")
				}
			}
		})
	})
	t.Run("a slow sink is cancelled after the timeout", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			slow := &recordingSink{name: "slow", wait: time.Hour}
			fast := &recordingSink{name: "fast"}
			dispatcher := NewDispatcher(nil, logger.New(slog.LevelError), slow, fast)

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			go dispatcher.Run(ctx)

			start := time.Now()
			dispatcher.Send(Message{Title: "test"})
			synctest.Wait()
			if len(fast.messages()) != 1 {
				t.Fatal("expected fast sink to receive the message")
			}
			time.Sleep(DefaultSinkTimeout)
			synctest.Wait()
			if len(slow.messages()) != 0 {
				t.Error("expected slow sink to be cancelled")
			}
			if time.Since(start) != DefaultSinkTimeout {
				t.Errorf("unexpected elapsed time %s", time.Since(start))
			}
		})
	})
	t.Run("a full queue drops messages instead of blocking", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		dispatcher := NewDispatcher(nil, logger.NewLogger(slog.LevelWarn, buf))
		for range DefaultQueueSize + 2 {
			dispatcher.Send(Message{Title: "test"})
		}
		if len(dispatcher.queue) != DefaultQueueSize {
			t.Errorf("expected %d queued messages, got %d", DefaultQueueSize, len(dispatcher.queue))
		}
		if !strings.Contains(buf.String(), "notification queue is full") {
			t.Errorf("expected dropped message to be logged, got %q", buf.String())
		}
	})
}

func TestSpeechSink(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantName string
		wantArgs []string
	}{
		{"language placeholder", "espeak-ng -v {lang}", "espeak-ng", []string{"-v", "es", "hola"}},
		{"text placeholder", "say '{text}' --rate 180", "say", []string{"hola", "--rate", "180"}},
		{"quoted arguments", `spd-say -o "espeak-ng generic"`, "spd-say", []string{"-o", "espeak-ng generic", "hola"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink, err := NewSpeechSink(tc.command, "es")
			if err != nil {
				t.Fatalf("failed to create speech sink: %s", err)
			}
			var gotName string
			var gotArgs []string
			sink.run = func(_ context.Context, name string, args ...string) error {
				gotName = name
				gotArgs = args
				return nil
			}
			if err = sink.Notify(t.Context(), Message{Speech: "hola"}); err != nil {
				t.Fatal(err)
			}
			if gotName != tc.wantName {
				t.Errorf("expected command %q, got %q", tc.wantName, gotName)
			}
			if strings.Join(gotArgs, "|") != strings.Join(tc.wantArgs, "|") {
				t.Errorf("expected args %q, got %q", tc.wantArgs, gotArgs)
			}
		})
	}
	t.Run("messages without speech are ignored", func(t *testing.T) {
		sink, err := NewSpeechSink("espeak-ng", "en")
		if err != nil {
			t.Fatal(err)
		}
		sink.run = func(context.Context, string, ...string) error {
			t.Error("expected no command to run")
			return nil
		}
		if err = sink.Notify(t.Context(), Message{Title: "silent"}); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("failing commands return an error", func(t *testing.T) {
		sink, err := NewSpeechSink("espeak-ng", "en")
		if err != nil {
			t.Fatal(err)
		}
		sink.run = func(context.Context, string, ...string) error {
			return errors.New("intentionally failing")
		}
		if err = sink.Notify(t.Context(), Message{Speech: "hello"}); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("an empty command fails", func(t *testing.T) {
		if _, err := NewSpeechSink("  ", "en"); !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("expected error to be %s, got %s", ErrEmptyCommand, err)
		}
	})
	t.Run("an unterminated quote fails", func(t *testing.T) {
		if _, err := NewSpeechSink("espeak-ng 'broken", "en"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestToneSink(t *testing.T) {
	t.Run("the command is played", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		sink, err := NewToneSink("canberra-gtk-play -i bell", buf)
		if err != nil {
			t.Fatal(err)
		}
		var gotArgs []string
		sink.run = func(_ context.Context, name string, args ...string) error {
			gotArgs = append([]string{name}, args...)
			return nil
		}
		if err = sink.Notify(t.Context(), Message{Title: "test"}); err != nil {
			t.Fatal(err)
		}
		if strings.Join(gotArgs, " ") != "canberra-gtk-play -i bell" {
			t.Errorf("expected tone command to run, got %q", gotArgs)
		}
		if buf.Len() != 0 {
			t.Errorf("expected bell not to ring, got %q", buf.String())
		}
	})
	t.Run("a failing command rings the bell", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		sink, err := NewToneSink("canberra-gtk-play", buf)
		if err != nil {
			t.Fatal(err)
		}
		sink.run = func(context.Context, string, ...string) error {
			return errors.New("intentionally failing")
		}
		if err = sink.Notify(t.Context(), Message{Title: "test"}); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "\a" {
			t.Errorf("expected bell to ring, got %q", buf.String())
		}
	})
	t.Run("without command only the bell rings", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		sink, err := NewToneSink("", buf)
		if err != nil {
			t.Fatal(err)
		}
		if sink.Name() != "terminal bell" {
			t.Errorf("expected name %q, got %q", "terminal bell", sink.Name())
		}
		if err = sink.Notify(t.Context(), Message{Title: "test"}); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "\a" {
			t.Errorf("expected bell to ring, got %q", buf.String())
		}
	})
	t.Run("an unterminated quote fails", func(t *testing.T) {
		if _, err := NewToneSink("play 'broken", nil); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFallbackSink(t *testing.T) {
	newSpeech := func(t *testing.T, err error) *SpeechSink {
		t.Helper()
		sink, serr := NewSpeechSink("espeak-ng", "en")
		if serr != nil {
			t.Fatal(serr)
		}
		sink.run = func(context.Context, string, ...string) error { return err }
		return sink
	}
	t.Run("speech failure rings the bell", func(t *testing.T) {
		logBuf := bytes.NewBuffer(nil)
		bellBuf := bytes.NewBuffer(nil)
		tone, err := NewToneSink("", bellBuf)
		if err != nil {
			t.Fatal(err)
		}
		sink := NewFallbackSink(newSpeech(t, errors.New("espeak-ng not found")), tone,
			logger.NewLogger(slog.LevelDebug, logBuf))
		if sink.Name() != "speech (espeak-ng) or terminal bell" {
			t.Errorf("unexpected sink name %q", sink.Name())
		}
		if err = sink.Notify(t.Context(), Message{Speech: "hello"}); err != nil {
			t.Fatal(err)
		}
		if bellBuf.String() != "\a" {
			t.Errorf("expected bell to ring, got %q", bellBuf.String())
		}
		if !strings.Contains(logBuf.String(), "espeak-ng not found") {
			t.Errorf("expected speech failure to be logged, got %q", logBuf.String())
		}
	})
	t.Run("working speech does not ring the bell", func(t *testing.T) {
		bellBuf := bytes.NewBuffer(nil)
		tone, err := NewToneSink("", bellBuf)
		if err != nil {
			t.Fatal(err)
		}
		sink := NewFallbackSink(newSpeech(t, nil), tone, nil)
		if err = sink.Notify(t.Context(), Message{Speech: "hello"}); err != nil {
			t.Fatal(err)
		}
		if bellBuf.Len() != 0 {
			t.Errorf("expected bell not to ring, got %q", bellBuf.String())
		}
	})
	t.Run("both sinks failing returns both errors", func(t *testing.T) {
		tone, err := NewToneSink("canberra-gtk-play", nil)
		if err != nil {
			t.Fatal(err)
		}
		tone.run = func(context.Context, string, ...string) error {
			return errors.New("no sound server")
		}
		sink := NewFallbackSink(newSpeech(t, errors.New("espeak-ng not found")), tone, nil)
		err = sink.Notify(t.Context(), Message{Speech: "hello"})
		if err == nil {
			t.Fatal("expected an error")
		}
		for _, want := range []string{"espeak-ng not found", "no sound server"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected error to contain %q, got %q", want, err)
			}
		}
	})
}

func TestDesktopSink(t *testing.T) {
	t.Run("connection errors are returned", func(t *testing.T) {
		sink := NewDesktopSink("ufobeep")
		sink.connect = func() (*dbus.Conn, error) {
			return nil, errors.New("no session bus")
		}
		if err := sink.Notify(t.Context(), Message{Title: "test"}); err == nil {
			t.Error("expected an error")
		}
		if err := sink.Close(); err != nil {
			t.Errorf("expected closing an unconnected sink to succeed, got %s", err)
		}
	})
	t.Run("urgency is sent as hint", func(t *testing.T) {
		got := hints(Message{Urgency: UrgencyCritical})
		if got["urgency"].Value() != byte(2) {
			t.Errorf("expected urgency hint 2, got %v", got["urgency"].Value())
		}
	})
}

func TestLogSink(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	sink := NewLogSink(logger.NewLogger(slog.LevelInfo, buf))
	if err := sink.Notify(t.Context(), Message{Title: "UFO Sighting Alert", Body: "look up"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `msg="UFO Sighting Alert"`) {
		t.Errorf("expected title to be logged, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `message="look up"`) {
		t.Errorf("expected body to be logged, got %q", buf.String())
	}
}
