// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package notify announces proximity alerts to the user. A Dispatcher composes the localized
// message for an alert and hands it to a set of sinks, like desktop notifications or a speech
// synthesizer, without ever blocking the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/tracker"
)

const (
	// DefaultQueueSize is the number of messages that can wait for delivery.
	DefaultQueueSize = 8

	// DefaultSinkTimeout limits the time a single sink may take to deliver a message.
	DefaultSinkTimeout = time.Second * 30

	msgGuided   localize.MsgID = "UFO spotted %d kilometers %s of you at bearing %d degrees. Go outside and look up now!"
	msgDegraded localize.MsgID = "UFO sighting alert. New sighting reported nearby."
	msgTitle    localize.MsgID = "UFO Sighting Alert"
	msgPlace    localize.MsgID = "Reported near %s"
	msgViewing  localize.MsgID = "Viewing conditions: %s"
)

// Urgency follows the urgency levels of the desktop notification specification.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Message is a composed notification.
type Message struct {
	Title   string
	Body    string
	Speech  string
	Urgency Urgency
}

// Sink delivers messages to the user.
type Sink interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Details carries optional information about the sighting an alert belongs to.
type Details struct {
	Flag    string
	Place   string
	Viewing string
}

// DetailsFunc looks up the details for the sighting at target.
type DetailsFunc func(target geomath.Coordinate) (Details, bool)

// Dispatcher composes alert messages and delivers them to its sinks in the background.
type Dispatcher struct {
	localizer *spreak.Localizer
	logger    *logger.Logger
	sinks     []Sink
	timeout   time.Duration
	queue     chan Message

	mu      sync.RWMutex
	details DetailsFunc
}

// NewDispatcher returns a Dispatcher for the given sinks. A nil localizer falls back to the
// English messages.
func NewDispatcher(localizer *spreak.Localizer, log *logger.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = logger.New(slog.LevelError)
	}
	return &Dispatcher{
		localizer: localizer,
		logger:    log,
		sinks:     sinks,
		timeout:   DefaultSinkTimeout,
		queue:     make(chan Message, DefaultQueueSize),
	}
}

// SetDetails sets the function that enriches alerts with sighting details.
func (d *Dispatcher) SetDetails(fn DetailsFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.details = fn
}

// Alert satisfies the tracker.AlertSink interface. It never blocks.
func (d *Dispatcher) Alert(guidance tracker.Guidance) {
	var details Details
	d.mu.RLock()
	if d.details != nil {
		details, _ = d.details(guidance.Target)
	}
	d.mu.RUnlock()

	d.Send(d.Compose(guidance, details))
}

// Send queues msg for delivery. If the queue is full, the message is dropped.
func (d *Dispatcher) Send(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue is full, dropping message", slog.String("title", msg.Title))
	}
}

// Run delivers queued messages until ctx is cancelled. Each message is handed to all sinks
// concurrently; a failing sink does not affect the others.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

// Compose builds the message for an alert. Distance and bearing are rounded to whole numbers.
func (d *Dispatcher) Compose(guidance tracker.Guidance, details Details) Message {
	msg := Message{
		Title:   d.get(msgTitle),
		Urgency: UrgencyCritical,
	}
	if details.Flag != "" {
		msg.Title = details.Flag + " " + msg.Title
	}

	if guidance.Degraded() {
		msg.Speech = d.get(msgDegraded)
		msg.Urgency = UrgencyNormal
	} else {
		msg.Speech = d.getf(msgGuided, int(math.Round(guidance.DistanceKm.Value())),
			guidance.Direction.Value().String(), int(math.Round(guidance.Bearing.Value())))
	}

	lines := []string{msg.Speech}
	if details.Place != "" {
		lines = append(lines, d.getf(msgPlace, details.Place))
	}
	if details.Viewing != "" {
		lines = append(lines, d.getf(msgViewing, d.get(details.Viewing)))
	}
	msg.Body = strings.Join(lines, "\n")

	return msg
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	var wg sync.WaitGroup
	for _, sink := range d.sinks {
		wg.Go(func() {
			ctxSink, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := sink.Notify(ctxSink, msg); err != nil {
				d.logger.Warn("failed to deliver notification", slog.String("sink", sink.Name()),
					logger.Err(err))
			}
		})
	}
	wg.Wait()
}

func (d *Dispatcher) get(msgID localize.MsgID) string {
	if d.localizer == nil {
		return msgID
	}
	return d.localizer.Get(msgID)
}

func (d *Dispatcher) getf(msgID localize.MsgID, args ...any) string {
	if d.localizer == nil {
		return fmt.Sprintf(msgID, args...)
	}
	return d.localizer.Getf(msgID, args...)
}
