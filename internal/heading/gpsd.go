// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package heading

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/ufobeep/internal/gpspoll"
	"github.com/wneessen/ufobeep/internal/logger"
)

const (
	// MinTrackSpeed is the minimum speed in m/s for a course over ground to be used as heading.
	MinTrackSpeed = 0.5
	gpsdName      = "gpsd"
)

// GPSDProvider streams the course over ground of gpsd TPV reports. It only yields samples while
// the receiver is moving, since gpsd keeps reporting a stale track otherwise.
type GPSDProvider struct {
	addr      string
	minSpeed  float64
	reconnect time.Duration
	logger    *logger.Logger
}

// NewGPSDProvider returns a provider for the gpsd instance at host and port.
func NewGPSDProvider(host, port string, log *logger.Logger) *GPSDProvider {
	return &GPSDProvider{
		addr:      net.JoinHostPort(host, port),
		minSpeed:  MinTrackSpeed,
		reconnect: time.Second * 10,
		logger:    log,
	}
}

func (p *GPSDProvider) Name() string {
	return gpsdName
}

// Stream connects to gpsd and emits the track of every usable TPV report. Lost connections are
// re-established until ctx is done.
func (p *GPSDProvider) Stream(ctx context.Context) <-chan float64 {
	out := make(chan float64, 1)

	// the gpsd session keeps reading in its own goroutine after we stop watching, so sends and
	// the close of out are serialized
	var mu sync.Mutex
	closed := false
	emit := func(track float64) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		// drop samples the consumer is too slow for, a newer one follows shortly
		select {
		case out <- track:
		default:
		}
	}

	go func() {
		defer func() {
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		}()
		for {
			session, err := gpsd.Dial(p.addr)
			if err != nil {
				p.logger.Warn("failed to connect to gpsd for heading", slog.String("addr", p.addr),
					logger.Err(err))
			} else {
				session.AddFilter("TPV", func(r interface{}) {
					tpv, ok := r.(*gpsd.TPVReport)
					if !ok {
						return
					}
					track, ok := trackFromReport(tpv, p.minSpeed)
					if !ok {
						return
					}
					emit(track)
				})
				done := session.Watch()
				select {
				case <-ctx.Done():
					return
				case <-done:
					p.logger.Warn("gpsd heading stream ended, reconnecting", slog.String("addr", p.addr))
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.reconnect):
			}
		}
	}()
	return out
}

func trackFromReport(tpv *gpsd.TPVReport, minSpeed float64) (float64, bool) {
	if tpv == nil {
		return 0, false
	}
	fix := gpspoll.Fix{Track: tpv.Track, Speed: tpv.Speed, Mode: gpspoll.Mode(tpv.Mode)}
	return fix.Course(minSpeed)
}
