// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpspoll implements a minimal one-shot gpsd client. It enables a WATCH, reads the first
// TPV report and hangs up again.
package gpspoll

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/wneessen/ufobeep/internal/geomath"
)

// Accuracies in meters assumed for reports that carry no error estimate.
const (
	fallbackAccuracy3DFix = 10
	fallbackAccuracy2DFix = 25
	fallbackAccuracyNoFix = 1e6
)

const (
	// DefaultTimeout limits a poll if the context carries no deadline.
	DefaultTimeout = time.Second * 2

	watchCommand = `?WATCH={"enable":true,"json":true}` + "\n"
)

// ErrNoReport is returned if gpsd hung up before sending a TPV report.
var ErrNoReport = errors.New("no TPV report received from gpsd")

// Mode is the NMEA fix mode reported by gpsd.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeNoFix
	Mode2D
	Mode3D
)

// Client polls a single gpsd instance.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// Fix is a single TPV report. Track is the course over ground in degrees from true north and
// Speed is in meters per second.
type Fix struct {
	geomath.Coordinate
	Alt   float64
	Acc   float64
	Track float64
	Speed float64
	Mode  Mode
}

// tpvReport is the subset of gpsd's TPV class ufobeep uses.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  Mode    `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
	Track float64 `json:"track"`
	Speed float64 `json:"speed"`
	Epx   float64 `json:"epx"`
	Epy   float64 `json:"epy"`
	Eph   float64 `json:"eph"`
}

// New returns a Client for the gpsd instance at host and port.
func New(host, port string) *Client {
	return &Client{
		Addr:    net.JoinHostPort(host, port),
		Timeout: DefaultTimeout,
	}
}

// Poll returns the first TPV report gpsd sends after the WATCH was enabled.
func (c *Client) Poll(ctx context.Context) (Fix, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return Fix{}, fmt.Errorf("failed to connect to gpsd: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout())
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return Fix{}, fmt.Errorf("failed to set gpsd connection deadline: %w", err)
	}
	if _, err = fmt.Fprint(conn, watchCommand); err != nil {
		return Fix{}, fmt.Errorf("failed to enable gpsd watch: %w", err)
	}

	report, err := readTPV(bufio.NewScanner(conn))
	if ctx.Err() != nil {
		return Fix{}, ctx.Err()
	}
	if err != nil {
		return Fix{}, err
	}
	return report.fix(), nil
}

// Has2DFix reports whether the receiver has at least a 2D fix.
func (f Fix) Has2DFix() bool {
	return f.Mode >= Mode2D
}

// Course returns the course over ground. gpsd keeps reporting the last track while stationary,
// so it is only returned if the receiver moves at minSpeed or faster.
func (f Fix) Course(minSpeed float64) (float64, bool) {
	if !f.Has2DFix() || f.Speed < minSpeed {
		return 0, false
	}
	return geomath.NormalizeBearing(f.Track), true
}

// String satisfies the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeNoFix:
		return "no fix"
	case Mode2D:
		return "2D"
	case Mode3D:
		return "3D"
	default:
		return "unknown"
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// readTPV skips all lines until the first TPV report. Lines that are not valid JSON are ignored.
func readTPV(scanner *bufio.Scanner) (tpvReport, error) {
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class == "TPV" {
			return report, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return tpvReport{}, fmt.Errorf("failed to read gpsd report: %w", err)
	}
	return tpvReport{}, ErrNoReport
}

func (r tpvReport) fix() Fix {
	return Fix{
		Coordinate: geomath.Coordinate{Lat: r.Lat, Lon: r.Lon},
		Alt:        r.Alt,
		Acc:        r.accuracy(),
		Track:      r.Track,
		Speed:      r.Speed,
		Mode:       r.Mode,
	}
}

// accuracy estimates the horizontal error in meters.
func (r tpvReport) accuracy() float64 {
	switch {
	case r.Eph > 0:
		return r.Eph
	case r.Epx > 0 && r.Epy > 0:
		return math.Hypot(r.Epx, r.Epy)
	case r.Mode == Mode3D:
		return fallbackAccuracy3DFix
	case r.Mode == Mode2D:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
