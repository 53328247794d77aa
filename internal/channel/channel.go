// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package channel implements the realtime WebSocket channel to the sighting server. It reports
// the observer location and delivers the proximity alerts broadcast by the server.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/sighting"
)

const (
	TypeLocationUpdate = "location_update"
	TypeProximityAlert = "proximity_alert"

	DefaultReconnect = time.Second * 3
	alertBufferSize  = 16
)

var ErrNotConnected = errors.New("realtime channel is not connected")

// Message is the envelope of messages sent by the server.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LocationUpdate reports the observer location to the server.
type LocationUpdate struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Client keeps a connection to the sighting server open and reconnects when it is lost.
type Client struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	reconnect    time.Duration
	pingInterval time.Duration
	pingTimeout  time.Duration
	writeTimeout time.Duration
	logger       *logger.Logger
	alerts       chan sighting.ProximityAlert

	mu       sync.Mutex
	conn     *conn
	location *geomath.Coordinate
}

// Option configures a Client.
type Option func(*Client)

// WithReconnect sets the delay between connection attempts.
func WithReconnect(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.reconnect = delay
		}
	}
}

// WithPingInterval sets the keep-alive ping interval.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pingInterval = interval
		}
	}
}

// WithHeader adds HTTP headers to the handshake request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New returns a Client for the channel of deviceID below the WebSocket base URL.
func New(wsURL, deviceID string, log *logger.Logger, opts ...Option) (*Client, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	base, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WebSocket URL: %w", err)
	}
	if base.Scheme != "ws" && base.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported WebSocket URL scheme %q", base.Scheme)
	}

	client := &Client{
		url:          base.JoinPath(deviceID).String(),
		header:       make(http.Header),
		dialer:       websocket.DefaultDialer,
		reconnect:    DefaultReconnect,
		pingInterval: time.Second * 30,
		pingTimeout:  time.Second * 5,
		writeTimeout: time.Second * 2,
		logger:       log,
		alerts:       make(chan sighting.ProximityAlert, alertBufferSize),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// URL returns the channel URL of the client.
func (c *Client) URL() string {
	return c.url
}

// Alerts returns the channel on which received proximity alerts are delivered.
func (c *Client) Alerts() <-chan sighting.ProximityAlert {
	return c.alerts
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects to the server and serves the connection until ctx is done. Lost connections are
// re-established after the reconnect delay.
func (c *Client) Run(ctx context.Context) {
	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("realtime channel disconnected", logger.Err(err),
			slog.Duration("reconnect_in", c.reconnect))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnect):
		}
	}
}

// SendLocation reports the observer location to the server. The location is remembered and
// sent again after every reconnect, so ErrNotConnected is not fatal.
func (c *Client) SendLocation(coord geomath.Coordinate) error {
	c.mu.Lock()
	c.location = &coord
	current := c.conn
	c.mu.Unlock()

	if current == nil {
		return ErrNotConnected
	}
	return current.writeJSON(locationMessage(coord))
}

// Reconnect drops the current connection. Run establishes a new one after the reconnect delay.
func (c *Client) Reconnect() {
	c.mu.Lock()
	current := c.conn
	c.mu.Unlock()
	if current != nil {
		current.close()
	}
}

func (c *Client) serve(ctx context.Context) error {
	wc, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	current := newConn(wc, c.pingInterval, c.pingTimeout, c.writeTimeout)
	stop := context.AfterFunc(ctx, current.close)
	defer func() {
		stop()
		current.close()
		c.mu.Lock()
		if c.conn == current {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	c.mu.Lock()
	c.conn = current
	location := c.location
	c.mu.Unlock()
	c.logger.Info("realtime channel connected", slog.String("url", c.url))

	if location != nil {
		if err = current.writeJSON(locationMessage(*location)); err != nil {
			return fmt.Errorf("failed to send location: %w", err)
		}
	}

	for {
		data, err := current.readMessage()
		if err != nil {
			return err
		}
		c.handleMessage(ctx, data)
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		// the server acknowledges location updates with plain text
		c.logger.Debug("ignoring non-JSON channel message", slog.String("message", string(data)))
		return
	}
	if msg.Type != TypeProximityAlert {
		c.logger.Debug("ignoring channel message", slog.String("type", msg.Type))
		return
	}

	var alert sighting.ProximityAlert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		c.logger.Error("failed to decode proximity alert", logger.Err(err))
		return
	}
	select {
	case c.alerts <- alert:
	case <-ctx.Done():
	}
}

func locationMessage(coord geomath.Coordinate) LocationUpdate {
	return LocationUpdate{Type: TypeLocationUpdate, Lat: coord.Lat, Lon: coord.Lon}
}
