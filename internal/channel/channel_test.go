// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/logger"
)

const (
	testDevice  = "mobile-k3j9x0a2b"
	testTimeout = time.Second * 5
	testAlert   = `{"type":"proximity_alert","data":{"id":42,"lat":40.1,"lon":-74.0,"bearing":270.0,"timestamp":"2025-07-01T21:04:05.000Z","user_flag":"🇺🇸","filename":"sighting.jpg"}}`
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNew(t *testing.T) {
	log := logger.NewLogger(slog.LevelInfo, io.Discard)
	t.Run("new client succeeds", func(t *testing.T) {
		client, err := New("wss://ufobeep.example.com/ws", testDevice, log)
		if err != nil {
			t.Fatalf("failed to create client: %s", err)
		}
		if client.URL() != "wss://ufobeep.example.com/ws/"+testDevice {
			t.Errorf("unexpected channel URL: %s", client.URL())
		}
		if client.Connected() {
			t.Error("expected new client to be disconnected")
		}
	})
	t.Run("http scheme fails", func(t *testing.T) {
		if _, err := New("https://ufobeep.example.com/ws", testDevice, log); err == nil {
			t.Error("expected client creation to fail")
		}
	})
	t.Run("missing device id fails", func(t *testing.T) {
		if _, err := New("wss://ufobeep.example.com/ws", "", log); err == nil {
			t.Error("expected client creation to fail")
		}
	})
}

func TestClient_Run(t *testing.T) {
	t.Run("proximity alerts are delivered and other messages ignored", func(t *testing.T) {
		var path atomic.Value
		wsURL := newTestServer(t, func(wc *websocket.Conn, r *http.Request) {
			path.Store(r.URL.Path)
			messages := []string{
				"Location updated for " + testDevice,
				`{"type":"hello"}`,
				`{"type":"proximity_alert","data":"broken"}`,
				testAlert,
			}
			for _, msg := range messages {
				if err := wc.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			}
			drain(wc)
		})
		client := newTestClient(t, wsURL)
		ctx := runClient(t, client)

		select {
		case alert := <-client.Alerts():
			if alert.ID != 42 {
				t.Errorf("expected alert id 42, got %d", alert.ID)
			}
			if alert.Coordinate() != (geomath.Coordinate{Lat: 40.1, Lon: -74.0}) {
				t.Errorf("unexpected alert coordinate: %+v", alert.Coordinate())
			}
			if alert.UserFlag.Value() != "🇺🇸" {
				t.Errorf("unexpected user flag: %s", alert.UserFlag)
			}
		case <-ctx.Done():
			t.Fatal("expected proximity alert")
		}
		if got := path.Load(); got != "/ws/"+testDevice {
			t.Errorf("expected path /ws/%s, got %v", testDevice, got)
		}
		select {
		case alert := <-client.Alerts():
			t.Errorf("expected only one alert, got %+v", alert)
		default:
		}
	})
	t.Run("location is sent after every reconnect", func(t *testing.T) {
		updates := make(chan LocationUpdate, 4)
		var connections atomic.Int32
		wsURL := newTestServer(t, func(wc *websocket.Conn, r *http.Request) {
			n := connections.Add(1)
			var update LocationUpdate
			if err := wc.ReadJSON(&update); err != nil {
				return
			}
			updates <- update
			if n == 1 {
				// drop the first connection
				return
			}
			drain(wc)
		})
		client := newTestClient(t, wsURL)
		if err := client.SendLocation(geomath.Coordinate{Lat: 40, Lon: -74}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected error to be %s, got %v", ErrNotConnected, err)
		}
		ctx := runClient(t, client)

		for i := range 2 {
			select {
			case update := <-updates:
				if update.Type != TypeLocationUpdate || update.Lat != 40 || update.Lon != -74 {
					t.Errorf("unexpected location update %d: %+v", i, update)
				}
			case <-ctx.Done():
				t.Fatalf("expected location update %d", i)
			}
		}
	})
	t.Run("location is sent while connected", func(t *testing.T) {
		updates := make(chan []byte, 4)
		wsURL := newTestServer(t, func(wc *websocket.Conn, r *http.Request) {
			for {
				_, data, err := wc.ReadMessage()
				if err != nil {
					return
				}
				updates <- data
			}
		})
		client := newTestClient(t, wsURL)
		ctx := runClient(t, client)
		waitConnected(ctx, t, client)

		if err := client.SendLocation(geomath.Coordinate{Lat: 0, Lon: 12.5}); err != nil {
			t.Fatalf("failed to send location: %s", err)
		}
		select {
		case data := <-updates:
			want := `{"type":"location_update","lat":0,"lon":12.5}`
			if string(data) != want {
				t.Errorf("expected %s, got %s", want, data)
			}
		case <-ctx.Done():
			t.Fatal("expected location update")
		}
	})
	t.Run("keep-alive pings are sent", func(t *testing.T) {
		pinged := make(chan struct{})
		var once sync.Once
		wsURL := newTestServer(t, func(wc *websocket.Conn, r *http.Request) {
			wc.SetPingHandler(func(string) error {
				once.Do(func() { close(pinged) })
				return nil
			})
			drain(wc)
		})
		client := newTestClient(t, wsURL, WithPingInterval(time.Millisecond*50))
		ctx := runClient(t, client)
		select {
		case <-pinged:
		case <-ctx.Done():
			t.Fatal("expected ping")
		}
	})
	t.Run("reconnect drops the connection", func(t *testing.T) {
		var connections atomic.Int32
		wsURL := newTestServer(t, func(wc *websocket.Conn, r *http.Request) {
			connections.Add(1)
			drain(wc)
		})
		client := newTestClient(t, wsURL)
		ctx := runClient(t, client)
		waitConnected(ctx, t, client)

		client.Reconnect()
		for connections.Load() < 2 {
			select {
			case <-ctx.Done():
				t.Fatal("expected client to reconnect")
			case <-time.After(time.Millisecond * 10):
			}
		}
	})
}

func TestClient_handleMessage(t *testing.T) {
	client := newTestClient(t, "ws://localhost/ws")
	client.handleMessage(t.Context(), []byte(testAlert))
	var msg Message
	if err := json.Unmarshal([]byte(testAlert), &msg); err != nil {
		t.Fatalf("failed to decode message: %s", err)
	}
	if msg.Type != TypeProximityAlert {
		t.Errorf("unexpected type %s", msg.Type)
	}
	if len(client.Alerts()) != 1 {
		t.Errorf("expected one buffered alert, got %d", len(client.Alerts()))
	}
}

func newTestServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wc, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %s", err)
			return
		}
		defer func() { _ = wc.Close() }()
		handler(wc, r)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func newTestClient(t *testing.T, wsURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithReconnect(time.Millisecond * 10)}, opts...)
	client, err := New(wsURL, testDevice, logger.NewLogger(slog.LevelInfo, io.Discard), opts...)
	if err != nil {
		t.Fatalf("failed to create client: %s", err)
	}
	return client
}

func runClient(t *testing.T, client *Client) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), testTimeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func waitConnected(ctx context.Context, t *testing.T, client *Client) {
	t.Helper()
	for !client.Connected() {
		select {
		case <-ctx.Done():
			t.Fatal("expected client to connect")
		case <-time.After(time.Millisecond * 5):
		}
	}
}

func drain(wc *websocket.Conn) {
	for {
		if _, _, err := wc.ReadMessage(); err != nil {
			return
		}
	}
}
