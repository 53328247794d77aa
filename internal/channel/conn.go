// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errTerminated = errors.New("connection terminated")

// conn is a client-side WebSocket connection with automatic, periodic ping-pong. All writes go
// through run, since gorilla connections support only one concurrent writer.
type conn struct {
	wc           *websocket.Conn
	pingInterval time.Duration
	writeTimeout time.Duration

	// in
	terminate chan struct{}
	write     chan []byte

	// out
	writeErr chan error

	closeOnce sync.Once
}

func newConn(wc *websocket.Conn, pingInterval, pingTimeout, writeTimeout time.Duration) *conn {
	c := &conn{
		wc:           wc,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		terminate:    make(chan struct{}),
		write:        make(chan []byte),
		writeErr:     make(chan error),
	}

	_ = wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	wc.SetPongHandler(func(string) error {
		return wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	})

	go c.run()
	return c
}

// close closes the connection. It is safe to call close multiple times.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		_ = c.wc.Close()
		close(c.terminate)
	})
}

func (c *conn) run() {
	pingTicker := time.NewTicker(c.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case byts := <-c.write:
			_ = c.wc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			c.writeErr <- c.wc.WriteMessage(websocket.TextMessage, byts)

		case <-pingTicker.C:
			_ = c.wc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			_ = c.wc.WriteMessage(websocket.PingMessage, nil)

		case <-c.terminate:
			return
		}
	}
}

// readMessage returns the next text message.
func (c *conn) readMessage() ([]byte, error) {
	for {
		messageType, data, err := c.wc.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

// writeJSON writes a JSON object.
func (c *conn) writeJSON(in any) error {
	byts, err := json.Marshal(in)
	if err != nil {
		return err
	}

	select {
	case c.write <- byts:
		return <-c.writeErr
	case <-c.terminate:
		return errTerminated
	}
}
