// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	dbusNotifyDest   = "org.freedesktop.Notifications"
	dbusNotifyPath   = "/org/freedesktop/Notifications"
	dbusNotifyMethod = "org.freedesktop.Notifications.Notify"

	notifyIcon    = "dialog-warning"
	notifyTimeout = int32(15000) // milliseconds
)

// DesktopSink shows alerts as desktop notifications on the session bus. A new alert replaces the
// notification of the previous one.
type DesktopSink struct {
	appName string
	connect func() (*dbus.Conn, error)

	mu     sync.Mutex
	conn   *dbus.Conn
	lastID uint32
}

// NewDesktopSink returns a DesktopSink. The session bus is connected on first use.
func NewDesktopSink(appName string) *DesktopSink {
	return &DesktopSink{
		appName: appName,
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
	}
}

func (s *DesktopSink) Name() string {
	return "desktop notification"
}

// Notify sends msg to the notification daemon. A failed call drops the bus connection so that
// the next message reconnects.
func (s *DesktopSink) Notify(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := s.connect()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		s.conn = conn
	}

	obj := s.conn.Object(dbusNotifyDest, dbusNotifyPath)
	call := obj.CallWithContext(ctx, dbusNotifyMethod, 0, s.appName, s.lastID, notifyIcon, msg.Title,
		msg.Body, []string{}, hints(msg), notifyTimeout)
	if call.Err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return fmt.Errorf("failed to send desktop notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	s.lastID = id
	return nil
}

// Close closes the session bus connection.
func (s *DesktopSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func hints(msg Message) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(byte(msg.Urgency)),
		"category": dbus.MakeVariant("ufobeep.alert"),
	}
}
