// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger so that all packages share the same handler setup.
type Logger struct {
	*slog.Logger
}

// New returns a Logger that writes text records of at least the given level to stderr.
func New(level slog.Level) *Logger {
	return NewLogger(level)
}

// NewLogger returns a Logger for the given level. If one or more writers are given, records are
// written to all of them instead of stderr.
func NewLogger(level slog.Level, output ...io.Writer) *Logger {
	var out io.Writer = os.Stderr
	switch len(output) {
	case 0:
	case 1:
		out = output[0]
	default:
		out = io.MultiWriter(output...)
	}
	return &Logger{slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))}
}

// Err returns a slog.Attr for the given error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
