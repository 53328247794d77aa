// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kballard/go-shellquote"

	"github.com/wneessen/ufobeep/internal/logger"
)

const bell = "\a"

// ToneSink plays an alert tone with an external command, e.g. "canberra-gtk-play -i bell". If no
// command is configured or the command fails, the terminal bell is rung on the bell writer.
type ToneSink struct {
	command []string
	bell    io.Writer
	run     func(ctx context.Context, name string, args ...string) error
}

// NewToneSink parses command with shell quoting rules. An empty command only rings the bell.
func NewToneSink(command string, bell io.Writer) (*ToneSink, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tone command: %w", err)
	}
	return &ToneSink{
		command: args,
		bell:    bell,
		run:     runCommand,
	}, nil
}

func (s *ToneSink) Name() string {
	if len(s.command) == 0 {
		return "terminal bell"
	}
	return "tone (" + s.command[0] + ")"
}

// Notify plays the tone for every message.
func (s *ToneSink) Notify(ctx context.Context, _ Message) error {
	var errs []error
	if len(s.command) > 0 {
		err := s.run(ctx, s.command[0], s.command[1:]...)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("failed to run tone command: %w", err))
	}
	if s.bell == nil {
		return errors.Join(append(errs, errors.New("no bell writer configured"))...)
	}
	if _, err := io.WriteString(s.bell, bell); err != nil {
		errs = append(errs, fmt.Errorf("failed to ring terminal bell: %w", err))
		return errors.Join(errs...)
	}
	return nil
}

// FallbackSink delivers messages to a primary sink and only falls back to the secondary sink if
// the primary one fails.
type FallbackSink struct {
	primary   Sink
	secondary Sink
	logger    *logger.Logger
}

func NewFallbackSink(primary, secondary Sink, log *logger.Logger) *FallbackSink {
	return &FallbackSink{
		primary:   primary,
		secondary: secondary,
		logger:    log,
	}
}

func (s *FallbackSink) Name() string {
	return s.primary.Name() + " or " + s.secondary.Name()
}

// Notify returns an error only if both sinks failed.
func (s *FallbackSink) Notify(ctx context.Context, msg Message) error {
	err := s.primary.Notify(ctx, msg)
	if err == nil {
		return nil
	}
	if s.logger != nil {
		s.logger.Debug("notification sink failed, using fallback", slog.String("sink", s.primary.Name()),
			slog.String("fallback", s.secondary.Name()), logger.Err(err))
	}
	if ferr := s.secondary.Notify(ctx, msg); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}
