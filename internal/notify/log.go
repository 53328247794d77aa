// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"log/slog"

	"github.com/wneessen/ufobeep/internal/logger"
)

// LogSink writes messages to the log. It is used when all other sinks are disabled.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Notify(_ context.Context, msg Message) error {
	s.logger.Info(msg.Title, slog.String("message", msg.Body), slog.Int("urgency", int(msg.Urgency)))
	return nil
}
