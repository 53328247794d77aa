// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	placeholderLang = "{lang}"
	placeholderText = "{text}"
)

var ErrEmptyCommand = errors.New("speech command is empty")

// SpeechSink reads alerts out loud with an external text-to-speech command, e.g.
// "espeak-ng -v {lang}". The {lang} placeholder is replaced with the base language. The text is
// put in place of a {text} placeholder or appended as the last argument.
type SpeechSink struct {
	command []string
	lang    string
	run     func(ctx context.Context, name string, args ...string) error
}

// NewSpeechSink parses command with shell quoting rules.
func NewSpeechSink(command, lang string) (*SpeechSink, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return &SpeechSink{
		command: args,
		lang:    lang,
		run:     runCommand,
	}, nil
}

func (s *SpeechSink) Name() string {
	return "speech (" + s.command[0] + ")"
}

// Notify speaks msg.Speech. Messages without speech text are ignored.
func (s *SpeechSink) Notify(ctx context.Context, msg Message) error {
	if msg.Speech == "" {
		return nil
	}
	args := s.args(msg.Speech)
	if err := s.run(ctx, s.command[0], args...); err != nil {
		return fmt.Errorf("failed to run speech command: %w", err)
	}
	return nil
}

func (s *SpeechSink) args(text string) []string {
	args := make([]string, 0, len(s.command))
	hasText := false
	for _, arg := range s.command[1:] {
		if strings.Contains(arg, placeholderText) {
			hasText = true
		}
		arg = strings.ReplaceAll(arg, placeholderLang, s.lang)
		arg = strings.ReplaceAll(arg, placeholderText, text)
		args = append(args, arg)
	}
	if !hasText {
		args = append(args, text)
	}
	return args
}

func runCommand(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(output) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return err
}
