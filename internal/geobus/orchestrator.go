// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoResult is returned by Locate if no provider delivered an origin before the context was done.
var ErrNoResult = errors.New("no origin received from any provider")

// Orchestrator runs all origin providers and feeds their results into a GeoBus. Providers that
// fail or end their stream are restarted with exponential backoff.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track runs every provider for key until ctx is cancelled.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, provider := range o.Providers {
		wg.Go(func() { o.superviseProvider(ctx, provider, key) })
	}
	wg.Wait()
}

// Locate returns the best known origin for key. If there is none, the providers are run until the
// first result is published or ctx is done.
func (o *Orchestrator) Locate(ctx context.Context, key string) (Result, error) {
	if best, ok := o.Bus.Best(key); ok {
		return best, nil
	}

	results, unsub := o.Bus.Subscribe(key, 1)
	defer unsub()

	ctxTrack, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { o.Track(ctxTrack, key) })
	defer func() {
		cancel()
		wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrNoResult, ctx.Err())
	case result := <-results:
		return result, nil
	}
}

// superviseProvider restarts the stream of provider whenever it ends. The backoff grows with every
// restart that did not publish anything and is reset by each received result.
func (o *Orchestrator) superviseProvider(ctx context.Context, provider Provider, key string) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		stream, err := startStream(ctx, provider, key)
		switch {
		case err != nil:
			o.logWarn("origin provider failed to start", slog.String("provider", provider.Name()),
				slog.String("error", err.Error()), slog.Duration("backoff", backoff))
		case o.drain(ctx, stream):
			backoff = initialBackoff
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// drain publishes every result of stream until it is closed. It reports whether at least one
// result was received.
func (o *Orchestrator) drain(ctx context.Context, stream <-chan Result) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case result, ok := <-stream:
			if !ok {
				return received
			}
			o.Bus.Publish(result)
			received = true
		}
	}
}

func (o *Orchestrator) logWarn(msg string, attrs ...any) {
	if o.Bus.logger != nil {
		o.Bus.logger.Warn(msg, attrs...)
	}
}

// startStream calls LookupStream and turns a panic or a nil stream into an error.
func startStream(ctx context.Context, provider Provider, key string) (stream <-chan Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	if stream = provider.LookupStream(ctx, key); stream == nil {
		return nil, errors.New("provider returned no stream")
	}
	return stream, nil
}
