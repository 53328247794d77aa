// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs at a fixed interval
// and never overlaps with itself (singleton mode).
type Job struct {
	interval time.Duration
	task     func(context.Context)
}

// Handle controls a Job that was started in the background.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner starts jobs in the background and hands out a Handle for each of them.
type Runner struct{}

// New creates a new Job with the given interval and task.
func New(interval time.Duration, task func(context.Context)) *Job {
	return &Job{
		interval: interval,
		task:     task,
	}
}

// Start begins executing the job on the given context. It returns when the context is cancelled.
// It executes jobs in singleton mode, meaning if a tick fires while a previous run is still
// executing, that tick is skipped.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// sem is a 1-slot semaphore that guards "is a run in progress?"
	sem := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Try to acquire the semaphore without blocking.
			select {
			case sem <- struct{}{}:
				go func() {
					defer func() { <-sem }()
					runCtx, cancel := context.WithCancel(ctx)
					defer cancel()
					j.task(runCtx)
				}()
			default:
			}
		}
	}
}

// Go starts the job in its own goroutine and returns a Handle to stop it again.
func (j *Job) Go(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	handle := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(handle.done)
		j.Start(ctx)
	}()
	return handle
}

// Stop cancels the job and waits until its ticker loop has returned. A run that is already in
// progress sees its context cancelled but is not waited for. Stop is safe to call multiple times.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done returns a channel that is closed once the ticker loop has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Schedule starts task every interval on a new Job until ctx is cancelled or the returned
// Handle is stopped.
func (Runner) Schedule(ctx context.Context, interval time.Duration, task func(context.Context)) *Handle {
	return New(interval, task).Go(ctx)
}
