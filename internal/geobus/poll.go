// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"time"
)

// LocateFunc looks up the current fix of a provider.
type LocateFunc func(ctx context.Context) (Fix, error)

// Poll calls locate immediately and then once per period until ctx is done. A Result built by mk
// is emitted for the first fix and for every fix that significantly differs from the last
// emitted one. Failed lookups are skipped. The returned channel is closed once ctx is done.
func Poll(ctx context.Context, period time.Duration, locate LocateFunc, mk func(Fix) Result) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		state := &State{}

		emit := func() bool {
			fix, err := locate(ctx)
			if err != nil || !state.HasChanged(fix) {
				return true
			}
			state.Update(fix)
			select {
			case out <- mk(fix):
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !emit() {
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return out
}
