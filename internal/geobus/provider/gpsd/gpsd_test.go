// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/ufobeep/internal/geobus"
	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/gpspoll"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGPSDProvider_createResult(t *testing.T) {
	provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
	result := provider.createResult("test", geobus.NewFix(testLat, testLon, geobus.AccuracyCity))
	if result.Lat != testLat {
		t.Errorf("expected latitude to be %f, got %f", testLat, result.Lat)
	}
	if result.Lon != testLon {
		t.Errorf("expected longitude to be %f, got %f", testLon, result.Lon)
	}
	if result.Key != "test" {
		t.Errorf("expected key to be %s, got %s", "test", result.Key)
	}
	if result.Acc != geobus.AccuracyCity {
		t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyCity, result.Acc)
	}
	if result.Source != provider.Name() {
		t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
	}
	if result.TTL != provider.ttl {
		t.Errorf("expected TTL to be %d, got %d", provider.ttl, result.TTL)
	}
}

func TestGeolocationGPSDProvider_locate(t *testing.T) {
	t.Run("fix without 2D mode is rejected", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
		provider.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{Coordinate: geomath.Coordinate{Lat: testLat, Lon: testLon}, Acc: 10, Mode: gpspoll.ModeNoFix}, nil
		}
		if _, err := provider.locate(t.Context()); !errors.Is(err, ErrNoFix) {
			t.Errorf("expected error to be %s, got %s", ErrNoFix, err)
		}
	})
	t.Run("coordinates are truncated", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
		provider.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{Coordinate: geomath.Coordinate{Lat: 40.718500012, Lon: -74.002598765}, Acc: 10, Mode: gpspoll.Mode3D}, nil
		}
		fix, err := provider.locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if fix.Lat != testLat || fix.Lon != -74.00259 {
			t.Errorf("unexpected truncated coordinates: %f, %f", fix.Lat, fix.Lon)
		}
	})
}

func TestGeolocationGPSDProvider_LookupStream(t *testing.T) {
	t.Run("fetching GPS data fails on first run but then succeeds", func(t *testing.T) {
		runCount := 0
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := NewGeolocationGPSDProvider(DefaultHost, DefaultPort)
			provider.period = time.Millisecond * 10
			provider.locateFn = func(ctx context.Context) (gpspoll.Fix, error) {
				if runCount == 0 {
					runCount++
					return gpspoll.Fix{}, errors.New("intentionally failing")
				}
				if runCount == 1 {
					runCount++
					return gpspoll.Fix{Coordinate: geomath.Coordinate{Lat: 1, Lon: 2}, Acc: 3, Mode: gpspoll.ModeNoFix}, nil
				}
				return gpspoll.Fix{Coordinate: geomath.Coordinate{Lat: 1.0, Lon: 2.0}, Acc: 3.0, Mode: gpspoll.Mode2D}, nil
			}

			out := provider.LookupStream(ctx, "test")
			if out == nil {
				t.Fatal("expected stream to be non-nil")
			}

			var result geobus.Result
			select {
			case r := <-out:
				result = r
				cancel()
			case <-ctx.Done():
				t.Fatalf("context done before result: %v", ctx.Err())
			}
			synctest.Wait()

			if result.Lat != 1.0 {
				t.Errorf("expected latitude to be %f, got %f", 1.0, result.Lat)
			}
			if result.Lon != 2.0 {
				t.Errorf("expected longitude to be %f, got %f", 2.0, result.Lon)
			}
			if result.Acc != 3.0 {
				t.Errorf("expected accuracy to be %f, got %f", 3.0, result.Acc)
			}
		})
	})
}
