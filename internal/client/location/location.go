// Package location supplies the player's position to the play engine.
//
// A Provider streams fixes from some source (a device, a manual entry in the
// CLI). A Tracker owns at most one live subscription to a provider, keeps the
// latest acceptable fix and the last error, and can be restarted at any time.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/geo"
)

var (
	ErrLocationUnsupported = errors.New("location is not supported on this device")
	ErrLocationTimeout     = errors.New("timed out waiting for a location fix")
	ErrPermissionDenied    = errors.New("location permission denied")
)

// Fix is one position report.
type Fix struct {
	geo.Coordinate
	// Accuracy is the reported radius in meters, 0 if unknown.
	Accuracy  float64
	Timestamp time.Time
}

// Options mirror the usual geolocation watch options.
type Options struct {
	HighAccuracy bool
	// Timeout is how long to wait for the first fix before reporting
	// ErrLocationTimeout. Zero waits forever.
	Timeout time.Duration
	// MaximumAge is the oldest fix accepted. Zero accepts only fixes taken
	// after the subscription started.
	MaximumAge time.Duration
}

func DefaultOptions() Options {
	return Options{HighAccuracy: true, Timeout: 12 * time.Second}
}

// Provider streams fixes until the returned stop func is called. Callbacks may
// run on any goroutine; after stop returns no further callbacks are made for
// that subscription.
type Provider interface {
	Watch(ctx context.Context, opts Options, onFix func(Fix), onErr func(error)) (stop func(), err error)
}

// Unsupported is a Provider for environments without any position source.
type Unsupported struct{}

func (Unsupported) Watch(context.Context, Options, func(Fix), func(error)) (func(), error) {
	return nil, ErrLocationUnsupported
}
