// Package location defines the position and motion-sensor contracts consumed
// by the tracking engine, plus push-based implementations fed by devices.
package location

import (
	"context"
	"errors"
	"time"

	"geo_attend/internal/models"
)

var (
	// ErrPermissionDenied means the device refused location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrFixTimeout means no fix arrived within the requested timeout.
	ErrFixTimeout = errors.New("location fix timed out")
)

// Subscription is a live listener registration. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// SubscribeOptions throttles delivery: at most one sample per Interval, and
// only after moving MinDistanceMeters from the last delivered sample.
type SubscribeOptions struct {
	Interval          time.Duration
	MinDistanceMeters float64
}

// Source supplies trusted position fixes.
type Source interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentFix(ctx context.Context, timeout time.Duration) (models.PositionSample, error)
	Subscribe(opts SubscribeOptions, onSample func(models.PositionSample), onFailure func(error)) (Subscription, error)
}

// SensorSource supplies raw motion-sensor readings for dead reckoning.
type SensorSource interface {
	SubscribeAccelerometer(fn func(models.SensorReading)) (Subscription, error)
	SubscribeGyroscope(fn func(models.SensorReading)) (Subscription, error)
	SubscribeMagnetometer(fn func(models.SensorReading)) (Subscription, error)
}

// cancelFunc adapts a function to Subscription.
type cancelFunc func()

func (f cancelFunc) Cancel() { f() }
