// Package inertial dead-reckons a position from motion sensors when no
// trusted location fix is available.
//
// The estimate integrates accelerometer samples into a planar velocity and
// gyroscope z-rate into a bearing, then projects the travelled distance from
// the last trusted fix. Magnetometer readings are kept but not fused, so the
// bearing drifts with gyroscope bias. Each produced sample is 2 m less accurate
// than the previous one; deciding when to stop trusting it is up to the caller.
package inertial

import (
	"errors"
	"math"
	"time"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

const (
	// StandardGravity converts accelerometer g readings to m/s².
	StandardGravity = 9.81
	// AccuracyStepMeters is added to the accuracy of every synthesized sample.
	AccuracyStepMeters = 2
	// DefaultBaselineAccuracy is assumed when the baseline fix has none.
	DefaultBaselineAccuracy = 10
	// nominalGyroInterval stands in for dt on the first gyroscope reading.
	nominalGyroInterval = 10 * time.Millisecond
)

// ErrNoBaseline is returned when the estimator is started without a fix.
var ErrNoBaseline = errors.New("inertial estimator has no baseline fix")

// Vector is a planar device-frame velocity in m/s.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Estimator is not safe for concurrent use; the tracking session drives it
// from its event loop.
type Estimator struct {
	running  bool
	current  models.PositionSample
	velocity Vector
	bearing  float64 // radians, 0 = north
	updates  int

	lastAccel   time.Time
	lastGyro    time.Time
	lastMagnet  *models.SensorReading
	lastFixTime time.Time
}

// New returns a stopped estimator.
func New() *Estimator {
	return &Estimator{}
}

// Start resets integration state and anchors the estimate at baseline.
func (e *Estimator) Start(baseline *models.PositionSample) error {
	if baseline == nil {
		return ErrNoBaseline
	}
	start := *baseline
	if acc, ok := start.Accuracy(); !ok || acc == 0 {
		start.AccuracyMeters = models.Float(DefaultBaselineAccuracy)
	}
	bearing := 0.0
	if start.HeadingDegrees != nil {
		bearing = *start.HeadingDegrees * math.Pi / 180
	}

	*e = Estimator{
		running:     true,
		current:     start,
		bearing:     bearing,
		lastFixTime: baseline.CapturedAt,
	}
	return nil
}

// Stop halts the estimator; later readings are ignored.
func (e *Estimator) Stop() {
	e.running = false
}

// Running reports whether Start succeeded and Stop has not been called.
func (e *Estimator) Running() bool {
	return e.running
}

// Accelerometer integrates one reading. It returns a new sample for every
// reading after the first.
func (e *Estimator) Accelerometer(r models.SensorReading) (models.PositionSample, bool) {
	if !e.running {
		return models.PositionSample{}, false
	}
	if e.lastAccel.IsZero() || !r.Timestamp.After(e.lastAccel) {
		if e.lastAccel.IsZero() {
			e.lastAccel = r.Timestamp
		}
		return models.PositionSample{}, false
	}
	dt := r.Timestamp.Sub(e.lastAccel).Seconds()
	e.lastAccel = r.Timestamp

	e.velocity.X += r.X * StandardGravity * dt
	e.velocity.Y += r.Y * StandardGravity * dt
	speed := math.Hypot(e.velocity.X, e.velocity.Y)
	distance := speed * dt

	prevAccuracy, _ := e.current.Accuracy()
	next := models.PositionSample{
		Coordinate:           geo.Offset(e.current.Coordinate, distance, e.bearing),
		AccuracyMeters:       models.Float(prevAccuracy + AccuracyStepMeters),
		AltitudeMeters:       e.current.AltitudeMeters,
		SpeedMetersPerSecond: models.Float(speed),
		HeadingDegrees:       models.Float(geo.NormalizeDegrees(geo.RadiansToDegrees(e.bearing))),
		CapturedAt:           r.Timestamp,
		Source:               models.SourceInertial,
	}
	e.current = next
	e.updates++
	return next, true
}

// Gyroscope integrates the z angular rate (rad/s) into the bearing.
func (e *Estimator) Gyroscope(r models.SensorReading) {
	if !e.running {
		return
	}
	dt := nominalGyroInterval.Seconds()
	if !e.lastGyro.IsZero() {
		if !r.Timestamp.After(e.lastGyro) {
			return
		}
		dt = r.Timestamp.Sub(e.lastGyro).Seconds()
	}
	e.lastGyro = r.Timestamp
	e.bearing += r.Z * dt
}

// Magnetometer records the reading. Heading correction is not applied.
func (e *Estimator) Magnetometer(r models.SensorReading) {
	if !e.running {
		return
	}
	e.lastMagnet = &r
}

// Current returns the latest estimate, or false when stopped.
func (e *Estimator) Current() (models.PositionSample, bool) {
	if !e.running {
		return models.PositionSample{}, false
	}
	return e.current, true
}

// Velocity returns the integrated device-frame velocity.
func (e *Estimator) Velocity() Vector {
	return e.velocity
}

// BearingRadians returns the integrated bearing.
func (e *Estimator) BearingRadians() float64 {
	return e.bearing
}

// Updates counts samples produced since Start.
func (e *Estimator) Updates() int {
	return e.updates
}

// SinceFix is the time between the baseline fix and the latest estimate.
func (e *Estimator) SinceFix() time.Duration {
	return e.current.CapturedAt.Sub(e.lastFixTime)
}
