package inertial

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func baseline(accuracy *float64) *models.PositionSample {
	return &models.PositionSample{
		Coordinate:     geo.Coordinate{Latitude: 21.355897, Longitude: 78.980604},
		AccuracyMeters: accuracy,
		CapturedAt:     t0,
		Source:         models.SourceGPS,
	}
}

func accel(ms int, x, y float64) models.SensorReading {
	return models.SensorReading{X: x, Y: y, Timestamp: t0.Add(time.Duration(ms) * time.Millisecond)}
}

func TestEstimator_NoBaseline(t *testing.T) {
	e := New()
	assert.ErrorIs(t, e.Start(nil), ErrNoBaseline)
	assert.False(t, e.Running())

	_, ok := e.Accelerometer(accel(0, 1, 0))
	assert.False(t, ok)
	_, ok = e.Accelerometer(accel(100, 1, 0))
	assert.False(t, ok)
	_, ok = e.Current()
	assert.False(t, ok)
}

func TestEstimator_AccuracyDegradesTwoMetersPerUpdate(t *testing.T) {
	for _, heading := range []float64{0, 0.7, -2.1} {
		e := New()
		require.NoError(t, e.Start(baseline(models.Float(10))))
		e.Gyroscope(models.SensorReading{Z: heading / nominalGyroInterval.Seconds(), Timestamp: t0})

		_, ok := e.Accelerometer(accel(0, 0.3, -0.2))
		require.False(t, ok, "first reading only primes dt")

		var last models.PositionSample
		for i := 1; i <= 5; i++ {
			last, ok = e.Accelerometer(accel(i*100, 0.3, -0.2))
			require.True(t, ok)
		}
		acc, known := last.Accuracy()
		require.True(t, known)
		assert.Equal(t, 20.0, acc)
		assert.Equal(t, models.SourceInertial, last.Source)
		assert.Equal(t, 5, e.Updates())
	}
}

func TestEstimator_DefaultBaselineAccuracy(t *testing.T) {
	e := New()
	require.NoError(t, e.Start(baseline(nil)))
	e.Accelerometer(accel(0, 0, 0))
	s, ok := e.Accelerometer(accel(100, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 12.0, *s.AccuracyMeters)
}

func TestEstimator_IntegratesVelocityAndDistance(t *testing.T) {
	e := New()
	require.NoError(t, e.Start(baseline(models.Float(5))))

	e.Accelerometer(accel(0, 0, 0))
	// 0.1 g for 1 s: v = 0.981 m/s, d = 0.981 m, bearing north.
	s, ok := e.Accelerometer(accel(1000, 0.1, 0))
	require.True(t, ok)

	assert.InDelta(t, 0.981, e.Velocity().X, 1e-9)
	assert.InDelta(t, 0.981, *s.SpeedMetersPerSecond, 1e-9)
	start := baseline(nil).Coordinate
	assert.Greater(t, s.Coordinate.Latitude, start.Latitude)
	assert.InDelta(t, start.Longitude, s.Coordinate.Longitude, 1e-12)
	assert.InDelta(t, 0.981, geo.DistanceMeters(start, s.Coordinate), 0.01)
	assert.Equal(t, t0.Add(time.Second), s.CapturedAt)
	assert.Equal(t, time.Second, e.SinceFix())
}

func TestEstimator_GyroscopeIntegratesBearing(t *testing.T) {
	e := New()
	require.NoError(t, e.Start(baseline(models.Float(5))))

	// First reading uses the nominal 10 ms interval.
	e.Gyroscope(models.SensorReading{Z: 1, Timestamp: t0})
	assert.InDelta(t, 0.01, e.BearingRadians(), 1e-12)

	e.Gyroscope(models.SensorReading{Z: math.Pi / 2, Timestamp: t0.Add(time.Second)})
	assert.InDelta(t, 0.01+math.Pi/2, e.BearingRadians(), 1e-12)

	// Stale timestamps are ignored.
	e.Gyroscope(models.SensorReading{Z: 100, Timestamp: t0})
	assert.InDelta(t, 0.01+math.Pi/2, e.BearingRadians(), 1e-12)

	e.Accelerometer(accel(0, 0, 0))
	s, ok := e.Accelerometer(accel(1000, 0.1, 0))
	require.True(t, ok)
	assert.InDelta(t, geo.NormalizeDegrees((0.01+math.Pi/2)*180/math.Pi), *s.HeadingDegrees, 1e-9)
	assert.Greater(t, s.Coordinate.Longitude, baseline(nil).Coordinate.Longitude)
}

func TestEstimator_StopIgnoresReadings(t *testing.T) {
	e := New()
	require.NoError(t, e.Start(baseline(models.Float(5))))
	e.Accelerometer(accel(0, 0, 0))
	e.Stop()

	_, ok := e.Accelerometer(accel(100, 1, 1))
	assert.False(t, ok)
	e.Gyroscope(models.SensorReading{Z: 5, Timestamp: t0})
	e.Magnetometer(models.SensorReading{X: 1})
	assert.Equal(t, 0.0, e.BearingRadians())
	assert.Equal(t, 0, e.Updates())
}

func TestEstimator_RestartResetsState(t *testing.T) {
	e := New()
	require.NoError(t, e.Start(baseline(models.Float(5))))
	e.Accelerometer(accel(0, 0, 0))
	e.Accelerometer(accel(100, 1, 0))
	require.NotZero(t, e.Velocity().X)

	require.NoError(t, e.Start(baseline(models.Float(7))))
	assert.Equal(t, Vector{}, e.Velocity())
	assert.Equal(t, 0, e.Updates())
	cur, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, 7.0, *cur.AccuracyMeters)
}
