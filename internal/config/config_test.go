package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ATTENDANCE_TZ", "UTC")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour, s.LateAfter)
	assert.Equal(t, 3*time.Second, s.FixTimeout)
	assert.Equal(t, 2*time.Second, s.LocationInterval)
	assert.Equal(t, 5.0, s.LocationMinDistance)
	assert.Equal(t, 5000.0, s.MaxGeofenceRadius)
	assert.False(t, s.RequireInside)
	assert.False(t, s.OncePerDay)
	assert.Equal(t, logrus.InfoLevel, s.LogLevel)
	assert.Equal(t, time.UTC, s.AttendanceTZ)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LATE_THRESHOLD", "09:30")
	t.Setenv("ATTENDANCE_TZ", "Asia/Kolkata")
	t.Setenv("REQUIRE_INSIDE", "true")
	t.Setenv("ONE_CHECK_IN_PER_DAY", "1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_NAME", "attendance_test")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, s.LateAfter)
	assert.Equal(t, "Asia/Kolkata", s.AttendanceTZ.String())
	assert.True(t, s.RequireInside)
	assert.True(t, s.OncePerDay)
	assert.Equal(t, logrus.DebugLevel, s.LogLevel)
	assert.Contains(t, s.DB.DSN(), "dbname=attendance_test")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("LATE_THRESHOLD", "nine")
	t.Setenv("FIX_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LATE_THRESHOLD")
	assert.Contains(t, err.Error(), "FIX_TIMEOUT")
}
