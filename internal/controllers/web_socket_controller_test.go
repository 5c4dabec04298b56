package controllers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo_attend/internal/location"
	"geo_attend/internal/models"
)

func TestDeviceMessage_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"utc suffix", `{"type":"fix","timestamp":"2026-03-10T09:15:00Z"}`, time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)},
		{"no zone", `{"type":"fix","timestamp":"2026-03-10T09:15:00.250"}`, time.Date(2026, 3, 10, 9, 15, 0, 250e6, time.UTC)},
		{"offset", `{"type":"fix","timestamp":"2026-03-10T14:45:00+05:30"}`, time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)},
		{"missing", `{"type":"fix"}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg deviceMessage
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &msg))
			assert.True(t, tt.want.Equal(msg.Timestamp), "got %s", msg.Timestamp)
			assert.Equal(t, msgFix, msg.Type)
		})
	}

	var msg deviceMessage
	assert.Error(t, json.Unmarshal([]byte(`{"type":"fix","timestamp":"yesterday"}`), &msg))
}

func TestApplyDeviceMessage(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	feed := location.NewFeed(1, location.WithMaxFixAge(time.Minute), location.WithClock(func() time.Time { return now }))
	sensors := location.NewSensorFeed()

	var fix deviceMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"fix","latitude":12.9716,"longitude":77.5946,"accuracy":6.5}`), &fix))
	require.NoError(t, applyDeviceMessage(feed, sensors, fix, now))

	got, err := feed.CurrentFix(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 12.9716, got.Coordinate.Latitude)
	assert.Equal(t, now, got.CapturedAt)
	require.NotNil(t, got.AccuracyMeters)
	assert.Equal(t, 6.5, *got.AccuracyMeters)

	bad := deviceMessage{Type: msgFix, Latitude: 120}
	assert.Error(t, applyDeviceMessage(feed, sensors, bad, now))

	var readings []models.SensorReading
	sub, err := sensors.SubscribeAccelerometer(func(r models.SensorReading) { readings = append(readings, r) })
	require.NoError(t, err)
	defer sub.Cancel()
	require.NoError(t, applyDeviceMessage(feed, sensors, deviceMessage{Type: msgAccelerometer, X: 0.2}, now))
	require.Len(t, readings, 1)
	assert.Equal(t, 0.2, readings[0].X)
	assert.Equal(t, now, readings[0].Timestamp)

	var failures []error
	_, err = feed.Subscribe(location.SubscribeOptions{}, func(models.PositionSample) {}, func(err error) { failures = append(failures, err) })
	require.NoError(t, err)
	require.NoError(t, applyDeviceMessage(feed, sensors, deviceMessage{Type: msgFailure, Reason: "timeout"}, now))
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], location.ErrFixTimeout)

	assert.Error(t, applyDeviceMessage(feed, sensors, deviceMessage{Type: msgPermission}, now))
	denied := false
	require.NoError(t, applyDeviceMessage(feed, sensors, deviceMessage{Type: msgPermission, Granted: &denied}, now))
	granted, err := feed.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	assert.Error(t, applyDeviceMessage(feed, sensors, deviceMessage{Type: "teleport"}, now))
}
