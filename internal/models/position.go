package models

import (
	"time"

	"geo_attend/internal/geo"
)

// Source tells whether a sample came from a real fix or from dead reckoning.
type Source string

const (
	SourceGPS      Source = "gps"
	SourceInertial Source = "inertial"
)

// PositionSample is one location observation. Samples are never mutated;
// a newer sample supersedes an older one.
type PositionSample struct {
	Coordinate           geo.Coordinate `json:"coordinate" gorm:"embedded"`
	AccuracyMeters       *float64       `json:"accuracy,omitempty"`
	AltitudeMeters       *float64       `json:"altitude,omitempty"`
	SpeedMetersPerSecond *float64       `json:"speed,omitempty"`
	HeadingDegrees       *float64       `json:"heading,omitempty"`
	CapturedAt           time.Time      `json:"captured_at"`
	Source               Source         `json:"source"`
}

// Float returns a pointer to v, for the optional sample fields.
func Float(v float64) *float64 {
	return &v
}

// Accuracy returns the accuracy in meters and whether it is known.
func (p PositionSample) Accuracy() (float64, bool) {
	if p.AccuracyMeters == nil {
		return 0, false
	}
	return *p.AccuracyMeters, true
}

// AccuracyLevel buckets a GPS accuracy into the labels shown to workers.
func AccuracyLevel(accuracy *float64) string {
	if accuracy == nil || *accuracy == 0 {
		return "Unknown"
	}
	switch a := *accuracy; {
	case a < 10:
		return "Excellent"
	case a < 25:
		return "Good"
	case a < 50:
		return "Fair"
	case a < 100:
		return "Poor"
	default:
		return "Very Poor"
	}
}
