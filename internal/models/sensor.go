package models

import "time"

// SensorReading is a raw three-axis device-frame sample. Accelerometer values
// are in g, gyroscope values in rad/s, magnetometer values in microtesla.
type SensorReading struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}
