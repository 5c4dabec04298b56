package models

import "time"

// AttendanceStatus is the classification attached to a completed record.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
	StatusHalfDay AttendanceStatus = "halfDay"
	StatusOnLeave AttendanceStatus = "onLeave"
)

// AttendanceSession is the open interval between a check-in and its check-out.
type AttendanceSession struct {
	WorkerID         uint            `json:"worker_id"`
	GeofenceID       string          `json:"geofence_id"`
	CheckInAt        time.Time       `json:"check_in_at"`
	CheckInLocation  PositionSample  `json:"check_in_location"`
	CheckOutAt       *time.Time      `json:"check_out_at,omitempty"`
	CheckOutLocation *PositionSample `json:"check_out_location,omitempty"`
	// Flag explains why an accepted check-in needs review, e.g. it happened
	// outside the geofence's opening hours.
	Flag string `json:"flag,omitempty"`
}

// Open reports whether the session has not been checked out yet.
func (s AttendanceSession) Open() bool {
	return s.CheckOutAt == nil
}

// AttendanceRecord is a closed session, immutable once created.
type AttendanceRecord struct {
	ID               string           `json:"id" gorm:"primaryKey;size:36"`
	WorkerID         uint             `json:"worker_id" gorm:"index"`
	Date             time.Time        `json:"date" gorm:"type:date;index"`
	CheckInAt        time.Time        `json:"check_in_at"`
	CheckOutAt       time.Time        `json:"check_out_at"`
	CheckInLocation  PositionSample   `json:"check_in_location" gorm:"embedded;embeddedPrefix:check_in_"`
	CheckOutLocation PositionSample   `json:"check_out_location" gorm:"embedded;embeddedPrefix:check_out_"`
	GeofenceID       string           `json:"geofence_id"`
	DurationMinutes  float64          `json:"duration_minutes"`
	Status           AttendanceStatus `json:"status"`
	Flagged          bool             `json:"flagged"`
	Notes            string           `json:"notes,omitempty"`
}
