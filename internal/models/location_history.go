package models

import (
	"time"

	"gorm.io/gorm"
)

// LocationHistory is a persisted position, kept only for significant movement.
type LocationHistory struct {
	gorm.Model
	WorkerID         uint      `json:"worker_id" gorm:"index"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Accuracy         *float64  `json:"accuracy"`
	Speed            *float64  `json:"speed"`
	Bearing          float64   `json:"bearing"`
	Altitude         *float64  `json:"altitude"`
	Source           Source    `json:"source"`
	IsMoving         bool      `json:"is_moving"`
	DistanceFromLast float64   `json:"distance_from_last"`
	Timestamp        time.Time `json:"timestamp"`
	EventType        string    `json:"event_type"` // "initial", "move", "stopped", "started", "periodic"
}
