// Package events carries what the tracking engine produces to its consumers:
// the websocket hub, the notification center, logs and the store.
package events

import (
	"time"

	"geo_attend/internal/models"
)

// Type names an event on the wire.
type Type string

const (
	TypePositionUpdated     Type = "position.updated"
	TypeGeofenceTransition  Type = "geofence.transition"
	TypeSessionOpened       Type = "session.opened"
	TypeSessionClosed       Type = "session.closed"
	TypeRecordCompleted     Type = "record.completed"
	TypeAvailabilityChanged Type = "availability.changed"
)

// Mode is where positions currently come from.
type Mode string

const (
	ModeIdle        Mode = "idle"
	ModeGPS         Mode = "gps"
	ModeInertial    Mode = "inertial"
	ModeUnavailable Mode = "unavailable"
)

// Availability describes a change of position source.
type Availability struct {
	Mode   Mode   `json:"mode"`
	Reason string `json:"reason,omitempty"`
}

// Event is one immutable notification. Which payload fields are set depends
// on Type; position.updated carries Position and, with an active geofence,
// Evaluation.
type Event struct {
	Type         Type                       `json:"type"`
	WorkerID     uint                       `json:"worker_id"`
	At           time.Time                  `json:"at"`
	Position     *models.PositionSample     `json:"position,omitempty"`
	Evaluation   *models.GeofenceEvaluation `json:"evaluation,omitempty"`
	Transition   *models.GeofenceEvent      `json:"transition,omitempty"`
	Session      *models.AttendanceSession  `json:"session,omitempty"`
	Record       *models.AttendanceRecord   `json:"record,omitempty"`
	Availability *Availability              `json:"availability,omitempty"`
}

// Sink receives events. Publish must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
