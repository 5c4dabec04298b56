package geofence

import (
	"time"

	"github.com/google/uuid"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

// Evaluate computes distance and inclusive containment of sample in fence.
func Evaluate(sample models.PositionSample, fence models.Geofence) models.GeofenceEvaluation {
	distance := geo.DistanceMeters(sample.Coordinate, fence.Center)
	return models.GeofenceEvaluation{
		GeofenceID:     fence.ID,
		DistanceMeters: distance,
		IsInside:       distance <= fence.RadiusMeters,
	}
}

// Containment is the detector's remembered state for the active geofence.
type Containment int

const (
	Unknown Containment = iota
	Inside
	Outside
)

func (c Containment) String() string {
	switch c {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

func containmentOf(inside bool) Containment {
	if inside {
		return Inside
	}
	return Outside
}

// Detector emits an event only when the containment flag changes. From
// Unknown, only an entry can be emitted: the first outside sample just sets
// the baseline.
type Detector struct {
	geofenceID string
	state      Containment
	newID      func() string
}

// NewDetector returns a detector in the Unknown state.
func NewDetector() *Detector {
	return &Detector{newID: uuid.NewString}
}

// Reset forgets the stored flag and tracks geofenceID from now on.
func (d *Detector) Reset(geofenceID string) {
	d.geofenceID = geofenceID
	d.state = Unknown
}

// State returns the stored flag and the geofence it belongs to.
func (d *Detector) State() (string, Containment) {
	return d.geofenceID, d.state
}

// Observe folds one evaluation into the detector. An evaluation for a
// different geofence resets the detector first.
func (d *Detector) Observe(eval models.GeofenceEvaluation, sample models.PositionSample, at time.Time) (models.GeofenceEvent, bool) {
	if eval.GeofenceID != d.geofenceID {
		d.Reset(eval.GeofenceID)
	}
	prev := d.state
	next := containmentOf(eval.IsInside)
	d.state = next

	var kind models.EventKind
	switch {
	case prev == next:
		return models.GeofenceEvent{}, false
	case next == Inside:
		kind = models.EventEntry
	case prev == Inside:
		kind = models.EventExit
	default:
		return models.GeofenceEvent{}, false
	}

	return models.GeofenceEvent{
		ID:             d.newID(),
		GeofenceID:     eval.GeofenceID,
		Kind:           kind,
		At:             at,
		DistanceMeters: eval.DistanceMeters,
		Sample:         sample,
	}, true
}
