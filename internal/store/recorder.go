package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"geo_attend/internal/events"
	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

// Persister is the slice of Store the Recorder writes through.
type Persister interface {
	SaveRecord(ctx context.Context, r *models.AttendanceRecord) error
	SaveEvent(ctx context.Context, e *models.GeofenceEvent) error
	SaveLocation(ctx context.Context, l *models.LocationHistory) error
	LastLocation(ctx context.Context, workerID uint) (models.LocationHistory, error)
}

// Recorder is an events.Sink that writes completed records, geofence
// transitions and significant positions to the database on its own goroutine.
type Recorder struct {
	p       Persister
	in      chan events.Event
	done    chan struct{}
	last    map[uint]*models.LocationHistory
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(p Persister, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		p:       p,
		in:      make(chan events.Event, buffer),
		done:    make(chan struct{}),
		last:    make(map[uint]*models.LocationHistory),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	go r.run()
	return r
}

// Publish queues ev, dropping it when the writer is behind.
func (r *Recorder) Publish(ev events.Event) {
	select {
	case r.in <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"type":      ev.Type,
			"worker_id": ev.WorkerID,
		}).Warn("Store recorder queue full, dropping event.")
	}
}

// Close flushes queued events and stops the writer.
func (r *Recorder) Close() {
	close(r.in)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.in {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.write(ctx, ev); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"type":      ev.Type,
				"worker_id": ev.WorkerID,
			}).Error("Failed to persist event.")
		}
		cancel()
	}
}

func (r *Recorder) write(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.TypeRecordCompleted:
		if ev.Record == nil {
			return nil
		}
		record := *ev.Record
		return r.p.SaveRecord(ctx, &record)
	case events.TypeGeofenceTransition:
		if ev.Transition == nil {
			return nil
		}
		transition := *ev.Transition
		return r.p.SaveEvent(ctx, &transition)
	case events.TypePositionUpdated:
		if ev.Position == nil {
			return nil
		}
		return r.writePosition(ctx, ev.WorkerID, *ev.Position)
	}
	return nil
}

func (r *Recorder) writePosition(ctx context.Context, workerID uint, sample models.PositionSample) error {
	last, ok := r.last[workerID]
	if !ok {
		prev, err := r.p.LastLocation(ctx, workerID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			last = &prev
		}
	}

	speed := 0.0
	if sample.SpeedMetersPerSecond != nil && *sample.SpeedMetersPerSecond > 0 {
		speed = *sample.SpeedMetersPerSecond
	}

	entry := models.LocationHistory{
		WorkerID:  workerID,
		Latitude:  sample.Coordinate.Latitude,
		Longitude: sample.Coordinate.Longitude,
		Accuracy:  sample.AccuracyMeters,
		Speed:     sample.SpeedMetersPerSecond,
		Altitude:  sample.AltitudeMeters,
		Source:    sample.Source,
		IsMoving:  speed > minSpeedForMoving,
		Timestamp: sample.CapturedAt,
	}
	if sample.HeadingDegrees != nil {
		entry.Bearing = *sample.HeadingDegrees
	}

	save, eventType := true, "initial"
	if last != nil {
		prev := geo.Coordinate{Latitude: last.Latitude, Longitude: last.Longitude}
		entry.DistanceFromLast = geo.DistanceMeters(prev, sample.Coordinate)
		if sample.HeadingDegrees == nil && entry.DistanceFromLast > 0 {
			entry.Bearing = geo.Bearing(prev, sample.Coordinate)
		}
		save, eventType = ShouldSaveLocation(entry.DistanceFromLast, speed, sample.CapturedAt.Sub(last.Timestamp), last.IsMoving, r.now().Sub(last.Timestamp))
	}
	if !save {
		logrus.WithFields(logrus.Fields{
			"worker_id":  workerID,
			"distance_m": entry.DistanceFromLast,
		}).Debug("Position received, no significant change.")
		return nil
	}

	entry.EventType = eventType
	if err := r.p.SaveLocation(ctx, &entry); err != nil {
		return err
	}
	r.last[workerID] = &entry
	return nil
}

const (
	minDistanceForSave   = 5.0
	minIntervalForChange = 10 * time.Second
	minSpeedForMoving    = 0.5
	maxSpeedForStopped   = 1.0
	periodicSaveInterval = 60 * time.Second
)

// ShouldSaveLocation decides whether a position is worth storing given the
// previous stored one: elapsed is the time between the two samples and age is
// how long ago the previous one was stored.
func ShouldSaveLocation(distance, speed float64, elapsed time.Duration, wasMoving bool, age time.Duration) (bool, string) {
	if distance >= minDistanceForSave {
		return true, "move"
	}
	if wasMoving && speed < maxSpeedForStopped && elapsed >= minIntervalForChange {
		return true, "stopped"
	}
	if !wasMoving && speed >= minSpeedForMoving && elapsed >= minIntervalForChange {
		return true, "started"
	}
	if age >= periodicSaveInterval {
		return true, "periodic"
	}
	return false, "insignificant"
}
