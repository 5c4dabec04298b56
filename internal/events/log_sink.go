package events

import "github.com/sirupsen/logrus"

// LogSink writes every event to logrus.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Publish(ev Event) {
	l := s.Logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	entry := l.WithFields(logrus.Fields{
		"type":      ev.Type,
		"worker_id": ev.WorkerID,
	})
	switch {
	case ev.Transition != nil:
		entry.WithFields(logrus.Fields{
			"geofence_id": ev.Transition.GeofenceID,
			"kind":        ev.Transition.Kind,
			"distance_m":  ev.Transition.DistanceMeters,
		}).Info("Geofence transition.")
	case ev.Record != nil:
		entry.WithFields(logrus.Fields{
			"record_id":        ev.Record.ID,
			"status":           ev.Record.Status,
			"duration_minutes": ev.Record.DurationMinutes,
		}).Info("Attendance record completed.")
	case ev.Session != nil:
		entry.WithField("geofence_id", ev.Session.GeofenceID).Info("Attendance session changed.")
	case ev.Availability != nil:
		entry.WithFields(logrus.Fields{
			"mode":   ev.Availability.Mode,
			"reason": ev.Availability.Reason,
		}).Warn("Location availability changed.")
	default:
		entry.Debug("Position updated.")
	}
}
