package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/attendance"
	"geo_attend/internal/events"
	"geo_attend/internal/geo"
	"geo_attend/internal/geofence"
	"geo_attend/internal/inertial"
	"geo_attend/internal/location"
	"geo_attend/internal/middleware"
	"geo_attend/internal/models"
	"geo_attend/internal/store"
	"geo_attend/internal/tracking"
)

// WorkerStore persists worker accounts.
type WorkerStore interface {
	CreateWorker(ctx context.Context, w *models.Worker) error
	WorkerByEmail(ctx context.Context, email string) (models.Worker, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
}

// GeofenceStore persists geofence definitions.
type GeofenceStore interface {
	SaveGeofence(ctx context.Context, g *models.Geofence) error
	DeleteGeofence(ctx context.Context, id string) error
}

// HistoryStore serves stored history beyond what is kept in memory.
type HistoryStore interface {
	Records(ctx context.Context, workerID uint, from, to time.Time) ([]models.AttendanceRecord, error)
	Events(ctx context.Context, workerID uint, limit int) ([]models.GeofenceEvent, error)
	LocationTrail(ctx context.Context, workerID uint, since time.Time) ([]models.LocationHistory, error)
}

// API holds the handlers' dependencies.
type API struct {
	Workers       WorkerStore
	Geofences     GeofenceStore
	History       HistoryStore
	Auth          *middleware.Auth
	Registry      *geofence.Registry
	Tracking      *tracking.Manager
	Ledger        *attendance.Ledger
	Notifications *events.NotificationCenter
	Hub           *events.Hub

	// Location is the attendance time zone used to parse record dates.
	Location *time.Location
}

func (a *API) location() *time.Location {
	if a.Location == nil {
		return time.Local
	}
	return a.Location
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, attendance.ErrAlreadyCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedInToday),
		errors.Is(err, attendance.ErrNotCheckedIn),
		errors.Is(err, geofence.ErrDuplicateID),
		errors.Is(err, tracking.ErrAlreadyTracking),
		errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, geofence.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, events.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrNoActiveGeofence),
		errors.Is(err, attendance.ErrNoLocation),
		errors.Is(err, attendance.ErrOutsideGeofence),
		errors.Is(err, attendance.ErrGeofenceDisabled),
		errors.Is(err, attendance.ErrDayNotAllowed),
		errors.Is(err, inertial.ErrNoBaseline),
		errors.Is(err, location.ErrPermissionDenied),
		errors.Is(err, location.ErrFixTimeout):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidGeofence),
		errors.Is(err, geo.ErrInvalidCoordinate):
		status = http.StatusBadRequest
	case errors.Is(err, tracking.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed.")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
