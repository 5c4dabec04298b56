package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/inertial"
	"geo_attend/internal/middleware"
)

// StartTracking begins tracking. When neither a fix nor a baseline for
// dead reckoning is available it answers 422 with the session status, and
// tracking stays armed for the first fix to arrive.
func (a *API) StartTracking(c *gin.Context) {
	session := a.Tracking.Session(middleware.WorkerID(c))
	startErr := session.Start(c.Request.Context())
	if startErr != nil && !errors.Is(startErr, inertial.ErrNoBaseline) {
		respondError(c, startErr)
		return
	}

	status, err := session.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if startErr != nil {
		logrus.WithError(startErr).WithField("worker_id", status.WorkerID).Warn("Tracking started without a position source.")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": startErr.Error(), "data": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (a *API) StopTracking(c *gin.Context) {
	session := a.Tracking.Session(middleware.WorkerID(c))
	if err := session.Stop(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	status, err := session.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (a *API) TrackingStatus(c *gin.Context) {
	status, err := a.Tracking.Session(middleware.WorkerID(c)).Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

// SetActiveGeofence selects (or with an empty id clears) the geofence the
// worker is evaluated against.
func (a *API) SetActiveGeofence(c *gin.Context) {
	var body struct {
		GeofenceID string `json:"geofence_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := a.Tracking.Session(middleware.WorkerID(c))
	if err := session.SetActiveGeofence(c.Request.Context(), body.GeofenceID); err != nil {
		respondError(c, err)
		return
	}
	fence, ok, err := session.ActiveGeofence(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": fence})
}
