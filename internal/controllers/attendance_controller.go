package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/middleware"
)

const dateLayout = "2006-01-02"

func (a *API) CheckIn(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	session, err := a.Tracking.Session(workerID).CheckIn(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"worker_id":   workerID,
		"geofence_id": session.GeofenceID,
		"source":      session.CheckInLocation.Source,
	}).Info("Worker checked in.")
	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (a *API) CheckOut(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	record, err := a.Tracking.Session(workerID).CheckOut(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"worker_id": workerID,
		"record_id": record.ID,
		"status":    record.Status,
		"minutes":   record.DurationMinutes,
	}).Info("Worker checked out.")
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// CurrentSession returns the open session, or null.
func (a *API) CurrentSession(c *gin.Context) {
	status, err := a.Tracking.Session(middleware.WorkerID(c)).Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status.Session})
}

func (a *API) ListRecords(c *gin.Context) {
	a.listRecords(c, middleware.WorkerID(c))
}

func (a *API) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.Ledger.Metrics(middleware.WorkerID(c))})
}

// WorkerRecords is the admin view of another worker's records.
func (a *API) WorkerRecords(c *gin.Context) {
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	a.listRecords(c, workerID)
}

// WorkerMetrics is the admin view of another worker's metrics.
func (a *API) WorkerMetrics(c *gin.Context) {
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a.Ledger.Metrics(workerID)})
}

// listRecords filters by ?date=, or by ?from=&to= (inclusive), or not at all.
func (a *API) listRecords(c *gin.Context, workerID uint) {
	if raw := c.Query("date"); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, a.location())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": a.Ledger.ForDate(workerID, day)})
		return
	}

	from, to := c.Query("from"), c.Query("to")
	if from == "" && to == "" {
		c.JSON(http.StatusOK, gin.H{"data": a.Ledger.All(workerID)})
		return
	}
	start, errFrom := time.ParseInLocation(dateLayout, from, a.location())
	end, errTo := time.ParseInLocation(dateLayout, to, a.location())
	if errFrom != nil || errTo != nil || end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be YYYY-MM-DD with from <= to"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a.Ledger.Between(workerID, start, end)})
}

func workerParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker ID format."})
		return 0, false
	}
	return uint(id), true
}
