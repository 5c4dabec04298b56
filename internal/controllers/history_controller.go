package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultEventLimit = 100

// WorkerHistoryRecords reads a worker's stored records for ?from=&to=.
func (a *API) WorkerHistoryRecords(c *gin.Context) {
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	start, errFrom := time.ParseInLocation(dateLayout, c.Query("from"), a.location())
	end, errTo := time.ParseInLocation(dateLayout, c.Query("to"), a.location())
	if errFrom != nil || errTo != nil || end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be YYYY-MM-DD with from <= to"})
		return
	}

	records, err := a.History.Records(c.Request.Context(), workerID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// WorkerEvents lists a worker's latest stored geofence transitions.
func (a *API) WorkerEvents(c *gin.Context) {
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	evs, err := a.History.Events(c.Request.Context(), workerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": evs})
}

// WorkerTrail returns a worker's stored positions since ?since= (RFC 3339),
// defaulting to the last 24 hours.
func (a *API) WorkerTrail(c *gin.Context) {
	workerID, ok := workerParam(c)
	if !ok {
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = t
	}

	trail, err := a.History.LocationTrail(c.Request.Context(), workerID, since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trail})
}
