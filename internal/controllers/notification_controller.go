package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geo_attend/internal/middleware"
)

func (a *API) ListNotifications(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	c.JSON(http.StatusOK, gin.H{
		"data":   a.Notifications.List(workerID),
		"unread": a.Notifications.Unread(workerID),
	})
}

func (a *API) MarkNotificationRead(c *gin.Context) {
	if err := a.Notifications.MarkRead(middleware.WorkerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	a.Notifications.MarkAllRead(middleware.WorkerID(c))
	c.Status(http.StatusNoContent)
}

func (a *API) DeleteNotification(c *gin.Context) {
	if err := a.Notifications.Remove(middleware.WorkerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ClearNotifications(c *gin.Context) {
	a.Notifications.Clear(middleware.WorkerID(c))
	c.Status(http.StatusNoContent)
}
