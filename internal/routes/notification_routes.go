package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
)

func NotificationRoutes(r *gin.Engine, api *controllers.API) {
	notifications := r.Group("/notifications")
	notifications.Use(api.Auth.RequireAuth())
	{
		notifications.GET("", api.ListNotifications)
		notifications.POST("/read", api.MarkAllNotificationsRead)
		notifications.POST("/:id/read", api.MarkNotificationRead)
		notifications.DELETE("/:id", api.DeleteNotification)
		notifications.DELETE("", api.ClearNotifications)
	}
}
