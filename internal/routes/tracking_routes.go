package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
)

func TrackingRoutes(r *gin.Engine, api *controllers.API) {
	tracking := r.Group("/tracking")
	tracking.Use(api.Auth.RequireAuth())
	{
		tracking.POST("/start", api.StartTracking)
		tracking.POST("/stop", api.StopTracking)
		tracking.GET("/status", api.TrackingStatus)
		tracking.PUT("/geofence", api.SetActiveGeofence)
	}
}
