package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
)

func AttendanceRoutes(r *gin.Engine, api *controllers.API) {
	attendance := r.Group("/attendance")
	attendance.Use(api.Auth.RequireAuth())
	{
		attendance.POST("/check-in", api.CheckIn)
		attendance.POST("/check-out", api.CheckOut)
		attendance.GET("/session", api.CurrentSession)
		attendance.GET("/records", api.ListRecords)
		attendance.GET("/metrics", api.Metrics)
	}
}
