package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
	"geo_attend/internal/middleware"
)

func AdminRoutes(r *gin.Engine, api *controllers.API) {
	admin := r.Group("/admin")
	admin.Use(api.Auth.RequireAuthWithRole(middleware.RoleAdmin))
	{
		admin.GET("/workers", api.ListWorkers)
		admin.GET("/workers/:id/records", api.WorkerRecords)
		admin.GET("/workers/:id/metrics", api.WorkerMetrics)
		admin.GET("/workers/:id/history", api.WorkerHistoryRecords)
		admin.GET("/workers/:id/events", api.WorkerEvents)
		admin.GET("/workers/:id/trail", api.WorkerTrail)
	}
}
