package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
	"geo_attend/internal/middleware"
)

// GeofenceRoutes lets any worker read geofences; only admins change them.
func GeofenceRoutes(r *gin.Engine, api *controllers.API) {
	fences := r.Group("/geofences")
	fences.Use(api.Auth.RequireAuth())
	{
		fences.GET("", api.ListGeofences)
		fences.GET("/nearest", api.NearestGeofence)
		fences.GET("/geojson", api.GeofencesGeoJSON)
		fences.GET("/:id", api.GetGeofence)
	}

	manage := r.Group("/geofences")
	manage.Use(api.Auth.RequireAuthWithRole(middleware.RoleAdmin))
	{
		manage.POST("", api.CreateGeofence)
		manage.PUT("/:id", api.UpdateGeofence)
		manage.DELETE("/:id", api.DeleteGeofence)
	}
}
