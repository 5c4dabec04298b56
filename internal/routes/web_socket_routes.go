package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
)

// WebSocketRoutes take the token as a query parameter.
func WebSocketRoutes(r *gin.Engine, api *controllers.API) {
	ws := r.Group("/ws")
	ws.Use(api.Auth.RequireAuth())
	{
		ws.GET("/device", api.DeviceSocket)
		ws.GET("/events", api.EventsSocket)
	}
}
