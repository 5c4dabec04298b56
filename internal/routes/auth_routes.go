package routes

import (
	"github.com/gin-gonic/gin"

	"geo_attend/internal/controllers"
)

func AuthRoutes(r *gin.Engine, api *controllers.API) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", api.SignupWorker)
		auth.POST("/login", api.LoginWorker)
	}
}
