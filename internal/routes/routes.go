package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/controllers"
	"geo_attend/internal/middleware"
)

func SetupRouter(api *controllers.API) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		ginlog.SetLogger(
			ginlog.WithWriter(logrus.StandardLogger().Writer()),
			ginlog.WithSkipPath([]string{"/health"}),
			ginlog.WithUTC(true),
		),
		middleware.CORS(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AuthRoutes(r, api)
	GeofenceRoutes(r, api)
	TrackingRoutes(r, api)
	AttendanceRoutes(r, api)
	NotificationRoutes(r, api)
	AdminRoutes(r, api)
	WebSocketRoutes(r, api)

	return r
}
