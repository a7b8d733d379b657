package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/xeiaaa/charity_backend/controllers"
	"github.com/xeiaaa/charity_backend/middleware"
	"github.com/xeiaaa/charity_backend/realtime"
)

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, hub *realtime.Hub, channelAuthController *controllers.ChannelAuthController, notificationController *controllers.NotificationController) {
	// Websocket endpoint. The socket itself is open; every channel requires
	// the signed subscribe handshake.
	e.GET("/api/realtime/ws", func(c echo.Context) error {
		return realtime.HandleWebSocket(c, hub)
	})

	// Channel authorization requires a resolved caller identity.
	authGroup := e.Group("/api/realtime")
	authGroup.Use(middleware.JWTMiddleware())
	authGroup.POST("/auth", channelAuthController.Authorize)

	RegisterNotificationRoutes(e, notificationController)
}
