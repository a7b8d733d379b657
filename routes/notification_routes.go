package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/xeiaaa/charity_backend/controllers"
	"github.com/xeiaaa/charity_backend/middleware"
)

// RegisterNotificationRoutes registers all notification-related routes
func RegisterNotificationRoutes(e *echo.Echo, notificationController *controllers.NotificationController) {
	// Internal endpoint for backend business logic; guarded by the internal
	// service token inside the handler, not by a user JWT.
	e.POST("/api/internal/notifications", notificationController.Send)

	// Authenticated user-facing endpoints
	authGroup := e.Group("/api")
	authGroup.Use(middleware.JWTMiddleware())

	authGroup.GET("/notifications", notificationController.List)
	authGroup.PUT("/notifications/read-all", notificationController.MarkAllRead)
	authGroup.PUT("/notifications/:id/read", notificationController.MarkRead)
	authGroup.POST("/users/device-token", notificationController.UpdateDeviceToken)
}
