package controllers

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xeiaaa/charity_backend/middleware"
	"github.com/xeiaaa/charity_backend/models"
	"github.com/xeiaaa/charity_backend/repositories"
	"github.com/xeiaaa/charity_backend/services"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type NotificationController struct {
	repo     *repositories.NotificationRepository
	users    *repositories.UserRepository
	notifier *services.Notifier
}

func NewNotificationController(repo *repositories.NotificationRepository, users *repositories.UserRepository, notifier *services.Notifier) *NotificationController {
	return &NotificationController{repo: repo, users: users, notifier: notifier}
}

// SendNotificationRequest is the body of the internal notify endpoint called
// by backend business logic (donation processed, invitation accepted, ...).
type SendNotificationRequest struct {
	UserID string                 `json:"userId" validate:"required"`
	Type   string                 `json:"type" validate:"required"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// DeviceTokenRequest carries an FCM token registration.
type DeviceTokenRequest struct {
	FCMToken string `json:"fcmToken" validate:"required"`
}

// List handles GET /api/notifications. Returns one newest-first page plus
// pagination metadata and the unread count; clients use the first page to
// seed their session cache.
func (nc *NotificationController) List(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	result, err := nc.repo.ListPage(c.Request().Context(), userID, page, pageSize)
	if err != nil {
		c.Logger().Errorf("notification listing failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
	}
	return c.JSON(http.StatusOK, result)
}

// MarkRead handles PUT /api/notifications/:id/read. After the flip the
// recomputed unread count is republished on the user's channel so connected
// clients reconcile.
func (nc *NotificationController) MarkRead(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	err := nc.repo.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "notification not found"})
		}
		c.Logger().Errorf("mark read failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update notification"})
	}

	nc.notifier.PublishUnreadCount(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, models.Response{Status: http.StatusOK, Message: "Notification marked as read"})
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (nc *NotificationController) MarkAllRead(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	updated, err := nc.repo.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("mark all read failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update notifications"})
	}

	nc.notifier.PublishUnreadCount(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "All notifications marked as read",
		Data:    map[string]int64{"updated": updated},
	})
}

// Send handles POST /api/internal/notifications, the entry point for backend
// business logic. Guarded by the internal service token rather than a user
// JWT.
func (nc *NotificationController) Send(c echo.Context) error {
	token := os.Getenv("INTERNAL_API_TOKEN")
	provided := c.Request().Header.Get("X-Internal-Token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid internal token"})
	}

	var req SendNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing required fields"})
	}
	if !models.KnownType(req.Type) {
		// Accepted anyway: clients render unknown types with the fallback
		// template, which keeps old clients working against newer emitters.
		c.Logger().Warnf("notification with unrecognized type %q for user %s", req.Type, req.UserID)
	}

	notification, err := nc.notifier.Notify(c.Request().Context(), req.UserID, req.Type, req.Data)
	if err != nil {
		c.Logger().Errorf("notification create failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create notification"})
	}

	return c.JSON(http.StatusCreated, notification)
}

// UpdateDeviceToken handles POST /api/users/device-token, storing the FCM
// token push delivery targets.
func (nc *NotificationController) UpdateDeviceToken(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var req DeviceTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing required fields"})
	}

	if err := nc.users.UpdateFCMToken(c.Request().Context(), userID, req.FCMToken); err != nil {
		c.Logger().Errorf("device token update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update device token"})
	}

	return c.JSON(http.StatusOK, models.Response{Status: http.StatusOK, Message: "Device token updated"})
}
