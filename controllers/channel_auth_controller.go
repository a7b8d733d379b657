package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xeiaaa/charity_backend/middleware"
	"github.com/xeiaaa/charity_backend/services"
)

// ChannelAuthController serves the subscription-authorization endpoint the
// realtime clients call before subscribing to their private channel.
type ChannelAuthController struct {
	authorizer *services.ChannelAuthorizer
}

func NewChannelAuthController(authorizer *services.ChannelAuthorizer) *ChannelAuthController {
	return &ChannelAuthController{authorizer: authorizer}
}

// Authorize handles POST /api/realtime/auth. The request is form-encoded
// (socket_id, channel_name); the caller identity comes from the verified JWT
// only. Responds with the signed payload, or {"error": ...} with 400/401/403/
// 500 per the failure class. Stateless and safe to retry.
func (cc *ChannelAuthController) Authorize(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	socketID := c.FormValue("socket_id")
	channel := c.FormValue("channel_name")

	auth, err := cc.authorizer.Authorize(userID, socketID, channel)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidChannelFormat), errors.Is(err, services.ErrInvalidSocketID):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, services.ErrForbiddenChannelAccess):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		default:
			// Covers ErrServiceUnavailable and anything unexpected. The
			// sentinel messages carry no key material.
			c.Logger().Errorf("channel authorization unavailable: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": services.ErrServiceUnavailable.Error()})
		}
	}

	return c.JSON(http.StatusOK, auth)
}
