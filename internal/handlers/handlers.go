package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// currentActor reads the authenticated caller. It answers 401 itself when the auth
// middleware did not run.
func currentActor(c *gin.Context) (services.Actor, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return services.Actor{}, false
	}
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User role not found")
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, Role: role}, true
}

// idParam reads a UUID path parameter, answering 400 when it is malformed.
func idParam(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		utils.BadRequest(c, "Invalid "+name+" format")
		return "", false
	}
	return raw, true
}

// timeQuery parses an optional RFC 3339 query parameter.
func timeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		utils.BadRequest(c, "Invalid "+name+": expected RFC 3339 time")
		return time.Time{}, false
	}
	return t, true
}
