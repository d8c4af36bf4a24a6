package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"artisan-market/internal/services"
)

const SessionHeader = "X-Session-ID"

// sessionID identifies the caller's cart: the X-Session-ID header, then the
// session_id query parameter, then the shared guest session.
func sessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Query("session_id")); id != "" {
		return id
	}
	return services.DefaultSessionID
}
