package middleware

import (
	"net/http"
	"time"

	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookieName names the anonymous session cookie
	SessionCookieName = "fs_session"
	// SessionIDKey is the gin context key holding the session ID
	SessionIDKey = "session_id"
)

// SessionConfig configures the anonymous session cookie
type SessionConfig struct {
	TTL    time.Duration
	Secure bool
	Path   string
}

// Session issues an anonymous session cookie on first visit and refreshes it after.
// The cookie only keys estimator state; it carries no identity.
func Session(cfg SessionConfig) gin.HandlerFunc {
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || !validSessionID(id) {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, id, int(cfg.TTL.Seconds()), cfg.Path, "", cfg.Secure, true)

		c.Set(SessionIDKey, id)
		c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), id))

		c.Next()
	}
}

// GetSessionID returns the session ID set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
