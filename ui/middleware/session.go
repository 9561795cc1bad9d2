package middleware

import (
	"log"
	"net/http"
	"time"

	"epistat/domain/core"

	"github.com/gin-gonic/gin"
)

// SessionKey is the gin context key holding the request's core.SessionID
const SessionKey = "session_id"

// EnsureSession is middleware that gives every browser a session cookie.
// Invalid or missing cookies are replaced with a fresh session ID.
func EnsureSession(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionID core.SessionID
		if raw, err := c.Cookie(cookieName); err == nil {
			if parsed, err := core.ParseSessionID(raw); err == nil {
				sessionID = parsed
			}
		}

		if sessionID == "" {
			sessionID = core.NewSessionID()
			log.Printf("[EnsureSession] Issued session %s", sessionID)
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     cookieName,
			Value:    sessionID.String(),
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(SessionKey, sessionID)
		c.Next()
	}
}

// SessionID returns the session attached by EnsureSession
func SessionID(c *gin.Context) core.SessionID {
	if v, ok := c.Get(SessionKey); ok {
		if id, ok := v.(core.SessionID); ok {
			return id
		}
	}
	return ""
}
