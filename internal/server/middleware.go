package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aitorres/orion/internal/auth"
	"github.com/aitorres/orion/internal/store"
	"github.com/aitorres/orion/internal/telemetry"
)

// sessionCookie is the name of the browser session cookie.
const sessionCookie = "orion_session"

// userKey is the gin context key the session middleware stores the user under.
const userKey = "orion.user"

// requestLogger records each request in zerolog and telemetry.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		telemetry.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), duration)

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}
}

// requireSession resolves the session cookie to a user or sends the caller to
// the login page. API clients get a 401 instead of a redirect.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(sessionCookie)
		user, err := s.auth.Authenticate(c.Request.Context(), token)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		if err != nil {
			log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("session lookup failed")
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			c.String(http.StatusInternalServerError, "internal error")
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// currentUser returns the user the session middleware resolved.
func currentUser(c *gin.Context) store.User {
	user, _ := c.Get(userKey)
	u, _ := user.(store.User)
	return u
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
