package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aitorres/orion/internal/auth"
	"github.com/aitorres/orion/internal/store"
	"github.com/aitorres/orion/internal/telemetry"
)

const auditPageSize = 50

func (s *Server) routes() {
	s.engine.GET("/health/", s.handleHealthcheck)
	s.engine.GET("/", s.handleLoginPage)
	s.engine.POST("/", s.handleLogin)
	s.engine.GET("/logout/", s.handleLogout)
	s.engine.GET("/metrics", gin.WrapH(telemetry.Handler()))
	if s.cfg.StaticRoot != "" {
		s.engine.Static("/static", s.cfg.StaticRoot)
	}

	authed := s.engine.Group("/", s.requireSession())
	authed.GET("/dashboard/", s.handleDashboard)
	authed.POST("/accounts/:did/:action/", s.handleAccountAction)
	authed.GET("/audit-log/", s.handleAuditLog)
	authed.GET("/change-password/", s.handleChangePasswordPage)
	authed.POST("/change-password/", s.handleChangePassword)
}

// handleHealthcheck reports that the console itself is up.
func (s *Server) handleHealthcheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		if _, err := s.auth.Authenticate(c.Request.Context(), token); err == nil {
			c.Redirect(http.StatusFound, "/dashboard/")
			return
		}
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	sess, err := s.auth.Login(c.Request.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		if wantsJSON(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "Invalid username or password."})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookie(c, sess.Token, int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds()))
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"token": sess.Token})
		return
	}
	c.Redirect(http.StatusFound, "/dashboard/")
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		if err := s.auth.Logout(c.Request.Context(), token); err != nil {
			log.Error().Err(err).Msg("logout failed")
		}
	}
	s.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := s.accounts.Healthy(ctx)
	accounts, err := s.accounts.Accounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load PDS accounts")
		accounts = nil
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"is_service_healthy": healthy,
			"accounts":           accounts,
		})
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"User":      currentUser(c),
		"IsHealthy": healthy,
		"Accounts":  accounts,
	})
}

// handleAccountAction applies a moderation action to a PDS account and
// records it in the audit log.
func (s *Server) handleAccountAction(c *gin.Context) {
	ctx := c.Request.Context()
	did := c.Param("did")
	action := c.Param("action")
	user := currentUser(c)

	var (
		err   error
		event store.Event
	)
	switch action {
	case "takedown":
		event = store.EventTakedown
		err = s.client.Takedown(ctx, did)
	case "untakedown":
		event = store.EventUntakedown
		err = s.client.Untakedown(ctx, did)
	case "delete":
		event = store.EventDelete
		err = s.client.DeleteAccount(ctx, did)
	default:
		if wantsJSON(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown action: %s", action)})
			return
		}
		c.String(http.StatusBadRequest, "unknown action: %s", action)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	description := fmt.Sprintf("Account %s: %s", did, action)
	if _, err := s.store.AppendAudit(ctx, user.ID, event, description); err != nil {
		log.Error().Err(err).Str("did", did).Msg("failed to record account action audit event")
	}
	s.accounts.Invalidate()

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"did": did, "action": action})
		return
	}
	c.Redirect(http.StatusFound, "/dashboard/")
}

func (s *Server) handleAuditLog(c *gin.Context) {
	ctx := c.Request.Context()
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	entries, err := s.store.ListAudit(ctx, auditPageSize, (page-1)*auditPageSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	total, err := s.store.CountAudit(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total, "page": page})
		return
	}
	c.HTML(http.StatusOK, "audit_log.html", gin.H{
		"User":    currentUser(c),
		"Entries": entries,
		"Total":   total,
		"Page":    page,
		"HasNext": page*auditPageSize < total,
		"HasPrev": page > 1,
		"Next":    page + 1,
		"Prev":    page - 1,
	})
}

func (s *Server) handleChangePasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, "change_password.html", gin.H{"User": currentUser(c)})
}

func (s *Server) handleChangePassword(c *gin.Context) {
	user := currentUser(c)
	current := c.PostForm("current_password")
	updated := c.PostForm("new_password")
	confirm := c.PostForm("confirm_password")

	renderError := func(status int, msg string) {
		if wantsJSON(c) {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.HTML(status, "change_password.html", gin.H{"User": user, "Error": msg})
	}

	if updated != confirm {
		renderError(http.StatusBadRequest, "Passwords do not match.")
		return
	}
	err := s.auth.ChangePassword(c.Request.Context(), user.ID, current, updated)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		renderError(http.StatusBadRequest, "Current password is incorrect.")
		return
	case err != nil:
		renderError(http.StatusBadRequest, err.Error())
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"status": "password changed"})
		return
	}
	c.HTML(http.StatusOK, "change_password.html", gin.H{"User": user, "Success": "Password changed."})
}

// setSessionCookie writes or clears the session cookie.
func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetCookie(sessionCookie, token, maxAge, "/", "", false, true)
}

// fail logs the error and answers with a generic 500.
func (s *Server) fail(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	if wantsJSON(c) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.String(http.StatusInternalServerError, "internal error")
}
