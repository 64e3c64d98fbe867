package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielRv555/op-calorie-vision/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// loginHandler handles POST /api/login
func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.auth.Login(c.Request.Context(), req.Username, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or access code"})
		case errors.Is(err, auth.ErrSubscriptionExpired):
			c.JSON(http.StatusForbidden, gin.H{"error": "subscription expired, contact your trainer"})
		default:
			s.logger.Error("login failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach the user directory"})
		}
		return
	}

	s.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{"user": sess.User})
}

// sessionHandler handles GET /api/session. An absent or expired session is a
// normal answer for the frontend's bootstrap, not an error.
func (s *Server) sessionHandler(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	sess, err := s.auth.GetSession(c.Request.Context(), token)
	if err != nil || sess == nil {
		s.clearSessionCookie(c)
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": sess.User})
}

// logoutHandler handles POST /api/logout. Logout is idempotent; it succeeds
// whether or not a session exists.
func (s *Server) logoutHandler(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		s.auth.Logout(c.Request.Context(), token)
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
