package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielRv555/op-calorie-vision/internal/auth"
)

// SessionCookie is the name of the session cookie
const SessionCookie = "cv_session"

const sessionContextKey = "session"

// RequireSession validates the session cookie on every request. Reading the
// session re-checks the subscription expiry, so a lapsed subscription logs
// the user out on their next request rather than at their next login.
func (s *Server) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized: no session",
			})
			return
		}

		sess, err := s.auth.GetSession(c.Request.Context(), token)
		if err != nil || sess == nil {
			s.clearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized: session expired or invalid",
			})
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// sessionFrom returns the session injected by RequireSession.
func sessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(
		SessionCookie,
		token,
		s.cfg.SessionCookieMaxAge,
		"/",
		"",
		s.cfg.IsProduction(),
		true, // httpOnly
	)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", s.cfg.IsProduction(), true)
}
