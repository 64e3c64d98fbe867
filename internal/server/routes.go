package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true, // session cookie
	}))

	r.GET("/health", s.healthHandler)

	api := r.Group("/api")
	{
		api.POST("/login", s.loginHandler)
		api.GET("/session", s.sessionHandler)
		api.POST("/logout", s.logoutHandler)

		authed := api.Group("")
		authed.Use(s.RequireSession())
		{
			authed.GET("/recipes", s.recipesHandler)

			authed.GET("/goals", s.getGoalsHandler)
			authed.PUT("/goals", s.saveGoalsHandler)

			authed.GET("/history", s.listHistoryHandler)
			authed.POST("/history", s.addHistoryHandler)
			authed.DELETE("/history", s.clearHistoryHandler)
			authed.DELETE("/history/:id", s.removeHistoryHandler)

			authed.POST("/analyze/identify", s.identifyHandler)
			authed.POST("/analyze/nutrition", s.analyzeNutritionHandler)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	response := make(map[string]any)

	storeHealth := map[string]string{"status": "up"}
	if err := s.store.Ping(c.Request.Context()); err != nil {
		storeHealth["status"] = "down"
		storeHealth["error"] = err.Error()
	}
	response["store"] = storeHealth

	if s.photos != nil {
		photoHealth := map[string]string{"status": "up"}
		if err := s.photos.Health(c.Request.Context()); err != nil {
			photoHealth["status"] = "down"
			photoHealth["error"] = err.Error()
		}
		response["photos"] = photoHealth
	}

	c.JSON(http.StatusOK, response)
}
