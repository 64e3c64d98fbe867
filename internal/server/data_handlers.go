package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/DanielRv555/op-calorie-vision/internal/goals"
	"github.com/DanielRv555/op-calorie-vision/internal/history"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
)

// recipesHandler handles GET /api/recipes
func (s *Server) recipesHandler(c *gin.Context) {
	catalog, err := s.recipes.Catalog(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load recipe catalog", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not load recipes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": catalog})
}

// getGoalsHandler handles GET /api/goals
func (s *Server) getGoalsHandler(c *gin.Context) {
	sess := sessionFrom(c)
	g, ok := s.goals.Get(c.Request.Context(), sess.User.Username)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"goals": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": g})
}

// saveGoalsHandler handles PUT /api/goals
func (s *Server) saveGoalsHandler(c *gin.Context) {
	sess := sessionFrom(c)

	var g goals.Goals
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.goals.Save(c.Request.Context(), sess.User.Username, g); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not save goals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": g})
}

// listHistoryHandler handles GET /api/history
func (s *Server) listHistoryHandler(c *gin.Context) {
	sess := sessionFrom(c)
	entries := s.history.List(c.Request.Context(), sess.User.Username)

	if s.photos != nil {
		for i := range entries {
			if entries[i].PhotoKey == "" {
				continue
			}
			url, err := s.photos.DownloadURL(c.Request.Context(), entries[i].PhotoKey)
			if err != nil {
				s.logger.Warn("failed to presign photo", "key", entries[i].PhotoKey, "error", err)
				continue
			}
			entries[i].PhotoURL = url
		}
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

type addHistoryRequest struct {
	ImageDataURL    string              `json:"image_data_url"`
	IdentifiedFoods []string            `json:"identified_foods" binding:"required"`
	Nutrition       nutrition.Nutrition `json:"nutrition"`
	MealDescription string              `json:"meal_description"`
}

// addHistoryHandler handles POST /api/history. With the photo archive
// enabled the inline image is offloaded to object storage and the entry
// keeps only the key.
func (s *Server) addHistoryHandler(c *gin.Context) {
	sess := sessionFrom(c)

	var req addHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := history.Entry{
		ImageDataURL:    req.ImageDataURL,
		IdentifiedFoods: req.IdentifiedFoods,
		Nutrition:       req.Nutrition,
		MealDescription: req.MealDescription,
	}

	if s.photos != nil && req.ImageDataURL != "" {
		contentType, data, err := parseDataURL(req.ImageDataURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid image data URL: %v", err)})
			return
		}

		key := fmt.Sprintf("meals/%s%s", uuid.New().String(), extensionFor(contentType))
		if err := s.photos.Store(c.Request.Context(), key, data, contentType); err != nil {
			// The archive being down must not lose the meal; keep the
			// photo inline instead.
			s.logger.Warn("photo archive unavailable, keeping photo inline", "error", err)
		} else {
			entry.PhotoKey = key
			entry.ImageDataURL = ""
		}
	}

	saved, err := s.history.Add(c.Request.Context(), sess.User.Username, entry)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not save history entry"})
		return
	}

	if s.photos != nil && saved.PhotoKey != "" {
		if url, err := s.photos.DownloadURL(c.Request.Context(), saved.PhotoKey); err == nil {
			saved.PhotoURL = url
		}
	}

	c.JSON(http.StatusCreated, gin.H{"entry": saved})
}

// clearHistoryHandler handles DELETE /api/history
func (s *Server) clearHistoryHandler(c *gin.Context) {
	sess := sessionFrom(c)

	if err := s.history.Clear(c.Request.Context(), sess.User.Username); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "history cleared"})
}

// removeHistoryHandler handles DELETE /api/history/:id
func (s *Server) removeHistoryHandler(c *gin.Context) {
	sess := sessionFrom(c)
	id := c.Param("id")

	if s.photos != nil {
		for _, e := range s.history.List(c.Request.Context(), sess.User.Username) {
			if e.ID == id && e.PhotoKey != "" {
				if err := s.photos.Delete(c.Request.Context(), e.PhotoKey); err != nil {
					s.logger.Warn("failed to delete archived photo", "key", e.PhotoKey, "error", err)
				}
				break
			}
		}
	}

	if err := s.history.Remove(c.Request.Context(), sess.User.Username, id); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not remove history entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "entry removed"})
}

// parseDataURL splits a base64 data URL into its content type and payload.
func parseDataURL(s string) (string, []byte, error) {
	const scheme = "data:"
	if !strings.HasPrefix(s, scheme) {
		return "", nil, fmt.Errorf("not a data URL")
	}

	meta, payload, found := strings.Cut(s[len(scheme):], ",")
	if !found {
		return "", nil, fmt.Errorf("missing payload")
	}

	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("only base64 data URLs are supported")
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return contentType, data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
