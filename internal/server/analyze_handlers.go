package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielRv555/op-calorie-vision/internal/imaging"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
)

// readUploadedImage pulls the "image" part out of the multipart form and
// normalizes it to the configured bound before inference.
func (s *Server) readUploadedImage(c *gin.Context) (*imaging.Normalized, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image upload"})
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image upload"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image upload"})
		return nil, false
	}

	normalized, err := imaging.Normalize(data, s.cfg.ImageBound, s.cfg.ImageBound)
	if errors.Is(err, imaging.ErrImageRead) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is empty or unreadable"})
		return nil, false
	}
	if err != nil {
		s.logger.Error("image normalization failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process image"})
		return nil, false
	}

	return normalized, true
}

// identifyHandler handles POST /api/analyze/identify: multipart image plus
// an optional free-text description, answered with the identified food list
// and the normalized image for display and history.
func (s *Server) identifyHandler(c *gin.Context) {
	normalized, ok := s.readUploadedImage(c)
	if !ok {
		return
	}
	description := c.PostForm("description")

	foods, err := s.analyzer.IdentifyFoods(c.Request.Context(), normalized.Bytes, normalized.ContentType, description)
	if err != nil {
		s.logger.Error("food identification failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not identify foods in the image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"foods": foods,
		"image": gin.H{
			"data_url": normalized.DataURL,
			"width":    normalized.Width,
			"height":   normalized.Height,
		},
	})
}

// analyzeNutritionHandler handles POST /api/analyze/nutrition: multipart
// image, the confirmed food list as a JSON-encoded "foods" field, and an
// optional description.
func (s *Server) analyzeNutritionHandler(c *gin.Context) {
	normalized, ok := s.readUploadedImage(c)
	if !ok {
		return
	}

	var foods []string
	if raw := c.PostForm("foods"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &foods); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid foods field: %v", err)})
			return
		}
	}
	if len(foods) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "foods list is required"})
		return
	}
	description := c.PostForm("description")

	info, err := s.analyzer.AnalyzeNutrition(c.Request.Context(), normalized.Bytes, normalized.ContentType, foods, description)
	if err != nil {
		if errors.Is(err, nutrition.ErrBadResponse) {
			s.logger.Error("nutrition response rejected", "error", err)
		} else {
			s.logger.Error("nutrition analysis failed", "error", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not analyze the meal's nutrition"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nutrition": info})
}
