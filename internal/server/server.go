// Package server wires the HTTP API the frontend talks to.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielRv555/op-calorie-vision/internal/auth"
	"github.com/DanielRv555/op-calorie-vision/internal/config"
	"github.com/DanielRv555/op-calorie-vision/internal/goals"
	"github.com/DanielRv555/op-calorie-vision/internal/history"
	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
	"github.com/DanielRv555/op-calorie-vision/internal/photos"
	"github.com/DanielRv555/op-calorie-vision/internal/recipes"
)

// Analyzer is the slice of the inference client the handlers need.
type Analyzer interface {
	IdentifyFoods(ctx context.Context, imageData []byte, mimeType, description string) ([]string, error)
	AnalyzeNutrition(ctx context.Context, imageData []byte, mimeType string, foods []string, description string) (nutrition.Nutrition, error)
}

// Server holds the dependencies for the HTTP API
type Server struct {
	cfg      *config.Config
	auth     auth.Service
	recipes  *recipes.Service
	goals    *goals.Service
	history  *history.Service
	analyzer Analyzer
	photos   photos.Service // nil when the photo archive is disabled
	store    kvstore.Store
	logger   *slog.Logger
}

// Deps bundles the services the server depends on
type Deps struct {
	Auth     auth.Service
	Recipes  *recipes.Service
	Goals    *goals.Service
	History  *history.Service
	Analyzer Analyzer
	Photos   photos.Service
	Store    kvstore.Store
	Logger   *slog.Logger
}

// New creates and configures the HTTP server
func New(cfg *config.Config, deps Deps) *http.Server {
	s := &Server{
		cfg:      cfg,
		auth:     deps.Auth,
		recipes:  deps.Recipes,
		goals:    deps.Goals,
		history:  deps.History,
		analyzer: deps.Analyzer,
		photos:   deps.Photos,
		store:    deps.Store,
		logger:   deps.Logger,
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
