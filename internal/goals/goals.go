// Package goals stores per-user daily macro targets.
package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
)

const keyPrefix = "goals:"

// Goals are the user's daily macro targets.
type Goals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Service stores and retrieves per-user goals
type Service struct {
	store  kvstore.Store
	logger *slog.Logger
}

// NewService creates a goals service backed by the given store
func NewService(store kvstore.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Get returns the stored goals for the user. Missing, unreadable or corrupt
// records all degrade to "no goals set"; a user without goals is a normal
// state, not an error.
func (s *Service) Get(ctx context.Context, username string) (*Goals, bool) {
	raw, err := s.store.Get(ctx, keyPrefix+username)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to read goals", "username", username, "error", err)
		return nil, false
	}

	var g Goals
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		s.logger.Warn("discarding corrupt goals record", "username", username, "error", err)
		return nil, false
	}
	return &g, true
}

// Save persists the user's goals. Unlike reads, a failed write is surfaced
// so the caller can tell the user their targets were not saved.
func (s *Service) Save(ctx context.Context, username string, g Goals) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}
	if err := s.store.Set(ctx, keyPrefix+username, string(data)); err != nil {
		s.logger.Error("failed to save goals", "username", username, "error", err)
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}
