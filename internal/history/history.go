// Package history keeps each user's logged meals, newest first, capped so a
// long-running account cannot grow its record without bound.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
)

const (
	keyPrefix = "history:"

	// MaxEntries bounds the history per user; the oldest entries fall off.
	MaxEntries = 100
)

// Entry is one logged meal. Either ImageDataURL (inline) or PhotoKey
// (archived in object storage) carries the photo, never both.
type Entry struct {
	ID              string              `json:"id"`
	LoggedAt        time.Time           `json:"logged_at"`
	ImageDataURL    string              `json:"image_data_url,omitempty"`
	PhotoKey        string              `json:"photo_key,omitempty"`
	PhotoURL        string              `json:"photo_url,omitempty"`
	IdentifiedFoods []string            `json:"identified_foods"`
	Nutrition       nutrition.Nutrition `json:"nutrition"`
	MealDescription string              `json:"meal_description,omitempty"`
}

// Service stores per-user meal history
type Service struct {
	store  kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a history service backed by the given store
func NewService(store kvstore.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the user's history, newest first. Missing or corrupt records
// degrade to an empty history.
func (s *Service) List(ctx context.Context, username string) []Entry {
	raw, err := s.store.Get(ctx, keyPrefix+username)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Entry{}
	}
	if err != nil {
		s.logger.Error("failed to read history", "username", username, "error", err)
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("discarding corrupt history record", "username", username, "error", err)
		return []Entry{}
	}
	return entries
}

// Add assigns the entry an ID and timestamp, prepends it and persists the
// capped list. The stored entry is returned.
func (s *Service) Add(ctx context.Context, username string, entry Entry) (Entry, error) {
	entry.ID = uuid.New().String()
	entry.LoggedAt = s.now()

	entries := append([]Entry{entry}, s.List(ctx, username)...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	if err := s.save(ctx, username, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Remove deletes the entry with the given ID. Removing an unknown ID is a
// no-op.
func (s *Service) Remove(ctx context.Context, username, id string) error {
	entries := s.List(ctx, username)
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return s.save(ctx, username, kept)
}

// Clear deletes the user's whole history.
func (s *Service) Clear(ctx context.Context, username string) error {
	if err := s.store.Delete(ctx, keyPrefix+username); err != nil {
		s.logger.Error("failed to clear history", "username", username, "error", err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, username string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.store.Set(ctx, keyPrefix+username, string(data)); err != nil {
		s.logger.Error("failed to save history", "username", username, "error", err)
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
