// Package auth implements login against the user directory sheet and the
// lifecycle of the persisted session record.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DanielRv555/op-calorie-vision/internal/directory"
	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
	"github.com/DanielRv555/op-calorie-vision/internal/sheet"
)

var (
	// ErrInvalidCredentials is returned for an unknown username and for a
	// wrong access code alike, so a failed login reveals nothing about
	// which field was wrong.
	ErrInvalidCredentials = errors.New("invalid username or access code")
	// ErrSubscriptionExpired is returned when the user's subscription window
	// has closed. Unparseable expiry dates count as expired.
	ErrSubscriptionExpired = errors.New("subscription expired")
)

const sessionKeyPrefix = "session:"

// Session is the persisted record of an authenticated user. It is an
// explicit value returned to the caller; nothing in the process holds an
// ambient current user.
type Session struct {
	Token     string           `json:"token"`
	User      directory.Record `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
}

// Service defines the session authority operations
type Service interface {
	Login(ctx context.Context, username, code string) (*Session, error)
	GetSession(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string)
}

type service struct {
	store        kvstore.Store
	sheets       sheet.Fetcher
	directoryURL string
	logger       *slog.Logger

	// Repeated submissions with identical credentials share one directory
	// fetch instead of racing.
	group singleflight.Group

	now func() time.Time
}

// NewService creates a session authority backed by the given store and
// directory sheet.
func NewService(store kvstore.Store, sheets sheet.Fetcher, directoryURL string, logger *slog.Logger) Service {
	return &service{
		store:        store,
		sheets:       sheets,
		directoryURL: directoryURL,
		logger:       logger,
		now:          time.Now,
	}
}

// Login validates the credentials against a freshly fetched directory table
// and persists a new session on success.
func (s *service) Login(ctx context.Context, username, code string) (*Session, error) {
	key := strings.ToLower(strings.TrimSpace(username)) + "\x00" + strings.TrimSpace(code)

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.login(ctx, username, code)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *service) login(ctx context.Context, username, code string) (*Session, error) {
	table, err := s.sheets.Fetch(ctx, s.directoryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user directory: %w", err)
	}

	rec, err := directory.FindUser(table, username)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	if !rec.CodeMatches(code) {
		return nil, ErrInvalidCredentials
	}

	if s.expired(rec.ExpiryDate) {
		return nil, ErrSubscriptionExpired
	}

	sess := &Session{
		Token:     uuid.New().String(),
		User:      rec,
		CreatedAt: s.now(),
	}

	if err := s.persist(ctx, sess); err != nil {
		// Storage trouble must not fail the login; the session simply does
		// not survive past this response.
		s.logger.Error("failed to persist session", "username", rec.Username, "error", err)
	}

	s.logger.Info("user logged in", "username", rec.Username, "vendor", rec.VendorName)
	return sess, nil
}

// GetSession reads the persisted session for the token and re-validates the
// subscription expiry. An expired session is deleted as a side effect so it
// cannot outlive the subscription window between logins. Storage failures
// degrade to "no session".
func (s *service) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := s.store.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to read session", "error", err)
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("discarding corrupt session record", "error", err)
		s.Logout(ctx, token)
		return nil, nil
	}

	if s.expired(sess.User.ExpiryDate) {
		s.logger.Info("session expired", "username", sess.User.Username)
		s.Logout(ctx, token)
		return nil, nil
	}

	return &sess, nil
}

// Logout deletes the persisted session. It is idempotent and never fails
// upward, even when storage is unavailable.
func (s *service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.store.Delete(ctx, sessionKeyPrefix+token); err != nil {
		s.logger.Warn("failed to delete session", "error", err)
	}
}

func (s *service) persist(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.store.Set(ctx, sessionKeyPrefix+sess.Token, string(data))
}

// expired compares the expiry date against today at midnight. The boundary
// is inclusive: a subscription expiring today is still valid. Unparseable
// dates fail closed.
func (s *service) expired(expiryDate string) bool {
	d, err := ParseDMY(expiryDate)
	if err != nil {
		return true
	}
	n := s.now()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
	return d.Before(today)
}
