package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/aitorres/orion/internal/store"
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords and
// stale session tokens. Callers must not distinguish between the causes.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MinPasswordLength matches the minimum the console accepts on password change.
const MinPasswordLength = 8

// Service implements login, logout and password management on top of the
// store, recording an audit event for each state change.
type Service struct {
	store      *store.Store
	sessionTTL time.Duration
}

// NewService creates an auth service. sessionTTL bounds how long a login lasts.
func NewService(st *store.Store, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &Service{store: st, sessionTTL: sessionTTL}
}

// CreateUser registers a console account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, username, password string) (store.User, error) {
	if username == "" {
		return store.User{}, errors.New("username required")
	}
	if len(password) < MinPasswordLength {
		return store.User{}, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, username, string(hash))
}

// Login verifies credentials and opens a session. A successful login is
// recorded in the audit log; a failed one is not.
func (s *Service) Login(ctx context.Context, username, password string) (store.Session, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		log.Warn().Str("username", username).Msg("failed login attempt")
		return store.Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return store.Session{}, err
	}
	sess, err := s.store.CreateSession(ctx, token, user.ID, s.sessionTTL)
	if err != nil {
		return store.Session{}, err
	}
	if _, err := s.store.AppendAudit(ctx, user.ID, store.EventLogin, "User logged in successfully"); err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to record login audit event")
	}
	return sess, nil
}

// Logout closes the session and records the event. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	sess, err := s.store.SessionByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.store.AppendAudit(ctx, sess.UserID, store.EventLogout, "User logged out"); err != nil {
		log.Error().Err(err).Msg("failed to record logout audit event")
	}
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (store.User, error) {
	if token == "" {
		return store.User{}, ErrInvalidCredentials
	}
	sess, err := s.store.SessionByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}
	user, err := s.store.UserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	return user, err
}

// ChangePassword verifies the current password, enforces the minimum length
// and rehashes. Existing sessions stay valid.
func (s *Service) ChangePassword(ctx context.Context, userID, current, updated string) error {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if len(updated) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(updated), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	if _, err := s.store.AppendAudit(ctx, userID, store.EventPasswordChange, "User changed password"); err != nil {
		log.Error().Err(err).Msg("failed to record password change audit event")
	}
	return nil
}

// newToken returns an opaque 256-bit session token.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
