// Package account provides user credential management services
package account

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/models"
)

// Service implements AccountService
type Service struct {
	users    interfaces.UserStore
	sessions interfaces.SessionStore
	logger   *common.Logger
}

// NewService creates a new account service
func NewService(users interfaces.UserStore, sessions interfaces.SessionStore, logger *common.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// generateSalt derives a per-user salt from the username. Bcrypt output is
// 60 characters; the salt keeps the first 32.
func generateSalt(username string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(username), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := string(hash)
	if len(salt) > 32 {
		salt = salt[:32]
	}
	return salt, nil
}

// saltedPassword appends the salt and truncates to 72 bytes, the most
// bcrypt will read. Longer input makes GenerateFromPassword error outright.
func saltedPassword(password, salt string) []byte {
	combined := []byte(password + salt)
	if len(combined) > 72 {
		combined = combined[:72]
	}
	return combined
}

func hashPassword(password, salt string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(saltedPassword(password, salt), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Create registers a new user with a zero cash balance.
func (s *Service) Create(ctx context.Context, username, password string) error {
	if len(username) < 3 {
		return models.NewValidationError("Username must be at least 3 characters long")
	}
	if len(password) < 6 {
		return models.NewValidationError("Password must be at least 6 characters long")
	}

	salt, err := generateSalt(username)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password, salt)
	if err != nil {
		return err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		CashBalance:  decimal.Zero,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Info().Str("username", username).Msg("User created")
	return nil
}

// Delete removes the user row (holdings cascade) and the session document.
func (s *Service) Delete(ctx context.Context, username string) error {
	if err := s.users.DeleteUser(ctx, username); err != nil {
		return err
	}

	// The session document lives in a different store, so no cascade.
	if err := s.sessions.Delete(ctx, username); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("Failed to delete session document")
	}

	s.logger.Info().Str("username", username).Msg("User deleted")
	return nil
}

// Verify checks a password against the stored salted hash.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), saltedPassword(password, user.Salt)); err != nil {
		return false, nil
	}
	return true, nil
}

// UpdatePassword verifies the old password, then re-salts and re-hashes the
// new one.
func (s *Service) UpdatePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return models.NewValidationError("New password must be at least 6 characters long")
	}

	ok, err := s.Verify(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCredentials
	}

	salt, err := generateSalt(username)
	if err != nil {
		return err
	}
	hash, err := hashPassword(newPassword, salt)
	if err != nil {
		return err
	}

	if err := s.users.UpdateCredentials(ctx, username, hash, salt); err != nil {
		return err
	}

	s.logger.Info().Str("username", username).Msg("Password updated")
	return nil
}

// Compile-time check
var _ interfaces.AccountService = (*Service)(nil)
