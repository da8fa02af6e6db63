package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

// --- JWT helpers ---

// signJWT creates a signed HMAC-SHA256 JWT for the given username.
func signJWT(username string, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"iss": "stockdesk-server",
		"iat": now.Unix(),
		"exp": now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// --- Account handlers ---

// handleCreateUser handles POST /api/create-user.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Invalid input, both username and password are required")
		return
	}

	if err := s.app.AccountService.Create(r.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrAlreadyExists):
			WriteError(w, http.StatusConflict, fmt.Sprintf("Username '%s' already exists", req.Username))
		default:
			s.logger.Error().Err(err).Str("username", req.Username).Msg("Failed to add user")
			WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":   "user added",
		"username": req.Username,
	})
}

// handleDeleteUser handles DELETE /api/delete-user.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" {
		WriteError(w, http.StatusBadRequest, "Invalid input, username is required")
		return
	}

	if err := s.app.AccountService.Delete(r.Context(), req.Username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("User '%s' not found", req.Username))
			return
		}
		s.logger.Error().Err(err).Str("username", req.Username).Msg("Failed to delete user")
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "user deleted",
		"username": req.Username,
	})
}

// handleLogin handles POST /api/login. On success the user's portfolio is
// restored from their session snapshot and a signed JWT is returned.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request payload. 'username' and 'password' are required.")
		return
	}

	ctx := r.Context()

	ok, err := s.app.AccountService.Verify(ctx, req.Username, req.Password)
	if err != nil {
		// Unknown users get the same answer as wrong passwords.
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusUnauthorized, "Invalid username or password.")
			return
		}
		s.logger.Error().Err(err).Str("username", req.Username).Msg("Error during login")
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if !ok {
		s.logger.Warn().Str("username", req.Username).Msg("Login failed")
		WriteError(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	if err := s.app.PortfolioService.RestoreSession(ctx, req.Username); err != nil {
		s.logger.Error().Err(err).Str("username", req.Username).Msg("Failed to restore session")
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	token, err := signJWT(req.Username, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign JWT for login")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	s.logger.Info().Str("username", req.Username).Msg("User logged in")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("User %s logged in successfully.", req.Username),
		"token":   token,
	})
}

// handleLogout handles POST /api/logout (authenticated). The active portfolio
// is snapshotted into the session document and then reset.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.app.PortfolioService.SnapshotSession(r.Context(), username); err != nil {
		if errors.Is(err, storage.ErrNoSession) {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("No session found for user '%s'", username))
			return
		}
		s.logger.Error().Err(err).Str("username", username).Msg("Error during logout")
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	s.logger.Info().Str("username", username).Msg("User logged out")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("User %s logged out successfully.", username),
	})
}

// handleUpdatePassword handles POST /api/update-password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Username    string `json:"username"`
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.OldPassword == "" || req.NewPassword == "" {
		WriteError(w, http.StatusBadRequest, "Username, old_password, and new_password are required")
		return
	}

	err := s.app.AccountService.UpdatePassword(r.Context(), req.Username, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			s.logger.Warn().Str("username", req.Username).Msg("Old password verification failed")
			WriteError(w, http.StatusUnauthorized, "Old password is incorrect")
		case errors.Is(err, models.ErrValidation):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			WriteError(w, http.StatusNotFound, fmt.Sprintf("User '%s' not found", req.Username))
		default:
			s.logger.Error().Err(err).Str("username", req.Username).Msg("Unexpected error during password update")
			WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Password updated successfully",
	})
}
