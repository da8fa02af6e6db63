// Package surrealdb implements the session document store over SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

// Compile-time check
var _ interfaces.SessionStore = (*SessionStore)(nil)

// SessionStore keeps one session document per user, keyed by username.
type SessionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSessionStore connects to SurrealDB and ensures the session table exists.
func NewSessionStore(logger *common.Logger, cfg common.SurrealDBConfig) (*SessionStore, error) {
	ctx := context.Background()

	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// SurrealDB v3 errors on querying non-existent tables
	if _, err := surrealdb.Query[any](ctx, db, "DEFINE TABLE IF NOT EXISTS session SCHEMALESS", nil); err != nil {
		return nil, fmt.Errorf("failed to define session table: %w", err)
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB session store initialized")

	return &SessionStore{db: db, logger: logger}, nil
}

// Create writes a fresh empty session document stamping the login time.
// UPSERT makes first login idempotent if a stale document is still around.
func (s *SessionStore) Create(ctx context.Context, username string) error {
	snap := models.NewSessionSnapshot(username)
	snap.LoginAt = time.Now().UTC()

	sql := "UPSERT type::record('session', $id) CONTENT $session"
	vars := map[string]any{"id": username, "session": snap}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.SessionSnapshot](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to create session after retries: %w", err)
		}
	}
	return nil
}

// Load fetches the session snapshot for username.
func (s *SessionStore) Load(ctx context.Context, username string) (*models.SessionSnapshot, error) {
	snap, err := surrealdb.Select[models.SessionSnapshot](ctx, s.db, surrealmodels.NewRecordID("session", username))
	if err != nil {
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	if snap == nil {
		return nil, storage.ErrNoSession
	}
	return snap, nil
}

// Save replaces the content of an existing session document.
func (s *SessionStore) Save(ctx context.Context, snap *models.SessionSnapshot) error {
	sql := "UPDATE type::record('session', $id) CONTENT $session"
	vars := map[string]any{"id": snap.Username, "session": snap}

	for attempt := 1; attempt <= 3; attempt++ {
		results, err := surrealdb.Query[[]models.SessionSnapshot](ctx, s.db, sql, vars)
		if err == nil {
			// UPDATE matches nothing when the record does not exist.
			if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
				return storage.ErrNoSession
			}
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save session after retries: %w", err)
		}
	}
	return nil
}

// Delete removes the session document. Deleting a missing record is not an
// error.
func (s *SessionStore) Delete(ctx context.Context, username string) error {
	_, err := surrealdb.Delete[models.SessionSnapshot](ctx, s.db, surrealmodels.NewRecordID("session", username))
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close terminates the SurrealDB connection.
func (s *SessionStore) Close() error {
	s.db.Close(context.Background())
	return nil
}
