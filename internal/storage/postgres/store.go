// Package postgres implements the relational store for user accounts and
// portfolio holdings over a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

// Compile-time checks
var (
	_ interfaces.UserStore      = (*Store)(nil)
	_ interfaces.PortfolioStore = (*Store)(nil)
)

// uniqueViolation is the Postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and holdings.
type Store struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewStore connects to Postgres and runs migrations.
func NewStore(ctx context.Context, logger *common.Logger, cfg common.PostgresConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().Str("database", poolCfg.ConnConfig.Database).Msg("Postgres store initialized")
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			cash_balance NUMERIC(18,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS holdings (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			avg_price NUMERIC(18,4) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, symbol)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row and fills in the generated fields.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (username, password_hash, salt, cash_balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, user.Username, user.PasswordHash, user.Salt, user.CashBalance).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser fetches a user row by username.
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id, username, password_hash, salt, cash_balance, created_at, updated_at
		FROM users
		WHERE username = $1`

	var user models.User
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Salt,
		&user.CashBalance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// UpdateCredentials replaces the stored salt and password hash.
func (s *Store) UpdateCredentials(ctx context.Context, username, passwordHash, salt string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, salt = $3, updated_at = NOW()
		WHERE username = $1`

	tag, err := s.pool.Exec(ctx, query, username, passwordHash, salt)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser removes a user row; holdings go with it via ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListUsernames returns all usernames in ascending order.
func (s *Store) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

// GetPortfolio loads the user's cash balance and holdings.
func (s *Store) GetPortfolio(ctx context.Context, username string) (*models.Portfolio, error) {
	p := models.NewPortfolio(username)

	var userID int64
	err := s.pool.QueryRow(ctx, `SELECT id, cash_balance FROM users WHERE username = $1`, username).
		Scan(&userID, &p.Cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select cash balance: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT symbol, quantity, avg_price FROM holdings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		p.Holdings[h.Symbol] = &h
	}
	return p, rows.Err()
}

// ReplacePortfolio persists the portfolio in one transaction: the user row
// is locked, cash updated, and holdings replaced wholesale. A crash mid-way
// can never leave a torn portfolio behind.
func (s *Store) ReplacePortfolio(ctx context.Context, p *models.Portfolio) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1 FOR UPDATE`, p.Username).
		Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock user row: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET cash_balance = $2, updated_at = NOW() WHERE id = $1`,
		userID, p.Cash); err != nil {
		return fmt.Errorf("update cash balance: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}

	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]
		if _, err := tx.Exec(ctx,
			`INSERT INTO holdings (user_id, symbol, quantity, avg_price) VALUES ($1, $2, $3, $4)`,
			userID, h.Symbol, h.Quantity, h.AvgPrice); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug().
		Str("username", p.Username).
		Int("holdings", len(p.Holdings)).
		Str("cash", p.Cash.String()).
		Msg("Portfolio persisted")
	return nil
}
