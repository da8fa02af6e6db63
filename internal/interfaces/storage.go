// Package interfaces defines service contracts for StockDesk
package interfaces

import (
	"context"

	"github.com/stockdeskhq/stockdesk/internal/models"
)

// UserStore manages account records in the relational store.
type UserStore interface {
	// CreateUser inserts a new account. Fails with storage.ErrAlreadyExists
	// when the username is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser fetches an account by username. Fails with storage.ErrNotFound.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// UpdateCredentials replaces the stored salt and password hash.
	UpdateCredentials(ctx context.Context, username, passwordHash, salt string) error

	// DeleteUser removes the account and, via cascade, its holdings.
	DeleteUser(ctx context.Context, username string) error

	// ListUsernames returns all usernames in ascending order.
	ListUsernames(ctx context.Context) ([]string, error)
}

// PortfolioStore manages holdings and cash in the relational store.
type PortfolioStore interface {
	// GetPortfolio loads the user's holdings and cash balance. Fails with
	// storage.ErrNotFound for unknown users.
	GetPortfolio(ctx context.Context, username string) (*models.Portfolio, error)

	// ReplacePortfolio persists the portfolio atomically: holdings are
	// replaced wholesale and the cash balance updated in one transaction.
	ReplacePortfolio(ctx context.Context, p *models.Portfolio) error
}

// SessionStore manages portfolio snapshots in the document store.
type SessionStore interface {
	// Create inserts an empty session document for username, stamping the
	// login time. Used on a user's first login.
	Create(ctx context.Context, username string) error

	// Load fetches the user's session snapshot. Fails with
	// storage.ErrNoSession when the user has never logged in.
	Load(ctx context.Context, username string) (*models.SessionSnapshot, error)

	// Save updates an existing session document. Fails with
	// storage.ErrNoSession when no document exists.
	Save(ctx context.Context, snap *models.SessionSnapshot) error

	// Delete removes the session document if present.
	Delete(ctx context.Context, username string) error
}
