// Package interfaces defines service contracts for StockDesk
package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockdeskhq/stockdesk/internal/models"
)

// AccountService manages user credentials
type AccountService interface {
	// Create registers a new account. Usernames must be at least 3
	// characters and passwords at least 6.
	Create(ctx context.Context, username, password string) error

	// Delete removes an account along with its holdings and session.
	Delete(ctx context.Context, username string) error

	// Verify checks a password against the stored salted hash. The bool
	// reports the match; the error covers unknown users and store failures.
	Verify(ctx context.Context, username, password string) (bool, error)

	// UpdatePassword verifies the old password, then re-salts and re-hashes
	// the new one. The change is persisted immediately.
	UpdatePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

// PortfolioService executes portfolio operations for a user. Mutations for
// the same user are serialized; callers never coordinate locking themselves.
type PortfolioService interface {
	// AddStock records qty shares at boughtPrice without touching cash.
	AddStock(ctx context.Context, username, symbol string, qty int64, boughtPrice decimal.Decimal) error

	// RemoveStock drops qty shares without crediting cash.
	RemoveStock(ctx context.Context, username, symbol string, qty int64) error

	// BuyStock purchases qty shares at the live market price, debiting cash.
	BuyStock(ctx context.Context, username, symbol string, qty int64) error

	// SellStock sells qty shares at the live market price, crediting cash.
	SellStock(ctx context.Context, username, symbol string, qty int64) error

	// UpdateCash adds amount (any sign) to the cash balance and returns the
	// new balance. There is no overdraft floor.
	UpdateCash(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)

	// Clear empties all holdings and resets cash to zero.
	Clear(ctx context.Context, username string) error

	// GetPortfolio returns the user's holdings joined with live market data,
	// sorted by symbol.
	GetPortfolio(ctx context.Context, username string) ([]models.EnrichedHolding, error)

	// TotalValues prices every holding and aggregates portfolio worth.
	TotalValues(ctx context.Context, username string) (*models.TotalValues, error)

	// RestoreSession reloads the user's portfolio from their session
	// snapshot at login. First-time logins create an empty session and
	// leave the portfolio untouched.
	RestoreSession(ctx context.Context, username string) error

	// SnapshotSession saves the portfolio into the session document at
	// logout and resets the working portfolio. Fails with
	// storage.ErrNoSession when the user never logged in.
	SnapshotSession(ctx context.Context, username string) error

	// PriceChart renders a PNG line chart of daily closes for symbol over
	// [start, end].
	PriceChart(ctx context.Context, symbol string, start, end time.Time) ([]byte, error)
}
