package models

import "errors"

// Error categories returned by portfolio and account operations. Handlers
// match these with errors.Is to pick a status code; Error() strings are the
// user-facing messages and flow into responses unmodified.
var (
	ErrInvalidQuantity    = errors.New("Quantity must be greater than 0.")
	ErrInvalidPrice       = errors.New("Price cannot be negative.")
	ErrInsufficientFunds  = errors.New("Insufficient funds to buy the stock.")
	ErrInsufficientShares = errors.New("Not enough shares to sell.")
	ErrUnknownHolding     = errors.New("stock does not exist in holdings")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("invalid input")
)

// Market data error categories. The vendor reports most failures inside a
// 200 response body; the client maps them onto these.
var (
	ErrInvalidSymbol        = errors.New("invalid stock symbol")
	ErrNoHistoricalData     = errors.New("no historical data")
	ErrRateLimited          = errors.New("API rate limit reached. Please try again later.")
	ErrSubscriptionRequired = errors.New("This endpoint requires a premium API subscription.")
)

// domainError carries an operation-specific message while staying matchable
// against its category sentinel via errors.Is.
type domainError struct {
	category error
	msg      string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.category }

// NewValidationError returns a 400-class error with a caller-supplied
// user-facing message.
func NewValidationError(msg string) error {
	return &domainError{category: ErrValidation, msg: msg}
}

// NewMarketError attaches a symbol-specific message to a market error
// category.
func NewMarketError(category error, msg string) error {
	return &domainError{category: category, msg: msg}
}
