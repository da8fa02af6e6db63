package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account record in the relational store. PasswordHash
// is bcrypt(password+Salt); Salt is derived from the username at creation
// and regenerated on every password change.
type User struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Salt         string          `json:"-"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
