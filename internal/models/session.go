package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SessionHolding is a persisted position inside a session snapshot. The
// price is stored as a string so the document codec round-trips it exactly.
type SessionHolding struct {
	Quantity int64  `json:"quantity"`
	AvgPrice string `json:"avg_price"`
}

// SessionSnapshot is the document-store copy of a user's portfolio, captured
// at logout and restored at the next login. A user has at most one snapshot,
// created on first login; its content is superseded on each logout.
type SessionSnapshot struct {
	Username string                    `json:"username"`
	Holdings map[string]SessionHolding `json:"holdings"`
	Cash     string                    `json:"cash_balance"`
	LoginAt  time.Time                 `json:"login_at"`
	LogoutAt time.Time                 `json:"logout_at"`
}

// NewSessionSnapshot returns an empty snapshot for username.
func NewSessionSnapshot(username string) *SessionSnapshot {
	return &SessionSnapshot{
		Username: username,
		Holdings: make(map[string]SessionHolding),
		Cash:     decimal.Zero.String(),
	}
}

// Capture overwrites the snapshot's portfolio content with p.
func (s *SessionSnapshot) Capture(p *Portfolio) {
	s.Holdings = make(map[string]SessionHolding, len(p.Holdings))
	for symbol, h := range p.Holdings {
		s.Holdings[symbol] = SessionHolding{Quantity: h.Quantity, AvgPrice: h.AvgPrice.String()}
	}
	s.Cash = p.Cash.String()
}

// Portfolio rebuilds the working portfolio recorded in the snapshot.
func (s *SessionSnapshot) Portfolio() (*Portfolio, error) {
	p := NewPortfolio(s.Username)
	if s.Cash != "" {
		cash, err := decimal.NewFromString(s.Cash)
		if err != nil {
			return nil, fmt.Errorf("invalid cash balance %q in session for %s: %w", s.Cash, s.Username, err)
		}
		p.Cash = cash
	}
	for symbol, h := range s.Holdings {
		avg, err := decimal.NewFromString(h.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid avg price %q for %s in session for %s: %w", h.AvgPrice, symbol, s.Username, err)
		}
		p.Holdings[symbol] = &Holding{Symbol: symbol, Quantity: h.Quantity, AvgPrice: avg}
	}
	return p, nil
}
