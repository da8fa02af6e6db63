// Package models defines data structures for StockDesk
package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Holding represents a single position in a user's portfolio.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// Portfolio is the working state of a user's positions and cash balance.
// All arithmetic is decimal so repeated buys never accumulate float drift.
type Portfolio struct {
	Username string              `json:"username"`
	Cash     decimal.Decimal     `json:"cash_balance"`
	Holdings map[string]*Holding `json:"holdings"`
}

// NewPortfolio returns an empty portfolio for username.
func NewPortfolio(username string) *Portfolio {
	return &Portfolio{
		Username: username,
		Cash:     decimal.Zero,
		Holdings: make(map[string]*Holding),
	}
}

// Holding returns the position for symbol, or nil when it is not held.
func (p *Portfolio) Holding(symbol string) *Holding {
	return p.Holdings[symbol]
}

// Symbols returns the held symbols in ascending order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AddStock records qty shares of symbol bought at price. When the symbol is
// already held the average purchase price becomes the quantity-weighted mean
// of the existing position and the new lot. Cash is not touched.
func (p *Portfolio) AddStock(symbol string, qty int64, price decimal.Decimal) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	h, ok := p.Holdings[symbol]
	if !ok {
		p.Holdings[symbol] = &Holding{Symbol: symbol, Quantity: qty, AvgPrice: price}
		return nil
	}
	oldQty := decimal.NewFromInt(h.Quantity)
	addQty := decimal.NewFromInt(qty)
	h.AvgPrice = h.AvgPrice.Mul(oldQty).Add(price.Mul(addQty)).Div(oldQty.Add(addQty))
	h.Quantity += qty
	return nil
}

// RemoveStock drops qty shares of symbol without touching cash. Removing
// the final share deletes the position entirely; a partial removal leaves
// the average purchase price unchanged.
func (p *Portfolio) RemoveStock(symbol string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	h, ok := p.Holdings[symbol]
	if !ok {
		return &domainError{ErrUnknownHolding, fmt.Sprintf("Stock %s does not exist in holdings.", symbol)}
	}
	if qty > h.Quantity {
		return &domainError{ErrInsufficientShares, fmt.Sprintf("Cannot remove %d shares. Only %d shares available.", qty, h.Quantity)}
	}
	h.Quantity -= qty
	if h.Quantity == 0 {
		delete(p.Holdings, symbol)
	}
	return nil
}

// BuyStock debits qty×price from cash and merges the position like AddStock.
// Fails with ErrInsufficientFunds when the cost exceeds the cash balance;
// the portfolio is unchanged on any failure.
func (p *Portfolio) BuyStock(symbol string, qty int64, price decimal.Decimal) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(p.Cash) {
		return ErrInsufficientFunds
	}
	if err := p.AddStock(symbol, qty, price); err != nil {
		return err
	}
	p.Cash = p.Cash.Sub(cost)
	return nil
}

// CanSell reports whether qty shares of symbol can be sold right now.
// Callers use it to reject a sale before fetching a market price.
func (p *Portfolio) CanSell(symbol string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	h, ok := p.Holdings[symbol]
	if !ok {
		return &domainError{ErrUnknownHolding, fmt.Sprintf("Stock %s does not exist in holdings.", symbol)}
	}
	if qty > h.Quantity {
		return ErrInsufficientShares
	}
	return nil
}

// SellStock credits qty×price to cash and trims the position. The average
// purchase price of any remaining shares is unchanged; selling the final
// share deletes the position.
func (p *Portfolio) SellStock(symbol string, qty int64, price decimal.Decimal) error {
	if err := p.CanSell(symbol, qty); err != nil {
		return err
	}
	h := p.Holdings[symbol]
	h.Quantity -= qty
	if h.Quantity == 0 {
		delete(p.Holdings, symbol)
	}
	p.Cash = p.Cash.Add(price.Mul(decimal.NewFromInt(qty)))
	return nil
}

// UpdateCash adds amount to the cash balance and returns the new balance.
// Negative amounts are allowed and the balance itself may go negative;
// there is no overdraft floor on direct adjustments.
func (p *Portfolio) UpdateCash(amount decimal.Decimal) decimal.Decimal {
	p.Cash = p.Cash.Add(amount)
	return p.Cash
}

// Clear empties all holdings and resets the cash balance to zero.
func (p *Portfolio) Clear() {
	p.Holdings = make(map[string]*Holding)
	p.Cash = decimal.Zero
}

// EnrichedHolding joins a position with live market data for portfolio views.
type EnrichedHolding struct {
	Symbol               string          `json:"symbol"`
	Quantity             int64           `json:"quantity"`
	AveragePurchasePrice decimal.Decimal `json:"average_purchase_price"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	MarketValue          decimal.Decimal `json:"market_value"`
	Name                 string          `json:"name"`
	Exchange             string          `json:"exchange"`
	Description          string          `json:"description"`
	PERatio              string          `json:"pe_ratio"`
	Week52High           string          `json:"week52_high"`
	Week52Low            string          `json:"week52_low"`
}

// TotalValues aggregates a portfolio's market worth at current prices.
type TotalValues struct {
	TotalStockValue     decimal.Decimal `json:"total_stock_value"`
	CashBalance         decimal.Decimal `json:"cash_balance"`
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
}
