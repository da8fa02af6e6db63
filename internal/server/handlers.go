package server

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// --- Portfolio handlers ---

// handleGetPortfolio handles GET /api/get-portfolio (authenticated).
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	portfolio, err := s.app.PortfolioService.GetPortfolio(r.Context(), username)
	if err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "Get portfolio successful",
		"portfolio": portfolio,
	})
}

// handleTotalValues handles GET /api/get-total-values (authenticated).
func (s *Server) handleTotalValues(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	totals, err := s.app.PortfolioService.TotalValues(r.Context(), username)
	if err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"total_values": totals,
	})
}

// handleAddStock handles POST /api/add-stock (authenticated). Records shares
// bought elsewhere; cash is untouched.
func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol      string           `json:"symbol"`
		Quantity    *int64           `json:"quantity"`
		BoughtPrice *decimal.Decimal `json:"bought_price"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Symbol == "" || req.Quantity == nil || req.BoughtPrice == nil {
		WriteError(w, http.StatusBadRequest, "Missing some of the required fields: symbol, quantity, bought_price")
		return
	}

	if err := s.app.PortfolioService.AddStock(r.Context(), username, req.Symbol, *req.Quantity, *req.BoughtPrice); err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("%d shares of %s added.", *req.Quantity, req.Symbol),
	})
}

// handleRemoveStock handles POST /api/remove-stock (authenticated). Drops
// shares without crediting cash.
func (s *Server) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol   string `json:"symbol"`
		Quantity *int64 `json:"quantity"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Symbol == "" || req.Quantity == nil {
		WriteError(w, http.StatusBadRequest, "Missing some of the required fields: symbol, quantity")
		return
	}

	if err := s.app.PortfolioService.RemoveStock(r.Context(), username, req.Symbol, *req.Quantity); err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("Removed %d shares of %s.", *req.Quantity, req.Symbol),
	})
}

// handleUpdateCash handles POST /api/update-cash (authenticated). Amount may
// be negative; the new balance is returned.
func (s *Server) handleUpdateCash(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount *decimal.Decimal `json:"amount"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Amount == nil {
		WriteError(w, http.StatusBadRequest, "Missing some of the required field: amount")
		return
	}

	newBalance, err := s.app.PortfolioService.UpdateCash(r.Context(), username, *req.Amount)
	if err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"new_balance": newBalance,
	})
}

// handleClearPortfolio handles POST /api/clear-portfolio (authenticated).
// Empties all holdings and resets cash to zero.
func (s *Server) handleClearPortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.app.PortfolioService.Clear(r.Context(), username); err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Portfolio cleared.",
	})
}

// --- Trading handlers ---

// handleBuyStock handles POST /api/buy-stock (authenticated). Shares are
// bought at the live market price and cash is debited.
func (s *Server) handleBuyStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol   string `json:"symbol"`
		Quantity *int64 `json:"quantity"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Symbol == "" || req.Quantity == nil {
		WriteError(w, http.StatusBadRequest, "Missing some of the required fields: symbol, quantity")
		return
	}

	if err := s.app.PortfolioService.BuyStock(r.Context(), username, req.Symbol, *req.Quantity); err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("Bought %d shares of %s.", *req.Quantity, req.Symbol),
	})
}

// handleSellStock handles POST /api/sell-stock (authenticated). Shares are
// sold at the live market price and cash is credited.
func (s *Server) handleSellStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol   string `json:"symbol"`
		Quantity *int64 `json:"quantity"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Symbol == "" || req.Quantity == nil {
		WriteError(w, http.StatusBadRequest, "Missing some of the required fields: symbol, quantity")
		return
	}

	if err := s.app.PortfolioService.SellStock(r.Context(), username, req.Symbol, *req.Quantity); err != nil {
		s.writePortfolioError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("Sold %d shares of %s.", *req.Quantity, req.Symbol),
	})
}
