package server

import (
	"net/http"
	"time"

	"github.com/stockdeskhq/stockdesk/internal/common"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Accounts
	mux.HandleFunc("/api/create-user", s.handleCreateUser)
	mux.HandleFunc("/api/delete-user", s.handleDeleteUser)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/update-password", s.handleUpdatePassword)

	// Stock info
	mux.HandleFunc("/api/lookup-stock/", s.handleLookupStock)
	mux.HandleFunc("/api/get-price-details/", s.handlePriceDetails)
	mux.HandleFunc("/api/fetch-historical-data/", s.handleHistoricalData)
	mux.HandleFunc("/api/stock-chart/", s.handleStockChart)

	// Portfolio
	mux.HandleFunc("/api/get-portfolio", s.handleGetPortfolio)
	mux.HandleFunc("/api/get-total-values", s.handleTotalValues)
	mux.HandleFunc("/api/add-stock", s.handleAddStock)
	mux.HandleFunc("/api/remove-stock", s.handleRemoveStock)
	mux.HandleFunc("/api/update-cash", s.handleUpdateCash)
	mux.HandleFunc("/api/clear-portfolio", s.handleClearPortfolio)
	mux.HandleFunc("/api/buy-stock", s.handleBuyStock)
	mux.HandleFunc("/api/sell-stock", s.handleSellStock)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
