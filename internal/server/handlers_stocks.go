package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stockdeskhq/stockdesk/internal/clients/alphavantage"
	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

const dateLayout = "2006-01-02"

// --- Stock info handlers ---

// handleLookupStock handles GET /api/lookup-stock/{symbol}.
func (s *Server) handleLookupStock(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := PathParam(r, "/api/lookup-stock/", "")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	overview, err := s.app.MarketClient.Lookup(r.Context(), symbol)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"name":        overview.Name,
			"exchange":    overview.Exchange,
			"description": overview.Description,
			"pe_ratio":    overview.PERatio,
			"week52_high": overview.Week52High,
			"week52_low":  overview.Week52Low,
		},
	})
}

// handlePriceDetails handles GET /api/get-price-details/{symbol}.
func (s *Server) handlePriceDetails(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := PathParam(r, "/api/get-price-details/", "")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	details, err := s.app.MarketClient.PriceDetails(r.Context(), symbol)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"current_price":     details.CurrentPrice,
			"price_change":      details.PriceChange,
			"change_percentage": details.ChangePercentage,
		},
	})
}

// handleHistoricalData handles GET /api/fetch-historical-data/{symbol}/{start}/{end}.
func (s *Server) handleHistoricalData(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, start, end, ok := dateRangePath(w, r, "/api/fetch-historical-data/")
	if !ok {
		return
	}

	bars, err := s.app.MarketClient.Historical(r.Context(), symbol, start, end)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   bars,
	})
}

// handleStockChart handles GET /api/stock-chart/{symbol}/{start}/{end} and
// responds with a PNG line chart of daily closes.
func (s *Server) handleStockChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, start, end, ok := dateRangePath(w, r, "/api/stock-chart/")
	if !ok {
		return
	}

	png, err := s.app.PortfolioService.PriceChart(r.Context(), symbol, start, end)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// dateRangePath parses a {symbol}/{start}/{end} path tail. Dates are checked
// before anything reaches the upstream API.
func dateRangePath(w http.ResponseWriter, r *http.Request, prefix string) (symbol string, start, end time.Time, ok bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "symbol, start date and end date are required in path")
		return "", time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		WriteError(w, http.StatusBadRequest, "The date format you provided is invalid. Please use 'YYYY-MM-DD'.")
		return "", time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(dateLayout, parts[2])
	if err != nil {
		WriteError(w, http.StatusBadRequest, "The date format you provided is invalid. Please use 'YYYY-MM-DD'.")
		return "", time.Time{}, time.Time{}, false
	}

	return parts[0], start, end, true
}

// --- Error mapping ---

// writeMarketError maps market data and validation failures onto status
// codes. Anything unrecognized is a 500.
func (s *Server) writeMarketError(w http.ResponseWriter, err error) {
	var apiErr *alphavantage.APIError
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidSymbol),
		errors.Is(err, models.ErrNoHistoricalData):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, models.ErrSubscriptionRequired):
		WriteError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &apiErr):
		s.logger.Error().Err(err).Str("endpoint", apiErr.Endpoint).Msg("Upstream market data request failed")
		WriteError(w, http.StatusBadGateway, apiErr.Error())
	default:
		s.logger.Error().Err(err).Msg("Unexpected market data error")
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// writePortfolioError maps ledger failures onto status codes, falling back to
// the market mapping for errors surfaced by live price fetches.
func (s *Server) writePortfolioError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidPrice),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientShares),
		errors.Is(err, models.ErrUnknownHolding):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		WriteError(w, http.StatusNotFound, fmt.Sprintf("User '%s' not found", username))
	default:
		s.writeMarketError(w, err)
	}
}
