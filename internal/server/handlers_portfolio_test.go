package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

// --- Get portfolio ---

func TestHandleGetPortfolio_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/get-portfolio", nil)
	rec := httptest.NewRecorder()
	srv.handleGetPortfolio(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if challenge := rec.Header().Get("WWW-Authenticate"); challenge == "" {
		t.Error("expected a WWW-Authenticate challenge")
	}
}

func TestHandleGetPortfolio_Success(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		getPortfolio: func(username string) ([]models.EnrichedHolding, error) {
			if username != "alice" {
				t.Errorf("expected username alice, got %q", username)
			}
			return []models.EnrichedHolding{
				{
					Symbol:               "AAPL",
					Quantity:             10,
					AveragePurchasePrice: decimal.RequireFromString("145.50"),
					CurrentPrice:         decimal.RequireFromString("150.25"),
					MarketValue:          decimal.RequireFromString("1502.5"),
					Name:                 "Apple Inc",
				},
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/get-portfolio", nil, "alice")
	rec := httptest.NewRecorder()
	srv.handleGetPortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["status"] != "Get portfolio successful" {
		t.Errorf("unexpected status: %v", resp["status"])
	}
	portfolio, _ := resp["portfolio"].([]interface{})
	if len(portfolio) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(portfolio))
	}
	holding, _ := portfolio[0].(map[string]interface{})
	if holding["symbol"] != "AAPL" {
		t.Errorf("expected symbol AAPL, got %v", holding["symbol"])
	}
	if holding["quantity"] != float64(10) {
		t.Errorf("expected quantity 10, got %v", holding["quantity"])
	}
	if holding["average_purchase_price"] != "145.5" {
		t.Errorf("expected average_purchase_price '145.5', got %v", holding["average_purchase_price"])
	}
	if holding["market_value"] != "1502.5" {
		t.Errorf("expected market_value '1502.5', got %v", holding["market_value"])
	}
}

func TestHandleGetPortfolio_Empty(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodGet, "/api/get-portfolio", nil, "alice")
	rec := httptest.NewRecorder()
	srv.handleGetPortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// An empty portfolio must marshal as [], not null.
	if body := rec.Body.String(); !strings.Contains(body, `"portfolio":[]`) {
		t.Errorf("expected empty array, got %s", body)
	}
}

// --- Total values ---

func TestHandleTotalValues_Success(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		totalValues: func(username string) (*models.TotalValues, error) {
			return &models.TotalValues{
				TotalStockValue:     decimal.RequireFromString("1502.5"),
				CashBalance:         decimal.RequireFromString("250.75"),
				TotalPortfolioValue: decimal.RequireFromString("1753.25"),
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/get-total-values", nil, "alice")
	rec := httptest.NewRecorder()
	srv.handleTotalValues(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["status"] != "success" {
		t.Errorf("expected status 'success', got %v", resp["status"])
	}
	totals, _ := resp["total_values"].(map[string]interface{})
	if totals == nil {
		t.Fatal("expected a total_values object")
	}
	if totals["total_stock_value"] != "1502.5" {
		t.Errorf("expected total_stock_value '1502.5', got %v", totals["total_stock_value"])
	}
	if totals["cash_balance"] != "250.75" {
		t.Errorf("expected cash_balance '250.75', got %v", totals["cash_balance"])
	}
	if totals["total_portfolio_value"] != "1753.25" {
		t.Errorf("expected total_portfolio_value '1753.25', got %v", totals["total_portfolio_value"])
	}
}

func TestHandleTotalValues_UnknownUser(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		totalValues: func(string) (*models.TotalValues, error) {
			return nil, storage.ErrNotFound
		},
	}

	req := authedRequest(http.MethodGet, "/api/get-total-values", nil, "ghost")
	rec := httptest.NewRecorder()
	srv.handleTotalValues(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "User 'ghost' not found" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

// --- Add stock ---

func TestHandleAddStock_Success(t *testing.T) {
	srv := newTestServer(t)

	var gotSymbol string
	var gotQty int64
	var gotPrice decimal.Decimal
	srv.app.PortfolioService = &fakePortfolioService{
		addStock: func(username, symbol string, qty int64, boughtPrice decimal.Decimal) error {
			gotSymbol, gotQty, gotPrice = symbol, qty, boughtPrice
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/add-stock", jsonBody(t, map[string]interface{}{
		"symbol":       "AAPL",
		"quantity":     5,
		"bought_price": "145.50",
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleAddStock(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["status"] != "success" {
		t.Errorf("expected status 'success', got %v", resp["status"])
	}
	if resp["message"] != "5 shares of AAPL added." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
	if gotSymbol != "AAPL" || gotQty != 5 || !gotPrice.Equal(decimal.RequireFromString("145.50")) {
		t.Errorf("service received %q/%d/%s", gotSymbol, gotQty, gotPrice)
	}
}

func TestHandleAddStock_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/add-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "AAPL",
		"quantity": 5,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleAddStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Missing some of the required fields: symbol, quantity, bought_price" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestHandleAddStock_InvalidQuantity(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		addStock: func(string, string, int64, decimal.Decimal) error {
			return models.ErrInvalidQuantity
		},
	}

	req := authedRequest(http.MethodPost, "/api/add-stock", jsonBody(t, map[string]interface{}{
		"symbol":       "AAPL",
		"quantity":     0,
		"bought_price": "145.50",
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleAddStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Quantity must be greater than 0." {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

// --- Remove stock ---

func TestHandleRemoveStock_Success(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/remove-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "AAPL",
		"quantity": 2,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleRemoveStock(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["message"] != "Removed 2 shares of AAPL." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}

func TestHandleRemoveStock_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/remove-stock", jsonBody(t, map[string]interface{}{
		"symbol": "AAPL",
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleRemoveStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Missing some of the required fields: symbol, quantity" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestHandleRemoveStock_NotHeld(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		removeStock: func(username, symbol string, qty int64) error {
			return models.NewValidationError("Stock TSLA does not exist in holdings.")
		},
	}

	req := authedRequest(http.MethodPost, "/api/remove-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "TSLA",
		"quantity": 1,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleRemoveStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Stock TSLA does not exist in holdings." {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

// --- Update cash ---

func TestHandleUpdateCash_Success(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		updateCash: func(username string, amount decimal.Decimal) (decimal.Decimal, error) {
			if !amount.Equal(decimal.RequireFromString("500.25")) {
				t.Errorf("expected amount 500.25, got %s", amount)
			}
			return decimal.RequireFromString("750.25"), nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/update-cash", jsonBody(t, map[string]interface{}{
		"amount": "500.25",
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleUpdateCash(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["status"] != "success" {
		t.Errorf("expected status 'success', got %v", resp["status"])
	}
	if resp["new_balance"] != "750.25" {
		t.Errorf("expected new_balance '750.25', got %v", resp["new_balance"])
	}
}

func TestHandleUpdateCash_NegativeAmount(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		updateCash: func(username string, amount decimal.Decimal) (decimal.Decimal, error) {
			return decimal.RequireFromString("-100"), nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/update-cash", jsonBody(t, map[string]interface{}{
		"amount": "-100",
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleUpdateCash(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["new_balance"] != "-100" {
		t.Errorf("expected new_balance '-100', got %v", resp["new_balance"])
	}
}

func TestHandleUpdateCash_MissingAmount(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/update-cash", jsonBody(t, map[string]interface{}{}), "alice")
	rec := httptest.NewRecorder()
	srv.handleUpdateCash(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Missing some of the required field: amount" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

// --- Clear portfolio ---

func TestHandleClearPortfolio_Success(t *testing.T) {
	srv := newTestServer(t)

	cleared := false
	srv.app.PortfolioService = &fakePortfolioService{
		clear: func(username string) error {
			cleared = username == "alice"
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/clear-portfolio", nil, "alice")
	rec := httptest.NewRecorder()
	srv.handleClearPortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["message"] != "Portfolio cleared." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
	if !cleared {
		t.Error("expected the service to clear alice's portfolio")
	}
}

// --- Buy stock ---

func TestHandleBuyStock_Success(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/buy-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 3,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleBuyStock(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["message"] != "Bought 3 shares of MSFT." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}

func TestHandleBuyStock_InsufficientFunds(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		buyStock: func(string, string, int64) error {
			return models.ErrInsufficientFunds
		},
	}

	req := authedRequest(http.MethodPost, "/api/buy-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 1000,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleBuyStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Insufficient funds to buy the stock." {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestHandleBuyStock_UnknownUser(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		buyStock: func(string, string, int64) error {
			return storage.ErrNotFound
		},
	}

	req := authedRequest(http.MethodPost, "/api/buy-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 1,
	}), "ghost")
	rec := httptest.NewRecorder()
	srv.handleBuyStock(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "User 'ghost' not found" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

// --- Sell stock ---

func TestHandleSellStock_Success(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/sell-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 3,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleSellStock(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["message"] != "Sold 3 shares of MSFT." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}

func TestHandleSellStock_InsufficientShares(t *testing.T) {
	srv := newTestServer(t)
	srv.app.PortfolioService = &fakePortfolioService{
		sellStock: func(string, string, int64) error {
			return models.ErrInsufficientShares
		},
	}

	req := authedRequest(http.MethodPost, "/api/sell-stock", jsonBody(t, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 50,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleSellStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Not enough shares to sell." {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestHandleSellStock_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	req := authedRequest(http.MethodPost, "/api/sell-stock", jsonBody(t, map[string]interface{}{
		"quantity": 3,
	}), "alice")
	rec := httptest.NewRecorder()
	srv.handleSellStock(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp["error"] != "Missing some of the required fields: symbol, quantity" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}
