// Package api contains end-to-end tests that drive the full HTTP surface
// against real storage containers and a stubbed market data upstream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockdeskhq/stockdesk/internal/app"
	"github.com/stockdeskhq/stockdesk/internal/clients/alphavantage"
	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/server"
	"github.com/stockdeskhq/stockdesk/internal/services/account"
	"github.com/stockdeskhq/stockdesk/internal/services/portfolio"
	"github.com/stockdeskhq/stockdesk/internal/storage/postgres"
	"github.com/stockdeskhq/stockdesk/internal/storage/surrealdb"
	tcommon "github.com/stockdeskhq/stockdesk/tests/common"
)

// stubAlphaVantage serves canned vendor responses. The symbol FAKE behaves
// like an unknown listing.
func stubAlphaVantage(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	switch r.URL.Query().Get("function") {
	case "OVERVIEW":
		if symbol == "FAKE" {
			w.Write([]byte(`{}`))
			return
		}
		fmt.Fprintf(w, `{"Symbol":%q,"Name":"%s Corp","Exchange":"NASDAQ","Description":"Test listing.","PERatio":"25.0","52WeekHigh":"200.00","52WeekLow":"100.00"}`, symbol, symbol)
	case "GLOBAL_QUOTE":
		if symbol == "FAKE" {
			w.Write([]byte(`{"Global Quote":{}}`))
			return
		}
		fmt.Fprintf(w, `{"Global Quote":{"01. symbol":%q,"05. price":"150.0000","09. change":"1.5000","10. change percent":"1.0100%%"}}`, symbol)
	case "TIME_SERIES_DAILY_ADJUSTED":
		if symbol == "FAKE" {
			w.Write([]byte(`{"Error Message":"Invalid API call."}`))
			return
		}
		w.Write([]byte(`{"Time Series (Daily)":{
			"2024-01-03":{"1. open":"148.00","2. high":"151.00","3. low":"147.50","4. close":"150.00","6. volume":"48000000"},
			"2024-01-04":{"1. open":"150.00","2. high":"152.00","3. low":"149.00","4. close":"151.25","6. volume":"51000000"},
			"2024-01-05":{"1. open":"151.00","2. high":"153.50","3. low":"150.50","4. close":"153.00","6. volume":"47000000"}}}`))
	default:
		http.NotFound(w, r)
	}
}

// env bundles a running server with helpers for calling it.
type env struct {
	t      *testing.T
	server *httptest.Server
}

// newEnv wires real stores (containerized Postgres and SurrealDB) and the
// stub market upstream into a full in-process server. Skipped unless
// STOCKDESK_TEST_DOCKER=true.
func newEnv(t *testing.T) *env {
	t.Helper()

	pg := tcommon.StartPostgres(t)
	sdb := tcommon.StartSurrealDB(t)

	logger := common.NewSilentLogger()
	ctx := context.Background()

	store, err := postgres.NewStore(ctx, logger, common.PostgresConfig{URL: pg.URL(), MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sessions, err := surrealdb.NewSessionStore(logger, common.SurrealDBConfig{
		Address:   sdb.Address(),
		Namespace: "stockdesk_e2e",
		Database:  fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000),
		Username:  "root",
		Password:  "root",
	})
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	market := httptest.NewServer(http.HandlerFunc(stubAlphaVantage))
	t.Cleanup(market.Close)

	client := alphavantage.NewClient("test-key",
		alphavantage.WithBaseURL(market.URL),
		alphavantage.WithLogger(logger),
		alphavantage.WithRateLimit(100),
	)

	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           logger,
		Users:            store,
		Portfolios:       store,
		Sessions:         sessions,
		MarketClient:     client,
		AccountService:   account.NewService(store, sessions, logger),
		PortfolioService: portfolio.NewService(store, sessions, client, logger),
	}

	ts := httptest.NewServer(server.NewServer(a).Handler())
	t.Cleanup(ts.Close)

	return &env{t: t, server: ts}
}

func (e *env) post(path, token string, body interface{}) *http.Response {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	return resp
}

func (e *env) get(path, token string) *http.Response {
	e.t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	return resp
}

// decodeResponse reads and decodes a JSON response body.
func decodeResponse(t *testing.T, resp io.ReadCloser) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	return result
}

// login creates a session and returns the bearer token.
func (e *env) login(username, password string) string {
	e.t.Helper()

	resp := e.post("/api/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(e.t, 200, resp.StatusCode)

	result := decodeResponse(e.t, resp.Body)
	token, _ := result["token"].(string)
	require.NotEmpty(e.t, token)
	return token
}

func TestAccountWorkflow(t *testing.T) {
	e := newEnv(t)

	// Create
	resp := e.post("/api/create-user", "", map[string]string{
		"username": "wf_account",
		"password": "hunter22",
	})
	result := decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "user added", result["status"])
	assert.Equal(t, "wf_account", result["username"])

	// Duplicate
	resp = e.post("/api/create-user", "", map[string]string{
		"username": "wf_account",
		"password": "other",
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "Username 'wf_account' already exists", result["error"])

	// Wrong password
	resp = e.post("/api/login", "", map[string]string{
		"username": "wf_account",
		"password": "wrong",
	})
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)

	// Login
	token := e.login("wf_account", "hunter22")

	// Change password
	resp = e.post("/api/update-password", token, map[string]string{
		"username":     "wf_account",
		"old_password": "hunter22",
		"new_password": "hunter23",
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Password updated successfully", result["message"])

	// Old password no longer works
	resp = e.post("/api/login", "", map[string]string{
		"username": "wf_account",
		"password": "hunter22",
	})
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)

	// New password does
	e.login("wf_account", "hunter23")

	// Delete account
	req, err := http.NewRequest(http.MethodDelete, e.server.URL+"/api/delete-user", bytes.NewBufferString(`{"username":"wf_account"}`))
	require.NoError(t, err)
	delResp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	result = decodeResponse(t, delResp.Body)
	delResp.Body.Close()
	require.Equal(t, 200, delResp.StatusCode)
	assert.Equal(t, "user deleted", result["status"])

	// Deleted users cannot log in
	resp = e.post("/api/login", "", map[string]string{
		"username": "wf_account",
		"password": "hunter23",
	})
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}

func TestPortfolioWorkflow(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/create-user", "", map[string]string{
		"username": "wf_portfolio",
		"password": "hunter22",
	})
	resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)
	token := e.login("wf_portfolio", "hunter22")

	// Fund the account
	resp = e.post("/api/update-cash", token, map[string]interface{}{"amount": "10000"})
	result := decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "10000", result["new_balance"])

	// Record an existing position
	resp = e.post("/api/add-stock", token, map[string]interface{}{
		"symbol":       "AAPL",
		"quantity":     10,
		"bought_price": "145.50",
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "10 shares of AAPL added.", result["message"])

	// Enriched view joins the stub quote
	resp = e.get("/api/get-portfolio", token)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Get portfolio successful", result["status"])
	holdings := result["portfolio"].([]interface{})
	require.Len(t, holdings, 1)
	aapl := holdings[0].(map[string]interface{})
	assert.Equal(t, "AAPL", aapl["symbol"])
	assert.Equal(t, float64(10), aapl["quantity"])
	assert.Equal(t, "145.5", aapl["average_purchase_price"])
	assert.Equal(t, "150", aapl["current_price"])
	assert.Equal(t, "1500", aapl["market_value"])
	assert.Equal(t, "AAPL Corp", aapl["name"])

	// Buy at the live price: 3 x 150 = 450 off the balance
	resp = e.post("/api/buy-stock", token, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 3,
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Bought 3 shares of MSFT.", result["message"])

	resp = e.get("/api/get-total-values", token)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	totals := result["total_values"].(map[string]interface{})
	assert.Equal(t, "1950", totals["total_stock_value"])
	assert.Equal(t, "9550", totals["cash_balance"])
	assert.Equal(t, "11500", totals["total_portfolio_value"])

	// Sell it back: cash returns to 10000
	resp = e.post("/api/sell-stock", token, map[string]interface{}{
		"symbol":   "MSFT",
		"quantity": 3,
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Sold 3 shares of MSFT.", result["message"])

	// Overspending is rejected before anything changes
	resp = e.post("/api/buy-stock", token, map[string]interface{}{
		"symbol":   "AAPL",
		"quantity": 1000,
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Insufficient funds to buy the stock.", result["error"])

	// Remove and clear
	resp = e.post("/api/remove-stock", token, map[string]interface{}{
		"symbol":   "AAPL",
		"quantity": 4,
	})
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Removed 4 shares of AAPL.", result["message"])

	resp = e.post("/api/clear-portfolio", token, nil)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Portfolio cleared.", result["message"])

	resp = e.get("/api/get-portfolio", token)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, result["portfolio"])
}

func TestSessionWorkflow(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/create-user", "", map[string]string{
		"username": "wf_session",
		"password": "hunter22",
	})
	resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	token := e.login("wf_session", "hunter22")

	resp = e.post("/api/update-cash", token, map[string]interface{}{"amount": "500"})
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp = e.post("/api/add-stock", token, map[string]interface{}{
		"symbol":       "IBM",
		"quantity":     2,
		"bought_price": "100",
	})
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	// Logout snapshots the portfolio into the session store
	resp = e.post("/api/logout", token, nil)
	result := decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "User wf_session logged out successfully.", result["message"])

	// A fresh login restores the snapshot
	token = e.login("wf_session", "hunter22")

	resp = e.get("/api/get-portfolio", token)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	holdings := result["portfolio"].([]interface{})
	require.Len(t, holdings, 1)
	ibm := holdings[0].(map[string]interface{})
	assert.Equal(t, "IBM", ibm["symbol"])
	assert.Equal(t, float64(2), ibm["quantity"])
	assert.Equal(t, "100", ibm["average_purchase_price"])

	resp = e.get("/api/get-total-values", token)
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	totals := result["total_values"].(map[string]interface{})
	assert.Equal(t, "500", totals["cash_balance"])
	assert.Equal(t, "300", totals["total_stock_value"])
}

func TestStockDataEndpoints(t *testing.T) {
	e := newEnv(t)

	resp := e.get("/api/lookup-stock/AAPL", "")
	result := decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "AAPL Corp", data["name"])
	assert.Equal(t, "NASDAQ", data["exchange"])

	resp = e.get("/api/lookup-stock/FAKE", "")
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "The stock symbol: FAKE is invalid", result["error"])

	resp = e.get("/api/get-price-details/AAPL", "")
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	data = result["data"].(map[string]interface{})
	assert.Equal(t, "150", data["current_price"])

	resp = e.get("/api/fetch-historical-data/AAPL/2024-01-01/2024-01-31", "")
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	bars := result["data"].([]interface{})
	require.Len(t, bars, 3)
	first := bars[0].(map[string]interface{})
	assert.Equal(t, "2024-01-05", first["date"], "bars should be most recent first")

	resp = e.get("/api/fetch-historical-data/AAPL/bad-date/2024-01-31", "")
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "The date format you provided is invalid. Please use 'YYYY-MM-DD'.", result["error"])

	chartResp := e.get("/api/stock-chart/AAPL/2024-01-01/2024-01-31", "")
	body, err := io.ReadAll(chartResp.Body)
	chartResp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, 200, chartResp.StatusCode)
	assert.Equal(t, "image/png", chartResp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")), "expected PNG magic bytes")
}

func TestHealthAndVersion(t *testing.T) {
	e := newEnv(t)

	resp := e.get("/api/health", "")
	result := decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "healthy", result["status"])

	resp = e.get("/api/version", "")
	result = decodeResponse(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, result, "version")
	assert.Contains(t, result, "build")
}
