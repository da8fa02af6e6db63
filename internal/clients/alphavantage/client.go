// Package alphavantage provides a client for the Alpha Vantage market data API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	dateLayout = "2006-01-02"
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a transport-level API failure
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status code %d", e.StatusCode)
}

// get performs a rate-limited GET against /query. The vendor reports
// throttling and plan limits inside 200 responses, so those envelopes are
// screened before decoding into result.
func (c *Client) get(ctx context.Context, function, symbol string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", function).Str("symbol", symbol).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   function,
		}
	}

	var envelope struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Note != "" {
			c.logger.Warn().Str("note", envelope.Note).Msg("Alpha Vantage rate limit hit")
			return models.ErrRateLimited
		}
		if envelope.Information != "" {
			c.logger.Warn().Str("information", envelope.Information).Msg("Alpha Vantage premium endpoint refused")
			return models.ErrSubscriptionRequired
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func invalidSymbolError(symbol string) error {
	return models.NewMarketError(models.ErrInvalidSymbol,
		fmt.Sprintf("The stock symbol: %s is invalid", symbol))
}

// Lookup retrieves company fundamentals for a symbol. The vendor reports
// every numeric field as a string; values pass through untouched.
func (c *Client) Lookup(ctx context.Context, symbol string) (*models.StockOverview, error) {
	var resp overviewResponse
	if err := c.get(ctx, "OVERVIEW", symbol, nil, &resp); err != nil {
		return nil, err
	}

	// An unknown symbol comes back as an empty JSON object.
	if resp.Symbol == "" && resp.Name == "" {
		return nil, invalidSymbolError(symbol)
	}

	return &models.StockOverview{
		Symbol:      resp.Symbol,
		Name:        resp.Name,
		Exchange:    resp.Exchange,
		Description: resp.Description,
		PERatio:     resp.PERatio,
		Week52High:  resp.Week52High,
		Week52Low:   resp.Week52Low,
	}, nil
}

// overviewResponse represents the API response for OVERVIEW
type overviewResponse struct {
	Symbol      string `json:"Symbol"`
	Name        string `json:"Name"`
	Exchange    string `json:"Exchange"`
	Description string `json:"Description"`
	PERatio     string `json:"PERatio"`
	Week52High  string `json:"52WeekHigh"`
	Week52Low   string `json:"52WeekLow"`
}

// PriceDetails retrieves the latest quote for a symbol.
func (c *Client) PriceDetails(ctx context.Context, symbol string) (*models.PriceDetails, error) {
	var resp globalQuoteResponse
	if err := c.get(ctx, "GLOBAL_QUOTE", symbol, nil, &resp); err != nil {
		return nil, err
	}

	// An unknown symbol comes back as an empty "Global Quote" object.
	quote := resp.GlobalQuote
	if quote.Price == "" {
		return nil, invalidSymbolError(symbol)
	}

	price, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", quote.Price, err)
	}
	change, err := decimal.NewFromString(quote.Change)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price change %q: %w", quote.Change, err)
	}

	return &models.PriceDetails{
		Symbol:           symbol,
		CurrentPrice:     price,
		PriceChange:      change,
		ChangePercentage: quote.ChangePercent,
	}, nil
}

// globalQuoteResponse represents the API response for GLOBAL_QUOTE
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// Historical retrieves daily bars for a symbol filtered to [start, end]
// inclusive, most recent first.
func (c *Client) Historical(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalBar, error) {
	params := url.Values{}
	params.Set("outputsize", "full")

	var resp timeSeriesResponse
	if err := c.get(ctx, "TIME_SERIES_DAILY_ADJUSTED", symbol, params, &resp); err != nil {
		return nil, err
	}

	if resp.ErrorMessage != "" {
		return nil, invalidSymbolError(symbol)
	}
	if len(resp.Series) == 0 {
		return nil, models.NewMarketError(models.ErrNoHistoricalData,
			fmt.Sprintf("No historical data found for the stock symbol: %s.", symbol))
	}

	bars := make([]models.HistoricalBar, 0, len(resp.Series))
	for date, bar := range resp.Series {
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		bars = append(bars, models.HistoricalBar{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	// Most recent first; ISO dates sort lexicographically.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date > bars[j].Date })

	return bars, nil
}

// timeSeriesResponse represents the API response for TIME_SERIES_DAILY_ADJUSTED
type timeSeriesResponse struct {
	ErrorMessage string `json:"Error Message"`
	Series       map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"6. volume"`
	} `json:"Time Series (Daily)"`
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
