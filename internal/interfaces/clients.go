// Package interfaces defines service contracts for StockDesk
package interfaces

import (
	"context"
	"time"

	"github.com/stockdeskhq/stockdesk/internal/models"
)

// MarketDataClient provides company data, live quotes, and price history
// from the upstream market data API. Implementations do not cache and do
// not retry; callers see upstream failures directly.
type MarketDataClient interface {
	// Lookup retrieves the company overview for a symbol.
	Lookup(ctx context.Context, symbol string) (*models.StockOverview, error)

	// PriceDetails retrieves the latest quote for a symbol.
	PriceDetails(ctx context.Context, symbol string) (*models.PriceDetails, error)

	// Historical retrieves daily bars within [start, end] inclusive,
	// ordered by date descending.
	Historical(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalBar, error)
}
