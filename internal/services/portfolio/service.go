// Package portfolio provides portfolio management services
package portfolio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/models"
	"github.com/stockdeskhq/stockdesk/internal/storage"
)

// Service implements PortfolioService
type Service struct {
	store    interfaces.PortfolioStore
	sessions interfaces.SessionStore
	market   interfaces.MarketDataClient
	logger   *common.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new portfolio service
func NewService(
	store interfaces.PortfolioStore,
	sessions interfaces.SessionStore,
	market interfaces.MarketDataClient,
	logger *common.Logger,
) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		market:   market,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing mutations for username. Locks are
// never evicted; the footprint is one mutex per user ever seen.
func (s *Service) userLock(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[username]
	if !ok {
		l = &sync.Mutex{}
		s.locks[username] = l
	}
	return l
}

// AddStock records qty shares bought at boughtPrice without touching cash.
func (s *Service) AddStock(ctx context.Context, username, symbol string, qty int64, boughtPrice decimal.Decimal) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}
	if err := p.AddStock(symbol, qty, boughtPrice); err != nil {
		return err
	}
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().
		Str("username", username).
		Str("symbol", symbol).
		Int64("quantity", qty).
		Msg("Stock added to portfolio")
	return nil
}

// RemoveStock drops qty shares without crediting cash.
func (s *Service) RemoveStock(ctx context.Context, username, symbol string, qty int64) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}
	if err := p.RemoveStock(symbol, qty); err != nil {
		return err
	}
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().
		Str("username", username).
		Str("symbol", symbol).
		Int64("quantity", qty).
		Msg("Stock removed from portfolio")
	return nil
}

// BuyStock purchases qty shares at the live market price, debiting cash.
func (s *Service) BuyStock(ctx context.Context, username, symbol string, qty int64) error {
	if qty <= 0 {
		return models.ErrInvalidQuantity
	}

	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}

	details, err := s.market.PriceDetails(ctx, symbol)
	if err != nil {
		return err
	}

	if err := p.BuyStock(symbol, qty, details.CurrentPrice); err != nil {
		return err
	}
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().
		Str("username", username).
		Str("symbol", symbol).
		Int64("quantity", qty).
		Str("price", details.CurrentPrice.String()).
		Msg("Stock bought")
	return nil
}

// SellStock sells qty shares at the live market price, crediting cash. The
// share check runs before the price fetch so an oversell never costs an
// upstream request.
func (s *Service) SellStock(ctx context.Context, username, symbol string, qty int64) error {
	if qty <= 0 {
		return models.ErrInvalidQuantity
	}

	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}
	if err := p.CanSell(symbol, qty); err != nil {
		return err
	}

	details, err := s.market.PriceDetails(ctx, symbol)
	if err != nil {
		return err
	}

	if err := p.SellStock(symbol, qty, details.CurrentPrice); err != nil {
		return err
	}
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().
		Str("username", username).
		Str("symbol", symbol).
		Int64("quantity", qty).
		Str("price", details.CurrentPrice.String()).
		Msg("Stock sold")
	return nil
}

// UpdateCash adds amount (any sign) to the cash balance and returns the new
// balance.
func (s *Service) UpdateCash(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := p.UpdateCash(amount)
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return decimal.Zero, err
	}

	s.logger.Info().
		Str("username", username).
		Str("amount", amount.String()).
		Str("new_balance", newBalance.String()).
		Msg("Cash balance updated")
	return newBalance, nil
}

// Clear empties all holdings and resets cash to zero.
func (s *Service) Clear(ctx context.Context, username string) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}

	p.Clear()
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().Str("username", username).Msg("Portfolio cleared")
	return nil
}

// GetPortfolio returns the user's holdings joined with live market data,
// sorted by symbol.
func (s *Service) GetPortfolio(ctx context.Context, username string) ([]models.EnrichedHolding, error) {
	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return nil, err
	}

	enriched := make([]models.EnrichedHolding, 0, len(p.Holdings))
	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]

		overview, err := s.market.Lookup(ctx, symbol)
		if err != nil {
			return nil, err
		}
		details, err := s.market.PriceDetails(ctx, symbol)
		if err != nil {
			return nil, err
		}

		qty := decimal.NewFromInt(h.Quantity)
		enriched = append(enriched, models.EnrichedHolding{
			Symbol:               symbol,
			Quantity:             h.Quantity,
			AveragePurchasePrice: h.AvgPrice,
			CurrentPrice:         details.CurrentPrice,
			MarketValue:          details.CurrentPrice.Mul(qty),
			Name:                 overview.Name,
			Exchange:             overview.Exchange,
			Description:          overview.Description,
			PERatio:              overview.PERatio,
			Week52High:           overview.Week52High,
			Week52Low:            overview.Week52Low,
		})
	}
	return enriched, nil
}

// TotalValues prices every holding at the current market and aggregates.
func (s *Service) TotalValues(ctx context.Context, username string) (*models.TotalValues, error) {
	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return nil, err
	}

	totalStock := decimal.Zero
	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]
		details, err := s.market.PriceDetails(ctx, symbol)
		if err != nil {
			return nil, err
		}
		totalStock = totalStock.Add(details.CurrentPrice.Mul(decimal.NewFromInt(h.Quantity)))
	}

	return &models.TotalValues{
		TotalStockValue:     totalStock,
		CashBalance:         p.Cash,
		TotalPortfolioValue: totalStock.Add(p.Cash),
	}, nil
}

// RestoreSession reloads the portfolio from the session snapshot at login.
// A first login creates an empty session document and leaves the portfolio
// untouched.
func (s *Service) RestoreSession(ctx context.Context, username string) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.sessions.Load(ctx, username)
	if errors.Is(err, storage.ErrNoSession) {
		if err := s.sessions.Create(ctx, username); err != nil {
			return err
		}
		s.logger.Info().Str("username", username).Msg("Session created for first login")
		return nil
	}
	if err != nil {
		return err
	}

	restored, err := snap.Portfolio()
	if err != nil {
		return err
	}
	if err := s.store.ReplacePortfolio(ctx, restored); err != nil {
		return err
	}

	snap.LoginAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, snap); err != nil {
		return err
	}

	s.logger.Info().
		Str("username", username).
		Int("holdings", len(restored.Holdings)).
		Msg("Portfolio restored from session")
	return nil
}

// SnapshotSession captures the portfolio into the session document at
// logout, then resets the working portfolio so the next login starts from
// the snapshot.
func (s *Service) SnapshotSession(ctx context.Context, username string) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.sessions.Load(ctx, username)
	if err != nil {
		return err
	}

	p, err := s.store.GetPortfolio(ctx, username)
	if err != nil {
		return err
	}

	snap.Capture(p)
	snap.LogoutAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, snap); err != nil {
		return err
	}

	p.Clear()
	if err := s.store.ReplacePortfolio(ctx, p); err != nil {
		return err
	}

	s.logger.Info().Str("username", username).Msg("Portfolio snapshot saved to session")
	return nil
}

// PriceChart renders a PNG line chart of daily closes for symbol over
// [start, end].
func (s *Service) PriceChart(ctx context.Context, symbol string, start, end time.Time) ([]byte, error) {
	bars, err := s.market.Historical(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return RenderPriceChart(symbol, bars)
}

// Compile-time check
var _ interfaces.PortfolioService = (*Service)(nil)
