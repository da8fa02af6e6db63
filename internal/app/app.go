package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stockdeskhq/stockdesk/internal/clients/alphavantage"
	"github.com/stockdeskhq/stockdesk/internal/common"
	"github.com/stockdeskhq/stockdesk/internal/interfaces"
	"github.com/stockdeskhq/stockdesk/internal/services/account"
	"github.com/stockdeskhq/stockdesk/internal/services/portfolio"
	"github.com/stockdeskhq/stockdesk/internal/storage/postgres"
	"github.com/stockdeskhq/stockdesk/internal/storage/surrealdb"
)

// App holds all initialized stores, clients, and services. It is the shared
// core behind cmd/stockdesk-server and the HTTP handler tests.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Users            interfaces.UserStore
	Portfolios       interfaces.PortfolioStore
	Sessions         interfaces.SessionStore
	MarketClient     interfaces.MarketDataClient
	AccountService   interfaces.AccountService
	PortfolioService interfaces.PortfolioService
	StartupTime      time.Time

	// Concrete store handles kept for shutdown.
	pg       *postgres.Store
	sessions *surrealdb.SessionStore
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, the market data client, and all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	// Get binary directory for self-contained operation
	binDir := getBinaryDir()

	// Load configuration - check provided path, STOCKDESK_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("STOCKDESK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "stockdesk.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stockdesk.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := common.NewLogger(config.Logging.Level)

	ctx := context.Background()

	// Initialize the relational store (accounts + holdings)
	pg, err := postgres.NewStore(ctx, logger, config.Storage.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
	}

	// Initialize the session document store
	sessions, err := surrealdb.NewSessionStore(logger, config.Storage.SurrealDB)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	// Resolve the market data API key
	apiKey, err := common.ResolveAPIKey(config.Market.APIKey)
	if err != nil {
		logger.Warn().Msg("Market data API key not configured - stock data requests will fail upstream")
	}

	// Initialize the market data client
	opts := []alphavantage.ClientOption{
		alphavantage.WithLogger(logger),
		alphavantage.WithTimeout(config.Market.GetTimeout()),
	}
	if config.Market.RateLimit > 0 {
		opts = append(opts, alphavantage.WithRateLimit(config.Market.RateLimit))
	}
	if config.Market.BaseURL != "" {
		opts = append(opts, alphavantage.WithBaseURL(config.Market.BaseURL))
	}
	marketClient := alphavantage.NewClient(apiKey, opts...)

	// Initialize services
	accountService := account.NewService(pg, sessions, logger)
	portfolioService := portfolio.NewService(pg, sessions, marketClient, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Users:            pg,
		Portfolios:       pg,
		Sessions:         sessions,
		MarketClient:     marketClient,
		AccountService:   accountService,
		PortfolioService: portfolioService,
		StartupTime:      startupStart,
		pg:               pg,
		sessions:         sessions,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: session store first, then the connection pool.
func (a *App) Close() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing session store")
		}
		a.sessions = nil
	}
	if a.pg != nil {
		a.pg.Close()
		a.pg = nil
	}
}
