package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/ticker/internal/clients/naver"
	"github.com/bobmcallan/ticker/internal/clients/yahoo"
	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
	"github.com/bobmcallan/ticker/internal/services/catalog"
	"github.com/bobmcallan/ticker/internal/services/notify"
	"github.com/bobmcallan/ticker/internal/services/refresh"
	"github.com/bobmcallan/ticker/internal/services/router"
	"github.com/bobmcallan/ticker/internal/services/watchlist"
	"github.com/bobmcallan/ticker/internal/storage/badger"
	"github.com/bobmcallan/ticker/internal/storage/catalogfs"
)

// App holds the initialized storage, clients and services.
type App struct {
	Config     *common.Config
	Logger     *common.Logger
	Store      *badger.Store
	KV         interfaces.KeyValueStorage
	Timestamps interfaces.TimestampStorage
	Catalogs   map[models.Market]*catalogfs.Store
	Router     *router.Router
	Watchlist  *watchlist.Service
	Refresh    *refresh.Orchestrator
	Crawler    *catalog.Crawler
	Hub        *notify.Hub
	Scheduler  *Scheduler

	FirstLaunch   time.Time
	IsFirstLaunch bool
	StartupTime   time.Time

	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes the App.
// configPath may be empty, in which case TICKER_CONFIG, the binary directory
// and config/ticker.toml are tried in turn.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("TICKER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "ticker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/ticker.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	return NewAppWithConfig(config)
}

// NewAppWithConfig initializes the App from an already loaded config.
func NewAppWithConfig(config *common.Config) (*App, error) {
	startupStart := time.Now()
	logger := common.NewLoggerFromConfig(config.Logging)
	ctx := context.Background()

	store, err := badger.NewStore(logger, config.Storage.BadgerDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	kv := badger.NewKVStorage(store, logger)

	koreaCatalog, err := catalogfs.NewStore(logger, config.Storage.CatalogDir(), models.MarketKorea, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open domestic catalog: %w", err)
	}
	usCatalog, err := catalogfs.NewStore(logger, config.Storage.CatalogDir(), models.MarketUS, catalogfs.USSeed())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open US catalog: %w", err)
	}

	naverCfg := config.Clients.Naver
	naverClient := naver.NewClient(koreaCatalog,
		naver.WithBaseURL(naverCfg.QuoteBaseURL),
		naver.WithLogger(logger),
		naver.WithMinInterval(naverCfg.GetMinInterval()),
		naver.WithTimeout(naverCfg.GetTimeout()),
	)
	listing := naver.NewListingClient(naverCfg.ListingBaseURL, naverCfg.GetListingInterval(), naverCfg.GetTimeout(), logger)

	yahooCfg := config.Clients.Yahoo
	yahooClient := yahoo.NewClient(usCatalog,
		yahoo.WithBaseURL(yahooCfg.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithMinInterval(yahooCfg.GetMinInterval()),
		yahoo.WithTimeout(yahooCfg.GetTimeout()),
	)

	r := router.NewRouter(
		router.Route{Provider: naverClient, Catalog: koreaCatalog},
		router.Route{Provider: yahooClient, Catalog: usCatalog},
	)

	watchlistService := watchlist.NewService(badger.NewTickerStorage(store, logger), r, logger)
	if err := watchlistService.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	orchestrator := refresh.NewOrchestrator(r, watchlistService, logger)
	crawler := catalog.NewCrawler(listing, koreaCatalog, kv, config.Catalog, config.Scheduler.GetCatalogMaxAge(), logger)
	hub := notify.NewHub(logger)
	scheduler := NewScheduler(orchestrator, crawler, koreaCatalog, hub, config.Scheduler, logger)

	a := &App{
		Config:     config,
		Logger:     logger,
		Store:      store,
		KV:         kv,
		Timestamps: kv,
		Catalogs: map[models.Market]*catalogfs.Store{
			models.MarketKorea: koreaCatalog,
			models.MarketUS:    usCatalog,
		},
		Router:      r,
		Watchlist:   watchlistService,
		Refresh:     orchestrator,
		Crawler:     crawler,
		Hub:         hub,
		Scheduler:   scheduler,
		StartupTime: startupStart,
	}
	a.markFirstLaunch(ctx)

	logger.Info().
		Int("tickers", len(watchlistService.List())).
		Int("korea_catalog", koreaCatalog.Len()).
		Int("us_catalog", usCatalog.Len()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// markFirstLaunch records the first launch time once.
func (a *App) markFirstLaunch(ctx context.Context) {
	first, err := a.Timestamps.GetTime(ctx, interfaces.KeyFirstLaunch)
	if err == nil && !first.IsZero() {
		a.FirstLaunch = first
		return
	}
	a.FirstLaunch = time.Now()
	a.IsFirstLaunch = true
	if err := a.Timestamps.SetTime(ctx, interfaces.KeyFirstLaunch, a.FirstLaunch); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to record first launch")
	}
}

// Start launches the event hub and the refresh scheduler.
func (a *App) Start() {
	go a.Hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.schedulerDone = make(chan struct{})
	go func() {
		defer close(a.schedulerDone)
		a.Scheduler.Run(ctx)
	}()
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler and wait for its batch, stop hub, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
		select {
		case <-a.schedulerDone:
		case <-time.After(15 * time.Second):
			a.Logger.Warn().Msg("Scheduler did not stop in time")
		}
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.Store != nil {
		a.Store.Close()
		a.Store = nil
	}
}
