// Package watchlist provides management of the tracked ticker list
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

var (
	ErrAlreadyTracked = errors.New("ticker already tracked")
	ErrNotTracked     = errors.New("ticker not tracked")
	ErrInvalidOrder   = errors.New("order must list every tracked ticker exactly once")
)

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service implements WatchlistService
type Service struct {
	storage interfaces.TickerStorage
	router  interfaces.MarketRouter
	logger  *common.Logger

	mu      sync.Mutex
	tickers []*models.Ticker
}

// NewService creates a new watchlist service
func NewService(storage interfaces.TickerStorage, router interfaces.MarketRouter, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		router:  router,
		logger:  logger,
		tickers: []*models.Ticker{},
	}
}

// Load reads the persisted list. Duplicate (symbol, market) records keep the first.
func (s *Service) Load(ctx context.Context) error {
	tickers, err := s.storage.GetTickers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tickers: %w", err)
	}

	seen := make(map[models.TickerKey]bool, len(tickers))
	list := make([]*models.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if t == nil || seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		list = append(list, t)
	}

	s.mu.Lock()
	s.tickers = list
	s.mu.Unlock()

	s.logger.Info().Int("count", len(list)).Msg("Tracked tickers loaded")
	return nil
}

// List returns deep copies of the tracked tickers in order
func (s *Service) List() []*models.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.tickers)
}

// Add tracks symbol in market. The symbol must be listed in that market's catalog.
func (s *Service) Add(ctx context.Context, symbol string, market models.Market) (*models.Ticker, error) {
	_, catalog, err := s.router.Resolve(market)
	if err != nil {
		return nil, err
	}

	symbol = models.NormalizeSymbol(market, symbol)
	entry, ok := catalog.Lookup(symbol)
	if !ok {
		return nil, models.NewError(models.KindNotFound, "add", fmt.Errorf("'%s' is not listed in the %s catalog", symbol, market))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.TickerKey{Symbol: entry.Code, Market: market}
	if indexOf(s.tickers, key) >= 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrAlreadyTracked)
	}

	t := models.NewTicker(entry.Code, entry.Name, market)
	s.tickers = append(s.tickers, t)
	if err := s.persist(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Str("symbol", t.Symbol).Str("market", string(market)).Msg("Ticker added")
	return t.Clone(), nil
}

// Remove stops tracking key
func (s *Service) Remove(ctx context.Context, key models.TickerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.tickers, key)
	if idx < 0 {
		return fmt.Errorf("%s: %w", key, ErrNotTracked)
	}
	s.tickers = append(s.tickers[:idx:idx], s.tickers[idx+1:]...)
	if err := s.persist(ctx); err != nil {
		return err
	}

	s.logger.Info().Str("ticker", key.String()).Msg("Ticker removed")
	return nil
}

// Reorder applies order, which must be a permutation of the tracked keys
func (s *Service) Reorder(ctx context.Context, order []models.TickerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order) != len(s.tickers) {
		return ErrInvalidOrder
	}
	byKey := make(map[models.TickerKey]*models.Ticker, len(s.tickers))
	for _, t := range s.tickers {
		byKey[t.Key()] = t
	}

	reordered := make([]*models.Ticker, 0, len(order))
	for _, k := range order {
		t, ok := byKey[k]
		if !ok {
			return fmt.Errorf("%s: %w", k, ErrInvalidOrder)
		}
		delete(byKey, k)
		reordered = append(reordered, t)
	}

	s.tickers = reordered
	return s.persist(ctx)
}

// Update hands fn working copies of the list under the lock and installs the
// returned list. Mutations from concurrent fetches go through here one batch at a time.
func (s *Service) Update(ctx context.Context, fn func(tickers []*models.Ticker) []*models.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := fn(cloneAll(s.tickers))
	if updated == nil {
		updated = []*models.Ticker{}
	}
	s.tickers = updated
	return s.persist(ctx)
}

// persist saves the current list; the in-memory list stays authoritative on failure.
// Caller holds s.mu.
func (s *Service) persist(ctx context.Context) error {
	if err := s.storage.SaveTickers(ctx, cloneAll(s.tickers)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist tracked tickers")
		return fmt.Errorf("failed to save tickers: %w", err)
	}
	return nil
}

func indexOf(tickers []*models.Ticker, key models.TickerKey) int {
	for i, t := range tickers {
		if t.Key() == key {
			return i
		}
	}
	return -1
}

func cloneAll(tickers []*models.Ticker) []*models.Ticker {
	out := make([]*models.Ticker, len(tickers))
	for i, t := range tickers {
		out[i] = t.Clone()
	}
	return out
}
