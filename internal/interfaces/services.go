package interfaces

import (
	"context"

	"github.com/bobmcallan/ticker/internal/models"
)

// MarketRouter resolves a market to its provider and catalog.
type MarketRouter interface {
	Resolve(market models.Market) (QuoteProvider, CatalogStore, error)
}

// RefreshService runs one refresh batch over the tracked list.
type RefreshService interface {
	RefreshAll(ctx context.Context) (*models.RefreshBatchOutcome, error)
}

// CatalogUpdater rebuilds the domestic catalog.
type CatalogUpdater interface {
	Update(ctx context.Context) ([]models.CatalogEntry, error)
}

// EventPublisher delivers status notifications to the presentation layer.
type EventPublisher interface {
	Publish(event models.RefreshEvent)
}

// WatchlistService owns the ordered tracked-ticker list. Every mutation is persisted.
type WatchlistService interface {
	// Load reads the persisted list into memory
	Load(ctx context.Context) error

	// List returns deep copies of the tracked tickers in order
	List() []*models.Ticker

	// Add tracks a catalog-listed symbol; duplicates fail with ErrAlreadyTracked
	Add(ctx context.Context, symbol string, market models.Market) (*models.Ticker, error)

	// Remove stops tracking key
	Remove(ctx context.Context, key models.TickerKey) error

	// Reorder applies a full permutation of the tracked keys
	Reorder(ctx context.Context, order []models.TickerKey) error

	// Update applies fn to working copies under the list lock and persists the returned list
	Update(ctx context.Context, fn func(tickers []*models.Ticker) []*models.Ticker) error
}
