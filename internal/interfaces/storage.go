package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/ticker/internal/models"
)

// CatalogStore is the read side of a per-market catalog plus wholesale replacement.
type CatalogStore interface {
	// Market returns the market this catalog describes
	Market() models.Market

	// Entries returns a copy of the catalog in insertion order
	Entries() []models.CatalogEntry

	// Contains reports whether code is listed
	Contains(code string) bool

	// Lookup returns the entry for code
	Lookup(code string) (models.CatalogEntry, bool)

	// Search returns up to 10 sanitized substring matches in catalog order
	Search(query string) []models.SearchResult

	// Replace persists a new catalog atomically and swaps it in memory
	Replace(entries []models.CatalogEntry) error

	// Len returns the number of entries
	Len() int

	// Exists reports whether the catalog file is present on disk
	Exists() bool
}

// TickerStorage persists the ordered tracked-ticker list.
type TickerStorage interface {
	GetTickers(ctx context.Context) ([]*models.Ticker, error)
	SaveTickers(ctx context.Context, tickers []*models.Ticker) error
}

// KeyValueStorage provides string key-value persistence.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TimestampStorage stores named timestamps (catalog update time, first launch).
type TimestampStorage interface {
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// Well-known TimestampStorage keys.
const (
	KeyLastCatalogUpdate = "lastCatalogUpdate"
	KeyFirstLaunch       = "firstLaunch"
)
