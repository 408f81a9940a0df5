// Package interfaces defines service contracts for the ticker engine
package interfaces

import (
	"context"

	"github.com/bobmcallan/ticker/internal/models"
)

// QuoteProvider fetches current prices for one market and searches that market's catalog.
type QuoteProvider interface {
	// Market returns the market this provider serves
	Market() models.Market

	// GetPrice fetches a single instrument's price. Failures are *models.QuoteError
	// with kind NotFound, UpstreamError, Timeout or Malformed.
	GetPrice(ctx context.Context, symbol string) (models.QuoteResult, error)

	// SearchSymbols searches the in-memory catalog; it never touches the network
	SearchSymbols(query string) []models.SearchResult
}

// ListingSource returns the instrument rows on one page of a paginated exchange listing.
// An empty slice signals the end of the listing.
type ListingSource interface {
	FetchPage(ctx context.Context, segment string, page int) ([]models.CatalogEntry, error)
}
