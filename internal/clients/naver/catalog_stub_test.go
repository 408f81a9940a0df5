package naver

import "github.com/bobmcallan/ticker/internal/models"

// searchOnlyCatalog satisfies CatalogStore for provider tests; only Search is exercised.
type searchOnlyCatalog struct {
	stub *stubCatalog
}

func (c *searchOnlyCatalog) Market() models.Market                     { return models.MarketKorea }
func (c *searchOnlyCatalog) Entries() []models.CatalogEntry            { return nil }
func (c *searchOnlyCatalog) Contains(string) bool                      { return false }
func (c *searchOnlyCatalog) Lookup(string) (models.CatalogEntry, bool) { return models.CatalogEntry{}, false }
func (c *searchOnlyCatalog) Search(q string) []models.SearchResult     { return c.stub.Search(q) }
func (c *searchOnlyCatalog) Replace([]models.CatalogEntry) error       { return nil }
func (c *searchOnlyCatalog) Len() int                                  { return 0 }
func (c *searchOnlyCatalog) Exists() bool                              { return false }
