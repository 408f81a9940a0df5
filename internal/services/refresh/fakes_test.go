package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bobmcallan/ticker/internal/models"
)

// memStorage is an in-memory TickerStorage.
type memStorage struct {
	mu      sync.Mutex
	tickers []*models.Ticker
	saves   int
	failErr error
}

func (m *memStorage) GetTickers(_ context.Context) ([]*models.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickers, nil
}

func (m *memStorage) SaveTickers(_ context.Context, tickers []*models.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.tickers = tickers
	m.saves++
	return nil
}

// fakeProvider returns scripted outcomes per symbol; the last script entry repeats.
type fakeProvider struct {
	market models.Market

	mu      sync.Mutex
	scripts map[string][]error
	prices  map[string]float64
	calls   map[string]int
	onFetch func(symbol string)
}

func newFakeProvider(market models.Market) *fakeProvider {
	return &fakeProvider{
		market:  market,
		scripts: map[string][]error{},
		prices:  map[string]float64{},
		calls:   map[string]int{},
	}
}

func (p *fakeProvider) Market() models.Market { return p.market }

func (p *fakeProvider) GetPrice(_ context.Context, symbol string) (models.QuoteResult, error) {
	p.mu.Lock()
	n := p.calls[symbol]
	p.calls[symbol]++
	var err error
	if script := p.scripts[symbol]; len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		err = script[n]
	}
	price := p.prices[symbol]
	hook := p.onFetch
	p.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}
	if err != nil {
		return models.QuoteResult{}, err
	}
	return models.QuoteResult{Price: price, ChangeAmount: 1.5, ChangePercentage: 0.75, Success: true, Source: "fake"}, nil
}

func (p *fakeProvider) SearchSymbols(string) []models.SearchResult { return nil }

func (p *fakeProvider) callCount(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// fakeCatalog is a fixed CatalogStore.
type fakeCatalog struct {
	market  models.Market
	entries []models.CatalogEntry
}

func (c *fakeCatalog) Market() models.Market { return c.market }

func (c *fakeCatalog) Entries() []models.CatalogEntry { return c.entries }

func (c *fakeCatalog) Contains(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

func (c *fakeCatalog) Lookup(code string) (models.CatalogEntry, bool) {
	for _, e := range c.entries {
		if e.Code == code {
			return e, true
		}
	}
	return models.CatalogEntry{}, false
}

func (c *fakeCatalog) Search(query string) []models.SearchResult {
	var out []models.SearchResult
	for _, e := range c.entries {
		if strings.Contains(e.Name, query) {
			out = append(out, models.SearchResult{Symbol: e.Code, Name: e.Name, Market: c.market})
		}
	}
	return out
}

func (c *fakeCatalog) Replace(entries []models.CatalogEntry) error {
	return errors.New("read-only")
}

func (c *fakeCatalog) Len() int { return len(c.entries) }

func (c *fakeCatalog) Exists() bool { return true }
