package watchlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/models"
	"github.com/bobmcallan/ticker/internal/services/router"
	"github.com/bobmcallan/ticker/internal/storage/catalogfs"
)

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

func (m *memStorage) symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.tickers))
	for i, t := range m.tickers {
		out[i] = t.Symbol
	}
	return out
}

type nopProvider struct{ market models.Market }

func (p nopProvider) Market() models.Market { return p.market }
func (p nopProvider) GetPrice(context.Context, string) (models.QuoteResult, error) {
	return models.QuoteResult{}, models.ErrUpstream
}
func (p nopProvider) SearchSymbols(string) []models.SearchResult { return nil }

func newTestService(t *testing.T, stored ...*models.Ticker) (*Service, *memStorage) {
	t.Helper()
	logger := common.NewSilentLogger()
	dir := t.TempDir()

	korea, err := catalogfs.NewStore(logger, dir, models.MarketKorea, []models.CatalogEntry{
		{Code: "005930", Name: "삼성전자"},
		{Code: "000660", Name: "SK하이닉스"},
	})
	require.NoError(t, err)
	us, err := catalogfs.NewStore(logger, dir, models.MarketUS, catalogfs.USSeed())
	require.NoError(t, err)

	r := router.NewRouter(
		router.Route{Provider: nopProvider{models.MarketKorea}, Catalog: korea},
		router.Route{Provider: nopProvider{models.MarketUS}, Catalog: us},
	)

	storage := &memStorage{tickers: stored}
	svc := NewService(storage, r, logger)
	require.NoError(t, svc.Load(context.Background()))
	return svc, storage
}

func TestLoad_DropsDuplicateKeys(t *testing.T) {
	svc, _ := newTestService(t,
		models.NewTicker("005930", "삼성전자", models.MarketKorea),
		models.NewTicker("005930", "dup", models.MarketKorea),
		models.NewTicker("AAPL", "Apple Inc.", models.MarketUS),
	)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, "삼성전자", list[0].Name)
}

func TestAdd_UsesCatalogNameAndPersists(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Add(ctx, " aapl ", models.MarketUS)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tk.Symbol)
	assert.Equal(t, "Apple Inc.", tk.Name)
	assert.Equal(t, 0, tk.ConsecutiveErrors)

	_, err = svc.Add(ctx, "005930", models.MarketKorea)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "005930"}, storage.symbols())
	assert.Equal(t, 2, storage.saves)
}

func TestAdd_PadsShortDomesticCode(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Add(ctx, "5930", models.MarketKorea)
	require.NoError(t, err)
	assert.Equal(t, "005930", tk.Symbol)
	assert.Equal(t, "삼성전자", tk.Name)
	assert.Equal(t, []string{"005930"}, storage.symbols())

	_, err = svc.Add(ctx, " 005930 ", models.MarketKorea)
	assert.ErrorIs(t, err, ErrAlreadyTracked)

	require.NoError(t, svc.Remove(ctx, models.TickerKey{Symbol: "005930", Market: models.MarketKorea}))
}

func TestAdd_RejectsDuplicate(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "005930", models.MarketKorea)
	require.NoError(t, err)

	_, err = svc.Add(ctx, "005930", models.MarketKorea)
	assert.ErrorIs(t, err, ErrAlreadyTracked)
	assert.Len(t, svc.List(), 1)
	assert.Equal(t, 1, storage.saves)
}

func TestAdd_SameSymbolDifferentMarketIsDistinct(t *testing.T) {
	logger := common.NewSilentLogger()
	dir := t.TempDir()
	korea, err := catalogfs.NewStore(logger, dir, models.MarketKorea, []models.CatalogEntry{{Code: "V", Name: "odd but listed"}})
	require.NoError(t, err)
	us, err := catalogfs.NewStore(logger, dir, models.MarketUS, catalogfs.USSeed())
	require.NoError(t, err)
	r := router.NewRouter(
		router.Route{Provider: nopProvider{models.MarketKorea}, Catalog: korea},
		router.Route{Provider: nopProvider{models.MarketUS}, Catalog: us},
	)
	svc := NewService(&memStorage{}, r, logger)

	_, err = svc.Add(context.Background(), "V", models.MarketUS)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "V", models.MarketKorea)
	require.NoError(t, err)
	assert.Len(t, svc.List(), 2)
}

func TestAdd_RejectsUnlistedAndUnknownMarket(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "123456", models.MarketKorea)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Add(ctx, "7203", models.Market("jp"))
	assert.ErrorIs(t, err, models.ErrUnknownMarket)

	assert.Empty(t, svc.List())
}

func TestRemove(t *testing.T) {
	svc, storage := newTestService(t,
		models.NewTicker("005930", "삼성전자", models.MarketKorea),
		models.NewTicker("AAPL", "Apple Inc.", models.MarketUS),
		models.NewTicker("000660", "SK하이닉스", models.MarketKorea),
	)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, models.TickerKey{Symbol: "AAPL", Market: models.MarketUS}))
	assert.Equal(t, []string{"005930", "000660"}, storage.symbols())

	err := svc.Remove(ctx, models.TickerKey{Symbol: "AAPL", Market: models.MarketUS})
	assert.ErrorIs(t, err, ErrNotTracked)

	err = svc.Remove(ctx, models.TickerKey{Symbol: "005930", Market: models.MarketUS})
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestReorder(t *testing.T) {
	svc, storage := newTestService(t,
		models.NewTicker("005930", "삼성전자", models.MarketKorea),
		models.NewTicker("AAPL", "Apple Inc.", models.MarketUS),
		models.NewTicker("000660", "SK하이닉스", models.MarketKorea),
	)
	ctx := context.Background()

	order := []models.TickerKey{
		{Symbol: "000660", Market: models.MarketKorea},
		{Symbol: "005930", Market: models.MarketKorea},
		{Symbol: "AAPL", Market: models.MarketUS},
	}
	require.NoError(t, svc.Reorder(ctx, order))
	assert.Equal(t, []string{"000660", "005930", "AAPL"}, storage.symbols())

	tests := []struct {
		name  string
		order []models.TickerKey
	}{
		{"too short", order[:2]},
		{"duplicate key", []models.TickerKey{order[0], order[0], order[1]}},
		{"unknown key", []models.TickerKey{order[0], order[1], {Symbol: "MSFT", Market: models.MarketUS}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Reorder(ctx, tt.order)
			assert.ErrorIs(t, err, ErrInvalidOrder)
			assert.Equal(t, []string{"000660", "005930", "AAPL"}, storage.symbols())
		})
	}
}

func TestList_ReturnsCopies(t *testing.T) {
	svc, _ := newTestService(t, models.NewTicker("005930", "삼성전자", models.MarketKorea))

	list := svc.List()
	list[0].ConsecutiveErrors = 9
	list[0].Name = "changed"

	again := svc.List()
	assert.Equal(t, 0, again[0].ConsecutiveErrors)
	assert.Equal(t, "삼성전자", again[0].Name)
}

func TestUpdate_InstallsReturnedList(t *testing.T) {
	svc, storage := newTestService(t,
		models.NewTicker("005930", "삼성전자", models.MarketKorea),
		models.NewTicker("AAPL", "Apple Inc.", models.MarketUS),
	)

	err := svc.Update(context.Background(), func(tickers []*models.Ticker) []*models.Ticker {
		tickers[0].ConsecutiveErrors = 1
		return tickers[:1]
	})
	require.NoError(t, err)

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].ConsecutiveErrors)
	assert.Equal(t, []string{"005930"}, storage.symbols())
}

func TestUpdate_PersistFailureKeepsMemory(t *testing.T) {
	svc, storage := newTestService(t, models.NewTicker("005930", "삼성전자", models.MarketKorea))
	storage.failErr = errors.New("disk full")

	err := svc.Update(context.Background(), func(tickers []*models.Ticker) []*models.Ticker {
		tickers[0].ConsecutiveErrors = 2
		return tickers
	})
	require.Error(t, err)
	assert.Equal(t, 2, svc.List()[0].ConsecutiveErrors)
}
