package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// TickersKey is the stable key of the tracked ticker list.
const TickersKey = "stocks"

// tickerList is the persisted record: the whole ordered list under one key.
type tickerList struct {
	Key    string           `badgerhold:"key" json:"-"`
	Stocks []*models.Ticker `json:"stocks"`
}

type tickerStorage struct {
	store  *Store
	logger *common.Logger
}

// NewTickerStorage creates a new TickerStorage backed by BadgerHold.
func NewTickerStorage(store *Store, logger *common.Logger) *tickerStorage {
	return &tickerStorage{store: store, logger: logger}
}

// GetTickers returns the persisted list in order; an empty list when none was saved.
func (s *tickerStorage) GetTickers(_ context.Context) ([]*models.Ticker, error) {
	var list tickerList
	err := s.store.db.Get(TickersKey, &list)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return []*models.Ticker{}, nil
		}
		return nil, fmt.Errorf("failed to get tickers: %w", err)
	}
	if list.Stocks == nil {
		list.Stocks = []*models.Ticker{}
	}
	return list.Stocks, nil
}

func (s *tickerStorage) SaveTickers(_ context.Context, tickers []*models.Ticker) error {
	list := tickerList{Key: TickersKey, Stocks: tickers}
	if err := s.store.db.Upsert(TickersKey, &list); err != nil {
		return fmt.Errorf("failed to save tickers: %w", err)
	}
	s.logger.Debug().Int("count", len(tickers)).Msg("Tickers saved")
	return nil
}

// Ensure tickerStorage implements TickerStorage
var _ interfaces.TickerStorage = (*tickerStorage)(nil)
