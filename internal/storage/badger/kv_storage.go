package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// KVEntry represents a key-value pair stored in BadgerDB.
type KVEntry struct {
	Key   string `badgerhold:"key"`
	Value string
}

type kvStorage struct {
	store  *Store
	logger *common.Logger
}

// NewKVStorage creates a new KeyValueStorage backed by BadgerHold.
func NewKVStorage(store *Store, logger *common.Logger) *kvStorage {
	return &kvStorage{store: store, logger: logger}
}

// Get returns the value for key; a missing key wraps models.ErrNotFound.
func (s *kvStorage) Get(_ context.Context, key string) (string, error) {
	var entry KVEntry
	err := s.store.db.Get(key, &entry)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", fmt.Errorf("key '%s': %w", key, models.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return entry.Value, nil
}

func (s *kvStorage) Set(_ context.Context, key, value string) error {
	entry := KVEntry{Key: key, Value: value}
	if err := s.store.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

func (s *kvStorage) Delete(_ context.Context, key string) error {
	err := s.store.db.Delete(key, KVEntry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// GetTime reads an RFC3339 timestamp. A missing key returns the zero time and no error.
func (s *kvStorage) GetTime(ctx context.Context, key string) (time.Time, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Stored timestamp unreadable, treating as unset")
		return time.Time{}, nil
	}
	return t, nil
}

func (s *kvStorage) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.Set(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

var (
	_ interfaces.KeyValueStorage  = (*kvStorage)(nil)
	_ interfaces.TimestampStorage = (*kvStorage)(nil)
)
