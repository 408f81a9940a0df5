// Package catalogfs implements the per-market symbol catalog as a JSON file
// with an in-memory index for search and delisting checks.
package catalogfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// catalogFile is the on-disk document, one per market.
type catalogFile struct {
	Market    models.Market         `json:"market"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Entries   []models.CatalogEntry `json:"entries"`
}

// Store holds one market's catalog.
type Store struct {
	market  models.Market
	path    string
	logger  *common.Logger
	matcher matcher
	now     func() time.Time

	// file operations, swapped in tests to simulate failures
	rename    func(oldpath, newpath string) error
	writeFile func(name string, data []byte, perm os.FileMode) error

	mu        sync.RWMutex
	entries   []models.CatalogEntry
	index     map[string]int
	updatedAt time.Time
}

// NewStore opens the catalog for market under dir. When no catalog file exists
// the seed entries (possibly nil) are served until the first Replace.
func NewStore(logger *common.Logger, dir string, market models.Market, seed []models.CatalogEntry) (*Store, error) {
	m, err := matcherFor(market)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog path %s: %w", dir, err)
	}

	s := &Store{
		market:    market,
		path:      filepath.Join(dir, string(market)+".json"),
		logger:    logger,
		matcher:   m,
		now:       time.Now,
		rename:    os.Rename,
		writeFile: os.WriteFile,
	}

	if err := s.load(seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(seed []models.CatalogEntry) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.swap(seed, time.Time{})
		s.logger.Info().Str("market", string(s.market)).Int("entries", len(seed)).Msg("Catalog file missing, using seed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", s.path, err)
	}

	var doc catalogFile
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt file is treated like a missing one so the next crawl can replace it.
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Catalog file unreadable, using seed")
		s.swap(seed, time.Time{})
		return nil
	}

	s.swap(doc.Entries, doc.UpdatedAt)
	s.logger.Info().Str("market", string(s.market)).Int("entries", len(doc.Entries)).Msg("Catalog loaded")
	return nil
}

func (s *Store) swap(entries []models.CatalogEntry, updatedAt time.Time) {
	cp := make([]models.CatalogEntry, len(entries))
	copy(cp, entries)
	index := make(map[string]int, len(cp))
	for i, e := range cp {
		if _, ok := index[e.Code]; !ok {
			index[e.Code] = i
		}
	}

	s.mu.Lock()
	s.entries = cp
	s.index = index
	s.updatedAt = updatedAt
	s.mu.Unlock()
}

// Market returns the market this catalog describes.
func (s *Store) Market() models.Market {
	return s.market
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// Entries returns a copy of the catalog in insertion order.
func (s *Store) Entries() []models.CatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]models.CatalogEntry, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Contains reports whether code is listed.
func (s *Store) Contains(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[code]
	return ok
}

// Lookup returns the entry for code.
func (s *Store) Lookup(code string) (models.CatalogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[code]
	if !ok {
		return models.CatalogEntry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// UpdatedAt returns the time the catalog file was last written, zero for a seed.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Exists reports whether the catalog file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Search returns up to MaxSearchResults entries whose code or name contains
// the sanitized query, in catalog order.
func (s *Store) Search(query string) []models.SearchResult {
	q, ok := s.matcher.sanitize(query)
	if !ok {
		return []models.SearchResult{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.SearchResult, 0, MaxSearchResults)
	for _, e := range s.entries {
		if !s.matcher.match(e, q) {
			continue
		}
		results = append(results, models.SearchResult{Symbol: e.Code, Name: e.Name, Market: s.market})
		if len(results) == MaxSearchResults {
			break
		}
	}
	return results
}

// Replace persists entries atomically and then swaps them in memory. On
// failure the previous file and in-memory catalog are left as they were.
func (s *Store) Replace(entries []models.CatalogEntry) error {
	now := s.now()
	data, err := json.MarshalIndent(catalogFile{Market: s.market, UpdatedAt: now, Entries: entries}, "", "  ")
	if err != nil {
		return models.NewError(models.KindPersistenceFailure, "catalog marshal", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Catalog save failed")
		return err
	}

	s.swap(entries, now)
	s.logger.Info().Str("market", string(s.market)).Int("entries", len(entries)).Msg("Catalog saved")
	return nil
}

// Ensure Store implements CatalogStore
var _ interfaces.CatalogStore = (*Store)(nil)
