// Package catalog rebuilds the domestic symbol catalog from the paginated listing.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

const (
	DefaultMaxPages   = 50
	DefaultMinEntries = 100
)

// Crawler walks every configured listing segment and replaces the catalog
// when the deduplicated result is large enough to be trusted.
type Crawler struct {
	source     interfaces.ListingSource
	store      interfaces.CatalogStore
	timestamps interfaces.TimestampStorage
	segments   []common.SegmentConfig
	maxPages   int
	minEntries int
	maxAge     time.Duration
	logger     *common.Logger
	now        func() time.Time
}

// NewCrawler creates a crawler writing into store.
func NewCrawler(source interfaces.ListingSource, store interfaces.CatalogStore, timestamps interfaces.TimestampStorage, cfg common.CatalogConfig, maxAge time.Duration, logger *common.Logger) *Crawler {
	c := &Crawler{
		source:     source,
		store:      store,
		timestamps: timestamps,
		segments:   cfg.Segments,
		maxPages:   cfg.MaxPages,
		minEntries: cfg.MinEntries,
		maxAge:     maxAge,
		logger:     logger,
		now:        time.Now,
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}
	if c.minEntries <= 0 {
		c.minEntries = DefaultMinEntries
	}
	if c.maxAge <= 0 {
		c.maxAge = common.FreshnessCatalog
	}
	return c
}

// Crawl fetches pages 1..maxPages of one segment, stopping at the first empty
// page. Any page error aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, segment common.SegmentConfig) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	for page := 1; page <= c.maxPages; page++ {
		rows, err := c.source.FetchPage(ctx, segment.ID, page)
		if err != nil {
			return nil, fmt.Errorf("crawl %s page %d: %w", segment.Name, page, err)
		}
		if len(rows) == 0 {
			c.logger.Debug().Str("segment", segment.Name).Int("page", page).Msg("End of listing")
			break
		}
		for _, r := range rows {
			if segment.Name != "" {
				r.Segment = segment.Name
			}
			entries = append(entries, r)
		}
		c.logger.Debug().Str("segment", segment.Name).Int("page", page).Int("rows", len(rows)).Msg("Listing page crawled")
	}
	return entries, nil
}

// Update crawls every segment, deduplicates, validates the size and replaces
// the catalog. On any failure the existing catalog is left untouched.
func (c *Crawler) Update(ctx context.Context) ([]models.CatalogEntry, error) {
	start := c.now()

	var all []models.CatalogEntry
	for _, seg := range c.segments {
		entries, err := c.Crawl(ctx, seg)
		if err != nil {
			c.logger.Warn().Err(err).Str("segment", seg.Name).Msg("Catalog crawl aborted")
			return nil, err
		}
		all = append(all, entries...)
	}

	unique := Dedupe(all)
	if len(unique) < c.minEntries {
		return nil, models.NewError(models.KindInsufficientData, "catalog update",
			fmt.Errorf("%d entries, need at least %d", len(unique), c.minEntries))
	}

	if err := c.store.Replace(unique); err != nil {
		return nil, err
	}

	if err := c.timestamps.SetTime(ctx, interfaces.KeyLastCatalogUpdate, c.now()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record catalog update time")
	}

	c.logger.Info().
		Int("entries", len(unique)).
		Int("duplicates", len(all)-len(unique)).
		Dur("elapsed", c.now().Sub(start)).
		Msg("Catalog updated")
	return unique, nil
}

// LastUpdated returns the recorded time of the last successful update, zero if none.
func (c *Crawler) LastUpdated(ctx context.Context) time.Time {
	t, err := c.timestamps.GetTime(ctx, interfaces.KeyLastCatalogUpdate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NeedsUpdate reports whether the catalog is missing or older than maxAge.
func (c *Crawler) NeedsUpdate(ctx context.Context) bool {
	if !c.store.Exists() {
		return true
	}
	return common.NeedsUpdate(c.LastUpdated(ctx), c.now(), c.maxAge)
}

// Dedupe drops later entries whose code was already seen.
func Dedupe(entries []models.CatalogEntry) []models.CatalogEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Code]; ok {
			continue
		}
		seen[e.Code] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Ensure Crawler implements CatalogUpdater
var _ interfaces.CatalogUpdater = (*Crawler)(nil)
