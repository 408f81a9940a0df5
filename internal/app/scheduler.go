package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// Refresh triggers.
const (
	TriggerInitial   = "initial"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// CatalogMaintainer rebuilds the domestic catalog when it is stale.
type CatalogMaintainer interface {
	interfaces.CatalogUpdater
	NeedsUpdate(ctx context.Context) bool
}

// SchedulerStatus is a point-in-time view of the scheduler for the status API.
type SchedulerStatus struct {
	Refreshing      bool                        `json:"refreshing"`
	CatalogUpdating bool                        `json:"catalog_updating"`
	MarketOpen      bool                        `json:"market_open"`
	LastTrigger     string                      `json:"last_trigger,omitempty"`
	LastError       string                      `json:"last_error,omitempty"`
	LastBatch       *models.RefreshBatchOutcome `json:"last_batch,omitempty"`
	Batches         int64                       `json:"batches"`
	Suppressed      int64                       `json:"suppressed"`
	Skipped         int64                       `json:"skipped"`
}

// Scheduler drives refresh batches from a periodic timer and a debounced
// manual trigger, with at most one batch in flight. It also keeps the
// domestic catalog fresh.
type Scheduler struct {
	refresh interfaces.RefreshService
	crawler CatalogMaintainer
	catalog interfaces.CatalogStore
	events  interfaces.EventPublisher
	window  common.TradingWindow
	logger  *common.Logger
	now     func() time.Time

	interval     time.Duration
	debounce     time.Duration
	catalogDelay time.Duration
	catalogCheck time.Duration
	manual       chan struct{}

	refreshing  atomic.Bool
	catalogBusy atomic.Bool
	batches     atomic.Int64
	suppressed  atomic.Int64
	skipped     atomic.Int64
	wg          sync.WaitGroup

	mu          sync.Mutex
	last        *models.RefreshBatchOutcome
	lastTrigger string
	lastErr     string
}

// NewScheduler creates a scheduler from the [scheduler] config section.
func NewScheduler(refresh interfaces.RefreshService, crawler CatalogMaintainer, catalog interfaces.CatalogStore, events interfaces.EventPublisher, cfg common.SchedulerConfig, logger *common.Logger) *Scheduler {
	return &Scheduler{
		refresh:      refresh,
		crawler:      crawler,
		catalog:      catalog,
		events:       events,
		window:       cfg.TradingWindow(),
		logger:       logger,
		now:          time.Now,
		interval:     cfg.GetRefreshInterval(),
		debounce:     cfg.GetManualDebounce(),
		catalogDelay: cfg.GetCatalogDelay(),
		catalogCheck: time.Hour,
		manual:       make(chan struct{}, 1),
	}
}

// Run bootstraps the catalog, performs the initial refresh and then serves
// timer ticks and manual triggers until ctx is cancelled. It waits for any
// in-flight batch before returning.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	s.bootstrapCatalog(ctx)
	s.startBatch(ctx, TriggerInitial)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	catalogTicker := time.NewTicker(s.catalogCheck)
	defer catalogTicker.Stop()

	debounce := time.NewTimer(s.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh scheduler: stopped")
			return

		case <-ticker.C:
			if !s.window.IsOpen(s.now()) {
				s.skipped.Add(1)
				s.logger.Trace().Msg("Market closed, scheduled refresh skipped")
				continue
			}
			s.startBatch(ctx, TriggerScheduled)

		case <-s.manual:
			debounce.Reset(s.debounce)

		case <-debounce.C:
			s.startBatch(ctx, TriggerManual)

		case <-catalogTicker.C:
			if s.crawler.NeedsUpdate(ctx) {
				s.startCatalogUpdate(ctx, 0)
			}
		}
	}
}

// TriggerRefresh requests a manual refresh. Requests within the debounce
// window collapse into one batch run after the last request.
func (s *Scheduler) TriggerRefresh() {
	select {
	case s.manual <- struct{}{}:
	default:
	}
}

// startBatch runs a batch in the background unless one is already in flight.
func (s *Scheduler) startBatch(ctx context.Context, trigger string) bool {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.suppressed.Add(1)
		s.logger.Debug().Str("trigger", trigger).Msg("Refresh already running, trigger suppressed")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.refreshing.Store(false)
		s.runBatch(ctx, trigger)
	}()
	return true
}

func (s *Scheduler) runBatch(ctx context.Context, trigger string) {
	s.events.Publish(models.RefreshEvent{Type: models.EventLoadingStarted, Timestamp: s.now()})

	outcome, err := s.refresh.RefreshAll(ctx)
	s.batches.Add(1)

	batchID := ""
	if outcome != nil {
		batchID = outcome.BatchID
	}
	s.events.Publish(models.FinishedEvent(models.EventLoadingFinished, batchID, err, s.now()))

	if outcome != nil && len(outcome.Delisted) > 0 {
		s.events.Publish(models.RefreshEvent{
			Type:      models.EventDelistedRemoved,
			BatchID:   batchID,
			Delisted:  outcome.Delisted,
			Timestamp: s.now(),
		})
	}

	s.mu.Lock()
	s.last = outcome
	s.lastTrigger = trigger
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("Refresh batch failed")
	}
}

// bootstrapCatalog crawls synchronously when no catalog file exists, and in
// the background after catalogDelay when the existing one is stale.
func (s *Scheduler) bootstrapCatalog(ctx context.Context) {
	if !s.catalog.Exists() {
		s.logger.Info().Msg("No domestic catalog on disk, crawling before first refresh")
		s.updateCatalog(ctx)
		return
	}
	if s.crawler.NeedsUpdate(ctx) {
		s.startCatalogUpdate(ctx, s.catalogDelay)
	}
}

func (s *Scheduler) startCatalogUpdate(ctx context.Context, delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
		s.updateCatalog(ctx)
	}()
}

// updateCatalog runs one crawl; a crawl already in progress makes this a no-op.
func (s *Scheduler) updateCatalog(ctx context.Context) {
	if !s.catalogBusy.CompareAndSwap(false, true) {
		return
	}
	defer s.catalogBusy.Store(false)

	s.events.Publish(models.RefreshEvent{Type: models.EventCatalogLoading, Timestamp: s.now()})
	_, err := s.crawler.Update(ctx)
	s.events.Publish(models.FinishedEvent(models.EventCatalogUpdated, "", err, s.now()))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Catalog update failed, keeping previous catalog")
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Refreshing:      s.refreshing.Load(),
		CatalogUpdating: s.catalogBusy.Load(),
		MarketOpen:      s.window.IsOpen(s.now()),
		LastTrigger:     s.lastTrigger,
		LastError:       s.lastErr,
		LastBatch:       s.last,
		Batches:         s.batches.Load(),
		Suppressed:      s.suppressed.Load(),
		Skipped:         s.skipped.Load(),
	}
}
