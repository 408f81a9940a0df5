// Package refresh runs refresh batches over the tracked ticker list.
package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// Orchestrator fans out one fetch per tracked ticker, waits for all of them,
// then applies the results and the delisting check in a single locked pass.
type Orchestrator struct {
	router    interfaces.MarketRouter
	watchlist interfaces.WatchlistService
	logger    *common.Logger
	now       func() time.Time
}

// NewOrchestrator creates a refresh orchestrator
func NewOrchestrator(router interfaces.MarketRouter, watchlist interfaces.WatchlistService, logger *common.Logger) *Orchestrator {
	return &Orchestrator{
		router:    router,
		watchlist: watchlist,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshAll refreshes every tracked ticker. Per-ticker failures are recorded
// on the ticker and never abort the batch. The returned error is set when the
// updated list could not be persisted, or when ctx ended mid-batch; in the
// latter case no result is applied, so a shutdown never counts as a failure.
func (o *Orchestrator) RefreshAll(ctx context.Context) (*models.RefreshBatchOutcome, error) {
	outcome := &models.RefreshBatchOutcome{
		BatchID:   uuid.New().String(),
		StartedAt: o.now(),
		Results:   []models.TickerOutcome{},
		Delisted:  []models.DelistedTicker{},
	}

	snapshot := o.watchlist.List()
	if len(snapshot) == 0 {
		return outcome, nil
	}

	results := o.fetchAll(ctx, snapshot)
	outcome.Results = results

	if err := ctx.Err(); err != nil {
		outcome.Elapsed = o.now().Sub(outcome.StartedAt)
		o.logger.Info().
			Str("batch", outcome.BatchID).
			Int("tickers", len(results)).
			Msg("Refresh batch aborted, results discarded")
		return outcome, err
	}

	err := o.watchlist.Update(ctx, func(tickers []*models.Ticker) []*models.Ticker {
		kept, delisted := o.apply(tickers, results)
		outcome.Delisted = delisted
		return kept
	})
	outcome.Elapsed = o.now().Sub(outcome.StartedAt)

	o.logger.Info().
		Str("batch", outcome.BatchID).
		Int("tickers", len(results)).
		Int("failures", outcome.Failures()).
		Int("delisted", len(outcome.Delisted)).
		Dur("elapsed", outcome.Elapsed).
		Msg("Refresh batch complete")

	return outcome, err
}

// fetchAll issues every fetch concurrently. Goroutines never return an error,
// so Wait is a pure join over all outcomes.
func (o *Orchestrator) fetchAll(ctx context.Context, tickers []*models.Ticker) []models.TickerOutcome {
	results := make([]models.TickerOutcome, len(tickers))

	var g errgroup.Group
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			results[i] = models.TickerOutcome{Key: t.Key(), Result: o.fetch(ctx, t)}
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) fetch(ctx context.Context, t *models.Ticker) models.QuoteResult {
	provider, _, err := o.router.Resolve(t.Market)
	if err != nil {
		return models.FailedQuote(err, o.now())
	}

	q, err := provider.GetPrice(ctx, t.Symbol)
	if err != nil {
		o.logger.Warn().Err(err).Str("symbol", t.Symbol).Str("market", string(t.Market)).Msg("Quote fetch failed")
		return models.FailedQuote(err, o.now())
	}
	return q
}

// apply records each result on its ticker and removes delisting candidates
// missing from their catalog. Tickers added after the snapshot have no result
// and are left untouched; results for tickers removed meanwhile are dropped.
func (o *Orchestrator) apply(tickers []*models.Ticker, results []models.TickerOutcome) ([]*models.Ticker, []models.DelistedTicker) {
	byKey := make(map[models.TickerKey]models.QuoteResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r.Result
	}

	at := o.now()
	kept := make([]*models.Ticker, 0, len(tickers))
	delisted := []models.DelistedTicker{}

	for _, t := range tickers {
		r, ok := byKey[t.Key()]
		if !ok {
			kept = append(kept, t)
			continue
		}

		if r.Success {
			t.UpdatePrice(r, at)
		} else {
			t.SetError(r.Error, at)
		}

		if o.isDelisted(t) {
			o.logger.Warn().Str("symbol", t.Symbol).Str("market", string(t.Market)).Int("errors", t.ConsecutiveErrors).Msg("Ticker delisted, removing")
			delisted = append(delisted, models.DelistedTicker{Name: t.Name, Symbol: t.Symbol, Market: t.Market})
			continue
		}
		kept = append(kept, t)
	}
	return kept, delisted
}

// isDelisted requires both a failure streak and absence from the market's
// catalog. Deviation from the plain absence rule: an empty catalog (not yet
// crawled, or a crawl that never succeeded) never counts as absence, otherwise
// every failing ticker would be removed on a fresh install.
func (o *Orchestrator) isDelisted(t *models.Ticker) bool {
	if !t.IsPossiblyDelisted() {
		return false
	}
	_, catalog, err := o.router.Resolve(t.Market)
	if err != nil || catalog.Len() == 0 {
		return false
	}
	return !catalog.Contains(t.Symbol)
}

// Ensure Orchestrator implements RefreshService
var _ interfaces.RefreshService = (*Orchestrator)(nil)
