package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/ticker/internal/app"
	"github.com/bobmcallan/ticker/internal/models"
)

// tickerView is the API form of a tracked ticker.
type tickerView struct {
	*models.Ticker
	ChangeStatus string `json:"changeStatus"`
}

func newTickerViews(tickers []*models.Ticker) []tickerView {
	views := make([]tickerView, 0, len(tickers))
	for _, t := range tickers {
		views = append(views, tickerView{Ticker: t, ChangeStatus: t.ChangeStatus()})
	}
	return views
}

// tickerRequest identifies a ticker in request bodies.
type tickerRequest struct {
	Symbol string `json:"symbol"`
	Market string `json:"market"`
}

// catalogStatus summarises one market catalog.
type catalogStatus struct {
	Market    models.Market `json:"market"`
	Entries   int           `json:"entries"`
	Persisted bool          `json:"persisted"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// statusResponse is returned by GET /api/status.
type statusResponse struct {
	Scheduler     app.SchedulerStatus `json:"scheduler"`
	Catalogs      []catalogStatus     `json:"catalogs"`
	Tickers       int                 `json:"tickers"`
	Clients       int                 `json:"clients"`
	FirstLaunch   time.Time           `json:"first_launch"`
	IsFirstLaunch bool                `json:"is_first_launch"`
	Uptime        string              `json:"uptime"`
}

// handleTickers handles GET /api/tickers (ordered list) and POST /api/tickers (add).
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"tickers": newTickerViews(s.app.Watchlist.List()),
		})
		return
	}

	var req tickerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	market, err := models.ParseMarket(req.Market)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	ticker, err := s.app.Watchlist.Add(r.Context(), req.Symbol, market)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	s.logger.Info().Str("symbol", ticker.Symbol).Str("market", string(market)).Msg("Ticker added")

	// A new ticker has no price until the next batch.
	s.app.Scheduler.TriggerRefresh()

	WriteJSON(w, http.StatusCreated, tickerView{Ticker: ticker, ChangeStatus: ticker.ChangeStatus()})
}

// handleTickerDelete handles DELETE /api/tickers/{market}/{symbol}.
func (s *Server) handleTickerDelete(w http.ResponseWriter, r *http.Request, marketParam, symbol string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	market, err := models.ParseMarket(marketParam)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	key := models.TickerKey{Symbol: models.NormalizeSymbol(market, symbol), Market: market}
	if err := s.app.Watchlist.Remove(r.Context(), key); err != nil {
		WriteServiceError(w, err)
		return
	}
	s.logger.Info().Str("ticker", key.String()).Msg("Ticker removed")

	w.WriteHeader(http.StatusNoContent)
}

// handleTickerOrder handles PUT /api/tickers/order with the full list of keys in the new order.
func (s *Server) handleTickerOrder(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req []tickerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	order := make([]models.TickerKey, 0, len(req))
	for _, item := range req {
		market, err := models.ParseMarket(item.Market)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		order = append(order, models.TickerKey{
			Symbol: models.NormalizeSymbol(market, item.Symbol),
			Market: market,
		})
	}

	if err := s.app.Watchlist.Reorder(r.Context(), order); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tickers": newTickerViews(s.app.Watchlist.List()),
	})
}

// handleSearch handles GET /api/search?market=korea|us&q=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	market, err := models.ParseMarket(r.URL.Query().Get("market"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	provider, _, err := s.app.Router.Resolve(market)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	query := r.URL.Query().Get("q")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"market":  market,
		"query":   query,
		"results": provider.SearchSymbols(query),
	})
}

// handleRefresh handles POST /api/refresh. The trigger is debounced, so the
// response only acknowledges it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.Scheduler.TriggerRefresh()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	catalogs := make([]catalogStatus, 0, len(models.Markets))
	for _, market := range models.Markets {
		store, ok := s.app.Catalogs[market]
		if !ok {
			continue
		}
		cs := catalogStatus{
			Market:    market,
			Entries:   store.Len(),
			Persisted: store.Exists(),
		}
		if at := store.UpdatedAt(); !at.IsZero() {
			cs.UpdatedAt = &at
		}
		catalogs = append(catalogs, cs)
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		Scheduler:     s.app.Scheduler.Status(),
		Catalogs:      catalogs,
		Tickers:       len(s.app.Watchlist.List()),
		Clients:       s.app.Hub.ClientCount(),
		FirstLaunch:   s.app.FirstLaunch,
		IsFirstLaunch: s.app.IsFirstLaunch,
		Uptime:        time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}
