// Package router dispatches a market to its quote provider and catalog.
package router

import (
	"fmt"

	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

// Route is the provider/catalog pair serving one market.
type Route struct {
	Provider interfaces.QuoteProvider
	Catalog  interfaces.CatalogStore
}

// Router implements MarketRouter over the closed set of markets.
type Router struct {
	korea Route
	us    Route
}

// NewRouter creates a router for the domestic and US markets.
func NewRouter(korea, us Route) *Router {
	return &Router{korea: korea, us: us}
}

// Resolve returns the provider and catalog for market, or an UnknownMarket error.
func (r *Router) Resolve(market models.Market) (interfaces.QuoteProvider, interfaces.CatalogStore, error) {
	var route Route
	switch market {
	case models.MarketKorea:
		route = r.korea
	case models.MarketUS:
		route = r.us
	default:
		return nil, nil, models.NewError(models.KindUnknownMarket, "resolve", fmt.Errorf("market %q", market))
	}
	if route.Provider == nil || route.Catalog == nil {
		return nil, nil, models.NewError(models.KindUnknownMarket, "resolve", fmt.Errorf("market %q not configured", market))
	}
	return route.Provider, route.Catalog, nil
}

// Catalog returns only the catalog for market.
func (r *Router) Catalog(market models.Market) (interfaces.CatalogStore, error) {
	_, c, err := r.Resolve(market)
	return c, err
}

// Ensure Router implements MarketRouter
var _ interfaces.MarketRouter = (*Router)(nil)
