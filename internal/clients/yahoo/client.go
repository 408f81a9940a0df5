// Package yahoo provides a client for the Yahoo Finance chart endpoint (US market)
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/ticker/internal/clients/ratelimit"
	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

const (
	DefaultBaseURL     = "https://query1.finance.yahoo.com"
	DefaultMinInterval = 200 * time.Millisecond
	DefaultTimeout     = 10 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// Client implements QuoteProvider for the US market
type Client struct {
	baseURL string
	http    *ratelimit.Client
	catalog interfaces.CatalogStore
	logger  *common.Logger
	now     func() time.Time

	minInterval time.Duration
	timeout     time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL; empty keeps the default
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMinInterval sets the minimum spacing between requests
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = d
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a US quote client searching the given catalog.
func NewClient(catalog interfaces.CatalogStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		catalog:     catalog,
		logger:      common.NewSilentLogger(),
		now:         time.Now,
		minInterval: DefaultMinInterval,
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http = ratelimit.NewClient("yahoo", c.minInterval,
		ratelimit.WithTimeout(c.timeout),
		ratelimit.WithLogger(c.logger),
	)
	return c
}

// Market returns models.MarketUS
func (c *Client) Market() models.Market {
	return models.MarketUS
}

// chartResponse is the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NormalizeSymbol upper-cases and validates a US ticker (letters, digits, '.', '-').
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("invalid US symbol %q", symbol)
	}
	return s, nil
}

// GetPrice fetches the regular-market price and derives the change from the
// previous close: change = price - prevClose, percent = change / prevClose * 100,
// each rounded to 2 decimal places.
func (c *Client) GetPrice(ctx context.Context, symbol string) (models.QuoteResult, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.QuoteResult{}, models.NewError(models.KindNotFound, "yahoo chart", err)
	}

	params := url.Values{}
	params.Set("interval", "1m")
	params.Set("range", "1d")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(sym), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.QuoteResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", sym).Msg("Yahoo chart request failed")
		return models.QuoteResult{}, err
	}
	defer resp.Body.Close()

	op := "yahoo chart " + sym
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.QuoteResult{}, &models.QuoteError{Kind: models.KindNotFound, Status: resp.StatusCode, Op: op}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn().Str("symbol", sym).Int("status", resp.StatusCode).Msg("Yahoo chart non-OK response")
		return models.QuoteResult{}, &models.QuoteError{Kind: models.KindUpstream, Status: resp.StatusCode, Op: op}
	}

	var apiResp chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, op, err)
	}
	if e := apiResp.Chart.Error; e != nil && strings.EqualFold(e.Code, "Not Found") {
		return models.QuoteResult{}, models.NewError(models.KindNotFound, op, fmt.Errorf("%s", e.Description))
	}
	if len(apiResp.Chart.Result) == 0 {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, op, fmt.Errorf("no price data available"))
	}

	meta := apiResp.Chart.Result[0].Meta
	prevClose := meta.ChartPreviousClose
	if prevClose == 0 {
		prevClose = meta.PreviousClose
	}
	if meta.RegularMarketPrice <= 0 || prevClose <= 0 {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, op, fmt.Errorf("could not parse price data"))
	}

	price, change, pct := derive(meta.RegularMarketPrice, prevClose)

	c.logger.Debug().Str("symbol", sym).Float64("price", price).Dur("elapsed", time.Since(start)).Msg("Yahoo chart quote")

	return models.QuoteResult{
		Price:            price,
		ChangeAmount:     change,
		ChangePercentage: pct,
		Success:          true,
		Timestamp:        c.now(),
		Source:           "yahoo",
	}, nil
}

// derive computes rounded price, change and percent in decimal arithmetic so
// the 2dp rounding is exact (half away from zero).
func derive(price, prevClose float64) (float64, float64, float64) {
	p := decimal.NewFromFloat(price)
	prev := decimal.NewFromFloat(prevClose)
	change := p.Sub(prev)
	pct := change.Div(prev).Mul(decimal.NewFromInt(100))

	return p.Round(2).InexactFloat64(), change.Round(2).InexactFloat64(), pct.Round(2).InexactFloat64()
}

// SearchSymbols searches the US catalog
func (c *Client) SearchSymbols(query string) []models.SearchResult {
	if c.catalog == nil {
		return nil
	}
	return c.catalog.Search(query)
}

// Ensure Client implements QuoteProvider
var _ interfaces.QuoteProvider = (*Client)(nil)
