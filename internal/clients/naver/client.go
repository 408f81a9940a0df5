// Package naver provides clients for the domestic exchange quote API and market listing pages
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/ticker/internal/clients/ratelimit"
	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/interfaces"
	"github.com/bobmcallan/ticker/internal/models"
)

const (
	DefaultQuoteBaseURL = "https://polling.finance.naver.com"
	DefaultMinInterval  = 200 * time.Millisecond
	DefaultTimeout      = 10 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	referer   = "https://finance.naver.com/"
)

var codePattern = regexp.MustCompile(`^[0-9]{1,6}$`)

// Client implements QuoteProvider for the domestic market
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

// NewClient creates a domestic quote client searching the given catalog.
func NewClient(catalog interfaces.CatalogStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultQuoteBaseURL,
		catalog:     catalog,
		logger:      common.NewSilentLogger(),
		now:         time.Now,
		minInterval: DefaultMinInterval,
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http = ratelimit.NewClient("naver", c.minInterval,
		ratelimit.WithTimeout(c.timeout),
		ratelimit.WithLogger(c.logger),
	)
	return c
}

// Market returns models.MarketKorea
func (c *Client) Market() models.Market {
	return models.MarketKorea
}

// realtimeResponse is the subset of the realtime polling payload we read.
// Numbers arrive as display strings with thousands separators.
type realtimeResponse struct {
	Datas []struct {
		ItemCode                    string `json:"itemCode"`
		StockName                   string `json:"stockName"`
		ClosePrice                  string `json:"closePrice"`
		CompareToPreviousClosePrice string `json:"compareToPreviousClosePrice"`
		FluctuationsRatio           string `json:"fluctuationsRatio"`
	} `json:"datas"`
}

// FormatCode left-pads a numeric code to six digits. Non-numeric or over-long
// codes are rejected.
func FormatCode(symbol string) (string, error) {
	s := strings.TrimSpace(symbol)
	if !codePattern.MatchString(s) {
		return "", fmt.Errorf("invalid domestic code %q", symbol)
	}
	return strings.Repeat("0", 6-len(s)) + s, nil
}

// GetPrice fetches the realtime quote for a domestic code. Values are taken as
// reported by the upstream without re-derivation.
func (c *Client) GetPrice(ctx context.Context, symbol string) (models.QuoteResult, error) {
	code, err := FormatCode(symbol)
	if err != nil {
		return models.QuoteResult{}, models.NewError(models.KindNotFound, "naver quote", err)
	}

	reqURL := fmt.Sprintf("%s/api/realtime/domestic/stock/%s", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.QuoteResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("code", code).Msg("Naver quote request failed")
		return models.QuoteResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.QuoteResult{}, &models.QuoteError{Kind: models.KindNotFound, Status: resp.StatusCode, Op: "naver quote " + code}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn().Str("code", code).Int("status", resp.StatusCode).Msg("Naver quote non-OK response")
		return models.QuoteResult{}, &models.QuoteError{Kind: models.KindUpstream, Status: resp.StatusCode, Op: "naver quote " + code}
	}

	var apiResp realtimeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, "naver quote "+code, err)
	}
	if len(apiResp.Datas) == 0 {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, "naver quote "+code, fmt.Errorf("no price data available"))
	}

	d := apiResp.Datas[0]
	price := parseNumber(d.ClosePrice)
	if price == 0 {
		return models.QuoteResult{}, models.NewError(models.KindMalformed, "naver quote "+code, fmt.Errorf("could not parse current price %q", d.ClosePrice))
	}

	c.logger.Debug().Str("code", code).Float64("price", price).Dur("elapsed", time.Since(start)).Msg("Naver quote")

	return models.QuoteResult{
		Price:            price,
		ChangeAmount:     parseNumber(d.CompareToPreviousClosePrice),
		ChangePercentage: parseNumber(d.FluctuationsRatio),
		Success:          true,
		Timestamp:        c.now(),
		Source:           "naver",
	}, nil
}

// SearchSymbols searches the domestic catalog
func (c *Client) SearchSymbols(query string) []models.SearchResult {
	if c.catalog == nil {
		return nil
	}
	return c.catalog.Search(query)
}

// parseNumber strips separators and signs decorations ("71,000", "+1.25") and
// returns 0 for anything unparsable.
func parseNumber(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// Ensure Client implements QuoteProvider
var _ interfaces.QuoteProvider = (*Client)(nil)
