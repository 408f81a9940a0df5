// Package models defines data structures for the ticker engine
package models

import (
	"fmt"
	"strings"
	"time"
)

// Market identifies the exchange family a ticker trades on.
// The set is closed: adding a market requires a new provider and catalog.
type Market string

const (
	MarketKorea Market = "korea"
	MarketUS    Market = "us"
)

// Markets lists every supported market in routing order.
var Markets = []Market{MarketKorea, MarketUS}

// ParseMarket normalises a market identifier and rejects anything outside the closed set.
func ParseMarket(s string) (Market, error) {
	m := Market(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MarketKorea, MarketUS:
		return m, nil
	}
	return "", &QuoteError{Kind: KindUnknownMarket, Op: "parse market", Err: fmt.Errorf("unknown market %q", s)}
}

// DomesticCodeLength is the width of a domestic instrument code.
const DomesticCodeLength = 6

// NormalizeSymbol puts a user-entered symbol into the form the market's catalog
// stores: trimmed and upper-cased, and for the domestic market a numeric code of
// up to six digits is left-padded with zeros. Anything else is returned as is
// and left for the catalog lookup to reject.
func NormalizeSymbol(market Market, symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if market != MarketKorea || s == "" || len(s) >= DomesticCodeLength {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", DomesticCodeLength-len(s)) + s
}

// CatalogEntry is one tradable instrument in a market catalog.
// Segment records the listing it was crawled from (KOSPI, KOSDAQ) and is empty for seeds.
type CatalogEntry struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Segment string `json:"market,omitempty"`
}

// QuoteResult is the normalised outcome of a single price fetch.
// It is transient: produced per fetch, consumed by the refresh orchestrator.
type QuoteResult struct {
	Price            float64   `json:"price"`
	ChangeAmount     float64   `json:"change_amount"`
	ChangePercentage float64   `json:"change_percentage"`
	Success          bool      `json:"success"`
	ErrorKind        ErrorKind `json:"error_kind,omitempty"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Source           string    `json:"source,omitempty"` // "naver" or "yahoo"
}

// FailedQuote builds an unsuccessful QuoteResult from an error.
func FailedQuote(err error, ts time.Time) QuoteResult {
	return QuoteResult{
		Success:   false,
		ErrorKind: KindOf(err),
		Error:     err.Error(),
		Timestamp: ts,
	}
}

// SearchResult is a catalog hit returned to the presentation layer.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market Market `json:"market"`
}
