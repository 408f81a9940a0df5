package models

import (
	"math"
	"time"
)

// DelistingErrorThreshold is the consecutive failure count at which a ticker
// becomes a delisting candidate.
const DelistingErrorThreshold = 3

// TickerKey is the identity of a tracked ticker.
type TickerKey struct {
	Symbol string `json:"symbol"`
	Market Market `json:"market"`
}

func (k TickerKey) String() string {
	return string(k.Market) + ":" + k.Symbol
}

// Ticker is a user-tracked instrument with cached quote state.
// Field names of the JSON form match the persisted tracked-list record.
type Ticker struct {
	Symbol            string     `json:"symbol"`
	Name              string     `json:"name"`
	Market            Market     `json:"market"`
	CurrentPrice      *float64   `json:"currentPrice"`
	ChangePercent     *float64   `json:"changePercent"`
	ChangePrice       *float64   `json:"changePrice"`
	LastUpdated       *time.Time `json:"lastUpdated"`
	LastError         *string    `json:"error"`
	ConsecutiveErrors int        `json:"consecutiveErrors"`
}

// NewTicker creates a ticker with no quote state.
func NewTicker(symbol, name string, market Market) *Ticker {
	return &Ticker{Symbol: symbol, Name: name, Market: market}
}

// Key returns the (symbol, market) identity.
func (t *Ticker) Key() TickerKey {
	return TickerKey{Symbol: t.Symbol, Market: t.Market}
}

// UpdatePrice records a successful fetch and resets the error counter.
func (t *Ticker) UpdatePrice(q QuoteResult, at time.Time) {
	price, pct, chg := q.Price, q.ChangePercentage, q.ChangeAmount
	t.CurrentPrice = &price
	t.ChangePercent = &pct
	t.ChangePrice = &chg
	t.LastUpdated = &at
	t.LastError = nil
	t.ConsecutiveErrors = 0
}

// SetError records a failed fetch. Price fields keep their last known values.
func (t *Ticker) SetError(msg string, at time.Time) {
	t.LastError = &msg
	t.ConsecutiveErrors++
	t.LastUpdated = &at
}

// IsPossiblyDelisted reports whether the failure streak makes this ticker a
// delisting candidate. Catalog absence is still required before removal.
func (t *Ticker) IsPossiblyDelisted() bool {
	return t.ConsecutiveErrors >= DelistingErrorThreshold
}

// ChangeStatus buckets the daily move for display: neutral, positive, positive-medium,
// positive-high and the negative equivalents at 5% and 10%.
func (t *Ticker) ChangeStatus() string {
	if t.ChangePercent == nil || *t.ChangePercent == 0 {
		return "neutral"
	}
	pct := *t.ChangePercent
	prefix := "positive"
	if pct < 0 {
		prefix = "negative"
	}
	switch abs := math.Abs(pct); {
	case abs >= 10:
		return prefix + "-high"
	case abs >= 5:
		return prefix + "-medium"
	}
	return prefix
}

// Clone returns a deep copy so callers can hold snapshots outside the list lock.
func (t *Ticker) Clone() *Ticker {
	c := *t
	if t.CurrentPrice != nil {
		v := *t.CurrentPrice
		c.CurrentPrice = &v
	}
	if t.ChangePercent != nil {
		v := *t.ChangePercent
		c.ChangePercent = &v
	}
	if t.ChangePrice != nil {
		v := *t.ChangePrice
		c.ChangePrice = &v
	}
	if t.LastUpdated != nil {
		v := *t.LastUpdated
		c.LastUpdated = &v
	}
	if t.LastError != nil {
		v := *t.LastError
		c.LastError = &v
	}
	return &c
}

// DelistedTicker identifies a ticker removed by the delisting heuristic.
type DelistedTicker struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Market Market `json:"market"`
}

// TickerOutcome pairs a ticker identity with its fetch result for one batch.
type TickerOutcome struct {
	Key    TickerKey   `json:"key"`
	Result QuoteResult `json:"result"`
}

// RefreshBatchOutcome is the result of one refresh cycle. It is consumed once by the caller.
type RefreshBatchOutcome struct {
	BatchID   string           `json:"batch_id"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed"`
	Results   []TickerOutcome  `json:"results"`
	Delisted  []DelistedTicker `json:"delisted"`
}

// Failures counts unsuccessful results in the batch.
func (o *RefreshBatchOutcome) Failures() int {
	n := 0
	for _, r := range o.Results {
		if !r.Result.Success {
			n++
		}
	}
	return n
}
