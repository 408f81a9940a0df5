package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures across providers, crawler and persistence.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindUpstream           ErrorKind = "upstream_error"
	KindTimeout            ErrorKind = "timeout"
	KindMalformed          ErrorKind = "malformed"
	KindUnknownMarket      ErrorKind = "unknown_market"
	KindInsufficientData   ErrorKind = "insufficient_data"
	KindPersistenceFailure ErrorKind = "persistence_failure"
	KindUnknown            ErrorKind = "unknown"
)

// QuoteError is the typed error returned by providers, the router and the crawler.
// Status is the upstream HTTP status for KindUpstream/KindNotFound, zero otherwise.
type QuoteError struct {
	Kind   ErrorKind
	Status int
	Op     string
	Err    error
}

func (e *QuoteError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QuoteError) Unwrap() error { return e.Err }

// Is matches any QuoteError of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of status or wrapped cause.
func (e *QuoteError) Is(target error) bool {
	t, ok := target.(*QuoteError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Status == 0 && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrNotFound           = &QuoteError{Kind: KindNotFound}
	ErrUpstream           = &QuoteError{Kind: KindUpstream}
	ErrTimeout            = &QuoteError{Kind: KindTimeout}
	ErrMalformed          = &QuoteError{Kind: KindMalformed}
	ErrUnknownMarket      = &QuoteError{Kind: KindUnknownMarket}
	ErrInsufficientData   = &QuoteError{Kind: KindInsufficientData}
	ErrPersistenceFailure = &QuoteError{Kind: KindPersistenceFailure}
)

// NewError builds a QuoteError.
func NewError(kind ErrorKind, op string, err error) *QuoteError {
	return &QuoteError{Kind: kind, Op: op, Err: err}
}

// KindOf classifies an arbitrary error. Context deadlines count as timeouts.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var qe *QuoteError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}
