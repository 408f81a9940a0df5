// Package ratelimit provides an HTTP client that enforces a minimum spacing
// between requests to one upstream.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Client admits requests through a single interval gate. All callers share the
// gate, so concurrent requests against one upstream are spaced collectively.
// Separate Client instances never block each other.
type Client struct {
	name        string
	httpClient  *http.Client
	limiter     *rate.Limiter
	minInterval time.Duration
	logger      *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a client named after its upstream. A non-positive
// minInterval disables spacing.
func NewClient(name string, minInterval time.Duration, opts ...ClientOption) *Client {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	c := &Client{
		name: name,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		// burst 1: the first request goes straight through, later ones wait out the interval
		limiter:     rate.NewLimiter(limit, 1),
		minInterval: minInterval,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the upstream name
func (c *Client) Name() string {
	return c.name
}

// MinInterval returns the configured spacing
func (c *Client) MinInterval() time.Duration {
	return c.minInterval
}

// Wait blocks until the gate admits one request or ctx ends.
func (c *Client) Wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Do waits for admission and issues the request. Transport timeouts surface as
// a KindTimeout QuoteError, other transport failures as KindUpstream.
// Status codes are left to the caller.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.Wait(req.Context()); err != nil {
		if waitTimedOut(req.Context(), err) {
			return nil, models.NewError(models.KindTimeout, c.name, err)
		}
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Debug().Err(err).Str("upstream", c.name).Str("url", req.URL.Path).Dur("elapsed", elapsed).Msg("Upstream request failed")
		if isTimeout(err) {
			return nil, models.NewError(models.KindTimeout, c.name, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, models.NewError(models.KindUpstream, c.name, err)
	}

	c.logger.Trace().Str("upstream", c.name).Str("url", req.URL.Path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Upstream request")
	return resp, nil
}

// waitTimedOut reports whether a failed admission was due to the request
// deadline. The limiter rejects early, with a plain error, when the next slot
// lies beyond the deadline.
func waitTimedOut(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return false
	}
	_, hasDeadline := ctx.Deadline()
	return hasDeadline
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
