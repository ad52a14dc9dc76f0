// Package sources fetches external JSON datasets: the sample catalog API,
// city weather, and social keyword mentions.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/calderdata/shopcrawl/internal/clock"
)

// Client is the shared HTTP client for all JSON sources, paced by a token
// bucket so API hosts see at most the configured request rate.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	clock   clock.Clock
}

// ClientConfig controls the shared source client.
type ClientConfig struct {
	Timeout   time.Duration
	RateRPS   float64
	UserAgent string
}

// NewClient builds a source client.
func NewClient(cfg ClientConfig, clk clock.Clock, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RateRPS)
	if cfg.RateRPS <= 0 {
		limit = rate.Inf
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		clock:   clk,
	}
}

// HTTPClient exposes the underlying resty client for test transports.
func (c *Client) HTTPClient() *resty.Client { return c.http }

func (c *Client) getJSON(ctx context.Context, url string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(url)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode())
	}
	return nil
}
