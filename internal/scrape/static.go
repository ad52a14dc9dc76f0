package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/pacing"
)

// FetcherConfig controls the static HTTP fetcher.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher retrieves pages over plain HTTP and parses them into
// goquery documents. Transient failures (connection errors, timeouts, 5xx)
// are retried up to the policy's budget with the delay policy applied
// between attempts; other non-2xx responses fail immediately.
type StaticFetcher struct {
	cfg     FetcherConfig
	base    *colly.Collector
	retry   *pacing.RetryPolicy
	delay   *pacing.DelayPolicy
	logger  *zap.Logger
	metrics *Metrics
}

// NewStaticFetcher builds a fetcher. The collector is cloned per request so
// callers never share hook state.
func NewStaticFetcher(
	cfg FetcherConfig,
	retry *pacing.RetryPolicy,
	delay *pacing.DelayPolicy,
	logger *zap.Logger,
	metrics *Metrics,
) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport(cfg.Timeout))

	return &StaticFetcher{
		cfg:     cfg,
		base:    c,
		retry:   retry,
		delay:   delay,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch retrieves url and parses the body into a document tree.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		doc, err := f.attempt(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		f.metrics.IncError(errorLabel(err))
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
		f.metrics.IncRetry()
		f.logger.Warn("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if f.delay != nil {
			if werr := f.delay.Wait(ctx); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, lastErr
}

func (f *StaticFetcher) attempt(ctx context.Context, url string) (*goquery.Document, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		if fetchErr == nil && visitErr != nil {
			fetchErr = visitErr
		}
	}
	f.metrics.ObserveDuration(time.Since(start))

	if err := classifyResponse(url, statusCode, fetchErr); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{URL: url, StatusCode: statusCode, Err: fmt.Errorf("parse body: %w", err)}
	}
	f.metrics.IncRequest()
	return doc, nil
}

// classifyResponse maps the raw outcome onto the fetch error taxonomy.
func classifyResponse(url string, statusCode int, fetchErr error) error {
	switch {
	case statusCode >= 500:
		err := fetchErr
		if err == nil {
			err = fmt.Errorf("server error")
		}
		return &NetworkError{URL: url, StatusCode: statusCode, Err: err}
	case statusCode >= 300:
		return &StatusError{URL: url, StatusCode: statusCode}
	case fetchErr != nil:
		return &NetworkError{URL: url, StatusCode: statusCode, Err: fetchErr}
	case statusCode == 0:
		return &NetworkError{URL: url, Err: fmt.Errorf("no response received")}
	default:
		return nil
	}
}

func errorLabel(err error) string {
	switch err.(type) {
	case *NetworkError:
		return "network"
	case *StatusError:
		return "status"
	case *DriverError:
		return "driver"
	default:
		return "other"
	}
}

func newHTTPTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
