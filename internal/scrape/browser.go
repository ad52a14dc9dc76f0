package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SessionConfig controls the headless browser session.
type SessionConfig struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

// DynamicSession owns one headless Chrome instance for the duration of a
// crawl pass. Navigate blocks until a marker element is visible or the
// timeout elapses; a timeout yields an empty snapshot, not an error. Close
// must run on every exit path so the browser process does not leak.
type DynamicSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	cfg           SessionConfig
	logger        *zap.Logger
}

// OpenSession launches the browser process and verifies it responds. A
// launch failure is a DriverError: the dynamic pass cannot proceed and no
// static fallback is attempted.
func OpenSession(cfg SessionConfig, logger *zap.Logger) (*DynamicSession, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &DriverError{Op: "launch", Err: err}
	}

	return &DynamicSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

// Close terminates the browser process. Safe to call multiple times.
func (s *DynamicSession) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocCancel()
}

// Navigate loads url in a fresh tab and waits for the marker element. It
// returns the rendered DOM snapshot and ok=true on success; on marker
// timeout it returns an empty document and ok=false with a nil error. Any
// other failure is a DriverError.
func (s *DynamicSession) Navigate(ctx context.Context, url, marker string) (*goquery.Document, bool, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	var html string
	actions := []chromedp.Action{
		s.networkSetup(),
		chromedp.Navigate(url),
		chromedp.WaitVisible(marker, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	err := chromedp.Run(taskCtx, actions...)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("marker element did not appear",
			zap.String("url", url),
			zap.String("marker", marker),
			zap.Duration("timeout", s.cfg.NavTimeout),
		)
		return emptyDocument(), false, nil
	case ctx.Err() != nil:
		return nil, false, fmt.Errorf("navigate canceled: %w", ctx.Err())
	default:
		return nil, false, &DriverError{Op: "navigate", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, &DriverError{Op: "snapshot", Err: err}
	}
	return doc, true, nil
}

func (s *DynamicSession) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func emptyDocument() *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	return doc
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
