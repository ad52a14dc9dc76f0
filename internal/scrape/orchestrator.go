package scrape

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/pacing"
)

// DocumentFetcher retrieves a URL and parses it into a document tree.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// PageNavigator drives a rendered-DOM session. ok=false signals the marker
// element never appeared and the snapshot is empty.
type PageNavigator interface {
	Navigate(ctx context.Context, url, marker string) (doc *goquery.Document, ok bool, err error)
}

// OrchestratorConfig scopes one crawl.
type OrchestratorConfig struct {
	BaseURL    string
	Categories []string
	MaxPages   int
	MaxReviews int
	Marker     string
}

// Orchestrator drives the category/page iteration sequentially, isolating
// failures per (category, page) task. Requests are never issued in parallel:
// the delay policy only reads as human pacing when fetches are serialized.
type Orchestrator struct {
	cfg     OrchestratorConfig
	fetcher DocumentFetcher
	rules   *Rules
	delay   *pacing.DelayPolicy
	logger  *zap.Logger
	metrics *Metrics
}

// NewOrchestrator wires the crawl engine together.
func NewOrchestrator(
	cfg OrchestratorConfig,
	fetcher DocumentFetcher,
	rules *Rules,
	delay *pacing.DelayPolicy,
	logger *zap.Logger,
	metrics *Metrics,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		rules:   rules,
		delay:   delay,
		logger:  logger,
		metrics: metrics,
	}
}

// CrawlListings walks every configured category up to MaxPages and returns
// the accumulated products. A fetch failure skips that page only; an empty
// result is a valid outcome, not an error. Cancellation is honored at each
// page boundary.
func (o *Orchestrator) CrawlListings(ctx context.Context) ([]Product, error) {
	var products []Product
	seen := make(map[string]struct{})

	for _, category := range o.cfg.Categories {
		o.logger.Info("scraping category", zap.String("category", category))

		for page := 1; page <= o.cfg.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				return products, fmt.Errorf("crawl interrupted: %w", err)
			}

			task := FetchTask{
				Category: category,
				Page:     page,
				URL:      fmt.Sprintf("%s/category/%s?page=%d", o.cfg.BaseURL, category, page),
			}
			if _, dup := seen[task.URL]; dup {
				continue
			}
			seen[task.URL] = struct{}{}

			doc, err := o.fetcher.Fetch(ctx, task.URL)
			if err != nil {
				o.metrics.IncSkipped()
				o.logger.Error("page fetch failed, skipping",
					zap.String("category", task.Category),
					zap.Int("page", task.Page),
					zap.String("url", task.URL),
					zap.Error(err),
				)
				continue
			}

			extracted := o.rules.Products(doc, category, task.URL)
			products = append(products, extracted...)
			o.metrics.IncItems("product", len(extracted))

			if err := o.delay.Wait(ctx); err != nil {
				return products, err
			}
		}
	}
	return products, nil
}

// CrawlReviews navigates each product URL with the rendered-DOM session and
// extracts reviews, deduplicating on (reviewer, date, text). A marker
// timeout skips the page; a driver failure aborts the pass.
func (o *Orchestrator) CrawlReviews(ctx context.Context, nav PageNavigator, productURLs []string) ([]Review, error) {
	var reviews []Review
	seen := make(map[string]struct{})

	for _, url := range productURLs {
		if err := ctx.Err(); err != nil {
			return reviews, fmt.Errorf("crawl interrupted: %w", err)
		}
		o.logger.Info("scraping reviews", zap.String("url", url))

		doc, ok, err := nav.Navigate(ctx, url, o.cfg.Marker)
		if err != nil {
			return reviews, fmt.Errorf("review page %s: %w", url, err)
		}
		if !ok {
			o.logger.Warn("no reviews found", zap.String("url", url))
			continue
		}

		added := 0
		for _, review := range o.rules.Reviews(doc, url, o.cfg.MaxReviews) {
			key := review.Reviewer + "\x00" + review.Date + "\x00" + review.Text
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			reviews = append(reviews, review)
			added++
		}
		o.metrics.IncItems("review", added)

		if err := o.delay.Wait(ctx); err != nil {
			return reviews, err
		}
	}
	return reviews, nil
}
