package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/pacing"
)

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok {
		html = "<html><body></body></html>"
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

type fakeNavigator struct {
	pages map[string]string
	empty map[string]bool
	errs  map[string]error
}

func (n *fakeNavigator) Navigate(_ context.Context, url, _ string) (*goquery.Document, bool, error) {
	if err, ok := n.errs[url]; ok {
		return nil, false, err
	}
	if n.empty[url] {
		return emptyDocument(), false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(n.pages[url]))
	return doc, true, err
}

func productPage(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, name := range names {
		fmt.Fprintf(&b, `<div class="product-item"><h3 class="product-name">%s</h3><span class="price">$10.00</span></div>`, name)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func reviewPage(reviews ...[3]string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range reviews {
		fmt.Fprintf(&b, `<div class="review-item"><span class="reviewer-name">%s</span><span class="review-date">%s</span><p class="review-text">%s</p></div>`, r[0], r[1], r[2])
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestOrchestrator(t *testing.T, fetcher DocumentFetcher, categories []string, maxPages int) (*Orchestrator, *Metrics) {
	t.Helper()
	delay, err := pacing.NewDelayPolicy(0, 0, 1)
	require.NoError(t, err)
	metrics := NewMetrics()
	orch := NewOrchestrator(OrchestratorConfig{
		BaseURL:    "http://site.test",
		Categories: categories,
		MaxPages:   maxPages,
		MaxReviews: 50,
		Marker:     ".review-item",
	}, fetcher, testRules(t), delay, zap.NewNop(), metrics)
	return orch, metrics
}

func TestCrawlListingsVisitsEveryCategoryPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"http://site.test/category/electronics?page=1": productPage("TV", "Radio"),
		"http://site.test/category/electronics?page=2": productPage("Camera"),
		"http://site.test/category/books?page=1":       productPage("Novel"),
	}}
	orch, _ := newTestOrchestrator(t, fetcher, []string{"electronics", "books"}, 2)

	products, err := orch.CrawlListings(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 4)
	require.Equal(t, []string{
		"http://site.test/category/electronics?page=1",
		"http://site.test/category/electronics?page=2",
		"http://site.test/category/books?page=1",
		"http://site.test/category/books?page=2",
	}, fetcher.calls, "pages visited in order, page 2 of books still fetched though empty")

	require.Equal(t, "TV", products[0].Name)
	require.Equal(t, "electronics", products[0].Category)
	require.Equal(t, "books", products[3].Category)
}

func TestCrawlListingsIsolatesPageFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"http://site.test/category/electronics?page=1": productPage("TV"),
			"http://site.test/category/electronics?page=3": productPage("Camera"),
		},
		errs: map[string]error{
			"http://site.test/category/electronics?page=2": &NetworkError{
				URL: "http://site.test/category/electronics?page=2", StatusCode: 500,
			},
		},
	}
	orch, metrics := newTestOrchestrator(t, fetcher, []string{"electronics"}, 3)

	products, err := orch.CrawlListings(context.Background())
	require.NoError(t, err, "a failed page never fails the crawl")
	require.Len(t, products, 2)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PagesSkipped))
}

func TestCrawlListingsAllPagesFailYieldsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"http://site.test/category/books?page=1": &NetworkError{StatusCode: 500},
		"http://site.test/category/books?page=2": &NetworkError{StatusCode: 500},
		"http://site.test/category/books?page=3": &NetworkError{StatusCode: 500},
	}}
	orch, metrics := newTestOrchestrator(t, fetcher, []string{"books"}, 3)

	products, err := orch.CrawlListings(context.Background())
	require.NoError(t, err)
	require.Empty(t, products)
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.PagesSkipped))
}

func TestCrawlListingsStopsOnCancellation(t *testing.T) {
	fetcher := &fakeFetcher{}
	orch, _ := newTestOrchestrator(t, fetcher, []string{"books"}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.CrawlListings(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fetcher.calls, "no fetch after cancellation")
}

func TestCrawlReviewsDeduplicates(t *testing.T) {
	review := [3]string{"alice", "2026-01-15", "Great product"}
	nav := &fakeNavigator{pages: map[string]string{
		"http://site.test/product/1": reviewPage(review, [3]string{"bob", "2026-01-16", "Meh"}),
		"http://site.test/product/2": reviewPage(review),
	}}
	orch, _ := newTestOrchestrator(t, &fakeFetcher{}, nil, 1)

	reviews, err := orch.CrawlReviews(context.Background(), nav,
		[]string{"http://site.test/product/1", "http://site.test/product/2"})
	require.NoError(t, err)
	require.Len(t, reviews, 2, "identical review seen twice is kept once")
}

func TestCrawlReviewsSkipsMarkerTimeout(t *testing.T) {
	nav := &fakeNavigator{
		pages: map[string]string{
			"http://site.test/product/2": reviewPage([3]string{"bob", "2026-01-16", "Meh"}),
		},
		empty: map[string]bool{"http://site.test/product/1": true},
	}
	orch, _ := newTestOrchestrator(t, &fakeFetcher{}, nil, 1)

	reviews, err := orch.CrawlReviews(context.Background(), nav,
		[]string{"http://site.test/product/1", "http://site.test/product/2"})
	require.NoError(t, err, "a marker timeout skips the page, not the pass")
	require.Len(t, reviews, 1)
}

func TestCrawlReviewsAbortsOnDriverError(t *testing.T) {
	nav := &fakeNavigator{
		pages: map[string]string{
			"http://site.test/product/1": reviewPage([3]string{"alice", "2026-01-15", "Great"}),
		},
		errs: map[string]error{
			"http://site.test/product/2": &DriverError{Op: "navigate", Err: fmt.Errorf("tab crashed")},
		},
	}
	orch, _ := newTestOrchestrator(t, &fakeFetcher{}, nil, 1)

	reviews, err := orch.CrawlReviews(context.Background(), nav,
		[]string{"http://site.test/product/1", "http://site.test/product/2"})
	require.Error(t, err)
	var driverErr *DriverError
	require.ErrorAs(t, err, &driverErr)
	require.Len(t, reviews, 1, "records gathered before the failure are returned")
}
