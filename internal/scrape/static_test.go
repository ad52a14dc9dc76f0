package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/pacing"
)

func newTestFetcher(t *testing.T, maxRetries int) (*StaticFetcher, *Metrics) {
	t.Helper()
	delay, err := pacing.NewDelayPolicy(0, 0, 1)
	require.NoError(t, err)
	metrics := NewMetrics()
	fetcher := NewStaticFetcher(FetcherConfig{
		UserAgent: "shopcrawl-test",
		Timeout:   5 * time.Second,
	}, pacing.NewRetryPolicy(maxRetries), delay, zap.NewNop(), metrics)
	return fetcher, metrics
}

func TestFetchParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1 id="title">hello</h1></body></html>`))
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, 0)
	doc, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", doc.Find("#title").Text())
}

func TestFetchRetriesServerErrorsThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher, metrics := newTestFetcher(t, 2)
	doc, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Nil(t, doc)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	require.EqualValues(t, 3, hits.Load(), "initial attempt plus two retries")
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.RetriesTotal))
}

func TestFetchServerErrorRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`<html><body><div class="product-item"><h3 class="product-name">X</h3></div></body></html>`))
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, 3)
	doc, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("div.product-item").Length())
	require.EqualValues(t, 3, hits.Load())
}

func TestFetchClientErrorFailsImmediately(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, 3)
	_, err := fetcher.Fetch(context.Background(), srv.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.EqualValues(t, 1, hits.Load(), "non-transient status must not be retried")
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	fetcher, _ := newTestFetcher(t, 1)
	_, err := fetcher.Fetch(context.Background(), url)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestFetchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher, _ := newTestFetcher(t, 0)
	_, err := fetcher.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestClassifyResponse(t *testing.T) {
	require.NoError(t, classifyResponse("u", 200, nil))

	err := classifyResponse("u", 502, nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Transient())

	err = classifyResponse("u", 403, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.False(t, statusErr.Transient())

	err = classifyResponse("u", 0, nil)
	require.ErrorAs(t, err, &netErr)
}
