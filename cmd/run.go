package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/clock"
	"github.com/calderdata/shopcrawl/internal/config"
	"github.com/calderdata/shopcrawl/internal/dataset"
	"github.com/calderdata/shopcrawl/internal/generate"
	"github.com/calderdata/shopcrawl/internal/load"
	"github.com/calderdata/shopcrawl/internal/pacing"
	"github.com/calderdata/shopcrawl/internal/report"
	"github.com/calderdata/shopcrawl/internal/scrape"
	"github.com/calderdata/shopcrawl/internal/sources"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Long: `Generates synthetic internal datasets, fetches the external API
sources, crawls competitor listings and reviews, writes raw artifacts, and
loads every dataset into Postgres.`,
		RunE: runPipeline,
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := appInstance.cfg
	logger := appInstance.logger.With(zap.String("run_id", uuid.NewString()))
	started := clock.System{}.Now()

	var datasets []*dataset.Dataset

	internal, err := generateInternal(cfg, logger)
	if err != nil {
		return err
	}
	datasets = append(datasets, internal...)

	external := fetchExternal(ctx, cfg, logger)
	datasets = append(datasets, external...)

	scraped, err := runCrawl(ctx, cfg, logger)
	if err != nil {
		return err
	}
	datasets = append(datasets, scraped...)

	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not configured, skipping database load")
		return nil
	}

	loaded, failures, err := loadDatasets(ctx, cfg, logger, datasets)
	if err != nil {
		return err
	}

	report.Render(os.Stdout, report.Summary{
		StartedAt: started,
		Duration:  time.Since(started),
		Loaded:    loaded,
		Failures:  failures,
	})
	if len(failures) > 0 {
		return fmt.Errorf("%d dataset(s) failed to load", len(failures))
	}
	logger.Info("pipeline complete",
		zap.Int("datasets", len(loaded)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// generateInternal produces the synthetic sales datasets and writes their
// raw artifacts.
func generateInternal(cfg config.Config, logger *zap.Logger) ([]*dataset.Dataset, error) {
	gen := generate.New(cfg.Generate.Seed, clock.System{})
	customers := gen.Customers(cfg.Generate.Customers)
	products := gen.Products(cfg.Generate.Products)
	transactions, err := gen.Transactions(customers, products, cfg.Generate.Transactions)
	if err != nil {
		return nil, fmt.Errorf("generate transactions: %w", err)
	}

	dir := filepath.Join(cfg.Output.Dir, "raw", "internal")
	datasets := []*dataset.Dataset{customers, products, transactions}
	for _, ds := range datasets {
		if err := ds.WriteArtifacts(dir); err != nil {
			return nil, fmt.Errorf("write %s artifacts: %w", ds.Name, err)
		}
		logger.Info("generated dataset", zap.String("name", ds.Name), zap.Int("rows", ds.Len()))
	}
	return datasets, nil
}

// fetchExternal pulls the API sources. A failed source is logged and
// dropped; the pipeline carries on with whatever arrived.
func fetchExternal(ctx context.Context, cfg config.Config, logger *zap.Logger) []*dataset.Dataset {
	client := sources.NewClient(sources.ClientConfig{
		Timeout:   cfg.HTTPTimeout(),
		RateRPS:   cfg.APIs.RateLimitRPS,
		UserAgent: cfg.Scrape.UserAgent,
	}, clock.System{}, logger)

	var datasets []*dataset.Dataset

	catalog, err := client.FetchCatalog(ctx, cfg.APIs.CatalogBaseURL)
	if err != nil {
		logger.Error("catalog fetch failed", zap.Error(err))
	} else {
		datasets = append(datasets,
			catalog.ProductsDataset(), catalog.UsersDataset(), catalog.CartsDataset())
	}

	if cfg.APIs.WeatherAPIKey == "" {
		logger.Warn("apis.weather_api_key not set, skipping weather source")
	} else {
		weather, err := client.FetchWeather(ctx, cfg.APIs.WeatherBaseURL, cfg.APIs.WeatherAPIKey, cfg.APIs.WeatherCities)
		if err != nil {
			logger.Error("weather fetch aborted", zap.Error(err))
		} else if weather.Len() > 0 {
			datasets = append(datasets, weather)
		}
	}

	mentions, err := client.SearchMentions(ctx, cfg.APIs.SocialBaseURL, cfg.Scrape.SocialKeywords)
	if err != nil {
		logger.Error("social search aborted", zap.Error(err))
	} else if len(mentions) > 0 {
		datasets = append(datasets, sources.MentionsDataset(mentions))
	}

	dir := filepath.Join(cfg.Output.Dir, "raw", "external")
	for _, ds := range datasets {
		if err := ds.WriteArtifacts(dir); err != nil {
			logger.Error("write external artifacts failed",
				zap.String("name", ds.Name), zap.Error(err))
		}
	}
	return datasets
}

// runCrawl runs the static listing crawl and, when review URLs are
// configured, the rendered-DOM review crawl. Cancellation and driver
// failures abort the pass; per-page fetch failures do not.
func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]*dataset.Dataset, error) {
	if cfg.Site.BaseURL == "" {
		logger.Warn("site.base_url not configured, skipping crawl")
		return nil, nil
	}

	metrics := scrape.NewMetrics()
	delay, err := pacing.NewDelayPolicy(
		secondsToDuration(cfg.Scrape.DelayMinSec),
		secondsToDuration(cfg.Scrape.DelayMaxSec),
		time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("build delay policy: %w", err)
	}
	retry := pacing.NewRetryPolicy(cfg.Scrape.MaxRetries)
	fetcher := scrape.NewStaticFetcher(scrape.FetcherConfig{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, retry, delay, logger, metrics)
	rules := scrape.NewRules(scrape.DefaultProfile(), clock.System{}, logger)
	orch := scrape.NewOrchestrator(scrape.OrchestratorConfig{
		BaseURL:    cfg.Site.BaseURL,
		Categories: cfg.Scrape.Categories,
		MaxPages:   cfg.Scrape.MaxPages,
		MaxReviews: cfg.Scrape.MaxReviews,
		Marker:     cfg.Site.MarkerElement,
	}, fetcher, rules, delay, logger, metrics)

	products, err := orch.CrawlListings(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("listing crawl complete", zap.Int("products", len(products)))

	var reviews []scrape.Review
	if len(cfg.Site.ReviewURLs) > 0 {
		session, err := scrape.OpenSession(scrape.SessionConfig{
			Headless:   cfg.Scrape.Headless,
			UserAgent:  cfg.Scrape.UserAgent,
			NavTimeout: cfg.NavTimeout(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open browser session: %w", err)
		}
		defer session.Close()

		reviews, err = orch.CrawlReviews(ctx, session, cfg.Site.ReviewURLs)
		if err != nil {
			return nil, err
		}
		logger.Info("review crawl complete", zap.Int("reviews", len(reviews)))
	}

	dir := filepath.Join(cfg.Output.Dir, "raw", "external")
	datasets := []*dataset.Dataset{scrape.ProductsDataset(products), scrape.ReviewsDataset(reviews)}
	for _, ds := range datasets {
		if err := ds.WriteArtifacts(dir); err != nil {
			return nil, fmt.Errorf("write %s artifacts: %w", ds.Name, err)
		}
	}
	return datasets, nil
}

// loadDatasets writes every dataset to Postgres with full-replace
// semantics. Per-table failures are collected, not fatal to the batch.
func loadDatasets(ctx context.Context, cfg config.Config, logger *zap.Logger, datasets []*dataset.Dataset) ([]load.Result, []report.Failure, error) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DB.ConnTimeout)*time.Second)
	defer cancel()
	pool, err := load.Connect(connectCtx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	loader := load.New(pool, logger)
	var loaded []load.Result
	var failures []report.Failure
	for _, ds := range datasets {
		table := cfg.DB.TablePrefix + ds.Name
		result, err := loader.Load(ctx, ds, table)
		if err != nil {
			logger.Error("dataset load failed", zap.String("table", table), zap.Error(err))
			failures = append(failures, report.Failure{Table: table, Err: err})
			continue
		}
		loaded = append(loaded, result)
	}
	return loaded, failures, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
