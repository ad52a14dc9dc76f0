// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Output   OutputConfig   `mapstructure:"output"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Site     SiteConfig     `mapstructure:"site"`
	APIs     APIConfig      `mapstructure:"apis"`
	Generate GenerateConfig `mapstructure:"generate"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OutputConfig sets the directory tree for raw artifacts.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScrapeConfig governs crawl pacing, retries, and scope.
type ScrapeConfig struct {
	Headless       bool     `mapstructure:"headless"`
	DelayMinSec    float64  `mapstructure:"delay_min_seconds"`
	DelayMaxSec    float64  `mapstructure:"delay_max_seconds"`
	MaxRetries     int      `mapstructure:"max_retries"`
	TimeoutSec     int      `mapstructure:"timeout_seconds"`
	NavTimeoutSec  int      `mapstructure:"nav_timeout_seconds"`
	Categories     []string `mapstructure:"categories"`
	MaxPages       int      `mapstructure:"max_pages"`
	MaxReviews     int      `mapstructure:"max_reviews"`
	SocialKeywords []string `mapstructure:"social_keywords"`
	UserAgent      string   `mapstructure:"user_agent"`
}

// SiteConfig identifies the competitor site and its structural template.
type SiteConfig struct {
	BaseURL       string   `mapstructure:"base_url"`
	ReviewURLs    []string `mapstructure:"review_urls"`
	MarkerElement string   `mapstructure:"marker_element"`
}

// APIConfig holds endpoints and keys for the external JSON sources.
type APIConfig struct {
	CatalogBaseURL string   `mapstructure:"catalog_base_url"`
	WeatherBaseURL string   `mapstructure:"weather_base_url"`
	WeatherAPIKey  string   `mapstructure:"weather_api_key"`
	WeatherCities  []string `mapstructure:"weather_cities"`
	SocialBaseURL  string   `mapstructure:"social_base_url"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
}

// GenerateConfig sizes the synthetic internal datasets.
type GenerateConfig struct {
	Seed         int64 `mapstructure:"seed"`
	Customers    int   `mapstructure:"customers"`
	Products     int   `mapstructure:"products"`
	Transactions int   `mapstructure:"transactions"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	TablePrefix string `mapstructure:"table_prefix"`
	ConnTimeout int    `mapstructure:"conn_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOPCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "data")
	v.SetDefault("scrape.headless", true)
	v.SetDefault("scrape.delay_min_seconds", 1.0)
	v.SetDefault("scrape.delay_max_seconds", 3.0)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.timeout_seconds", 30)
	v.SetDefault("scrape.nav_timeout_seconds", 10)
	v.SetDefault("scrape.categories", []string{"electronics", "clothing", "books"})
	v.SetDefault("scrape.max_pages", 3)
	v.SetDefault("scrape.max_reviews", 50)
	v.SetDefault("scrape.social_keywords", []string{"ecommerce", "online shopping", "retail trends"})
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("site.marker_element", ".review-item")
	v.SetDefault("apis.catalog_base_url", "https://fakestoreapi.com")
	v.SetDefault("apis.weather_base_url", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("apis.weather_cities", []string{"New York", "Los Angeles", "Chicago"})
	v.SetDefault("apis.social_base_url", "https://www.reddit.com/search.json")
	v.SetDefault("apis.rate_limit_rps", 1.0)
	v.SetDefault("generate.seed", 42)
	v.SetDefault("generate.customers", 1000)
	v.SetDefault("generate.products", 500)
	v.SetDefault("generate.transactions", 5000)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.conn_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Scrape.DelayMinSec < 0 {
		return fmt.Errorf("scrape.delay_min_seconds must be >= 0")
	}
	if c.Scrape.DelayMaxSec < c.Scrape.DelayMinSec {
		return fmt.Errorf("scrape.delay_max_seconds must be >= scrape.delay_min_seconds")
	}
	if c.Scrape.MaxRetries < 0 {
		return fmt.Errorf("scrape.max_retries must be >= 0")
	}
	if c.Scrape.TimeoutSec <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Scrape.MaxPages <= 0 {
		return fmt.Errorf("scrape.max_pages must be > 0")
	}
	if c.Generate.Customers < 0 || c.Generate.Products < 0 || c.Generate.Transactions < 0 {
		return fmt.Errorf("generate counts must be >= 0")
	}
	if c.DB.ConnTimeout <= 0 {
		return fmt.Errorf("db.conn_timeout_seconds must be > 0")
	}
	return nil
}

// HTTPTimeout converts the scrape timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSec) * time.Second
}

// NavTimeout converts the marker-wait timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scrape.NavTimeoutSec) * time.Second
}
