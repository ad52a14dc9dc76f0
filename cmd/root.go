// Package cmd defines the CLI commands for the shopcrawl executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/config"
	"github.com/calderdata/shopcrawl/internal/logging"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func (a *app) Close() {
	_ = a.logger.Sync()
}

// newApp is a variable so tests can swap in a stub factory.
var newApp = func() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopcrawl",
		Short: "E-commerce competitive intelligence pipeline",
		Long: `shopcrawl collects competitor product listings and reviews, pulls
supporting datasets from public APIs, generates synthetic internal sales
data, and loads everything into Postgres for analysis.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp()
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus SHOPCRAWL_* env)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newLoadCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	appInstance, ok := ctx.Value(appKey).(*app)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the command
// context so crawls stop cleanly at the next page boundary.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
