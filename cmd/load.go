package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/clock"
	"github.com/calderdata/shopcrawl/internal/dataset"
	"github.com/calderdata/shopcrawl/internal/report"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [dir]",
		Short: "Load previously written CSV artifacts into Postgres",
		Long: `Walks a directory tree for CSV files and loads each one into its
own table, replacing any existing contents. With no argument the configured
output directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLoadCommand,
	}
}

func runLoadCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.cfg
	logger := appInstance.logger
	started := clock.System{}.Now()

	dir := cfg.Output.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be configured for load")
	}

	var datasets []*dataset.Dataset
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		ds, err := dataset.ReadCSV(path)
		if err != nil {
			logger.Error("skipping unreadable csv", zap.String("path", path), zap.Error(err))
			return nil
		}
		logger.Info("read csv artifact", zap.String("path", path), zap.Int("rows", ds.Len()))
		datasets = append(datasets, ds)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(datasets) == 0 {
		return fmt.Errorf("no csv files found under %s", dir)
	}

	loaded, failures, err := loadDatasets(cmd.Context(), cfg, logger, datasets)
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
	return nil
}
