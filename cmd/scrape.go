package cmd

import (
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Crawl competitor listings and reviews only",
		Long: `Runs the listing and review crawl and writes the raw CSV/JSON
artifacts without touching the database. Useful for checking selectors and
pacing against a target site before a full pipeline run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			_, err = runCrawl(cmd.Context(), appInstance.cfg, appInstance.logger)
			return err
		},
	}
}
