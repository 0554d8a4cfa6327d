package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sportbot/pipeline"
)

func newSyncCommand() *cobra.Command {
	var maxPages int
	var anchorURL string
	var smoke bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch listing pages and ingest new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			runner := pipeline.NewRunner(a.db, a.fetcher)

			cfg := pipeline.Config{
				BaseURL:   a.cfg.BaseURL,
				MaxPages:  maxPages,
				AnchorURL: anchorURL,
				DryRun:    a.dryRun,
			}
			if smoke {
				cfg.MaxPages = 1
				cfg.DryRun = true
			}

			summary, err := runner.RunOnce(cmd.Context(), cfg, time.Now())
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			fmt.Printf("processed=%d inserted=%d skipped=%d tag_links=%d\n",
				summary.Processed, summary.Inserted, summary.Skipped, summary.TagLinks)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 1, "maximum listing pages to walk")
	cmd.Flags().StringVar(&anchorURL, "anchor-url", "", "stop once this article URL is seen")
	cmd.Flags().BoolVar(&smoke, "smoke", false, "run a single dry-run page as a connectivity check")

	return cmd
}
