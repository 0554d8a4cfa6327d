package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sportbot/cluster"
	"sportbot/metrics"
)

func newClusterCommand() *cobra.Command {
	var sinceDays int
	var maxArticles int

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group recently ingested articles into stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			cfg := cluster.Config{WindowDays: sinceDays, MaxArticles: maxArticles}.WithDefaults()

			start := time.Now()
			result, err := cluster.Run(cmd.Context(), a.db, cfg, start)
			metrics.ClusterRunDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("cluster: %w", err)
			}

			fmt.Printf("clusters_found=%d stories_created=%d stories_attached=%d articles_linked=%d\n",
				result.ClustersFound, result.StoriesCreated, result.StoriesAttached, result.ArticlesLinked)
			return nil
		},
	}

	cmd.Flags().IntVar(&sinceDays, "since-days", 3, "article window to cluster over")
	cmd.Flags().IntVar(&maxArticles, "max", 2000, "maximum articles considered per run")

	return cmd
}
