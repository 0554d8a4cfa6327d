package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sportbot/publish"
)

func newSchedulerCommand() *cobra.Command {
	var enqueueRecent bool
	var runOnce bool
	var loop bool
	var limit int
	var sinceDays int
	var mode string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Enqueue recent stories and run the publish scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			ctx := cmd.Context()
			renderer := newStoreRenderer(a.db, a.cfg.BaseURL)
			sched := publish.New(a.db, a.chat, renderer, *a.cfg, a.chatID())

			if enqueueRecent {
				enqueued, skipped, err := sched.EnqueueRecentStories(ctx, limit, sinceDays, 0, nil, time.Now())
				if err != nil {
					return fmt.Errorf("scheduler: enqueue recent: %w", err)
				}
				fmt.Printf("enqueued=%d skipped:dedup=%d\n", enqueued, skipped)
			}

			switch {
			case loop:
				sched.Loop(ctx, time.Now)
				return nil
			case runOnce:
				outcome, reason, err := sched.ProcessOnce(ctx, time.Now())
				if err != nil {
					return fmt.Errorf("scheduler: process once: %w", err)
				}
				printOutcome(outcome, reason)
				return nil
			default:
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&enqueueRecent, "enqueue-recent", false, "enqueue the most recently touched stories")
	cmd.Flags().IntVar(&limit, "limit", 10, "max stories enqueued with --enqueue-recent")
	cmd.Flags().IntVar(&sinceDays, "since-days", 3, "story lookback window with --enqueue-recent")
	cmd.Flags().BoolVar(&runOnce, "run-once", false, "process one queue tick and exit")
	cmd.Flags().BoolVar(&loop, "loop", false, "run the scheduler loop until cancelled")
	cmd.Flags().StringVar(&mode, "mode", "html", "html|markdown (reserved; rendering currently always uses html)")

	return cmd
}
