package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sportbot/publish"
	"sportbot/store"
)

func newPublishCommand() *cobra.Command {
	var storyID int64
	var articleID int64
	var latest bool
	var limit int
	var send bool
	var mode string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Preview or dispatch a story/article through the publish queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			ctx := cmd.Context()
			now := time.Now()
			renderer := newStoreRenderer(a.db, a.cfg.BaseURL)
			sched := publish.New(a.db, a.chat, renderer, *a.cfg, a.chatID())

			switch {
			case latest:
				return runLatest(ctx, sched, limit, a.cfg.DedupWindowDays, send, now)
			case storyID != 0:
				return runSingle(ctx, a.db, renderer, sched, "story", storyID, send, now)
			case articleID != 0:
				return runSingle(ctx, a.db, renderer, sched, "article", articleID, send, now)
			default:
				return fmt.Errorf("publish: one of --story-id, --article-id, or --latest is required")
			}
		},
	}

	cmd.Flags().Int64Var(&storyID, "story-id", 0, "publish a specific story")
	cmd.Flags().Int64Var(&articleID, "article-id", 0, "publish a specific article")
	cmd.Flags().BoolVar(&latest, "latest", false, "enqueue the most recent unsent stories")
	cmd.Flags().IntVar(&limit, "limit", 10, "max stories considered with --latest")
	cmd.Flags().BoolVar(&send, "send", false, "actually dispatch (default is a dry-run preview)")
	cmd.Flags().StringVar(&mode, "mode", "html", "html|markdown (reserved; rendering currently always uses html)")

	return cmd
}

func runLatest(ctx context.Context, sched *publish.Scheduler, limit, sinceDays int, send bool, now time.Time) error {
	enqueued, skipped, err := sched.EnqueueRecentStories(ctx, limit, sinceDays, 0, nil, now)
	if err != nil {
		return fmt.Errorf("publish: enqueue recent: %w", err)
	}
	fmt.Printf("enqueued=%d skipped:dedup=%d\n", enqueued, skipped)
	if !send {
		return nil
	}

	for i := 0; i < limit; i++ {
		outcome, reason, err := sched.ProcessOnce(ctx, now)
		if err != nil {
			return fmt.Errorf("publish: dispatch: %w", err)
		}
		if outcome == publish.OutcomeEmpty {
			break
		}
		printOutcome(outcome, reason)
	}
	return nil
}

func runSingle(ctx context.Context, db *store.DB, renderer *storeRenderer, sched *publish.Scheduler, itemType string, itemID int64, send bool, now time.Time) error {
	chunks, parseMode, err := renderer.Render(ctx, itemType, itemID)
	if err != nil {
		return fmt.Errorf("publish: render: %w", err)
	}
	fmt.Printf("--- preview (%s) ---\n%s\n", parseMode, strings.Join(chunks, "\n...\n"))

	if !send {
		return nil
	}

	dedupKey := fmt.Sprintf("%s:%d", itemType, itemID)
	if _, err := db.EnqueueItem(ctx, itemType, itemID, 10, nil, dedupKey, now); err != nil {
		return fmt.Errorf("publish: enqueue: %w", err)
	}

	outcome, reason, err := sched.ProcessOnce(ctx, now)
	if err != nil {
		return fmt.Errorf("publish: dispatch: %w", err)
	}
	printOutcome(outcome, reason)
	return nil
}

func printOutcome(outcome publish.Outcome, reason publish.DeferReason) {
	if reason != "" {
		fmt.Printf("outcome=%s defer_reason=%s\n", outcome, reason)
		return
	}
	fmt.Printf("outcome=%s\n", outcome)
}
