package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sportbot/publish"
)

func newEditCommand() *cobra.Command {
	var storyID int64
	var articleID int64
	var doEdit bool
	var doAppend bool
	var text string
	var fromRender string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit the anchor message or reply-thread an append for a published item",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			ctx := cmd.Context()
			now := time.Now()

			itemType, itemID, err := resolveEditTarget(storyID, articleID)
			if err != nil {
				return err
			}
			if doEdit == doAppend {
				return fmt.Errorf("edit: exactly one of --edit or --append is required")
			}

			renderer := newStoreRenderer(a.db, a.cfg.BaseURL)
			body, parseMode, err := resolveEditText(ctx, renderer, itemType, itemID, text, fromRender)
			if err != nil {
				return err
			}

			if a.dryRun {
				fmt.Printf("--- dry-run (%s) ---\n%s\n", parseMode, body)
				return nil
			}

			sched := publish.New(a.db, a.chat, renderer, *a.cfg, a.chatID())
			if doEdit {
				if err := sched.Edit(ctx, itemType, itemID, body, parseMode, now); err != nil {
					return fmt.Errorf("edit: %w", err)
				}
			} else {
				if err := sched.Append(ctx, itemType, itemID, body, parseMode, now); err != nil {
					return fmt.Errorf("append: %w", err)
				}
			}
			fmt.Println("ok")
			return nil
		},
	}

	cmd.Flags().Int64Var(&storyID, "story-id", 0, "target a published story")
	cmd.Flags().Int64Var(&articleID, "article-id", 0, "target a published article")
	cmd.Flags().BoolVar(&doEdit, "edit", false, "edit the anchor message in place")
	cmd.Flags().BoolVar(&doAppend, "append", false, "send a reply-thread append")
	cmd.Flags().StringVar(&text, "text", "", "literal replacement/append text")
	cmd.Flags().StringVar(&fromRender, "from-render", "", "short|full: re-render the current item instead of --text")

	return cmd
}

func resolveEditTarget(storyID, articleID int64) (itemType string, itemID int64, err error) {
	switch {
	case storyID != 0 && articleID != 0:
		return "", 0, fmt.Errorf("edit: only one of --story-id or --article-id may be set")
	case storyID != 0:
		return "story", storyID, nil
	case articleID != 0:
		return "article", articleID, nil
	default:
		return "", 0, fmt.Errorf("edit: one of --story-id or --article-id is required")
	}
}

func resolveEditText(ctx context.Context, renderer *storeRenderer, itemType string, itemID int64, text, fromRender string) (string, string, error) {
	if text != "" {
		return text, "HTML", nil
	}
	if fromRender == "" {
		return "", "", fmt.Errorf("edit: one of --text or --from-render is required")
	}

	chunks, parseMode, err := renderer.Render(ctx, itemType, itemID)
	if err != nil {
		return "", "", fmt.Errorf("edit: re-render: %w", err)
	}
	if len(chunks) == 0 {
		return "", "", fmt.Errorf("edit: re-render produced no content")
	}

	if fromRender == "short" {
		return chunks[0], parseMode, nil
	}
	return strings.Join(chunks, "\n"), parseMode, nil
}
