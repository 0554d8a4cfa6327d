package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sportbot/config"
	"sportbot/publish"
	"sportbot/store"
)

func TestRunSinglePreviewWithoutSendDoesNotEnqueue(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "publish.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()

	now := time.Now()
	newsID, err := db.UpsertNews(ctx, &store.News{URL: "https://a.example/piece", Title: "Piece", IngestedAt: now})
	if err != nil {
		t.Fatalf("UpsertNews: %v", err)
	}

	renderer := newStoreRenderer(db, "https://source.example")
	cfg := config.Config{ChannelID: 1}
	sched := publish.New(db, nil, renderer, cfg, 1)

	if err := runSingle(ctx, db, renderer, sched, "article", newsID, false, now); err != nil {
		t.Fatalf("runSingle: %v", err)
	}

	if _, err := db.NextQueued(ctx, now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no queued item without --send, got err=%v", err)
	}
}

func TestPrintOutcomeDoesNotPanic(t *testing.T) {
	printOutcome(publish.OutcomeEmpty, "")
	printOutcome(publish.OutcomeSent, "rate_limited")
}
