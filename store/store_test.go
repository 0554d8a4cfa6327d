package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	db, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	tables := []string{
		"news", "tags", "news_article_tags", "entities", "entity_aliases",
		"news_entity_assignments", "content_fingerprints", "stories",
		"story_articles", "publish_map", "publish_queue", "publish_edits",
		"digests", "digest_items", "monitor_logs",
	}
	for _, tbl := range tables {
		if _, err := db.conn.ExecContext(ctx, "SELECT 1 FROM "+tbl+" LIMIT 1"); err != nil {
			t.Errorf("table %q not created: %v", tbl, err)
		}
	}
}

func TestUpsertNewsCreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	n := &News{
		URL:         "https://sport.example/article/1",
		Title:       "First title",
		Body:        "body",
		IngestedAt:  now,
		Source:      "sport.example",
		Language:    "ru",
	}
	id1, err := db.UpsertNews(ctx, n)
	if err != nil {
		t.Fatalf("UpsertNews failed: %v", err)
	}

	n.Title = "Updated title"
	id2, err := db.UpsertNews(ctx, n)
	if err != nil {
		t.Fatalf("UpsertNews (update) failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("UpsertNews changed id on re-crawl: %d != %d", id1, id2)
	}

	got, err := db.GetNews(ctx, id1)
	if err != nil {
		t.Fatalf("GetNews failed: %v", err)
	}
	if got.Title != "Updated title" {
		t.Errorf("Title = %q, want %q", got.Title, "Updated title")
	}

	if _, err := db.GetNews(ctx, 999999); err != ErrNotFound {
		t.Errorf("GetNews(missing) err = %v, want ErrNotFound", err)
	}
}

func TestUpsertTagIdentityByURL(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	t1, err := db.UpsertTag(ctx, "ЦСКА", "цска", "https://sport.example/team/cska", "unknown")
	if err != nil {
		t.Fatalf("UpsertTag failed: %v", err)
	}
	t2, err := db.UpsertTag(ctx, "ЦСКА Москва", "цска москва", "https://sport.example/team/cska", "team")
	if err != nil {
		t.Fatalf("UpsertTag (second) failed: %v", err)
	}
	if t1.ID != t2.ID {
		t.Fatalf("same URL produced different tag ids: %d != %d", t1.ID, t2.ID)
	}
	if t2.Type != "team" {
		t.Errorf("Type = %q, want %q (unknown->typed upgrade)", t2.Type, "team")
	}
}

func TestUpsertTagTypedNeverDowngradedSilently(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	t1, err := db.UpsertTag(ctx, "Зенит", "зенит", "https://sport.example/team/zenit", "team")
	if err != nil {
		t.Fatalf("UpsertTag failed: %v", err)
	}
	t2, err := db.UpsertTag(ctx, "Зенит", "зенит", "https://sport.example/team/zenit", "player")
	if err != nil {
		t.Fatalf("UpsertTag (retype) failed: %v", err)
	}
	if t2.Type != "team" {
		t.Errorf("Type changed from typed value without override: got %q, want %q", t2.Type, "team")
	}
	_ = t1
}

func TestPublishQueueTerminalStateOnce(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := db.EnqueueItem(ctx, "story", 1, 0, nil, "story:1", now)
	if err != nil {
		t.Fatalf("EnqueueItem failed: %v", err)
	}

	if err := db.MarkSent(ctx, id, 555, now); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	// A second MarkSent/MarkError must be a no-op since status is no longer 'queued'.
	if err := db.MarkError(ctx, id, "late error"); err != nil {
		t.Fatalf("MarkError (no-op) failed: %v", err)
	}

	item, err := db.NextQueued(ctx, now)
	if err != ErrNotFound {
		t.Fatalf("expected no queued rows left, got item=%v err=%v", item, err)
	}
}

func TestLastQueueActivityDedup(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := db.LastQueueActivity(ctx, "story:42"); err != nil {
		t.Fatalf("LastQueueActivity (empty) failed: %v", err)
	}

	if _, err := db.EnqueueItem(ctx, "story", 42, 0, nil, "story:42", now); err != nil {
		t.Fatalf("EnqueueItem failed: %v", err)
	}

	activity, found, err := db.LastQueueActivity(ctx, "story:42")
	if err != nil {
		t.Fatalf("LastQueueActivity failed: %v", err)
	}
	if !found {
		t.Fatal("expected activity to be found")
	}
	if activity.Before(now.Add(-time.Second)) {
		t.Errorf("activity = %v, want ~%v", activity, now)
	}
}

func TestRecordPublishEditAppendOnly(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	edit := &PublishEdit{
		ItemType:  "story",
		ItemID:    7,
		Action:    "append",
		NewText:   "update: final score 2-1",
		CreatedAt: now,
	}
	if err := db.RecordPublishEdit(ctx, edit); err != nil {
		t.Fatalf("RecordPublishEdit failed: %v", err)
	}

	text, ok, err := db.LastAppendText(ctx, "story", 7)
	if err != nil {
		t.Fatalf("LastAppendText failed: %v", err)
	}
	if !ok || text != "update: final score 2-1" {
		t.Errorf("LastAppendText = (%q, %v), want (%q, true)", text, ok, edit.NewText)
	}
}
