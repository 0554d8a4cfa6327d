// Package publish implements the rate-limited scheduler and queue that
// dispatches composed story/article messages to a chat channel.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sportbot/chat"
	"sportbot/compose"
	"sportbot/config"
	"sportbot/store"
)

// Outcome is the textual result of one process_once call, used for CLI
// status lines and tests.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeQuiet    Outcome = "quiet"
	OutcomeEmpty    Outcome = "empty"
	OutcomeDeferred Outcome = "deferred"
	OutcomeError    Outcome = "error"
)

// DeferReason explains why a dispatchable row was left queued.
type DeferReason string

const (
	DeferInterval DeferReason = "interval"
	DeferHour     DeferReason = "hour"
	DeferDay      DeferReason = "day"
)

// Renderer produces chat chunks for a queued item. Implementations live
// outside this package (composing stories/articles into compose.Chunk
// output) to keep publish decoupled from the data shape of a story.
type Renderer interface {
	Render(ctx context.Context, itemType string, itemID int64) (chunks []string, parseMode string, err error)
}

// Scheduler runs enqueue/process_once/loop against the store and a chat
// client.
type Scheduler struct {
	db     *store.DB
	chat   *chat.Client
	render Renderer
	cfg    config.Config
	chatID int64
}

// New constructs a Scheduler.
func New(db *store.DB, chatClient *chat.Client, renderer Renderer, cfg config.Config, chatID int64) *Scheduler {
	return &Scheduler{db: db, chat: chatClient, render: renderer, cfg: cfg, chatID: chatID}
}

// EnqueueRecentStories enqueues every story updated within sinceDays,
// applying the dedup_window_days skip rule keyed on "story:{id}".
func (s *Scheduler) EnqueueRecentStories(ctx context.Context, limit, sinceDays, priority int, scheduledAt *time.Time, now time.Time) (enqueued, skipped int, err error) {
	since := now.AddDate(0, 0, -sinceDays)
	stories, err := s.db.RecentStories(ctx, since, limit)
	if err != nil {
		return 0, 0, err
	}

	dedupWindow := time.Duration(s.cfg.DedupWindowDays) * 24 * time.Hour
	for _, story := range stories {
		dedupKey := fmt.Sprintf("story:%d", story.ID)

		lastActivity, found, err := s.db.LastQueueActivity(ctx, dedupKey)
		if err != nil {
			return enqueued, skipped, err
		}
		if found && now.Sub(lastActivity) < dedupWindow {
			slog.Info("publish enqueue: dedup skip", "dedup_key", dedupKey)
			skipped++
			continue
		}

		if _, err := s.db.EnqueueItem(ctx, "story", story.ID, priority, scheduledAt, dedupKey, now); err != nil {
			return enqueued, skipped, err
		}
		enqueued++
	}
	return enqueued, skipped, nil
}

// ProcessOnce performs one scheduler tick: quiet-hours check, gate
// evaluation, dispatch. Returns the outcome and, for deferrals, the reason.
func (s *Scheduler) ProcessOnce(ctx context.Context, now time.Time) (Outcome, DeferReason, error) {
	if isQuiet(now, s.cfg) {
		return OutcomeQuiet, "", nil
	}

	item, err := s.db.NextQueued(ctx, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeEmpty, "", nil
		}
		return OutcomeError, "", err
	}

	if reason, defer_ := s.gate(ctx, now); defer_ {
		return OutcomeDeferred, reason, nil
	}

	chunks, parseMode, err := s.render.Render(ctx, item.ItemType, item.ItemID)
	if err != nil {
		if markErr := s.db.MarkError(ctx, item.ID, err.Error()); markErr != nil {
			return OutcomeError, "", markErr
		}
		return OutcomeError, "", err
	}

	firstMessageID, err := s.dispatchChunks(ctx, chunks, parseMode)
	if err != nil {
		if markErr := s.db.MarkError(ctx, item.ID, err.Error()); markErr != nil {
			return OutcomeError, "", markErr
		}
		return OutcomeError, "", err
	}

	if err := s.db.MarkSent(ctx, item.ID, int64(firstMessageID), now); err != nil {
		return OutcomeError, "", err
	}
	return OutcomeSent, "", nil
}

func (s *Scheduler) dispatchChunks(ctx context.Context, chunks []string, parseMode string) (int, error) {
	if len(chunks) == 0 {
		return 0, errors.New("publish: renderer produced no chunks")
	}

	first, err := s.chat.SendText(ctx, s.chatID, chunks[0], parseMode, 0, false)
	if err != nil {
		return 0, err
	}
	for _, chunk := range chunks[1:] {
		if _, err := s.chat.ReplyText(ctx, s.chatID, first.MessageID, chunk, parseMode); err != nil {
			return first.MessageID, err
		}
	}
	return first.MessageID, nil
}

// gate evaluates the three rate-limit checks against successfully sent
// rows: min interval since the last send, max sends in the last hour, max
// sends in the last 24h.
func (s *Scheduler) gate(ctx context.Context, now time.Time) (DeferReason, bool) {
	lastSent, ok, err := s.db.LastSentAt(ctx)
	if err == nil && ok {
		if now.Sub(lastSent) < time.Duration(s.cfg.IntervalSec)*time.Second {
			return DeferInterval, true
		}
	}

	hourCount, err := s.db.CountSentSince(ctx, now.Add(-time.Hour))
	if err == nil && hourCount >= s.cfg.MaxPerHour {
		return DeferHour, true
	}

	dayCount, err := s.db.CountSentSince(ctx, now.Add(-24*time.Hour))
	if err == nil && dayCount >= s.cfg.MaxPerDay {
		return DeferDay, true
	}

	return "", false
}

// Loop runs ProcessOnce repeatedly, sleeping interval_sec between calls,
// until ctx is cancelled.
func (s *Scheduler) Loop(ctx context.Context, now func() time.Time) {
	interval := time.Duration(s.cfg.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		outcome, reason, err := s.ProcessOnce(ctx, now())
		if err != nil {
			slog.Error("publish loop tick failed", "error", err)
		} else if outcome == OutcomeDeferred {
			slog.Info("publish loop deferred", "reason", reason)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// isQuiet implements the wrap-around quiet-hours rule of spec section 4.9:
// start==end is never quiet; start<end is quiet for [start,end); start>end
// is quiet for [start,24) U [0,end).
func isQuiet(now time.Time, cfg config.Config) bool {
	start, end, ok := cfg.QuietHoursRange()
	if !ok {
		return false
	}
	local := now.In(cfg.Location())
	hour := local.Hour()

	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// compose.MaxChunkLen is referenced only to keep the compose import; nothing
// here checks the length of the chunks a Renderer returns.
var _ = compose.MaxChunkLen

// ErrNoPriorPublish is returned by Edit/Append when the item has never
// been sent, so there is nothing to edit or append to.
var ErrNoPriorPublish = errors.New("publish: item has no prior publish_map entry")

// Edit rewrites a previously published message in place via chat.EditText,
// then appends an audit row. If newText equals the last recorded text, a
// warning is logged but the edit still dispatches.
func (s *Scheduler) Edit(ctx context.Context, itemType string, itemID int64, newText, parseMode string, now time.Time) error {
	entry, err := s.db.GetPublishMap(ctx, itemType, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPriorPublish
		}
		return err
	}
	if entry.LastText == newText {
		slog.Warn("publish edit: new text identical to stored text", "item_type", itemType, "item_id", itemID)
	}

	oldText := entry.LastText
	_, sendErr := s.chat.EditText(ctx, s.chatID, int(entry.MessageID), newText, parseMode)
	if sendErr != nil {
		_ = s.db.RecordPublishEdit(ctx, &store.PublishEdit{
			ItemType: itemType, ItemID: itemID, Action: "edit",
			OldText: oldText, NewText: newText, Error: sendErr.Error(), CreatedAt: now,
		})
		return sendErr
	}

	entry.LastText = newText
	entry.SentAt = now
	if err := s.db.UpsertPublishMap(ctx, entry); err != nil {
		return err
	}
	return s.db.RecordPublishEdit(ctx, &store.PublishEdit{
		ItemType: itemType, ItemID: itemID, Action: "edit",
		OldText: oldText, NewText: newText, CreatedAt: now,
	})
}

// Append sends appendText as a reply to the previously published message
// and records an append audit row. If appendText matches the most recent
// successful append, a warning is logged but the reply still dispatches.
// The publish_map anchor message_id is never touched.
func (s *Scheduler) Append(ctx context.Context, itemType string, itemID int64, appendText, parseMode string, now time.Time) error {
	entry, err := s.db.GetPublishMap(ctx, itemType, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPriorPublish
		}
		return err
	}

	if lastAppend, ok, err := s.db.LastAppendText(ctx, itemType, itemID); err != nil {
		return err
	} else if ok && lastAppend == appendText {
		slog.Warn("publish append: new text identical to most recent append", "item_type", itemType, "item_id", itemID)
	}

	_, sendErr := s.chat.ReplyText(ctx, s.chatID, int(entry.MessageID), appendText, parseMode)
	if sendErr != nil {
		_ = s.db.RecordPublishEdit(ctx, &store.PublishEdit{
			ItemType: itemType, ItemID: itemID, Action: "append",
			NewText: appendText, Error: sendErr.Error(), CreatedAt: now,
		})
		return sendErr
	}

	return s.db.RecordPublishEdit(ctx, &store.PublishEdit{
		ItemType: itemType, ItemID: itemID, Action: "append",
		NewText: appendText, CreatedAt: now,
	})
}
