package store

import (
	"context"
	"database/sql"
	"time"
)

// PublishMapEntry is the one row per (item_type,item_id) published item,
// overwritten on edit per spec section 3.
type PublishMapEntry struct {
	ItemType  string
	ItemID    int64
	MessageID int64
	LastText  string
	Mode      string
	SentAt    time.Time
}

// GetPublishMap looks up the publish_map row for an already-published item.
func (db *DB) GetPublishMap(ctx context.Context, itemType string, itemID int64) (*PublishMapEntry, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT item_type, item_id, message_id, last_text, mode, sent_at
		FROM publish_map WHERE item_type = ? AND item_id = ?`, itemType, itemID)
	e := &PublishMapEntry{}
	err := row.Scan(&e.ItemType, &e.ItemID, &e.MessageID, &e.LastText, &e.Mode, &e.SentAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// UpsertPublishMap inserts or overwrites the publish_map row. message_id
// must never change across calls for the same (item_type, item_id) — this
// is enforced by callers (the edit protocol never passes a different
// message_id on update); this method trusts its input.
func (db *DB) UpsertPublishMap(ctx context.Context, e *PublishMapEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO publish_map (item_type, item_id, message_id, last_text, mode, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_type, item_id) DO UPDATE SET
			last_text = excluded.last_text,
			mode = excluded.mode,
			sent_at = excluded.sent_at
	`, e.ItemType, e.ItemID, e.MessageID, e.LastText, e.Mode, e.SentAt)
	return err
}

// QueueItem is a row in publish_queue.
type QueueItem struct {
	ID          int64
	ItemType    string
	ItemID      int64
	Priority    int
	Status      string
	ScheduledAt *time.Time
	EnqueuedAt  time.Time
	SentAt      *time.Time
	MessageID   *int64
	Error       string
	DedupKey    string
}

// LastQueueActivity returns COALESCE(sent_at, enqueued_at) for the most
// recent queue row with the given dedup_key, used by enqueue_recent_stories'
// dedup-window check.
func (db *DB) LastQueueActivity(ctx context.Context, dedupKey string) (time.Time, bool, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT sent_at, enqueued_at FROM publish_queue
		WHERE dedup_key = ? ORDER BY enqueued_at DESC`, dedupKey)
	if err != nil {
		return time.Time{}, false, err
	}
	defer rows.Close()

	var latest time.Time
	found := false
	for rows.Next() {
		var sentAt sql.NullTime
		var enqueuedAt time.Time
		if err := rows.Scan(&sentAt, &enqueuedAt); err != nil {
			return time.Time{}, false, err
		}
		activity := enqueuedAt
		if sentAt.Valid {
			activity = sentAt.Time
		}
		if !found || activity.After(latest) {
			latest = activity
			found = true
		}
	}
	return latest, found, rows.Err()
}

// EnqueueItem inserts a queued publish_queue row.
func (db *DB) EnqueueItem(ctx context.Context, itemType string, itemID int64, priority int, scheduledAt *time.Time, dedupKey string, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO publish_queue (item_type, item_id, priority, status, scheduled_at, enqueued_at, dedup_key)
		VALUES (?, ?, ?, 'queued', ?, ?, ?)
	`, itemType, itemID, priority, nullTime(scheduledAt), now, dedupKey)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// NextQueued selects the next dispatchable row: status='queued' and
// scheduled_at is null or due, ordered by priority desc, enqueued_at asc.
func (db *DB) NextQueued(ctx context.Context, now time.Time) (*QueueItem, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, item_type, item_id, priority, status, scheduled_at, enqueued_at, sent_at, message_id, error, dedup_key
		FROM publish_queue
		WHERE status = 'queued' AND (scheduled_at IS NULL OR scheduled_at <= ?)
		ORDER BY priority DESC, enqueued_at ASC
		LIMIT 1
	`, now)
	return scanQueueItem(row)
}

func scanQueueItem(row *sql.Row) (*QueueItem, error) {
	q := &QueueItem{}
	var scheduledAt, sentAt sql.NullTime
	var messageID sql.NullInt64
	var errText sql.NullString
	err := row.Scan(&q.ID, &q.ItemType, &q.ItemID, &q.Priority, &q.Status,
		&scheduledAt, &q.EnqueuedAt, &sentAt, &messageID, &errText, &q.DedupKey)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.ScheduledAt = timePtr(scheduledAt)
	q.SentAt = timePtr(sentAt)
	q.MessageID = int64Ptr(messageID)
	q.Error = errText.String
	return q, nil
}

// CountSentSince counts publish_queue rows with status='sent' and
// sent_at >= since — the rate-limit gates are evaluated against
// successfully sent rows only (spec section 3 invariant).
func (db *DB) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_queue WHERE status = 'sent' AND sent_at >= ?`, since).Scan(&n)
	return n, err
}

// LastSentAt returns the most recent sent_at among sent rows, if any.
func (db *DB) LastSentAt(ctx context.Context) (time.Time, bool, error) {
	var sentAt sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(sent_at) FROM publish_queue WHERE status = 'sent'`).Scan(&sentAt)
	if err != nil {
		return time.Time{}, false, err
	}
	return sentAt.Time, sentAt.Valid, nil
}

// MarkSent transitions a queue row to its terminal 'sent' state exactly
// once (spec section 3 invariant).
func (db *DB) MarkSent(ctx context.Context, id int64, messageID int64, now time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE publish_queue SET status = 'sent', sent_at = ?, message_id = ? WHERE id = ? AND status = 'queued'`,
		now, messageID, id)
	return err
}

// MarkError transitions a queue row to its terminal 'error' state exactly
// once.
func (db *DB) MarkError(ctx context.Context, id int64, errText string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE publish_queue SET status = 'error', error = ? WHERE id = ? AND status = 'queued'`,
		errText, id)
	return err
}

// PublishEdit is an append-only audit row for edit/append actions.
type PublishEdit struct {
	ItemType  string
	ItemID    int64
	Action    string // "edit" | "append"
	OldText   string
	NewText   string
	Error     string
	CreatedAt time.Time
}

// RecordPublishEdit appends an audit row. Never updated or deleted.
func (db *DB) RecordPublishEdit(ctx context.Context, e *PublishEdit) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO publish_edits (item_type, item_id, action, old_text, new_text, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ItemType, e.ItemID, e.Action, nullString(e.OldText), e.NewText, nullString(e.Error), e.CreatedAt)
	return err
}

// LastAppendText returns the new_text of the most recent successful
// "append" edit row for (item_type, item_id), used for the append
// idempotency check.
func (db *DB) LastAppendText(ctx context.Context, itemType string, itemID int64) (string, bool, error) {
	var text string
	err := db.conn.QueryRowContext(ctx, `
		SELECT new_text FROM publish_edits
		WHERE item_type = ? AND item_id = ? AND action = 'append' AND error IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, itemType, itemID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}
