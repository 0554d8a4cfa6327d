package store

import (
	"context"
	"database/sql"
	"time"
)

// Digest is a periodic snapshot of top-N stories in a window.
type Digest struct {
	ID            int64
	Window        string // "daily" | "weekly"
	CreatedAt     time.Time
	SentMessageID *int64
}

// DigestItem is one ranked story within a digest.
type DigestItem struct {
	DigestID int64
	StoryID  int64
	Rank     int
	Score    float64
}

// CreateDigest inserts a digest row and its ranked items in one call.
func (db *DB) CreateDigest(ctx context.Context, window string, now time.Time, items []DigestItem) (*Digest, error) {
	var digestID int64
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO digests (window, created_at) VALUES (?, ?)`, window, now)
		if err != nil {
			return err
		}
		digestID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO digest_items (digest_id, story_id, rank, score) VALUES (?, ?, ?, ?)
			`, digestID, it.StoryID, it.Rank, it.Score); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Digest{ID: digestID, Window: window, CreatedAt: now}, nil
}

// MarkDigestSent records the chat message id the digest overview was sent
// as.
func (db *DB) MarkDigestSent(ctx context.Context, digestID, messageID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE digests SET sent_message_id = ? WHERE id = ?`, messageID, digestID)
	return err
}

// DigestItems returns the ranked items of a digest, in rank order.
func (db *DB) DigestItems(ctx context.Context, digestID int64) ([]DigestItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT digest_id, story_id, rank, score FROM digest_items WHERE digest_id = ? ORDER BY rank ASC`, digestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DigestItem
	for rows.Next() {
		var it DigestItem
		if err := rows.Scan(&it.DigestID, &it.StoryID, &it.Rank, &it.Score); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
