package store

import (
	"context"
	"database/sql"
	"time"
)

// Story is the unit of publication: a cluster of related articles.
type Story struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateStory inserts a new story.
func (db *DB) CreateStory(ctx context.Context, title string, now time.Time) (*Story, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO stories (title, created_at, updated_at) VALUES (?, ?, ?)`, title, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Story{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetStory retrieves a story by id.
func (db *DB) GetStory(ctx context.Context, id int64) (*Story, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM stories WHERE id = ?`, id)
	s := &Story{}
	err := row.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// TouchStory bumps updated_at, called whenever a new article links
// successfully to the story (spec section 4.6).
func (db *DB) TouchStory(ctx context.Context, id int64, now time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE stories SET updated_at = ? WHERE id = ?`, now, id)
	return err
}

// RecentStories returns stories updated since the given time, newest first.
func (db *DB) RecentStories(ctx context.Context, since time.Time, limit int) ([]*Story, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at FROM stories
		WHERE updated_at >= ? ORDER BY updated_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Story
	for rows.Next() {
		s := &Story{}
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LinkArticleToStory inserts a story_articles row, ignoring a duplicate
// link. Returns whether a new link was created (used to decide whether to
// bump the story's updated_at).
func (db *DB) LinkArticleToStory(ctx context.Context, storyID, newsID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO story_articles (story_id, news_id) VALUES (?, ?)`, storyID, newsID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StoryForArticle returns the story id an article is already linked to, if
// any.
func (db *DB) StoryForArticle(ctx context.Context, newsID int64) (int64, error) {
	var storyID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT story_id FROM story_articles WHERE news_id = ? LIMIT 1`, newsID).Scan(&storyID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return storyID, err
}

// StoryFingerprint pairs a story-linked article with its fingerprint, used
// by the clusterer's near-duplicate-story search.
type StoryFingerprint struct {
	StoryID   int64
	NewsID    int64
	TitleSig  string
	EntitySig string
}

// StoryFingerprintsSince returns fingerprints for every article linked to a
// story updated at or after since, for the near-dup-story index (spec
// section 4.6's 72h window).
func (db *DB) StoryFingerprintsSince(ctx context.Context, since time.Time) ([]StoryFingerprint, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT sa.story_id, sa.news_id, cf.title_sig, cf.entity_sig
		FROM story_articles sa
		JOIN stories s ON s.id = sa.story_id
		JOIN content_fingerprints cf ON cf.news_id = sa.news_id
		WHERE s.updated_at >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoryFingerprint
	for rows.Next() {
		var f StoryFingerprint
		var entitySig sql.NullString
		if err := rows.Scan(&f.StoryID, &f.NewsID, &f.TitleSig, &entitySig); err != nil {
			return nil, err
		}
		f.EntitySig = entitySig.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// ArticlesForStory returns every article id linked to a story, in no
// particular order.
func (db *DB) ArticlesForStory(ctx context.Context, storyID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT news_id FROM story_articles WHERE story_id = ?`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
