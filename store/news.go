package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// News is a single ingested article.
type News struct {
	ID          int64
	URL         string
	Title       string
	Body        string
	PublishedAt *time.Time
	IngestedAt  time.Time
	Source      string
	Language    string
	ImageURLs   []string
	VideoURLs   []string
}

// UpsertNews creates the article on first sight of URL, or updates
// title/body/published_at on re-crawl, per the news invariant in spec
// section 3: URL is globally unique and canonicalized before this call.
func (db *DB) UpsertNews(ctx context.Context, n *News) (int64, error) {
	images, err := json.Marshal(n.ImageURLs)
	if err != nil {
		return 0, fmt.Errorf("marshal image urls: %w", err)
	}
	videos, err := json.Marshal(n.VideoURLs)
	if err != nil {
		return 0, fmt.Errorf("marshal video urls: %w", err)
	}

	query := `
	INSERT INTO news (url, title, body, published_at, ingested_at, source, language, image_urls, video_urls)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		published_at = excluded.published_at
	`
	_, err = db.conn.ExecContext(ctx, query,
		n.URL, n.Title, n.Body, nullTime(n.PublishedAt), n.IngestedAt,
		n.Source, n.Language, string(images), string(videos),
	)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := db.conn.QueryRowContext(ctx, `SELECT id FROM news WHERE url = ?`, n.URL).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetNews retrieves an article by id.
func (db *DB) GetNews(ctx context.Context, id int64) (*News, error) {
	return db.scanNewsRow(db.conn.QueryRowContext(ctx, newsSelect+` WHERE id = ?`, id))
}

// GetNewsByURL retrieves an article by its canonical URL.
func (db *DB) GetNewsByURL(ctx context.Context, url string) (*News, error) {
	return db.scanNewsRow(db.conn.QueryRowContext(ctx, newsSelect+` WHERE url = ?`, url))
}

const newsSelect = `SELECT id, url, title, body, published_at, ingested_at, source, language, image_urls, video_urls FROM news`

func (db *DB) scanNewsRow(row *sql.Row) (*News, error) {
	n := &News{}
	var publishedAt sql.NullTime
	var images, videos string
	err := row.Scan(&n.ID, &n.URL, &n.Title, &n.Body, &publishedAt, &n.IngestedAt,
		&n.Source, &n.Language, &images, &videos)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.PublishedAt = timePtr(publishedAt)
	if err := json.Unmarshal([]byte(images), &n.ImageURLs); err != nil {
		return nil, fmt.Errorf("unmarshal image urls: %w", err)
	}
	if err := json.Unmarshal([]byte(videos), &n.VideoURLs); err != nil {
		return nil, fmt.Errorf("unmarshal video urls: %w", err)
	}
	return n, nil
}

// RecentNews returns articles published/ingested since the given time,
// newest first. Used by the clustering and digest stages.
func (db *DB) RecentNews(ctx context.Context, since time.Time, limit int) ([]*News, error) {
	rows, err := db.conn.QueryContext(ctx, newsSelect+`
		WHERE ingested_at >= ? ORDER BY ingested_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*News
	for rows.Next() {
		n := &News{}
		var publishedAt sql.NullTime
		var images, videos string
		if err := rows.Scan(&n.ID, &n.URL, &n.Title, &n.Body, &publishedAt, &n.IngestedAt,
			&n.Source, &n.Language, &images, &videos); err != nil {
			return nil, err
		}
		n.PublishedAt = timePtr(publishedAt)
		json.Unmarshal([]byte(images), &n.ImageURLs)
		json.Unmarshal([]byte(videos), &n.VideoURLs)
		out = append(out, n)
	}
	return out, rows.Err()
}

// LinkArticleTag records that an article carries a tag (idempotent).
func (db *DB) LinkArticleTag(ctx context.Context, newsID, tagID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO news_article_tags (news_id, tag_id) VALUES (?, ?)`, newsID, tagID)
	return err
}

// TagsForArticle returns every tag id linked to an article.
func (db *DB) TagsForArticle(ctx context.Context, newsID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT tag_id FROM news_article_tags WHERE news_id = ?`, newsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
