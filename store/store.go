// Package store wraps the sqlite-backed persistence layer: schema setup and
// typed repository methods for every table in the pipeline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// DB wraps the sqlite connection and exposes repository methods grouped by
// table/concern below (news.go, tags.go, stories.go, publish.go, digest.go).
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and runs
// all migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer, matches teacher's usage

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw *sql.DB for callers that need transactions spanning
// multiple repository calls (e.g. cluster attach-or-create).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

type migration struct {
	name string
	ddl  string
}

var migrations = []migration{
	{"news", `
CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	ingested_at DATETIME NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'ru',
	image_urls TEXT NOT NULL DEFAULT '[]',
	video_urls TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_news_published_at ON news(published_at);
`},
	{"tags", `
CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	url TEXT UNIQUE,
	type TEXT NOT NULL DEFAULT 'unknown'
);
CREATE INDEX IF NOT EXISTS idx_tags_name_normalized ON tags(name_normalized);
`},
	{"news_article_tags", `
CREATE TABLE IF NOT EXISTS news_article_tags (
	news_id INTEGER NOT NULL REFERENCES news(id),
	tag_id INTEGER NOT NULL REFERENCES tags(id),
	PRIMARY KEY (news_id, tag_id)
);
`},
	{"entities", `
CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name_normalized TEXT NOT NULL,
	type TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT 'ru',
	UNIQUE(name_normalized, type)
);
`},
	{"entity_aliases", `
CREATE TABLE IF NOT EXISTS entity_aliases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alias TEXT NOT NULL,
	alias_normalized TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id INTEGER NOT NULL REFERENCES entities(id),
	source TEXT NOT NULL DEFAULT '',
	UNIQUE(alias_normalized, entity_type)
);
`},
	{"news_entity_assignments", `
CREATE TABLE IF NOT EXISTS news_entity_assignments (
	news_id INTEGER PRIMARY KEY REFERENCES news(id),
	sport_id INTEGER REFERENCES entities(id),
	tournament_id INTEGER REFERENCES entities(id),
	team_id INTEGER REFERENCES entities(id),
	player_id INTEGER REFERENCES entities(id)
);
`},
	{"content_fingerprints", `
CREATE TABLE IF NOT EXISTS content_fingerprints (
	news_id INTEGER PRIMARY KEY REFERENCES news(id),
	title_sig TEXT NOT NULL DEFAULT '',
	entity_sig TEXT
);
`},
	{"stories", `
CREATE TABLE IF NOT EXISTS stories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_updated_at ON stories(updated_at);
`},
	{"story_articles", `
CREATE TABLE IF NOT EXISTS story_articles (
	story_id INTEGER NOT NULL REFERENCES stories(id),
	news_id INTEGER NOT NULL REFERENCES news(id),
	PRIMARY KEY (story_id, news_id)
);
CREATE INDEX IF NOT EXISTS idx_story_articles_news_id ON story_articles(news_id);
`},
	{"publish_map", `
CREATE TABLE IF NOT EXISTS publish_map (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_type TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	last_text TEXT NOT NULL,
	mode TEXT NOT NULL DEFAULT 'short',
	sent_at DATETIME NOT NULL,
	UNIQUE(item_type, item_id)
);
`},
	{"publish_queue", `
CREATE TABLE IF NOT EXISTS publish_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_type TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'queued',
	scheduled_at DATETIME,
	enqueued_at DATETIME NOT NULL,
	sent_at DATETIME,
	message_id INTEGER,
	error TEXT,
	dedup_key TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_publish_queue_status ON publish_queue(status);
CREATE INDEX IF NOT EXISTS idx_publish_queue_dedup_key ON publish_queue(dedup_key);
`},
	{"publish_edits", `
CREATE TABLE IF NOT EXISTS publish_edits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_type TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	action TEXT NOT NULL,
	old_text TEXT,
	new_text TEXT NOT NULL,
	error TEXT,
	created_at DATETIME NOT NULL
);
`},
	{"digests", `
CREATE TABLE IF NOT EXISTS digests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	window TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	sent_message_id INTEGER
);
`},
	{"digest_items", `
CREATE TABLE IF NOT EXISTS digest_items (
	digest_id INTEGER NOT NULL REFERENCES digests(id),
	story_id INTEGER NOT NULL REFERENCES stories(id),
	rank INTEGER NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY (digest_id, story_id)
);
`},
	{"monitor_logs", `
CREATE TABLE IF NOT EXISTS monitor_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_utc DATETIME NOT NULL,
	metric TEXT NOT NULL,
	value REAL NOT NULL,
	meta_json TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_monitor_logs_metric ON monitor_logs(metric);
`},
}

func (db *DB) migrate() error {
	for _, m := range migrations {
		if _, err := db.conn.Exec(m.ddl); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func withTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
