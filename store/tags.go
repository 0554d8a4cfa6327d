package store

import (
	"context"
	"database/sql"
)

// Tag is a free-form label extracted from an article, progressively typed
// into sport/tournament/team/player by tagcanon.
type Tag struct {
	ID             int64
	Name           string
	NameNormalized string
	URL            string // empty if the tag has no canonical URL
	Type           string // sport | tournament | team | player | unknown
}

// UpsertTag implements the tag identity rule of spec section 3: same tag iff
// normalized URL matches, else iff normalized name matches. Type is
// monotonically upgradeable from "unknown"; a typed->different-typed change
// is rejected here and must go through a flagged manual override.
func (db *DB) UpsertTag(ctx context.Context, name, nameNormalized, url, typ string) (*Tag, error) {
	var existing *Tag
	var err error
	if url != "" {
		existing, err = db.tagByURL(ctx, url)
	} else {
		existing, err = db.tagByNormalizedName(ctx, nameNormalized)
	}
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if existing == nil {
		res, err := db.conn.ExecContext(ctx,
			`INSERT INTO tags (name, name_normalized, url, type) VALUES (?, ?, ?, ?)`,
			name, nameNormalized, nullString(url), typ)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return &Tag{ID: id, Name: name, NameNormalized: nameNormalized, URL: url, Type: typ}, nil
	}

	if existing.Type == "unknown" && typ != "unknown" {
		if _, err := db.conn.ExecContext(ctx, `UPDATE tags SET type = ? WHERE id = ?`, typ, existing.ID); err != nil {
			return nil, err
		}
		existing.Type = typ
	}
	return existing, nil
}

func (db *DB) tagByURL(ctx context.Context, url string) (*Tag, error) {
	return db.scanTagRow(db.conn.QueryRowContext(ctx, tagSelect+` WHERE url = ?`, url))
}

func (db *DB) tagByNormalizedName(ctx context.Context, nameNormalized string) (*Tag, error) {
	return db.scanTagRow(db.conn.QueryRowContext(ctx, tagSelect+` WHERE name_normalized = ? AND url IS NULL`, nameNormalized))
}

// TagByID retrieves a tag by id.
func (db *DB) TagByID(ctx context.Context, id int64) (*Tag, error) {
	return db.scanTagRow(db.conn.QueryRowContext(ctx, tagSelect+` WHERE id = ?`, id))
}

const tagSelect = `SELECT id, name, name_normalized, url, type FROM tags`

func (db *DB) scanTagRow(row *sql.Row) (*Tag, error) {
	t := &Tag{}
	var url sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.NameNormalized, &url, &t.Type)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.URL = url.String
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Entity is a canonical typed actor (sport, tournament, team or player).
type Entity struct {
	ID             int64
	NameNormalized string
	Type           string
	Language       string
}

// UpsertEntity creates the entity on demand during alias ingestion, or
// returns the existing one for (name_normalized, type).
func (db *DB) UpsertEntity(ctx context.Context, nameNormalized, typ, language string) (*Entity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name_normalized, type, language FROM entities WHERE name_normalized = ? AND type = ?`,
		nameNormalized, typ)
	e := &Entity{}
	err := row.Scan(&e.ID, &e.NameNormalized, &e.Type, &e.Language)
	if err == nil {
		return e, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO entities (name_normalized, type, language) VALUES (?, ?, ?)`,
		nameNormalized, typ, language)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Entity{ID: id, NameNormalized: nameNormalized, Type: typ, Language: language}, nil
}

// Alias maps a free-form alias string to a canonical entity.
type Alias struct {
	ID               int64
	Alias            string
	AliasNormalized  string
	EntityType       string
	EntityID         int64
	Source           string
}

// UpsertAlias inserts an alias, unique on (alias_normalized, entity_type).
// Re-inserting the same (alias_normalized, entity_type) updates the pointed
// entity and source rather than erroring.
func (db *DB) UpsertAlias(ctx context.Context, a *Alias) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entity_aliases (alias, alias_normalized, entity_type, entity_id, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(alias_normalized, entity_type) DO UPDATE SET
			entity_id = excluded.entity_id,
			alias = excluded.alias,
			source = excluded.source
	`, a.Alias, a.AliasNormalized, a.EntityType, a.EntityID, a.Source)
	return err
}

// ResolveAlias looks up the entity id bound to (alias_normalized, entity_type).
func (db *DB) ResolveAlias(ctx context.Context, aliasNormalized, entityType string) (int64, error) {
	var entityID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT entity_id FROM entity_aliases WHERE alias_normalized = ? AND entity_type = ?`,
		aliasNormalized, entityType).Scan(&entityID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return entityID, err
}

// AliasCandidatesByName returns every alias row bound under any alias with
// the given normalized name across all entity types (used when the type
// of a free-form tag hasn't been determined yet).
func (db *DB) AliasCandidatesByName(ctx context.Context, aliasNormalized string) ([]Alias, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, alias, alias_normalized, entity_type, entity_id, source
		FROM entity_aliases WHERE alias_normalized = ?`, aliasNormalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.ID, &a.Alias, &a.AliasNormalized, &a.EntityType, &a.EntityID, &a.Source); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AliasDisplayName returns a human-readable alias string for an entity, used
// when composing story titles from entity ids. Picks an arbitrary alias
// bound to the entity since all aliases for one entity denote the same name.
func (db *DB) AliasDisplayName(ctx context.Context, entityID int64, entityType string) (string, error) {
	var alias string
	err := db.conn.QueryRowContext(ctx,
		`SELECT alias FROM entity_aliases WHERE entity_id = ? AND entity_type = ? LIMIT 1`,
		entityID, entityType).Scan(&alias)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return alias, err
}

// EntityAssignment holds the resolved actors for an article: at most one
// each of sport/tournament/team/player.
type EntityAssignment struct {
	NewsID       int64
	SportID      *int64
	TournamentID *int64
	TeamID       *int64
	PlayerID     *int64
}

// GetAssignment returns the current entity assignment row for an article,
// or a zero-value assignment if none exists yet.
func (db *DB) GetAssignment(ctx context.Context, newsID int64) (*EntityAssignment, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT news_id, sport_id, tournament_id, team_id, player_id
		FROM news_entity_assignments WHERE news_id = ?`, newsID)

	a := &EntityAssignment{NewsID: newsID}
	var sport, tournament, team, player sql.NullInt64
	err := row.Scan(&a.NewsID, &sport, &tournament, &team, &player)
	if err == sql.ErrNoRows {
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	a.SportID = int64Ptr(sport)
	a.TournamentID = int64Ptr(tournament)
	a.TeamID = int64Ptr(team)
	a.PlayerID = int64Ptr(player)
	return a, nil
}

// UpsertAssignment writes the resolved entity assignment for an article.
// Conflicting slots (a non-null value already present) are left untouched
// by the caller before this is invoked — tagcanon.AssignEntitiesForArticle
// decides "keep first existing non-null" and logs the conflict; this method
// performs the raw write of whatever it is given.
func (db *DB) UpsertAssignment(ctx context.Context, a *EntityAssignment) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO news_entity_assignments (news_id, sport_id, tournament_id, team_id, player_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(news_id) DO UPDATE SET
			sport_id = excluded.sport_id,
			tournament_id = excluded.tournament_id,
			team_id = excluded.team_id,
			player_id = excluded.player_id
	`, a.NewsID, nullInt64(a.SportID), nullInt64(a.TournamentID), nullInt64(a.TeamID), nullInt64(a.PlayerID))
	return err
}

// Fingerprint is the computed content signature for one article.
type Fingerprint struct {
	NewsID    int64
	TitleSig  string
	EntitySig string // empty if no entity signature
}

// UpsertFingerprint writes the fingerprint row for an article. Never
// deleted per spec section 3.
func (db *DB) UpsertFingerprint(ctx context.Context, fp *Fingerprint) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO content_fingerprints (news_id, title_sig, entity_sig)
		VALUES (?, ?, ?)
		ON CONFLICT(news_id) DO UPDATE SET
			title_sig = excluded.title_sig,
			entity_sig = excluded.entity_sig
	`, fp.NewsID, fp.TitleSig, nullString(fp.EntitySig))
	return err
}

// GetFingerprint retrieves the fingerprint for an article.
func (db *DB) GetFingerprint(ctx context.Context, newsID int64) (*Fingerprint, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT news_id, title_sig, entity_sig FROM content_fingerprints WHERE news_id = ?`, newsID)
	fp := &Fingerprint{}
	var entitySig sql.NullString
	err := row.Scan(&fp.NewsID, &fp.TitleSig, &entitySig)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fp.EntitySig = entitySig.String
	return fp, nil
}
