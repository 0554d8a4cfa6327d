// Package digest builds periodic top-story summaries and, optionally,
// ships them to chat as a thread.
package digest

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sportbot/chat"
	"sportbot/compose"
	"sportbot/store"
)

// Window selects the digest period.
type Window string

const (
	WindowDaily  Window = "daily"
	WindowWeekly Window = "weekly"
)

func (w Window) lookback() time.Duration {
	if w == WindowWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// ScoredStory is one ranked entry in a built digest.
type ScoredStory struct {
	StoryID      int64
	Title        string
	Score        float64
	ArticleCount int
}

// Artifact holds the rendered forms of a built digest.
type Artifact struct {
	Digest   *store.Digest
	Stories  []ScoredStory
	Markdown string
	HTML     string
}

// Runner builds and optionally ships digests.
type Runner struct {
	db     *store.DB
	chat   *chat.Client
	chatID int64
	limit  int
}

// Option configures a Runner.
type Option func(*Runner)

// WithChatID sets the chat Ship sends digests to. Build never ships; with
// the chat id left unset (0), Ship returns an error.
func WithChatID(chatID int64) Option {
	return func(r *Runner) { r.chatID = chatID }
}

// WithLimit sets how many stories a digest ranks in.
func WithLimit(limit int) Option {
	return func(r *Runner) { r.limit = limit }
}

// NewRunner constructs a Runner. chatClient may be nil if digests are
// never shipped.
func NewRunner(db *store.DB, chatClient *chat.Client, opts ...Option) *Runner {
	r := &Runner{db: db, chat: chatClient, limit: 10}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build scores candidate stories in the window, persists the ranking, and
// renders Markdown/HTML artifacts. It does not ship to chat.
func (r *Runner) Build(ctx context.Context, window Window, now time.Time) (*Artifact, error) {
	since := now.Add(-window.lookback())
	stories, err := r.db.RecentStories(ctx, since, 500)
	if err != nil {
		return nil, fmt.Errorf("digest: list recent stories: %w", err)
	}
	if len(stories) == 0 {
		slog.Info("digest build: no candidate stories", "window", window)
		return &Artifact{Stories: nil}, nil
	}

	scored := make([]ScoredStory, 0, len(stories))
	for _, s := range stories {
		sc, err := r.scoreStory(ctx, s, now)
		if err != nil {
			slog.Warn("digest: failed to score story, skipping", "story_id", s.ID, "error", err)
			continue
		}
		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.limit {
		scored = scored[:r.limit]
	}

	items := make([]store.DigestItem, len(scored))
	for i, s := range scored {
		items[i] = store.DigestItem{StoryID: s.StoryID, Rank: i + 1, Score: s.Score}
	}
	digestRow, err := r.db.CreateDigest(ctx, string(window), now, items)
	if err != nil {
		return nil, fmt.Errorf("digest: persist: %w", err)
	}

	return &Artifact{
		Digest:   digestRow,
		Stories:  scored,
		Markdown: renderMarkdown(window, scored),
		HTML:     renderHTML(window, scored),
	}, nil
}

// Ship sends the overview (HTML head) followed by chunked bodies as a
// reply thread anchored on the overview message, then records the
// digest's sent message id.
func (r *Runner) Ship(ctx context.Context, artifact *Artifact) error {
	if r.chat == nil || r.chatID == 0 {
		return fmt.Errorf("digest: chat shipping not configured")
	}
	if artifact.Digest == nil || len(artifact.Stories) == 0 {
		return nil
	}

	chunks := compose.Chunk(artifact.HTML)
	if len(chunks) == 0 {
		return nil
	}

	head, err := r.chat.SendText(ctx, r.chatID, chunks[0], "HTML", 0, true)
	if err != nil {
		return fmt.Errorf("digest: send overview: %w", err)
	}
	for _, c := range chunks[1:] {
		if _, err := r.chat.ReplyText(ctx, r.chatID, head.MessageID, c, "HTML"); err != nil {
			return fmt.Errorf("digest: send body chunk: %w", err)
		}
	}

	return r.db.MarkDigestSent(ctx, artifact.Digest.ID, int64(head.MessageID))
}

// scoreStory implements size_factor + freshness + entity_weight.
func (r *Runner) scoreStory(ctx context.Context, s *store.Story, now time.Time) (ScoredStory, error) {
	newsIDs, err := r.db.ArticlesForStory(ctx, s.ID)
	if err != nil {
		return ScoredStory{}, err
	}

	var maxPublished time.Time
	hasTournament := false
	hasPlayer := false
	teams := make(map[int64]bool)

	for _, newsID := range newsIDs {
		n, err := r.db.GetNews(ctx, newsID)
		if err != nil {
			continue
		}
		if n.PublishedAt != nil && n.PublishedAt.After(maxPublished) {
			maxPublished = *n.PublishedAt
		}

		assignment, err := r.db.GetAssignment(ctx, newsID)
		if err != nil {
			continue
		}
		if assignment.TournamentID != nil {
			hasTournament = true
		}
		if assignment.PlayerID != nil {
			hasPlayer = true
		}
		if assignment.TeamID != nil {
			teams[*assignment.TeamID] = true
		}
	}

	sizeFactor := float64(len(newsIDs)) / 3.0
	if sizeFactor > 10 {
		sizeFactor = 10
	}

	freshness := 0.0
	if !maxPublished.IsZero() {
		age := now.Sub(maxPublished)
		switch {
		case age <= 6*time.Hour:
			freshness = 3
		case age <= 24*time.Hour:
			freshness = 2
		case age <= 72*time.Hour:
			freshness = 1
		}
	}

	entityWeight := 0.0
	if hasTournament || len(teams) >= 2 {
		entityWeight += 2
	}
	if hasPlayer {
		entityWeight += 1
	}

	return ScoredStory{
		StoryID:      s.ID,
		Title:        s.Title,
		Score:        sizeFactor + freshness + entityWeight,
		ArticleCount: len(newsIDs),
	}, nil
}

func renderMarkdown(window Window, stories []ScoredStory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s digest*\n\n", strings.ToUpper(string(window)))
	for i, s := range stories {
		fmt.Fprintf(&b, "%d\\. %s _(%d articles, score %.1f)_\n", i+1, escapeMarkdown(s.Title), s.ArticleCount, s.Score)
	}
	return b.String()
}

func renderHTML(window Window, stories []ScoredStory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s digest</b>\n\n", strings.ToUpper(string(window)))
	for i, s := range stories {
		fmt.Fprintf(&b, "%d. %s <i>(%d articles, score %.1f)</i>\n", i+1, html.EscapeString(s.Title), s.ArticleCount, s.Score)
	}
	return b.String()
}

var markdownEscapeChars = "_*[]()~`>#+-=|{}.!"

func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(markdownEscapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
