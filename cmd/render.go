package cmd

import (
	"context"
	"fmt"
	"sort"

	"sportbot/antidup"
	"sportbot/compose"
	"sportbot/store"
)

// storeRenderer implements publish.Renderer by assembling compose views
// straight from the store: story/article rows, their typed tags, and the
// near-duplicate filter over a story's member articles.
type storeRenderer struct {
	db         *store.DB
	sourceName string
	sourceURL  string
}

func newStoreRenderer(db *store.DB, sourceURL string) *storeRenderer {
	return &storeRenderer{db: db, sourceName: "Спортивный портал", sourceURL: sourceURL}
}

func (r *storeRenderer) Render(ctx context.Context, itemType string, itemID int64) ([]string, string, error) {
	switch itemType {
	case "story":
		return r.renderStory(ctx, itemID)
	case "article":
		return r.renderArticle(ctx, itemID)
	default:
		return nil, "", fmt.Errorf("render: unknown item type %q", itemType)
	}
}

func (r *storeRenderer) renderStory(ctx context.Context, storyID int64) ([]string, string, error) {
	story, err := r.db.GetStory(ctx, storyID)
	if err != nil {
		return nil, "", fmt.Errorf("render story: %w", err)
	}

	newsIDs, err := r.db.ArticlesForStory(ctx, storyID)
	if err != nil {
		return nil, "", fmt.Errorf("render story: list articles: %w", err)
	}

	rows := map[int64]*store.News{}
	for _, newsID := range newsIDs {
		n, err := r.db.GetNews(ctx, newsID)
		if err != nil {
			continue
		}
		rows[newsID] = n
	}
	newsIDs = newsIDs[:0]
	for id := range rows {
		newsIDs = append(newsIDs, id)
	}
	sortNewestFirst(newsIDs, rows)

	var original []compose.ArticleView
	var dupCandidates []antidup.Article

	for _, newsID := range newsIDs {
		n := rows[newsID]
		tags, err := r.typedTagNames(ctx, newsID)
		if err != nil {
			tags = nil
		}
		view := compose.ArticleView{Title: n.Title, URL: n.URL, Tags: tags}
		original = append(original, view)

		fp, err := r.db.GetFingerprint(ctx, newsID)
		sig := store.Fingerprint{}
		if err == nil {
			sig = *fp
		}
		dupCandidates = append(dupCandidates, antidup.Article{ID: newsID, TitleSig: sig.TitleSig, EntitySig: sig.EntitySig, Payload: view})
	}

	visible, _ := antidup.FilterNearDuplicates(dupCandidates)
	filtered := make([]compose.ArticleView, 0, len(visible))
	for _, v := range visible {
		filtered = append(filtered, v.Payload.(compose.ArticleView))
	}

	chunks := compose.ComposeStory(compose.StoryView{
		Title:         story.Title,
		Articles:      filtered,
		OriginalOrder: original,
		SourceName:    r.sourceName,
		SourceURL:     r.sourceURL,
	}, compose.ModeHTML)

	return chunks, string(compose.ModeHTML), nil
}

func (r *storeRenderer) renderArticle(ctx context.Context, newsID int64) ([]string, string, error) {
	n, err := r.db.GetNews(ctx, newsID)
	if err != nil {
		return nil, "", fmt.Errorf("render article: %w", err)
	}
	tags, err := r.typedTagNames(ctx, newsID)
	if err != nil {
		tags = nil
	}

	chunks := compose.ComposeArticle(compose.ArticleView{Title: n.Title, URL: n.URL, Tags: tags},
		r.sourceName, r.sourceURL, compose.ModeHTML)
	return chunks, string(compose.ModeHTML), nil
}

// sortNewestFirst orders story members by publish time descending, matching
// the clustering package's head-selection convention: nil-published articles
// sort last, and two nil-published articles order by ascending ID. Articles
// with equal publish times keep no defined order.
func sortNewestFirst(ids []int64, rows map[int64]*store.News) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := rows[ids[i]].PublishedAt, rows[ids[j]].PublishedAt
		if pi == nil && pj == nil {
			return ids[i] < ids[j]
		}
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return pi.After(*pj)
	})
}

var tagTypePriority = []string{"tournament", "team", "player", "sport"}

func (r *storeRenderer) typedTagNames(ctx context.Context, newsID int64) ([]string, error) {
	tagIDs, err := r.db.TagsForArticle(ctx, newsID)
	if err != nil {
		return nil, err
	}

	byType := map[string][]string{}
	for _, id := range tagIDs {
		tag, err := r.db.TagByID(ctx, id)
		if err != nil || tag.Type == "unknown" {
			continue
		}
		byType[tag.Type] = append(byType[tag.Type], tag.Name)
	}

	var names []string
	for _, t := range tagTypePriority {
		names = append(names, byType[t]...)
	}
	return names, nil
}
