// Package pipeline wires the fetch/normalize/persist/fingerprint stages
// into one bounded, cancellable ingest tick.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sportbot/fetch"
	"sportbot/fingerprint"
	"sportbot/normalize"
	"sportbot/store"
	"sportbot/tagcanon"
)

// Config tunes one ingest tick.
type Config struct {
	BaseURL     string
	MaxPages    int
	AnchorURL   string // stop once this URL is seen in a listing page
	Concurrency int
	DryRun      bool
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Summary reports the outcome of one tick, in the CLI's
// "processed=X inserted=Y skipped=Z tag_links=…" shape.
type Summary struct {
	RunID     string
	Processed int
	Inserted  int
	Skipped   int
	TagLinks  int
}

// Runner executes ingest ticks against a fetcher and a store.
type Runner struct {
	db      *store.DB
	fetcher *fetch.Fetcher
}

// NewRunner constructs a Runner.
func NewRunner(db *store.DB, fetcher *fetch.Fetcher) *Runner {
	return &Runner{db: db, fetcher: fetcher}
}

// RunOnce walks listing pages until MaxPages is exhausted or AnchorURL is
// seen, then fetches, normalizes, persists, and fingerprints every listed
// article concurrently over a bounded worker pool.
func (r *Runner) RunOnce(ctx context.Context, cfg Config, now time.Time) (*Summary, error) {
	cfg = cfg.WithDefaults()
	runID := uuid.NewString()
	summary := &Summary{RunID: runID}

	slog.Info("pipeline tick starting", "run_id", runID, "base_url", cfg.BaseURL, "max_pages", cfg.MaxPages)

	items, err := r.collectListing(ctx, cfg)
	if err != nil {
		return summary, fmt.Errorf("pipeline: collect listing: %w", err)
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Concurrency)

	for _, item := range items {
		item := item
		group.Go(func() error {
			outcome, err := r.processItem(gctx, cfg, item)
			mu.Lock()
			defer mu.Unlock()
			summary.Processed++
			switch {
			case err != nil:
				slog.Warn("pipeline: article skipped", "run_id", runID, "url", item.URL, "error", err)
				summary.Skipped++
			case outcome.inserted:
				summary.Inserted++
				summary.TagLinks += outcome.tagLinks
			default:
				summary.TagLinks += outcome.tagLinks
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return summary, fmt.Errorf("pipeline: ingest: %w", err)
	}

	if !cfg.DryRun {
		if logErr := r.db.RecordMonitorLog(ctx, &store.MonitorLog{
			TsUTC:    now,
			Metric:   "pipeline_tick",
			Value:    float64(summary.Inserted),
			MetaJSON: fmt.Sprintf(`{"run_id":%q,"processed":%d,"inserted":%d,"skipped":%d,"tag_links":%d}`, runID, summary.Processed, summary.Inserted, summary.Skipped, summary.TagLinks),
		}); logErr != nil {
			slog.Warn("pipeline: failed to record tick monitor log", "run_id", runID, "error", logErr)
		}
	}

	slog.Info("pipeline tick finished", "run_id", runID, "processed", summary.Processed,
		"inserted", summary.Inserted, "skipped", summary.Skipped, "tag_links", summary.TagLinks)
	return summary, nil
}

// collectListing walks pages [0, MaxPages) through the scoped fetch session,
// retrying transient page failures, and stops early once AnchorURL appears.
func (r *Runner) collectListing(ctx context.Context, cfg Config) ([]fetch.ListItem, error) {
	var items []fetch.ListItem

	err := r.fetcher.WithSession(ctx, func(ctx context.Context, s *fetch.Session) error {
		for page := 0; page < cfg.MaxPages; page++ {
			var listPage *fetch.RawListPage
			fetchErr := fetch.Retry(ctx, 3, 500*time.Millisecond, func() error {
				var err error
				listPage, err = r.fetcher.FetchListing(ctx, cfg.BaseURL, page)
				return err
			})
			if fetchErr != nil {
				return fmt.Errorf("fetch listing page %d: %w", page, fetchErr)
			}

			anchorSeen := false
			for _, it := range listPage.Items {
				items = append(items, it)
				if cfg.AnchorURL != "" && it.URL == cfg.AnchorURL {
					anchorSeen = true
					break
				}
			}
			if anchorSeen {
				break
			}
		}
		return nil
	})
	return items, err
}

type itemOutcome struct {
	inserted bool
	tagLinks int
}

// processItem fetches one article, normalizes its fields, persists the
// article/tags/entity-assignment/fingerprint rows, and reports whether it
// was a first-time insert. A ParseError-class failure (missing/invalid
// date) degrades to a null published_at rather than aborting the article.
func (r *Runner) processItem(ctx context.Context, cfg Config, item fetch.ListItem) (itemOutcome, error) {
	var draft *fetch.ArticleDraft
	fetchErr := fetch.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var err error
		draft, err = r.fetcher.FetchArticle(ctx, item.URL)
		return err
	})
	if fetchErr != nil {
		return itemOutcome{}, fetchErr
	}

	canonicalURL, err := normalize.URL(draft.URL)
	if err != nil {
		return itemOutcome{}, fmt.Errorf("normalize url: %w", err)
	}

	var publishedAt *time.Time
	if iso, ok := normalize.ToISO(item.DateLabel, item.TimeLabel); ok {
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", iso, time.Local); err == nil {
			publishedAt = &t
		}
	}

	if cfg.DryRun {
		return itemOutcome{}, nil
	}

	existing, err := r.db.GetNewsByURL(ctx, canonicalURL)
	firstSeen := err == store.ErrNotFound
	if err != nil && err != store.ErrNotFound {
		return itemOutcome{}, fmt.Errorf("lookup existing article: %w", err)
	}

	newsID, err := r.db.UpsertNews(ctx, &store.News{
		URL:         canonicalURL,
		Title:       draft.Title,
		Body:        draft.Body,
		PublishedAt: publishedAt,
		IngestedAt:  time.Now(),
		Source:      "sport.example",
		ImageURLs:   draft.ImageURLs,
		VideoURLs:   draft.VideoURLs,
	})
	if err != nil {
		return itemOutcome{}, fmt.Errorf("upsert news: %w", err)
	}
	if existing != nil {
		newsID = existing.ID
	}

	tagLinks := 0
	for _, ref := range draft.Tags {
		tagURL, err := normalize.URL(ref.URL)
		if err != nil {
			tagURL = ref.URL
		}
		tag, err := tagcanon.UpsertTag(ctx, r.db, ref.Name, tagURL, "unknown", draft.Body)
		if err != nil {
			slog.Warn("pipeline: failed to upsert tag", "url", item.URL, "tag", ref.Name, "error", err)
			continue
		}
		if err := r.db.LinkArticleTag(ctx, newsID, tag.ID); err != nil {
			slog.Warn("pipeline: failed to link article tag", "url", item.URL, "tag", ref.Name, "error", err)
			continue
		}
		tagLinks++
		if _, err := tagcanon.UpsertAliasFromTag(ctx, r.db, tag.ID, ref.Name, tag.Type, "crawl", "ru"); err != nil {
			slog.Warn("pipeline: failed to upsert alias", "url", item.URL, "tag", ref.Name, "error", err)
		}
	}

	assignResult, err := tagcanon.AssignEntitiesForArticle(ctx, r.db, newsID, true)
	if err != nil {
		slog.Warn("pipeline: failed to assign entities", "url", item.URL, "error", err)
	}

	entities := fingerprint.Entities{}
	if assignResult != nil {
		assignment, err := r.db.GetAssignment(ctx, newsID)
		if err == nil {
			entities = resolveEntityNames(ctx, r.db, assignment)
		}
	}
	titleSig, entitySig := fingerprint.ComputeSignatures(draft.Title, entities)
	if err := r.db.UpsertFingerprint(ctx, &store.Fingerprint{
		NewsID: newsID, TitleSig: titleSig, EntitySig: entitySig,
	}); err != nil {
		return itemOutcome{}, fmt.Errorf("upsert fingerprint: %w", err)
	}

	return itemOutcome{inserted: firstSeen, tagLinks: tagLinks}, nil
}

func resolveEntityNames(ctx context.Context, db *store.DB, a *store.EntityAssignment) fingerprint.Entities {
	var e fingerprint.Entities
	if a.TournamentID != nil {
		if name, err := db.AliasDisplayName(ctx, *a.TournamentID, "tournament"); err == nil {
			e.Tournament = name
		}
	}
	if a.TeamID != nil {
		if name, err := db.AliasDisplayName(ctx, *a.TeamID, "team"); err == nil {
			e.Team = name
		}
	}
	if a.PlayerID != nil {
		if name, err := db.AliasDisplayName(ctx, *a.PlayerID, "player"); err == nil {
			e.Player = name
		}
	}
	if a.SportID != nil {
		if name, err := db.AliasDisplayName(ctx, *a.SportID, "sport"); err == nil {
			e.Sport = name
		}
	}
	return e
}
