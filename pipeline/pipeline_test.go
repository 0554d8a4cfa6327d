package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sportbot/fetch"
	"sportbot/normalize"
	"sportbot/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const listingFixture = `
<html><body>
<div class="news-date-group">31 июля 2026</div>
<div class="news-item">
  <a class="news-item__link" href="/news/alpha">Alpha Story</a>
  <span class="news-item__time">09:00</span>
</div>
<div class="news-item">
  <a class="news-item__link" href="/news/beta">Beta Story</a>
  <span class="news-item__time">10:00</span>
</div>
</body></html>
`

func articleFixture(title string) string {
	return `<html><body>
<h1 class="article-title">` + title + `</h1>
<div class="article-body"><p>Body text for ` + title + `.</p></div>
<div class="article-tags"><a href="/tags/football">Football</a></div>
</body></html>`
}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingFixture))
	})
	mux.HandleFunc("/news/alpha", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleFixture("Alpha Story")))
	})
	mux.HandleFunc("/news/beta", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleFixture("Beta Story")))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunOnceIngestsAndFingerprintsArticles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	srv := newFixtureServer(t)

	r := NewRunner(db, fetch.New())
	summary, err := r.RunOnce(ctx, Config{BaseURL: srv.URL + "/listing", MaxPages: 1}, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("processed = %d, want 2", summary.Processed)
	}
	if summary.Inserted != 2 {
		t.Fatalf("inserted = %d, want 2", summary.Inserted)
	}
	if summary.TagLinks == 0 {
		t.Error("expected at least one tag link")
	}

	canonicalAlphaURL, err := normalize.URL(srv.URL + "/news/alpha")
	if err != nil {
		t.Fatalf("normalize.URL: %v", err)
	}
	alpha, err := db.GetNewsByURL(ctx, canonicalAlphaURL)
	if err != nil {
		t.Fatalf("GetNewsByURL: %v", err)
	}
	if alpha.Title != "Alpha Story" {
		t.Errorf("alpha.Title = %q", alpha.Title)
	}

	fp, err := db.GetFingerprint(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("GetFingerprint: %v", err)
	}
	if fp.TitleSig == "" {
		t.Error("expected a non-empty title signature")
	}
}

func TestRunOnceIsIdempotentOnRepeatedURLs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	srv := newFixtureServer(t)

	r := NewRunner(db, fetch.New())
	if _, err := r.RunOnce(ctx, Config{BaseURL: srv.URL + "/listing", MaxPages: 1}, time.Now()); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	summary, err := r.RunOnce(ctx, Config{BaseURL: srv.URL + "/listing", MaxPages: 1}, time.Now())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if summary.Inserted != 0 {
		t.Errorf("second pass inserted = %d, want 0 (re-crawl of same URLs)", summary.Inserted)
	}
	if summary.Processed != 2 {
		t.Errorf("second pass processed = %d, want 2", summary.Processed)
	}
}

func TestRunOnceDryRunDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	srv := newFixtureServer(t)

	r := NewRunner(db, fetch.New())
	summary, err := r.RunOnce(ctx, Config{BaseURL: srv.URL + "/listing", MaxPages: 1, DryRun: true}, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Inserted != 0 {
		t.Errorf("dry run inserted = %d, want 0", summary.Inserted)
	}

	recent, err := db.RecentNews(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("RecentNews: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected no persisted articles after a dry run, got %d", len(recent))
	}
}

func TestRunOnceStopsAtAnchorURL(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	srv := newFixtureServer(t)

	r := NewRunner(db, fetch.New())
	summary, err := r.RunOnce(ctx, Config{
		BaseURL:   srv.URL + "/listing",
		MaxPages:  1,
		AnchorURL: srv.URL + "/news/alpha",
	}, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1 (stopped at anchor)", summary.Processed)
	}
}
