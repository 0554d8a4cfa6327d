package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const listingHTML = `
<html><body>
<div class="news-date-group">31 July</div>
<div class="news-item">
  <a class="news-item__link" href="/news/first-story">First Story</a>
  <span class="news-item__time">10:15</span>
</div>
<div class="news-item">
  <a class="news-item__link" href="/news/second-story">Second Story</a>
  <span class="news-item__time">11:40</span>
</div>
<div class="news-date-group">30 July</div>
<div class="news-item">
  <a class="news-item__link" href="/news/third-story">Third Story</a>
  <span class="news-item__time">09:00</span>
</div>
</body></html>
`

const articleHTML = `
<html><body>
<h1 class="article-title">Team Wins Championship</h1>
<div class="article-body">
  <p>The team secured a decisive victory last night.</p>
  <p>Fans celebrated across the city.</p>
  <img data-src="/img/celebration.jpg" src="/img/placeholder.jpg">
  <video src="/video/highlights.mp4"></video>
  <p>Материалы по теме</p>
  <p>This paragraph should be cut off.</p>
</div>
<div class="article-tags">
  <a href="/tags/football">Football</a>
  <a href="/tags/championship">Championship</a>
</div>
</body></html>
`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchListingExtractsItemsGroupedByDate(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, listingHTML)
	f := New()

	page, err := f.FetchListing(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("FetchListing: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 listing items, got %d: %+v", len(page.Items), page.Items)
	}
	if page.Items[0].Title != "First Story" || page.Items[0].TimeLabel != "10:15" {
		t.Errorf("item[0] = %+v, unexpected", page.Items[0])
	}
	if !strings.HasSuffix(page.Items[0].URL, "/news/first-story") {
		t.Errorf("item[0].URL = %q, want resolved relative URL", page.Items[0].URL)
	}
	if page.Items[2].DateLabel != "30 July" {
		t.Errorf("item[2].DateLabel = %q, want %q", page.Items[2].DateLabel, "30 July")
	}
}

func TestFetchListingNoItemsIsPermanentError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "<html><body><p>nothing here</p></body></html>")
	f := New()

	_, err := f.FetchListing(context.Background(), srv.URL, 0)
	if err == nil {
		t.Fatal("expected an error when no items match the selectors")
	}
	var fetchErr *Error
	if !asError(err, &fetchErr) || fetchErr.Kind != Permanent {
		t.Errorf("expected Permanent error, got %v", err)
	}
}

func TestFetchArticleExtractsBodyTagsAndMedia(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, articleHTML)
	f := New()

	draft, err := f.FetchArticle(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if draft.Title != "Team Wins Championship" {
		t.Errorf("title = %q", draft.Title)
	}
	if !strings.Contains(draft.Body, "decisive victory") {
		t.Errorf("body missing expected text: %q", draft.Body)
	}
	if strings.Contains(draft.Body, "should be cut off") {
		t.Errorf("body should be truncated at the cutoff marker, got: %q", draft.Body)
	}
	if len(draft.Tags) != 2 || draft.Tags[0].Name != "Football" {
		t.Errorf("tags = %+v", draft.Tags)
	}
	if len(draft.ImageURLs) != 1 || !strings.HasSuffix(draft.ImageURLs[0], "/img/celebration.jpg") {
		t.Errorf("images = %+v, want data-src preferred over src", draft.ImageURLs)
	}
	if len(draft.VideoURLs) != 1 || draft.VideoURLs[0] != "/video/highlights.mp4" {
		t.Errorf("videos = %+v", draft.VideoURLs)
	}
}

func TestFetchArticleMissingTitleIsPermanentError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "<html><body><div class=\"article-body\">no title here</div></body></html>")
	f := New()

	_, err := f.FetchArticle(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error when the title selector misses")
	}
	var fetchErr *Error
	if !asError(err, &fetchErr) || fetchErr.Kind != Permanent {
		t.Errorf("expected Permanent error, got %v", err)
	}
}

func TestGetClassifiesServerErrorsAsTransient(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, "")
	f := New()

	_, err := f.FetchListing(context.Background(), srv.URL, 0)
	var fetchErr *Error
	if !asError(err, &fetchErr) || fetchErr.Kind != Transient {
		t.Errorf("expected Transient error for 503, got %v", err)
	}
}

func TestGetClassifiesClientErrorsAsPermanent(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, "")
	f := New()

	_, err := f.FetchListing(context.Background(), srv.URL, 0)
	var fetchErr *Error
	if !asError(err, &fetchErr) || fetchErr.Kind != Permanent {
		t.Errorf("expected Permanent error for 404, got %v", err)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return permanentErr("http://example.test", errors.New("boom"))
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for a permanent error, got %d", attempts)
	}
}

func TestRetryRetriesTransientUpToLimit(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return transientErr("http://example.test", errors.New("boom"))
	})
	if err == nil {
		t.Fatal("expected error to propagate after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 2 {
			return transientErr("http://example.test", errors.New("boom"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithSessionReleasesOnPanic(t *testing.T) {
	f := New()
	released := false
	defer func() {
		recover()
		if !released {
			t.Error("expected session release path to run even after a panic")
		}
	}()

	f.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		defer func() { released = true }()
		panic("boom")
	})
}
