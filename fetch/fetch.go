// Package fetch retrieves listing pages and article bodies from the
// configured sports news source.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrorKind distinguishes retryable from terminal fetch failures.
type ErrorKind int

const (
	Transient ErrorKind = iota
	Permanent
)

// Error is the fetch stage's error taxonomy entry (spec section 7).
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Kind == Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s error for %s: %v", kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transientErr(rawURL string, err error) error {
	return &Error{Kind: Transient, URL: rawURL, Err: err}
}

func permanentErr(rawURL string, err error) error {
	return &Error{Kind: Permanent, URL: rawURL, Err: err}
}

// ListItem is one card on a listing page.
type ListItem struct {
	URL       string
	Title     string
	DateLabel string
	TimeLabel string
}

// RawListPage is one page of listing groups.
type RawListPage struct {
	Items []ListItem
}

// TagRef is an inline tag reference discovered on an article page.
type TagRef struct {
	Name string
	URL  string
}

// ArticleDraft is the raw material extracted from an article page, prior
// to normalization.
type ArticleDraft struct {
	URL       string
	Title     string
	Body      string
	Tags      []TagRef
	ImageURLs []string
	VideoURLs []string
}

// Selectors configures the CSS selectors used against the listing and
// article page markup.
type Selectors struct {
	DateGroup            string
	ItemLink             string
	ItemTime             string
	ArticleTitle         string
	ArticleBodyContainer string
	ArticleTags          string
	ArticleImages        string
	ArticleVideos        string
}

// DefaultSelectors match the markup of the configured source.
func DefaultSelectors() Selectors {
	return Selectors{
		DateGroup:            ".news-date-group",
		ItemLink:             "a.news-item__link",
		ItemTime:             ".news-item__time",
		ArticleTitle:         "h1.article-title",
		ArticleBodyContainer: ".article-body",
		ArticleTags:          ".article-tags a",
		ArticleImages:        ".article-body img",
		ArticleVideos:        ".article-body video",
	}
}

// Fetcher retrieves and parses listing/article pages.
type Fetcher struct {
	httpClient *http.Client
	selectors  Selectors
	userAgent  string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the HTTP client timeout (spec section 5: ~25s per
// request).
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.httpClient.Timeout = d }
}

// WithSelectors overrides the default CSS selectors.
func WithSelectors(s Selectors) Option {
	return func(f *Fetcher) { f.selectors = s }
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 25 * time.Second},
		selectors:  DefaultSelectors(),
		userAgent:  "Mozilla/5.0 (compatible; sportbot/1.0)",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Session is a scoped handle acquired for the duration of a fetch batch.
// It exists to mirror the resource-scoping contract of spec section 4.1:
// callers obtain one via WithSession and the Fetcher releases it on every
// exit path, including a panic unwinding through the callback.
type Session struct {
	fetcher *Fetcher
}

// WithSession acquires a session, invokes fn, and releases the session on
// return or panic.
func (f *Fetcher) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) (err error) {
	s := &Session{fetcher: f}
	defer func() {
		s.release()
		if r := recover(); r != nil {
			panic(r)
		}
	}()
	return fn(ctx, s)
}

func (s *Session) release() {
	// No pooled resource to return today (plain *http.Client); this is the
	// seam a headless-browser-backed session would plug into.
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, permanentErr(rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, transientErr(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, transientErr(rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, permanentErr(rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, permanentErr(rawURL, fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

// FetchListing retrieves one page of the listing and returns its item
// cards. pageIndex is appended as a "?page=" query parameter.
func (f *Fetcher) FetchListing(ctx context.Context, baseURL string, pageIndex int) (*RawListPage, error) {
	pageURL := baseURL
	if pageIndex > 0 {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, permanentErr(baseURL, err)
		}
		q := u.Query()
		q.Set("page", fmt.Sprintf("%d", pageIndex))
		u.RawQuery = q.Encode()
		pageURL = u.String()
	}

	doc, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var items []ListItem
	doc.Find(f.selectors.DateGroup).Each(func(_ int, dateBlock *goquery.Selection) {
		dateLabel := strings.TrimSpace(dateBlock.Text())
		for sib := dateBlock.Next(); sib.Length() > 0; sib = sib.Next() {
			link := sib.Find(f.selectors.ItemLink).First()
			if link.Length() == 0 {
				break
			}
			href, ok := link.Attr("href")
			if !ok {
				continue
			}
			resolved, err := resolveURL(baseURL, href)
			if err != nil {
				continue
			}
			timeLabel := strings.TrimSpace(sib.Find(f.selectors.ItemTime).First().Text())
			items = append(items, ListItem{
				URL:       resolved,
				Title:     strings.TrimSpace(link.Text()),
				DateLabel: dateLabel,
				TimeLabel: timeLabel,
			})
		}
	})

	if len(items) == 0 {
		return nil, permanentErr(pageURL, fmt.Errorf("no listing items matched selectors"))
	}
	return &RawListPage{Items: items}, nil
}

// FetchArticle retrieves and extracts one article page. If the configured
// body selector misses, it falls back to go-shiori/go-readability's
// generic content extraction.
func (f *Fetcher) FetchArticle(ctx context.Context, rawURL string) (*ArticleDraft, error) {
	doc, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(f.selectors.ArticleTitle).First().Text())
	if title == "" {
		return nil, permanentErr(rawURL, fmt.Errorf("no title matched selector %q", f.selectors.ArticleTitle))
	}

	body := f.extractBody(ctx, doc, rawURL)

	var tags []TagRef
	doc.Find(f.selectors.ArticleTags).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, err := resolveURL(rawURL, href)
		if err != nil {
			resolved = href
		}
		tags = append(tags, TagRef{Name: strings.TrimSpace(sel.Text()), URL: resolved})
	})

	var images []string
	doc.Find(f.selectors.ArticleImages).Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("data-src")
		if !ok {
			src, ok = sel.Attr("src")
		}
		if ok && src != "" {
			if resolved, err := resolveURL(rawURL, src); err == nil {
				images = append(images, resolved)
			}
		}
	})

	var videos []string
	doc.Find(f.selectors.ArticleVideos).Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			videos = append(videos, src)
		}
	})

	return &ArticleDraft{
		URL:       rawURL,
		Title:     title,
		Body:      body,
		Tags:      tags,
		ImageURLs: images,
		VideoURLs: videos,
	}, nil
}

// extractBody prefers the configured body-container selector; if it
// misses, it re-fetches through go-readability's generic extractor rather
// than failing the whole article. Container text from the "Материалы по
// теме" (related articles) marker onward is dropped.
func (f *Fetcher) extractBody(ctx context.Context, doc *goquery.Document, rawURL string) string {
	container := doc.Find(f.selectors.ArticleBodyContainer).First()
	if container.Length() > 0 {
		text := container.Text()
		if i := strings.Index(text, "Материалы по теме"); i >= 0 {
			text = text[:i]
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func resolveURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// Retry runs fn up to attempts times, retrying only on a Transient Error
// with jittered backoff (spec section 4.1/7: up to 3 attempts).
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var fetchErr *Error
		if !asError(lastErr, &fetchErr) || fetchErr.Kind != Transient {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		base := backoff * time.Duration(i+1)
		jitter := time.Duration(rand.Float64() * 0.3 * float64(base))
		sleep := base + jitter
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
