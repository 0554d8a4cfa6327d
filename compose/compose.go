// Package compose renders stories and articles into chunked chat messages,
// in either HTML or lightweight-markdown mode.
package compose

import (
	"fmt"
	"html"
	"strings"
)

// Mode selects the render/escape rules.
type Mode string

const (
	ModeHTML     Mode = "html"
	ModeMarkdown Mode = "markdown"
)

// MaxChunkLen is the platform message length ceiling.
const MaxChunkLen = 4096

const maxArticlesInStory = 5
const minArticlesInStory = 3
const maxArticleTitleLen = 256
const maxTagsPerArticle = 4

var numberEmoji = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣"}

// ArticleView is the minimal per-article shape the composer needs.
type ArticleView struct {
	Title  string
	URL    string
	Tags   []string // typed tags in display priority order, already tag-icon-free
}

// StoryView is the input to ComposeStory.
type StoryView struct {
	Title         string
	Articles      []ArticleView // already near-dup filtered, newest/priority first
	OriginalOrder []ArticleView // the unfiltered, encounter-order sequence
	SourceName    string
	SourceURL     string
}

// tagIcons assigns a position-based icon to each of the first 4 tags.
var tagIcons = []string{"🏅", "🏆", "🏟️", "👤"}

// ComposeStory renders a story message body, then chunks it. At most 5
// articles are shown; if fewer than 3 survive the caller's near-dup filter,
// originals are re-admitted in encounter order until 3.
func ComposeStory(story StoryView, mode Mode) []string {
	articles := story.Articles
	if len(articles) < minArticlesInStory && len(story.OriginalOrder) > 0 {
		articles = readmitToMinimum(articles, story.OriginalOrder, minArticlesInStory)
	}
	if len(articles) > maxArticlesInStory {
		articles = articles[:maxArticlesInStory]
	}

	var b strings.Builder
	b.WriteString(boldWrap("🏆 ", escape(story.Title, mode), mode))
	b.WriteString("\n\n")

	for i, a := range articles {
		icon := "•"
		if i < len(numberEmoji) {
			icon = numberEmoji[i]
		}
		b.WriteString(icon)
		b.WriteString(" ")
		b.WriteString(link(truncateRunes(a.Title, maxArticleTitleLen), a.URL, mode))
		if tagLine := renderTags(a.Tags, mode); tagLine != "" {
			b.WriteString(" — ")
			b.WriteString(tagLine)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString("Источник: ")
	b.WriteString(link(escape(story.SourceName, mode), story.SourceURL, mode))

	return Chunk(b.String())
}

// ComposeArticle renders a single-article message: title, up to 4 tags, URL,
// source line.
func ComposeArticle(a ArticleView, sourceName, sourceURL string, mode Mode) []string {
	var b strings.Builder
	b.WriteString(link(truncateRunes(a.Title, maxArticleTitleLen), a.URL, mode))
	if tagLine := renderTags(a.Tags, mode); tagLine != "" {
		b.WriteString("\n")
		b.WriteString(tagLine)
	}
	b.WriteString("\n\nИсточник: ")
	b.WriteString(link(escape(sourceName, mode), sourceURL, mode))
	return Chunk(b.String())
}

func renderTags(tags []string, mode Mode) string {
	if len(tags) == 0 {
		return ""
	}
	n := len(tags)
	if n > maxTagsPerArticle {
		n = maxTagsPerArticle
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		icon := "🏷️"
		if i < len(tagIcons) {
			icon = tagIcons[i]
		}
		parts = append(parts, icon+" "+escape(tags[i], mode))
	}
	return strings.Join(parts, " · ")
}

func readmitToMinimum(filtered, original []ArticleView, min int) []ArticleView {
	present := make(map[string]bool, len(filtered))
	for _, a := range filtered {
		present[a.URL] = true
	}
	out := append([]ArticleView{}, filtered...)
	for _, a := range original {
		if len(out) >= min {
			break
		}
		if present[a.URL] {
			continue
		}
		out = append(out, a)
		present[a.URL] = true
	}
	return out
}

func boldWrap(prefix, text string, mode Mode) string {
	if mode == ModeHTML {
		return prefix + "<b>" + text + "</b>"
	}
	return prefix + "*" + text + "*"
}

func link(text, url string, mode Mode) string {
	if url == "" {
		return text
	}
	if mode == ModeHTML {
		return fmt.Sprintf(`<a href="%s">%s</a>`, escapeHTMLAttr(url), text)
	}
	return fmt.Sprintf("[%s](%s)", text, url)
}

var markdownEscapeChars = "_*[]()~`>#+-=|{}.!"

func escape(s string, mode Mode) string {
	if mode == ModeHTML {
		return escapeHTMLText(s)
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(markdownEscapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeHTMLText(s string) string {
	return html.EscapeString(s)
}

func escapeHTMLAttr(s string) string {
	return html.EscapeString(s)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// Chunk splits text into segments no longer than MaxChunkLen, breaking on
// logical lines. A single line longer than MaxChunkLen is split into
// consecutive chunks of exactly MaxChunkLen runes, the last holding the
// remainder; no text is dropped.
func Chunk(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		lineRunes := []rune(line)
		if len(lineRunes) > MaxChunkLen {
			flush()
			for len(lineRunes) > 0 {
				n := MaxChunkLen
				if n > len(lineRunes) {
					n = len(lineRunes)
				}
				chunks = append(chunks, string(lineRunes[:n]))
				lineRunes = lineRunes[n:]
			}
			continue
		}

		candidate := line
		if current.Len() > 0 {
			candidate = current.String() + "\n" + line
		}
		if len([]rune(candidate)) > MaxChunkLen {
			flush()
			current.WriteString(line)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	flush()

	return chunks
}
