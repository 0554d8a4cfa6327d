package compose

import (
	"strings"
	"testing"
)

func TestChunkSingleShortMessage(t *testing.T) {
	chunks := Chunk("hello\nworld")
	if len(chunks) != 1 || chunks[0] != "hello\nworld" {
		t.Errorf("Chunk = %v, want single chunk", chunks)
	}
}

func TestChunkSplitsOnOverflow(t *testing.T) {
	line := strings.Repeat("a", 3000)
	text := line + "\n" + line + "\n" + line
	chunks := Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > MaxChunkLen {
			t.Errorf("chunk length %d exceeds MaxChunkLen", len([]rune(c)))
		}
	}
}

// TestChunkerTruncatesOversizedSingleLine reproduces the boundary behavior:
// a single line longer than 4096 yields a first chunk of exactly 4096 runes
// (the remainder follows in later chunks).
func TestChunkerTruncatesOversizedSingleLine(t *testing.T) {
	line := strings.Repeat("x", MaxChunkLen+500)
	chunks := Chunk(line)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len([]rune(chunks[0])) != MaxChunkLen {
		t.Errorf("len(chunks[0]) = %d, want exactly %d", len([]rune(chunks[0])), MaxChunkLen)
	}
}

func TestChunkRoundTripConcatRecoversInput(t *testing.T) {
	text := "line one\nline two\nline three"
	chunks := Chunk(text)
	joined := strings.Join(chunks, "\n")
	if joined != text {
		t.Errorf("concat(chunks) = %q, want %q", joined, text)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if chunks := Chunk(""); chunks != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", chunks)
	}
}

func TestComposeStoryHTMLContainsLinksAndTags(t *testing.T) {
	story := StoryView{
		Title: "РПЛ — итоги тура",
		Articles: []ArticleView{
			{Title: "Зенит обыграл Спартак", URL: "https://example.com/1", Tags: []string{"РПЛ", "Зенит"}},
			{Title: "Разбор игры", URL: "https://example.com/2", Tags: []string{"РПЛ"}},
			{Title: "Мнение эксперта", URL: "https://example.com/3"},
		},
		SourceName: "championat.com",
		SourceURL:  "https://championat.com",
	}
	chunks := ComposeStory(story, ModeHTML)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	full := strings.Join(chunks, "\n")
	if !strings.Contains(full, `<a href="https://example.com/1">`) {
		t.Error("expected article link in HTML output")
	}
	if !strings.Contains(full, "<b>") {
		t.Error("expected bold story title in HTML output")
	}
	if !strings.Contains(full, "Источник") {
		t.Error("expected source line")
	}
}

func TestComposeStoryMarkdownEscapesSpecialChars(t *testing.T) {
	story := StoryView{
		Title:      "Итоги тура!",
		Articles:   []ArticleView{{Title: "Счет 3-0", URL: "https://example.com/1"}},
		SourceName: "source",
		SourceURL:  "https://example.com",
	}
	chunks := ComposeStory(story, ModeMarkdown)
	full := strings.Join(chunks, "\n")
	if !strings.Contains(full, `\!`) {
		t.Errorf("expected markdown escape of '!' in %q", full)
	}
}

func TestComposeStoryReadmitsToMinimumThree(t *testing.T) {
	original := []ArticleView{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: "https://example.com/b"},
		{Title: "C", URL: "https://example.com/c"},
	}
	story := StoryView{
		Title:         "Story",
		Articles:      []ArticleView{original[0]},
		OriginalOrder: original,
		SourceName:    "s",
		SourceURL:     "https://example.com",
	}
	chunks := ComposeStory(story, ModeHTML)
	full := strings.Join(chunks, "\n")
	for _, a := range original {
		if !strings.Contains(full, a.URL) {
			t.Errorf("expected %s to be readmitted to reach the minimum of 3", a.URL)
		}
	}
}

func TestComposeStoryCapsAtFiveArticles(t *testing.T) {
	var articles []ArticleView
	for i := 0; i < 8; i++ {
		articles = append(articles, ArticleView{Title: "T", URL: "https://example.com/" + string(rune('a'+i))})
	}
	story := StoryView{Title: "Story", Articles: articles, SourceName: "s", SourceURL: "https://example.com/source"}
	chunks := ComposeStory(story, ModeHTML)
	full := strings.Join(chunks, "\n")
	count := strings.Count(full, "https://example.com/")
	// 8 article links would appear, but only the first 5 plus the source URL line.
	if count != 6 {
		t.Errorf("expected 5 article links + 1 source link = 6 occurrences, got %d", count)
	}
}

func TestComposeArticleIncludesTagsAndSource(t *testing.T) {
	a := ArticleView{Title: "Заголовок", URL: "https://example.com/x", Tags: []string{"Спорт", "Футбол"}}
	chunks := ComposeArticle(a, "source", "https://example.com", ModeHTML)
	full := strings.Join(chunks, "\n")
	if !strings.Contains(full, "Спорт") || !strings.Contains(full, "Футбол") {
		t.Errorf("expected tags present in %q", full)
	}
}
