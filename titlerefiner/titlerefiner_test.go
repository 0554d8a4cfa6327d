package titlerefiner

import (
	"strings"
	"testing"
	"time"
)

func TestComputeStoryTitleEmpty(t *testing.T) {
	if got := ComputeStoryTitle(nil); got != "Сводка дня" {
		t.Errorf("ComputeStoryTitle(nil) = %q, want %q", got, "Сводка дня")
	}
}

func TestComputeStoryTitleEntityAndTopic(t *testing.T) {
	pub := time.Date(2026, time.March, 5, 18, 0, 0, 0, time.UTC)
	articles := []ArticlePayload{
		{Title: "Зенит разгромил Спартак в основное время", Published: pub, HasPublished: true, Tournaments: []string{"РПЛ"}},
		{Title: "Зенит разгромил Спартак со счетом 3:0", Published: pub, HasPublished: true, Tournaments: []string{"РПЛ"}},
		{Title: "Зенит разгромил Спартак на своем поле", Published: pub, HasPublished: true, Tournaments: []string{"РПЛ"}},
	}
	got := ComputeStoryTitle(articles)
	if !strings.HasPrefix(got, "РПЛ — ") {
		t.Errorf("ComputeStoryTitle = %q, want prefix %q", got, "РПЛ — ")
	}
	if !strings.Contains(got, "на 5 марта") {
		t.Errorf("ComputeStoryTitle = %q, want single-date suffix", got)
	}
}

func TestComputeStoryTitleMixedDatesSuppressesSuffix(t *testing.T) {
	articles := []ArticlePayload{
		{Title: "Зенит обыграл Спартак", Published: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), HasPublished: true, Tournaments: []string{"РПЛ"}},
		{Title: "Зенит обыграл Спартак", Published: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), HasPublished: true, Tournaments: []string{"РПЛ"}},
	}
	got := ComputeStoryTitle(articles)
	if strings.Contains(got, "на ") {
		t.Errorf("ComputeStoryTitle = %q, want no date suffix for mixed dates", got)
	}
}

func TestComputeStoryTitleNoEntityFallsBackToRepresentative(t *testing.T) {
	articles := []ArticlePayload{
		{Title: "Уникальное событие дня один"},
		{Title: "Совсем другое происшествие"},
	}
	got := ComputeStoryTitle(articles)
	if got == "Сводка дня" {
		t.Error("expected a representative title, not the literal fallback")
	}
}

func TestComputeStoryTitleTruncatedTo140(t *testing.T) {
	longName := strings.Repeat("А", 200)
	articles := []ArticlePayload{
		{Title: "заголовок", Tournaments: []string{longName}},
	}
	got := ComputeStoryTitle(articles)
	if len([]rune(got)) != 140 {
		t.Errorf("len(ComputeStoryTitle) = %d, want 140", len([]rune(got)))
	}
}

func TestComputeStoryTitleTrimsRedundantEntityMention(t *testing.T) {
	articles := []ArticlePayload{
		{Title: "Зенит обыграл ЦСКА в основное время", Teams: []string{"Зенит"}},
		{Title: "Зенит обыграл ЦСКА со счетом 2:1", Teams: []string{"Зенит"}},
		{Title: "Зенит обыграл ЦСКА на выезде", Teams: []string{"Зенит"}},
	}
	got := ComputeStoryTitle(articles)
	if !strings.HasPrefix(got, "Зенит — ") {
		t.Fatalf("ComputeStoryTitle = %q, want prefix %q", got, "Зенит — ")
	}
	if strings.Contains(got, "Зенит — Зенит") {
		t.Errorf("ComputeStoryTitle = %q, entity name repeated in topic", got)
	}
}

func TestSelectPrimaryEntityPriority(t *testing.T) {
	articles := []ArticlePayload{
		{Tournaments: []string{"РПЛ"}, Teams: []string{"Зенит"}},
		{Tournaments: []string{"РПЛ"}, Teams: []string{"Зенит"}},
	}
	got := selectPrimaryEntity(articles, 2)
	if got != "РПЛ" {
		t.Errorf("selectPrimaryEntity = %q, want %q (tournament beats team)", got, "РПЛ")
	}
}
