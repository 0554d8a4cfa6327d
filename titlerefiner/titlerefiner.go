// Package titlerefiner computes a human-readable story title from the set
// of articles that were clustered into it.
package titlerefiner

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"sportbot/fingerprint"
)

// domainStop extends the generic stopword set with generic sports words
// that are too common across every story to be useful as a topic token.
var domainStop = map[string]bool{
	"матч": true, "турнир": true, "команда": true, "игра": true,
	"тур": true, "встреча": true, "чемпионат": true, "лига": true,
	"сборная": true, "клуб": true, "счет": true, "счёт": true,
}

// ArticlePayload is the minimal shape titlerefiner needs per article.
type ArticlePayload struct {
	Title       string
	Published   time.Time
	HasPublished bool
	Sports      []string
	Tournaments []string
	Teams       []string
	Players     []string
}

var monthNominative = map[time.Month]string{
	time.January: "января", time.February: "февраля", time.March: "марта",
	time.April: "апреля", time.May: "мая", time.June: "июня",
	time.July: "июля", time.August: "августа", time.September: "сентября",
	time.October: "октября", time.November: "ноября", time.December: "декабря",
}

// ComputeStoryTitle composes the story title per the title-refiner rules.
func ComputeStoryTitle(articles []ArticlePayload) string {
	if len(articles) == 0 {
		return "Сводка дня"
	}
	n := len(articles)

	perArticleTokens := make([][]string, n)
	tokenSets := make([]map[string]bool, n)
	for i, a := range articles {
		toks := filterDomainStop(fingerprint.Tokenize(a.Title))
		perArticleTokens[i] = toks
		set := make(map[string]bool, len(toks))
		for _, t := range toks {
			set[t] = true
		}
		tokenSets[i] = set
	}

	commonRequired := ceilFrac(n, 0.6)
	tokenArticleCount := make(map[string]int)
	for _, set := range tokenSets {
		for t := range set {
			tokenArticleCount[t]++
		}
	}
	commonTokens := make(map[string]bool)
	for t, c := range tokenArticleCount {
		if c >= commonRequired {
			commonTokens[t] = true
		}
	}

	primaryEntity := selectPrimaryEntity(articles, n)
	topic := selectTopic(articles, perArticleTokens, commonTokens)
	if primaryEntity != "" && topic != "" {
		topic = trimRedundantEntityPrefix(topic, primaryEntity)
	}

	var title string
	switch {
	case primaryEntity != "" && topic != "":
		title = primaryEntity + " — " + topic
	case primaryEntity != "":
		title = "Сводка: " + primaryEntity
	default:
		if rep := selectRepresentativeTitle(perArticleTokens, articles); rep != "" {
			title = rep
		} else {
			title = "Сводка дня"
		}
	}

	if suffix, ok := singleDateSuffix(articles); ok {
		candidate := title + " " + suffix
		if len([]rune(candidate)) <= 140 {
			title = candidate
		}
	}

	return truncate(title, 140)
}

func filterDomainStop(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if domainStop[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func ceilFrac(n int, frac float64) int {
	v := int(math.Ceil(float64(n) * frac))
	if v < 1 {
		v = 1
	}
	return v
}

// selectPrimaryEntity scans tournaments, teams, players, sports in priority
// order; a name is eligible if it appears in >= ceil(0.5*N) articles. Ties
// break by longer-name-first then lexicographic.
func selectPrimaryEntity(articles []ArticlePayload, n int) string {
	required := ceilFrac(n, 0.5)

	slots := [][]func(ArticlePayload) []string{
		{func(a ArticlePayload) []string { return a.Tournaments }},
		{func(a ArticlePayload) []string { return a.Teams }},
		{func(a ArticlePayload) []string { return a.Players }},
		{func(a ArticlePayload) []string { return a.Sports }},
	}

	for _, slot := range slots {
		get := slot[0]
		counts := make(map[string]int)
		for _, a := range articles {
			seen := make(map[string]bool)
			for _, name := range get(a) {
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				counts[name]++
			}
		}

		var eligible []string
		for name, c := range counts {
			if c >= required {
				eligible = append(eligible, name)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		sort.Slice(eligible, func(i, j int) bool {
			if len(eligible[i]) != len(eligible[j]) {
				return len(eligible[i]) > len(eligible[j])
			}
			return eligible[i] < eligible[j]
		})
		return eligible[0]
	}
	return ""
}

// selectTopic picks the article whose token set has maximum intersection
// with the common tokens, then extracts those common tokens in their
// original surface order and case.
func selectTopic(articles []ArticlePayload, perArticleTokens [][]string, commonTokens map[string]bool) string {
	if len(commonTokens) == 0 {
		return ""
	}

	bestIdx := -1
	bestScore := -1
	for i, toks := range perArticleTokens {
		score := 0
		seen := make(map[string]bool)
		for _, t := range toks {
			if commonTokens[t] && !seen[t] {
				seen[t] = true
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore == 0 {
		return ""
	}

	words := strings.Fields(articles[bestIdx].Title)
	var out []string
	used := make(map[string]bool)
	for _, w := range words {
		toks := fingerprint.Tokenize(w)
		for _, t := range toks {
			if commonTokens[t] && !domainStop[t] && !used[t] {
				used[t] = true
				out = append(out, w)
			}
		}
	}
	return strings.Join(out, " ")
}

// trimRedundantEntityPrefix drops a topic's leading mention of the primary
// entity name, so the composed title doesn't repeat it twice (e.g. "Зенит —
// Зенит обыграл ЦСКА" becomes "Зенит — обыграл ЦСКА").
func trimRedundantEntityPrefix(topic, entity string) string {
	if !strings.HasPrefix(strings.ToLower(topic), strings.ToLower(entity)) {
		return topic
	}
	runes := []rune(topic)
	cut := len([]rune(entity))
	if cut > len(runes) {
		return topic
	}
	trimmed := strings.TrimLeft(string(runes[cut:]), " —:-–")
	if trimmed == "" {
		return ""
	}
	return upperFirstRune(trimmed)
}

func upperFirstRune(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// selectRepresentativeTitle picks the article whose title has the highest
// average token-Jaccard against every other article's title.
func selectRepresentativeTitle(perArticleTokens [][]string, articles []ArticlePayload) string {
	n := len(articles)
	if n == 0 {
		return ""
	}
	if n == 1 {
		return articles[0].Title
	}

	bestIdx := 0
	bestAvg := -1.0
	for i := range articles {
		sum := 0.0
		for j := range articles {
			if i == j {
				continue
			}
			sum += fingerprint.Jaccard(perArticleTokens[i], perArticleTokens[j])
		}
		avg := sum / float64(n-1)
		if avg > bestAvg {
			bestAvg = avg
			bestIdx = i
		}
	}
	return articles[bestIdx].Title
}

func singleDateSuffix(articles []ArticlePayload) (string, bool) {
	var day, month, year int
	set := false
	for _, a := range articles {
		if !a.HasPublished {
			continue
		}
		y, m, d := a.Published.Date()
		if !set {
			year, month, day = y, int(m), d
			set = true
			continue
		}
		if y != year || int(m) != month || d != day {
			return "", false
		}
	}
	if !set {
		return "", false
	}
	return "на " + strconv.Itoa(day) + " " + monthNominative[time.Month(month)], true
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
