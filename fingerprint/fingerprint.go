// Package fingerprint computes the title and entity signatures used to
// detect near-duplicate and related articles.
package fingerprint

import (
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}\-]+`)

var ruStop = map[string]bool{
	"и": true, "в": true, "во": true, "не": true, "что": true, "он": true,
	"на": true, "я": true, "с": true, "со": true, "как": true, "а": true,
	"то": true, "все": true, "она": true, "так": true, "его": true,
	"но": true, "да": true, "ты": true, "к": true, "у": true, "же": true,
	"вы": true, "за": true, "бы": true, "по": true, "только": true,
	"ее": true, "мне": true, "было": true, "вот": true, "от": true,
	"меня": true, "еще": true, "нет": true, "о": true, "из": true,
	"ему": true, "теперь": true, "когда": true, "даже": true, "ну": true,
	"вдруг": true, "ли": true, "если": true, "уже": true, "или": true,
	"ни": true, "быть": true, "был": true, "него": true, "до": true,
	"вас": true, "нибудь": true, "опять": true, "уж": true, "вам": true,
	"ведь": true, "там": true, "потом": true, "себя": true, "ничего": true,
	"ей": true, "может": true, "они": true, "тут": true, "где": true,
	"есть": true, "надо": true, "ней": true, "для": true, "мы": true,
	"тебя": true, "их": true, "чем": true, "была": true, "сам": true,
	"чтоб": true, "без": true, "будто": true, "чего": true, "раз": true,
	"тоже": true, "себе": true, "под": true, "будет": true, "ж": true,
	"тогда": true, "кто": true, "этот": true, "того": true, "потому": true,
	"этого": true, "какой": true, "совсем": true, "ним": true,
}

var enStop = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "it": true, "this": true,
	"that": true, "as": true, "from": true, "has": true, "have": true,
	"had": true, "will": true, "would": true, "can": true, "could": true,
}

// Tokenize splits text on the unicode word regex and lowercases it,
// dropping stopwords. It does not dedupe.
func Tokenize(text string) []string {
	matches := wordRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if ruStop[m] || enStop[m] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// TitleSignature builds the top-8-by-count token multiset, tie-broken
// lexicographically, sorted, and pipe-joined.
func TitleSignature(title string) string {
	tokens := Tokenize(title)
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	unique := make([]string, 0, len(counts))
	for tok := range counts {
		unique = append(unique, tok)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return unique[i] < unique[j]
	})

	if len(unique) > 8 {
		unique = unique[:8]
	}
	sort.Strings(unique)
	return strings.Join(unique, "|")
}

// Entities is the resolved entity set for an article, as normalized names.
type Entities struct {
	Tournament string
	Team       string
	Player     string
	Sport      string
}

// EntitySignature builds slots in order tournament, team, player, sport for
// every non-empty entity; returns ("", false) if all are absent.
func EntitySignature(e Entities) (string, bool) {
	var parts []string
	if e.Tournament != "" {
		parts = append(parts, "t:"+strings.ToLower(e.Tournament))
	}
	if e.Team != "" {
		parts = append(parts, "team:"+strings.ToLower(e.Team))
	}
	if e.Player != "" {
		parts = append(parts, "p:"+strings.ToLower(e.Player))
	}
	if e.Sport != "" {
		parts = append(parts, "s:"+strings.ToLower(e.Sport))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "|"), true
}

// ComputeSignatures computes both signatures for an article in one call.
func ComputeSignatures(title string, e Entities) (titleSig string, entitySig string) {
	titleSig = TitleSignature(title)
	if sig, ok := EntitySignature(e); ok {
		entitySig = sig
	}
	return titleSig, entitySig
}

// SignatureTokens splits a pipe-joined signature back into its tokens.
func SignatureTokens(sig string) []string {
	if sig == "" {
		return nil
	}
	return strings.Split(sig, "|")
}

// Jaccard computes |A∩B|/|A∪B| with the convention that two empty sets
// return 1.0 and exactly one empty set returns 0.0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[string]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}

	intersection := 0
	for v := range setA {
		if setB[v] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
