package tagcanon

import (
	"net/url"
	"regexp"
	"strings"
)

// knownTypes are the tag types a caller may already have assigned; any of
// these is kept as-is by EnrichTagType.
var knownTypes = map[string]bool{
	"sport": true, "tournament": true, "team": true, "player": true,
}

// teamPrefixes are frequent Russian football/hockey club prefixes and
// well-known one-word club names.
var teamPrefixes = []string{
	"фк ", "фк-", "fc ", "fc-", "fk ", "fk-", "ск ", "ск-", "hc ", "hc-",
	"bc ", "bc-", "хк ", "хк-", "бк ", "бк-", "пфк ", "сборная ", "сборная-",
	"лос анджелес", "лос-анджелес",
	"цска", "ак барс", "зенит", "спартак", "динамо", "локомотив", "ростов",
	"сочи", "крылья", "ахмат", "урал", "краснодар", "рубин", "амкар", "амур",
	"авангард", "салават", "витязь", "торпедо", "северсталь", "автомобилист",
	"адмирал", "нефтьехимик", "трактор", "химки", "оренбург",
}

var teamAbbreviationRe = regexp.MustCompile(`(?i)\b(FC|CF|SC|HC|B|BC)\b`)

var teamURLHints = []string{
	"/team/", "/teams/", "/club/", "/klub/", "/komanda/", "/squad/", "/roster/",
}

var teamSingleNames = map[string]bool{
	"крылья": true, "спартак": true, "нефтьехимик": true, "салават": true,
	"сочи": true, "витязь": true, "адмирал": true, "рубин": true,
	"северсталь": true, "локомотив": true, "автомобилист": true, "урал": true,
	"амкар": true, "динамо": true, "авангард": true, "амур": true,
	"краснодар": true, "ростов": true, "зенит": true, "ахмат": true,
	"торпедо": true, "цска": true,
}

var teamCityPatterns = []string{
	"москва", "санкт петербург", "петербург", "питер", "минск", "казань",
	"самара", "тольятти", "екатеринбург", "нижний новгород", "новосибирск",
	"ростов", "сочи", "уфа", "омск", "ярославль", "череповец", "нижнекамск",
	"владивосток", "хабаровск", "красноярск",
}

var playerNameRe = regexp.MustCompile(`^[A-ZА-ЯЁ][A-Za-zА-Яа-яЁё\-']+(\s+[A-ZА-ЯЁ][A-Za-zА-Яа-яЁё\-']+){1,2}$`)

var playerURLHints = []string{
	"/player/", "/players/", "/igrok/", "/igroki/",
	"/hockeyplayer/", "/hockeyplayers/", "/footballplayer/", "/footballplayers/",
}

var playerRoleMarkers = []string{
	"нападающий", "защитник", "форвард", "полузащитник", "вратарь",
	"голкипер", "капитан", "снайпер", "striker", "defender", "forward",
	"winger", "goalie", "goalkeeper", "center", "centre", "center-back",
	"centre-back", "midfielder",
}

const playerMarkerWindow = 40

var splitWordsRe = regexp.MustCompile(`[\s\-]+`)

func splitWords(s string) []string {
	var out []string
	for _, w := range splitWordsRe.Split(s, -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func smartTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	capitalize := func(token string) string {
		if token == "" {
			return token
		}
		r := []rune(token)
		return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
	}

	var tokens []string
	for _, part := range strings.Fields(name) {
		subparts := strings.Split(part, "-")
		for i, sub := range subparts {
			subparts[i] = capitalize(sub)
		}
		tokens = append(tokens, strings.Join(subparts, "-"))
	}
	return strings.Join(tokens, " ")
}

func isPersonName(name string) bool {
	candidate := strings.TrimSpace(name)
	if candidate == "" {
		return false
	}
	if playerNameRe.MatchString(candidate) {
		return true
	}
	titled := smartTitle(candidate)
	return titled != "" && playerNameRe.MatchString(titled)
}

func extractSlugFragment(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	slug := parts[len(parts)-1]
	slug = strings.TrimLeft(slug, "0123456789-_")
	slug = strings.ReplaceAll(slug, "-", " ")
	return strings.TrimSpace(slug)
}

func matchesTeamPrefix(text string) bool {
	for _, prefix := range teamPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func matchTeamOneWordCity(words []string) bool {
	if len(words) != 2 && len(words) != 3 {
		return false
	}
	base := words[0]
	rest := strings.Join(words[1:], " ")
	if !teamSingleNames[base] {
		return false
	}
	for _, pattern := range teamCityPatterns {
		if strings.HasPrefix(rest, pattern) {
			return true
		}
	}
	return false
}

func guessTeam(nameMatchable string, nameWords []string, rawURL string) bool {
	if matchesTeamPrefix(nameMatchable) {
		return true
	}

	slug := extractSlugFragment(rawURL)
	if slug != "" {
		slugMatchable := strings.ToLower(slug)
		if matchesTeamPrefix(slugMatchable) {
			return true
		}
		if teamAbbreviationRe.MatchString(slug) {
			return true
		}
	}

	if teamAbbreviationRe.MatchString(nameMatchable) {
		return true
	}

	if rawURL != "" {
		lowered := strings.ToLower(rawURL)
		for _, hint := range teamURLHints {
			if strings.Contains(lowered, hint) {
				return true
			}
		}
		if teamAbbreviationRe.MatchString(rawURL) {
			return true
		}
	}

	return matchTeamOneWordCity(nameWords)
}

func hasPlayerMarkerNear(name, context string, window int) bool {
	contextLower := strings.ToLower(context)
	nameWords := splitWords(strings.ToLower(name))
	if len(nameWords) == 0 {
		return false
	}

	quoted := make([]string, len(nameWords))
	for i, w := range nameWords {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// Go's \b only knows ASCII word characters, so word edges are spelled
	// out with unicode classes and the name is read from capture group 1.
	const edgeL, edgeR = `(?:^|[^\p{L}\p{N}_])(`, `)(?:$|[^\p{L}\p{N}_])`
	pattern := edgeL + strings.Join(quoted, `(?:[\s\-]+)`) + edgeR
	if re, err := regexp.Compile(pattern); err == nil {
		for _, loc := range re.FindAllStringSubmatchIndex(contextLower, -1) {
			if markerNearby(contextLower, loc[2], loc[3], window) {
				return true
			}
		}
	}

	for _, word := range nameWords {
		re, err := regexp.Compile(edgeL + regexp.QuoteMeta(word) + edgeR)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringSubmatchIndex(contextLower, -1) {
			if markerNearby(contextLower, loc[2], loc[3], window) {
				return true
			}
		}
	}
	return false
}

func markerNearby(context string, start, end, window int) bool {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(context) {
		hi = len(context)
	}
	snippet := context[lo:hi]
	for _, marker := range playerRoleMarkers {
		if strings.Contains(snippet, marker) {
			return true
		}
	}
	return false
}

func guessPlayer(nameOriginal, rawURL, context string) bool {
	candidate := strings.TrimSpace(nameOriginal)
	if candidate == "" {
		return false
	}

	if isPersonName(candidate) {
		return true
	}
	if context != "" && hasPlayerMarkerNear(candidate, context, playerMarkerWindow) {
		return true
	}

	if rawURL != "" {
		lowered := strings.ToLower(rawURL)
		for _, hint := range playerURLHints {
			if strings.Contains(lowered, hint) {
				words := splitWords(strings.ToLower(candidate))
				if len(words) >= 2 {
					return true
				}
				if context != "" && hasPlayerMarkerNear(candidate, context, playerMarkerWindow) {
					return true
				}
			}
		}
	}

	return false
}

// GuessTagTypeWithContext runs the heuristic classifier: team, player, or
// unknown, in that tie-break order.
func GuessTagTypeWithContext(name, rawURL, context string) string {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	context = strings.TrimSpace(context)

	if name != "" {
		matchableName := strings.ToLower(name)
		nameWords := splitWords(matchableName)
		if guessTeam(matchableName, nameWords, rawURL) {
			return "team"
		}
		if guessPlayer(name, rawURL, context) {
			return "player"
		}
	}

	if rawURL != "" {
		slug := extractSlugFragment(rawURL)
		if slug != "" {
			slugMatchable := strings.ToLower(slug)
			slugWords := splitWords(slugMatchable)
			if guessTeam(slugMatchable, slugWords, rawURL) {
				return "team"
			}
			if name == "" {
				if guessPlayer(smartTitle(slug), rawURL, context) {
					return "player"
				}
			}
		}
	}

	if rawURL != "" {
		lowered := strings.ToLower(rawURL)
		for _, hint := range teamURLHints {
			if strings.Contains(lowered, hint) {
				return "team"
			}
		}
		for _, hint := range playerURLHints {
			if strings.Contains(lowered, hint) {
				if name != "" {
					if len(splitWords(strings.ToLower(name))) >= 2 {
						return "player"
					}
				} else {
					slug := extractSlugFragment(rawURL)
					if slug != "" && isPersonName(smartTitle(slug)) {
						return "player"
					}
				}
			}
		}
	}

	return "unknown"
}

// EnrichTagType keeps an already-typed raw_type as-is; otherwise runs the
// heuristic classifier, falling back to "unknown" if it can't decide.
func EnrichTagType(rawType, name, rawURL, context string) string {
	rawClean := strings.ToLower(strings.TrimSpace(rawType))
	if rawClean == "" {
		rawClean = "unknown"
	}
	if knownTypes[rawClean] {
		return rawClean
	}

	guess := GuessTagTypeWithContext(name, rawURL, context)
	if guess != "unknown" {
		return guess
	}
	return rawClean
}
