// Package normalize implements URL, token, and date-label normalization
// shared by the fetcher, tag canonicalizer, and fingerprint engine.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lowerCaser = cases.Lower(language.Und)

// sameSiteHostAliases collapses known mirror/CDN hosts onto one canonical
// host. The list is intentionally small; unknown hosts pass through.
var sameSiteHostAliases = map[string]string{
	"m.sport.example":  "sport.example",
	"amp.sport.example": "sport.example",
}

var boundaryRe = regexp.MustCompile(`^[^\p{L}\p{N}_]+|[^\p{L}\p{N}_]+$`)
var wordSepRe = regexp.MustCompile(`[-_]+`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// URL applies normalize_url: strip whitespace, force https for
// scheme-relative URLs, lowercase host, strip "www.", collapse known host
// aliases, drop utm_* query params, drop the fragment, trim a trailing
// slash from the path.
func URL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize url: parse %q: %w", raw, err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if canon, ok := sameSiteHostAliases[host]; ok {
		host = canon
	}
	u.Host = host

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(key, "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment = ""

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// Token applies normalize_token: preserves unicode letters, lowercases,
// replaces "-"/"_" with a single space, collapses whitespace, and trims
// non-word boundary characters.
func Token(s string) string {
	s = norm.NFC.String(s)
	s = wordSepRe.ReplaceAllString(s, " ")
	s = lowerCaser.String(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = boundaryRe.ReplaceAllString(s, "")
	return s
}

var monthGenitive = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

var dateLabelRe = regexp.MustCompile(`^(\d{1,2})\s+([а-яА-ЯёЁ]+)\s+(\d{4})$`)

// ToISO parses a Russian-language date label ("D MONTH_NAME_GEN YYYY") and
// an "HH:MM" time label into "YYYY-MM-DDTHH:MM:SS" local civil time. A
// missing time defaults to 00:00. Returns ok=false on any parse failure
// rather than an error, matching the original's "return null" contract.
func ToISO(dateLabel, timeLabel string) (string, bool) {
	dateLabel = strings.TrimSpace(dateLabel)
	timeLabel = strings.TrimSpace(timeLabel)

	if t, ok := parseRussianDateLabel(dateLabel, timeLabel); ok {
		return t, true
	}
	if dateLabel == "" {
		return "", false
	}
	// Fall back to a general-purpose parser for non-Russian-label timestamps
	// (e.g. ISO/RFC fields occasionally present in scraped metadata).
	combined := dateLabel
	if timeLabel != "" {
		combined = dateLabel + " " + timeLabel
	}
	parsed, err := dateparse.ParseLocal(combined)
	if err != nil {
		return "", false
	}
	return parsed.Format("2006-01-02T15:04:05"), true
}

func parseRussianDateLabel(dateLabel, timeLabel string) (string, bool) {
	m := dateLabelRe.FindStringSubmatch(strings.ToLower(dateLabel))
	if m == nil {
		return "", false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	month, ok := monthGenitive[m[2]]
	if !ok {
		return "", false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}

	hour, minute := 0, 0
	if timeLabel != "" {
		parts := strings.SplitN(timeLabel, ":", 2)
		if len(parts) == 2 {
			hour, _ = strconv.Atoi(parts[0])
			minute, _ = strconv.Atoi(parts[1])
		}
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
	return t.Format("2006-01-02T15:04:05"), true
}
