// Package source defines the contract every tournament listing adapter
// implements and the pattern-extraction helpers they share.
package source

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// Source produces the tournaments of one calendar month from one upstream site.
// Individual rows never fail the call; an error means the listing itself could
// not be retrieved.
type Source interface {
	Name() string
	FetchTournaments(ctx context.Context, year, month int) ([]*tournament.Tournament, error)
}

var (
	tagPattern     = regexp.MustCompile(`<.*?>`)
	decimalPattern = regexp.MustCompile(`&#\d+;`)
	hexPattern     = regexp.MustCompile(`&#x[0-9A-Fa-f]+;`)
)

// DecodeEntities replaces decimal (&#321;) and hexadecimal (&#x141;) character
// references. Named entities such as &amp; are left as they are. Decimal
// references are decoded first, so a decimal pass that produces a hex
// reference is decoded again.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	s = decimalPattern.ReplaceAllStringFunc(s, html.UnescapeString)
	return hexPattern.ReplaceAllStringFunc(s, html.UnescapeString)
}

// StripTags removes anything that looks like a tag and trims the result.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// FirstTerm returns the first vocabulary term found in text after its first
// character, testing terms in the given order. It returns "" when none match.
func FirstTerm(text string, vocabulary []string) string {
	for _, term := range vocabulary {
		if strings.Index(text, term) > 0 {
			return term
		}
	}
	return ""
}

// Submatch returns capture group n of the first match of re in s.
func Submatch(re *regexp.Regexp, s string, n int) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil || n >= len(m) {
		return "", false
	}
	return m[n], true
}

// Rule extracts one named field with a single capture group.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
}

// Extract applies rules in order and returns the decoded first capture group
// of every rule that matched.
func Extract(text string, rules []Rule) map[string]string {
	out := make(map[string]string, len(rules))
	for _, r := range rules {
		if v, ok := Submatch(r.Pattern, text, 1); ok {
			out[r.Field] = DecodeEntities(v)
		}
	}
	return out
}
