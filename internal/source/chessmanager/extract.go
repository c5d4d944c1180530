package chessmanager

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/tournament-scraper/internal/source"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

var (
	offsetPattern    = regexp.MustCompile(`<a.*?href="https://www\.chessmanager\.com(?:[^"]*)offset=(\d*)".*?>`)
	candidatePattern = regexp.MustCompile(`<a\s+.*?href="https://www\.chessmanager\.com/en/tournaments/(\d*)">(?s:.*?)</a>`)
	headerPattern    = regexp.MustCompile(`<div class="header">\s*(.*?)\s*</div>`)
	statPattern      = regexp.MustCompile(
		`<div class="statistic">\s*<div class=".*?">\s*(.*)\s*(.*)?\s*</div>\s*<div class="label">\s*(.*)\s*</div>\s*</div>`)
	breakPattern   = regexp.MustCompile(`<br.*?>`)
	titlePattern   = regexp.MustCompile(`<h1.*?>([\s\S]*?)</h1>`)
	datePattern    = regexp.MustCompile(`(\d{2})\.(\d{2}).(\d{4})`)
	tbodyPattern   = regexp.MustCompile(`<tbody>([\s\S]*?)</tbody>`)
	rowPattern     = regexp.MustCompile(`<tr.*?>([\s\S]*?)</tr>`)
	cellPattern    = regexp.MustCompile(`<td.*?>([\s\S]*?)</td>`)
	countryPattern = regexp.MustCompile(`title="(.*)"`)
)

// ExtractOffsets returns every pagination offset linked from a listing page,
// in page order. Offsets that are not numbers are skipped.
func ExtractOffsets(page string) []int {
	var out []int
	for _, m := range offsetPattern.FindAllStringSubmatch(page, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// NextOffset picks the page to visit after current: the first listed offset
// following current that differs from it, so repeated links to the current
// page are skipped. It reports false when the listing has no pagination or
// nothing but current follows it. An offset missing from the list restarts at
// the first listed one.
func NextOffset(offsets []int, current int) (int, bool) {
	if len(offsets) == 0 {
		return 0, false
	}
	idx := -1
	for i, o := range offsets {
		if o == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return offsets[0], true
	}
	for _, o := range offsets[idx+1:] {
		if o != current {
			return o, true
		}
	}
	return 0, false
}

// Candidate is a tournament link found on a listing page.
type Candidate struct {
	ID    string
	Title string
}

// ExtractCandidates lists the tournament links of a listing page. Links with an
// empty id are reported to onMissingID and skipped.
func ExtractCandidates(page string, onMissingID func(anchor string)) []Candidate {
	var out []Candidate
	for _, m := range candidatePattern.FindAllStringSubmatch(page, -1) {
		if m[1] == "" {
			if onMissingID != nil {
				onMissingID(m[0])
			}
			continue
		}
		c := Candidate{ID: m[1]}
		if title, ok := source.Submatch(headerPattern, m[0], 1); ok {
			c.Title = source.DecodeEntities(strings.TrimSpace(title))
		}
		out = append(out, c)
	}
	return out
}

// ParseDetails fills date, city, tempo and title from a tournament page.
// Dates written as "dd.mm yyyy" become "yyyy-mm-dd".
func ParseDetails(page string, t *tournament.Tournament) {
	for _, m := range statPattern.FindAllStringSubmatch(page, -1) {
		label := m[3]
		value := strings.TrimSpace(breakPattern.ReplaceAllString(m[1]+m[2], " "))
		switch {
		case strings.Contains(label, "Date"):
			t.SetDate(value)
		case strings.Contains(label, "City"):
			t.City = source.DecodeEntities(value)
		case strings.Contains(label, "Tempo"):
			t.Tempo = source.DecodeEntities(value)
		}
	}

	if title, ok := source.Submatch(titlePattern, page, 1); ok {
		t.Title = source.DecodeEntities(strings.TrimSpace(title))
	}

	if t.Date != nil {
		t.SetDate(NormalizeDate(*t.Date))
	}
}

// NormalizeDate rewrites the first "dd.mm yyyy" occurrence to "yyyy-mm-dd" and
// keeps at most the first ten characters. Other strings are returned as is.
func NormalizeDate(raw string) string {
	loc := datePattern.FindStringSubmatchIndex(raw)
	if loc == nil {
		return raw
	}
	var b strings.Builder
	b.WriteString(raw[:loc[0]])
	b.WriteString(raw[loc[6]:loc[7]])
	b.WriteByte('-')
	b.WriteString(raw[loc[4]:loc[5]])
	b.WriteByte('-')
	b.WriteString(raw[loc[2]:loc[3]])
	b.WriteString(raw[loc[1]:])
	out := b.String()
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// ErrNoPlayerTable is returned when a players page has no table body.
var ErrNoPlayerTable = errors.New("players page has no table body")

// ExtractPlayers parses the players table. Columns are, after the ordinal:
// country flag, category, name, club, rank, birthday.
func ExtractPlayers(page string) ([]tournament.Player, error) {
	tbody, ok := source.Submatch(tbodyPattern, page, 1)
	if !ok {
		return nil, ErrNoPlayerTable
	}
	rows := rowPattern.FindAllStringSubmatch(tbody, -1)
	players := make([]tournament.Player, 0, len(rows))
	for _, row := range rows {
		var p tournament.Player
		for i, cell := range cellPattern.FindAllStringSubmatch(row[1], -1) {
			td := cell[1]
			switch i {
			case 1:
				if country, ok := source.Submatch(countryPattern, td, 1); ok {
					p.Country = strings.TrimSpace(country)
				}
			case 2:
				p.Category = source.StripTags(td)
			case 3:
				p.Name = source.DecodeEntities(source.StripTags(td))
			case 4:
				p.Club = source.DecodeEntities(source.StripTags(td))
			case 5:
				p.Rank = source.StripTags(td)
			case 6:
				p.Birthday = source.StripTags(td)
			}
		}
		players = append(players, p)
	}
	return players, nil
}
