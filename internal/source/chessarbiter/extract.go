package chessarbiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/JakeFAU/tournament-scraper/internal/source"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// Categories in the order they are tested against the place cell.
var Categories = []string{"klasyczne", "szybkie", "blitz", "inne"}

var (
	rowSplit    = regexp.MustCompile(`<tr[^>]*?>`)
	cellSplit   = regexp.MustCompile(`<td[^>]*>`)
	datePattern = regexp.MustCompile(`(\d{2})-(\d{2})`)
	linkPattern = regexp.MustCompile(
		`<a href\s?=\s?"(https?://www\.chessarbiter\.com/turnieje/open\.php\?turn=[^"]+)"[^>]*>(.*?)</a>`)
	idPattern    = regexp.MustCompile(`(ti_|tdr_)(\d+)`)
	cityPattern  = regexp.MustCompile(`<div class="szary">\s*(.*?)\s*\[`)
	placePattern = regexp.MustCompile(`(.*)<br>`)
	cardPattern  = regexp.MustCompile(`ALink\("card_z\$(\d+)`)
	caproPattern = regexp.MustCompile(`var (A\d+) = (.*);`)
)

var playerRules = []source.Rule{
	{Field: "name", Pattern: regexp.MustCompile(`<script>Tr\("Name".*?</td><td.*?>(.*?)</td>`)},
	{Field: "birthday", Pattern: regexp.MustCompile(`<script>Tr\("Birthday".*?</td><td.*?>(.*?)</td>`)},
	{Field: "club", Pattern: regexp.MustCompile(`<script>Tr\("Club".*?</td><td.*?>(.*?)</td>`)},
	{Field: "localID", Pattern: regexp.MustCompile(`Local ID</td><td class=kcb>(\d*)`)},
}

// ExtractTournaments parses a monthly listing page. Rows without a tournament
// link are skipped; rows whose link carries no id are reported to onMissingID
// and skipped.
func ExtractTournaments(page string, year int, onMissingID func(link string)) []*tournament.Tournament {
	rows := rowSplit.Split(page, -1)
	if len(rows) > 0 {
		rows = rows[1:]
	}
	out := make([]*tournament.Tournament, 0, len(rows))
	for _, row := range rows {
		cells := cellSplit.Split(row, -1)
		if len(cells) < 4 {
			continue
		}

		link := linkPattern.FindStringSubmatch(cells[2])
		if link == nil {
			continue
		}
		id := idPattern.FindStringSubmatch(link[1])
		if id == nil {
			if onMissingID != nil {
				onMissingID(link[1])
			}
			continue
		}

		t := tournament.New(Name, id[1]+id[2], year)
		t.Link = link[1]
		t.Title = source.DecodeEntities(link[2])
		if d := datePattern.FindStringSubmatch(cells[1]); d != nil {
			t.SetDate(fmt.Sprintf("%d-%s-%s", year, d[2], d[1]))
		}
		if city, ok := source.Submatch(cityPattern, cells[2], 1); ok {
			t.City = source.DecodeEntities(city)
		}
		if place, ok := source.Submatch(placePattern, cells[3], 1); ok {
			t.Place = source.DecodeEntities(place)
		}
		t.Category = source.FirstTerm(cells[3], Categories)
		out = append(out, t)
	}
	return out
}

// CardNumbers lists the player card numbers referenced by a player list page,
// in page order.
func CardNumbers(page string) []string {
	matches := cardPattern.FindAllStringSubmatch(page, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ExtractPlayer parses a single player card.
func ExtractPlayer(page string) tournament.Player {
	f := source.Extract(page, playerRules)
	return tournament.Player{
		Name:     f["name"],
		Birthday: f["birthday"],
		Club:     f["club"],
		LocalID:  f["localID"],
	}
}

// ErrNoCaproPlayers is returned when a capro export has no player names.
var ErrNoCaproPlayers = errors.New("capro export has no player names")

// ParseCapro reads the player arrays of a capro_tournament.js export: names
// in A11, birthdays in A18, clubs in A17 and local ids in A109.
func ParseCapro(script string) ([]tournament.Player, error) {
	arrays := make(map[string][]string)
	for _, m := range caproPattern.FindAllStringSubmatch(script, -1) {
		values, err := parseCaproArray(m[2])
		if err != nil {
			continue
		}
		arrays[m[1]] = values
	}

	names, ok := arrays["A11"]
	if !ok {
		return nil, ErrNoCaproPlayers
	}
	players := make([]tournament.Player, len(names))
	for i, name := range names {
		players[i] = tournament.Player{
			Name:     name,
			Birthday: at(arrays["A18"], i),
			Club:     at(arrays["A17"], i),
			LocalID:  at(arrays["A109"], i),
		}
	}
	return players, nil
}

func parseCaproArray(raw string) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse capro array: %w", err)
	}
	out := make([]string, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out[i] = source.DecodeEntities(s)
			continue
		}
		if string(item) != "null" {
			out[i] = string(item)
		}
	}
	return out, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
