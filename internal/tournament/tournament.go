// Package tournament defines the records produced by the source adapters and
// persisted in monthly snapshots.
package tournament

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Player is one entrant of a tournament. The populated fields depend on the
// source that produced the record.
type Player struct {
	Name     string `json:"name,omitempty"`
	Birthday string `json:"birthday,omitempty"`
	Club     string `json:"club,omitempty"`
	LocalID  string `json:"localID,omitempty"`
	Country  string `json:"country,omitempty"`
	Category string `json:"category,omitempty"`
	Rank     string `json:"rank,omitempty"`
}

// Geo is the resolved location of a tournament city.
type Geo struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Tournament is a normalized listing entry. Date is nil when the listing did
// not carry one; Geo is nil when the city could not be resolved.
type Tournament struct {
	ID       string   `json:"id"`
	Year     int      `json:"year"`
	Date     *string  `json:"date"`
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	City     string   `json:"city,omitempty"`
	Place    string   `json:"place,omitempty"`
	Category string   `json:"category,omitempty"`
	Tempo    string   `json:"tempo,omitempty"`
	Players  []Player `json:"players"`
	Geo      *Geo     `json:"geo,omitempty"`

	// Source names the adapter that produced the record. It is not persisted.
	Source string `json:"-"`
}

// New returns a tournament with an empty player list.
func New(source, id string, year int) *Tournament {
	return &Tournament{
		ID:      id,
		Year:    year,
		Source:  source,
		Players: []Player{},
	}
}

// SetDate stores a normalized date string.
func (t *Tournament) SetDate(date string) {
	t.Date = &date
}

// DateString returns the date or an empty string.
func (t *Tournament) DateString() string {
	if t.Date == nil {
		return ""
	}
	return *t.Date
}

// InMonth reports whether the date falls in the given year and month.
func (t *Tournament) InMonth(year, month int) bool {
	if t.Date == nil {
		return false
	}
	return strings.HasPrefix(*t.Date, fmt.Sprintf("%d-%02d", year, month))
}

// Key is the deduplication key used for snapshots: the year followed by the id.
// It is not qualified by source.
func (t *Tournament) Key() string {
	return strconv.Itoa(t.Year) + t.ID
}

// SourceQualifiedKey prefixes Key with the producing source.
func (t *Tournament) SourceQualifiedKey() string {
	return t.Source + ":" + t.Key()
}

// Deduper remembers tournament keys. The first record seen for a key wins.
// It is safe for concurrent use.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add records t and reports whether its key was new.
func (d *Deduper) Add(t *Tournament) bool {
	key := t.Key()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Filter keeps the first occurrence of every key, preserving order. onDuplicate
// is called for each discarded record when non-nil.
func (d *Deduper) Filter(in []*Tournament, onDuplicate func(*Tournament)) []*Tournament {
	out := make([]*Tournament, 0, len(in))
	for _, t := range in {
		if t == nil {
			continue
		}
		if !d.Add(t) {
			if onDuplicate != nil {
				onDuplicate(t)
			}
			continue
		}
		out = append(out, t)
	}
	return out
}

// Len returns the number of remembered keys.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
