package geo

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/metrics"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// MaxDistance is the exclusive upper bound on the edit distance accepted by
// the fuzzy stage.
const MaxDistance = 3

// Stage names the lookup step that produced an answer.
type Stage string

// Lookup stages, in the order they are tried.
const (
	StageMemo  Stage = "memo"
	StageExact Stage = "exact"
	StageToken Stage = "token"
	StageFuzzy Stage = "fuzzy"
	StageMiss  Stage = "miss"
)

var (
	tokenSplit      = regexp.MustCompile(`[ .\d,]+`)
	tokenSplitWider = regexp.MustCompile(`[ .\d,/-]+`)
)

// Stats counts lookups by the stage that answered them.
type Stats struct {
	Memo  int64
	Exact int64
	Token int64
	Fuzzy int64
	Miss  int64
}

// Resolver maps raw city text to a gazetteer entry. It is safe for concurrent
// use; concurrent misses on the same input may compute the answer twice.
type Resolver struct {
	cities  []City
	geos    []*tournament.Geo
	byName  map[string]int
	byASCII map[string]int
	byAlt   map[string]int
	lower   []string
	logger  *zap.Logger

	mu   sync.RWMutex
	memo map[string]*tournament.Geo

	memoHits, exactHits, tokenHits, fuzzyHits, misses atomic.Int64
}

// NewResolver indexes cities. Earlier entries win when names collide.
func NewResolver(cities []City, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		cities:  cities,
		geos:    make([]*tournament.Geo, len(cities)),
		byName:  make(map[string]int, len(cities)),
		byASCII: make(map[string]int, len(cities)),
		byAlt:   make(map[string]int),
		lower:   make([]string, len(cities)),
		logger:  logger,
		memo:    make(map[string]*tournament.Geo),
	}
	for i, c := range cities {
		r.geos[i] = &tournament.Geo{City: c.City, Lat: c.Lat, Lng: c.Lng}
		r.lower[i] = strings.ToLower(c.City)
		addFirst(r.byName, r.lower[i], i)
		addFirst(r.byASCII, strings.ToLower(c.ASCII), i)
		for _, alt := range c.Alt {
			addFirst(r.byAlt, strings.ToLower(alt), i)
		}
	}
	return r
}

func addFirst(index map[string]int, key string, i int) {
	if key == "" {
		return
	}
	if _, ok := index[key]; !ok {
		index[key] = i
	}
}

// Find resolves raw to a location, or nil when nothing is close enough.
// Repeated lookups of the same trimmed text return the same pointer.
func (r *Resolver) Find(raw string) *tournament.Geo {
	g, _ := r.Lookup(raw)
	return g
}

// Lookup is Find that also reports which stage answered.
func (r *Resolver) Lookup(raw string) (*tournament.Geo, Stage) {
	key := Normalize(raw)
	if key == "" {
		return nil, StageMiss
	}

	r.mu.RLock()
	g, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		r.count(StageMemo)
		return g, StageMemo
	}

	g, stage := r.resolve(key)
	r.mu.Lock()
	if existing, ok := r.memo[key]; ok {
		g = existing
	} else {
		r.memo[key] = g
	}
	r.mu.Unlock()

	r.count(stage)
	if stage == StageMiss {
		r.logger.Debug("city not resolved", zap.String("city", key))
	}
	return g, stage
}

// Stats reports lookup counts since the resolver was built.
func (r *Resolver) Stats() Stats {
	return Stats{
		Memo:  r.memoHits.Load(),
		Exact: r.exactHits.Load(),
		Token: r.tokenHits.Load(),
		Fuzzy: r.fuzzyHits.Load(),
		Miss:  r.misses.Load(),
	}
}

// Len returns the number of gazetteer entries.
func (r *Resolver) Len() int {
	return len(r.cities)
}

// Normalize trims surrounding whitespace, dots and parentheses.
func Normalize(raw string) string {
	return strings.TrimFunc(raw, func(c rune) bool {
		return unicode.IsSpace(c) || c == '.' || c == '(' || c == ')'
	})
}

func (r *Resolver) resolve(key string) (*tournament.Geo, Stage) {
	if i, ok := r.exact(key); ok {
		return r.geos[i], StageExact
	}
	for _, token := range Tokens(key) {
		if i, ok := r.exact(token); ok {
			return r.geos[i], StageToken
		}
	}
	if i, ok := r.fuzzy(key); ok {
		return r.geos[i], StageFuzzy
	}
	return nil, StageMiss
}

func (r *Resolver) exact(s string) (int, bool) {
	s = strings.ToLower(s)
	if i, ok := r.byName[s]; ok {
		return i, true
	}
	if i, ok := r.byASCII[s]; ok {
		return i, true
	}
	if i, ok := r.byAlt[s]; ok {
		return i, true
	}
	return 0, false
}

func (r *Resolver) fuzzy(s string) (int, bool) {
	s = strings.ToLower(s)
	best, lowest := -1, -1
	for i, name := range r.lower {
		d := matchr.Levenshtein(s, name)
		if lowest < 0 || d < lowest {
			best, lowest = i, d
		}
	}
	if best < 0 || lowest >= MaxDistance {
		return 0, false
	}
	return best, true
}

// Tokens splits text into candidate city names: first on spaces, dots, digits
// and commas, then additionally on slashes and dashes. Only tokens longer than
// two characters are kept, each once, in first-seen order.
func Tokens(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{tokenSplit, tokenSplitWider} {
		for _, part := range re.Split(s, -1) {
			if utf8.RuneCountInString(part) <= 2 {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func (r *Resolver) count(stage Stage) {
	switch stage {
	case StageMemo:
		r.memoHits.Add(1)
	case StageExact:
		r.exactHits.Add(1)
	case StageToken:
		r.tokenHits.Add(1)
	case StageFuzzy:
		r.fuzzyHits.Add(1)
	default:
		r.misses.Add(1)
	}
	metrics.ObserveGeocode(string(stage))
}
