// Package chessmanager scrapes the paginated tournament search of
// chessmanager.com, then each tournament's details and players pages.
package chessmanager

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/calendar"
	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
	"github.com/JakeFAU/tournament-scraper/internal/settle"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

const (
	// Name identifies the source in logs, metrics and records.
	Name = "chessmanager"
	// DefaultBaseURL is the public site.
	DefaultBaseURL = "https://www.chessmanager.com"
	// DefaultCountry restricts the search to Polish tournaments.
	DefaultCountry = "POL"
)

// Adapter implements source.Source for chessmanager.com.
type Adapter struct {
	baseURL string
	country string
	fetcher fetcher.Fetcher
	logger  *zap.Logger
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another host.
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		if u != "" {
			a.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCountry changes the country filter of the search.
func WithCountry(code string) Option {
	return func(a *Adapter) {
		if code != "" {
			a.country = code
		}
	}
}

// New builds an Adapter. Every request goes through f, which is expected to
// be throttled by the caller.
func New(f fetcher.Fetcher, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		baseURL: DefaultBaseURL,
		country: DefaultCountry,
		fetcher: f,
		logger:  logger.With(zap.String("source", Name)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements source.Source.
func (a *Adapter) Name() string {
	return Name
}

// FetchTournaments walks every listing page of the month, loads each
// tournament's details and players, and keeps only tournaments dated within
// the requested month.
func (a *Adapter) FetchTournaments(ctx context.Context, year, month int) ([]*tournament.Tournament, error) {
	logger := a.logger.With(zap.Int("year", year), zap.Int("month", month))

	candidates, err := a.collectCandidates(ctx, year, month, logger)
	if err != nil {
		return nil, err
	}

	tournaments := make([]*tournament.Tournament, len(candidates))
	tasks := make([]settle.Task[struct{}], len(candidates))
	for i, c := range candidates {
		t := tournament.New(Name, c.ID, year)
		t.Title = c.Title
		t.Link = fmt.Sprintf("%s/en/tournaments/%s", a.baseURL, c.ID)
		tournaments[i] = t
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.fetchTournament(ctx, t, logger)
		}
	}
	for i, o := range settle.All(ctx, tasks...) {
		if o.Err != nil {
			logger.Warn("tournament details unavailable", zap.String("id", tournaments[i].ID), zap.Error(o.Err))
		}
	}

	out := make([]*tournament.Tournament, 0, len(tournaments))
	for _, t := range tournaments {
		if t.InMonth(year, month) {
			out = append(out, t)
		}
	}
	logger.Info("listing done", zap.Int("candidates", len(candidates)), zap.Int("tournaments", len(out)))
	return out, nil
}

func (a *Adapter) listingURL(year, month, offset int) string {
	m := calendar.Month{Year: year, Month: month}
	return fmt.Sprintf("%s/en/tournaments?date_start=%d-%d-01&date_end=%d-%d-%d&country=%s&offset=%d",
		a.baseURL, year, month, year, month, m.LastDay(), a.country, offset)
}

func (a *Adapter) collectCandidates(
	ctx context.Context,
	year, month int,
	logger *zap.Logger,
) ([]Candidate, error) {
	var (
		out     []Candidate
		seen    = make(map[string]struct{})
		visited = make(map[int]struct{})
		offset  = 0
	)
	for {
		visited[offset] = struct{}{}
		listingURL := a.listingURL(year, month, offset)
		logger.Info("fetching listing", zap.String("url", listingURL))

		resp, err := fetcher.GetOK(ctx, a.fetcher, listingURL)
		if err != nil {
			if len(visited) == 1 {
				return nil, fmt.Errorf("fetch chessmanager listing: %w", err)
			}
			logger.Warn("listing page failed, keeping earlier pages", zap.Int("offset", offset), zap.Error(err))
			return out, nil
		}
		page := string(resp.Body)

		for _, c := range ExtractCandidates(page, func(anchor string) {
			logger.Warn("tournament link without id", zap.String("anchor", anchor))
		}) {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}

		next, ok := NextOffset(ExtractOffsets(page), offset)
		if !ok {
			return out, nil
		}
		if _, again := visited[next]; again {
			logger.Warn("pagination loops, stopping", zap.Int("offset", next))
			return out, nil
		}
		offset = next
	}
}

func (a *Adapter) fetchTournament(ctx context.Context, t *tournament.Tournament, logger *zap.Logger) error {
	resp, err := fetcher.GetOK(ctx, a.fetcher, t.Link)
	if err != nil {
		return fmt.Errorf("fetch tournament page: %w", err)
	}
	ParseDetails(string(resp.Body), t)

	resp, err = fetcher.GetOK(ctx, a.fetcher, t.Link+"/players")
	if err != nil {
		logger.Warn("players unavailable", zap.String("id", t.ID), zap.Error(err))
		return nil
	}
	players, err := ExtractPlayers(string(resp.Body))
	if err != nil {
		logger.Warn("players unreadable", zap.String("id", t.ID), zap.Error(err))
		return nil
	}
	t.Players = players
	return nil
}
