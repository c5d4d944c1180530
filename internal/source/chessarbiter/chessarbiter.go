// Package chessarbiter scrapes the monthly tournament listing of
// chessarbiter.com together with the registered players of each tournament.
package chessarbiter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
	"github.com/JakeFAU/tournament-scraper/internal/settle"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

const (
	// Name identifies the source in logs, metrics and records.
	Name = "chessarbiter"
	// DefaultBaseURL is the public site.
	DefaultBaseURL = "http://www.chessarbiter.com"
)

// Adapter implements source.Source for chessarbiter.com.
type Adapter struct {
	baseURL string
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

// New builds an Adapter. Every request goes through f, which is expected to
// be throttled by the caller.
func New(f fetcher.Fetcher, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		baseURL: DefaultBaseURL,
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

// FetchTournaments returns the tournaments listed for the month, each with
// its players. Player lookups that fail leave the list empty.
func (a *Adapter) FetchTournaments(ctx context.Context, year, month int) ([]*tournament.Tournament, error) {
	listingURL := fmt.Sprintf("%s/turnieje.php?rok=%d&miesiac=%d", a.baseURL, year, month)
	logger := a.logger.With(zap.Int("year", year), zap.Int("month", month))
	logger.Info("fetching listing", zap.String("url", listingURL))

	resp, err := fetcher.GetOK(ctx, a.fetcher, listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch chessarbiter listing: %w", err)
	}

	tournaments := ExtractTournaments(string(resp.Body), year, func(link string) {
		logger.Warn("tournament link without id", zap.String("url", link))
	})

	tasks := make([]settle.Task[[]tournament.Player], len(tournaments))
	for i, t := range tournaments {
		tasks[i] = func(ctx context.Context) ([]tournament.Player, error) {
			return a.fetchPlayers(ctx, t)
		}
	}
	for i, outcome := range settle.All(ctx, tasks...) {
		t := tournaments[i]
		if outcome.Err != nil {
			logger.Warn("players unavailable", zap.String("id", t.ID), zap.Error(outcome.Err))
			continue
		}
		t.Players = outcome.Value
	}

	logger.Info("listing done", zap.Int("tournaments", len(tournaments)))
	return tournaments, nil
}

func (a *Adapter) tournamentURL(t *tournament.Tournament, file string) string {
	return fmt.Sprintf("%s/turnieje/%d/%s/%s", a.baseURL, t.Year, t.ID, file)
}

func (a *Adapter) fetchPlayers(ctx context.Context, t *tournament.Tournament) ([]tournament.Player, error) {
	resp, err := fetcher.Get(ctx, a.fetcher, a.tournamentURL(t, "list_of_players"))
	if err != nil {
		return nil, fmt.Errorf("fetch player list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return a.fetchCaproPlayers(ctx, t)
	}

	cards := CardNumbers(string(resp.Body))
	tasks := make([]settle.Task[tournament.Player], len(cards))
	for i, n := range cards {
		tasks[i] = func(ctx context.Context) (tournament.Player, error) {
			return a.fetchCard(ctx, t, n)
		}
	}
	outcomes := settle.All(ctx, tasks...)
	for i, o := range outcomes {
		if o.Err != nil {
			a.logger.Debug("player card skipped",
				zap.String("id", t.ID), zap.String("card", cards[i]), zap.Error(o.Err))
		}
	}
	return settle.Values(outcomes), nil
}

func (a *Adapter) fetchCard(ctx context.Context, t *tournament.Tournament, n string) (tournament.Player, error) {
	resp, err := fetcher.GetOK(ctx, a.fetcher, a.tournamentURL(t, "card_z$"+n))
	if err != nil {
		return tournament.Player{}, fmt.Errorf("fetch player card: %w", err)
	}
	return ExtractPlayer(string(resp.Body)), nil
}

func (a *Adapter) fetchCaproPlayers(ctx context.Context, t *tournament.Tournament) ([]tournament.Player, error) {
	resp, err := fetcher.GetOK(ctx, a.fetcher, a.tournamentURL(t, "capro_tournament.js"))
	if err != nil {
		return nil, fmt.Errorf("fetch capro export: %w", err)
	}
	players, err := ParseCapro(string(resp.Body))
	if err != nil {
		return nil, err
	}
	return players, nil
}
