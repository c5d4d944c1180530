package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
)

// Mirror copies published snapshots from a remote host into a local Store.
type Mirror struct {
	baseURL string
	fetcher fetcher.Fetcher
	dest    *Store
	logger  *zap.Logger
}

// NewMirror builds a Mirror reading from baseURL.
func NewMirror(baseURL string, f fetcher.Fetcher, dest *Store, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: f,
		dest:    dest,
		logger:  logger,
	}
}

// URL returns the remote location of a month's snapshot.
func (m *Mirror) URL(year, month int) string {
	return m.baseURL + "/" + FileName(year, month)
}

// Fetch downloads one month. It returns false without error when the remote
// host has no snapshot for the month. The body must decode as a snapshot
// before it replaces the local copy.
func (m *Mirror) Fetch(ctx context.Context, year, month int) (bool, error) {
	url := m.URL(year, month)
	resp, err := fetcher.Get(ctx, m.fetcher, url)
	if err != nil {
		return false, fmt.Errorf("fetch mirror %s: %w", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		m.logger.Debug("mirror has no snapshot", zap.String("url", url))
		return false, nil
	}
	if err := fetcher.CheckStatus(resp); err != nil {
		return false, fmt.Errorf("fetch mirror: %w", err)
	}
	list, err := Decode(resp.Body)
	if err != nil {
		return false, fmt.Errorf("validate mirror %s: %w", url, err)
	}
	if err := m.dest.WriteRaw(ctx, year, month, resp.Body); err != nil {
		return false, err
	}
	m.logger.Info("snapshot mirrored",
		zap.String("url", url),
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("tournaments", len(list)),
	)
	return true, nil
}
