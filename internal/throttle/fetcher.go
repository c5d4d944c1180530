package throttle

import (
	"context"

	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
	"github.com/JakeFAU/tournament-scraper/internal/metrics"
)

// Fetcher routes every request of a wrapped fetcher through a Throttle.
type Fetcher struct {
	next     fetcher.Fetcher
	throttle *Throttle
}

// NewFetcher wraps next with t.
func NewFetcher(next fetcher.Fetcher, t *Throttle) *Fetcher {
	return &Fetcher{next: next, throttle: t}
}

// Fetch waits for a throttle slot and performs the request inside it.
func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (fetcher.Response, error) {
	var resp fetcher.Response
	err := f.throttle.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = f.next.Fetch(ctx, req)
		metrics.ObserveFetch(f.throttle.Name(), resp.StatusCode, len(resp.Body), resp.Duration)
		return err
	})
	if err != nil {
		return fetcher.Response{}, err
	}
	return resp, nil
}
