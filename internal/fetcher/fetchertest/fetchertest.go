// Package fetchertest provides an in-memory fetcher.Fetcher for tests.
package fetchertest

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/JakeFAU/tournament-scraper/internal/fetcher"
)

// ErrTransport is returned for URLs registered with Fail.
var ErrTransport = errors.New("fetchertest: transport failure")

type page struct {
	status int
	body   string
	fail   bool
}

// Fetcher serves canned responses keyed by URL and records every request.
// Unknown URLs answer 404. It is safe for concurrent use.
type Fetcher struct {
	mu       sync.Mutex
	pages    map[string]page
	requests []string
}

// New returns an empty Fetcher.
func New() *Fetcher {
	return &Fetcher{pages: make(map[string]page)}
}

// Add registers a 200 response.
func (f *Fetcher) Add(url, body string) *Fetcher {
	return f.AddStatus(url, http.StatusOK, body)
}

// AddStatus registers a response with an explicit status.
func (f *Fetcher) AddStatus(url string, status int, body string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = page{status: status, body: body}
	return f
}

// Fail makes url fail at the transport level.
func (f *Fetcher) Fail(url string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = page{fail: true}
	return f
}

// Fetch implements fetcher.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req fetcher.Request) (fetcher.Response, error) {
	if err := ctx.Err(); err != nil {
		return fetcher.Response{}, err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req.URL)
	p, ok := f.pages[req.URL]
	f.mu.Unlock()

	if p.fail {
		return fetcher.Response{}, ErrTransport
	}
	if !ok {
		return fetcher.Response{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	return fetcher.Response{URL: req.URL, StatusCode: p.status, Body: []byte(p.body)}, nil
}

// Requests returns a copy of the requested URLs in arrival order.
func (f *Fetcher) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Count returns how many times url was requested.
func (f *Fetcher) Count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == url {
			n++
		}
	}
	return n
}
