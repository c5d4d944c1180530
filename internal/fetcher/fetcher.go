// Package fetcher defines the HTTP retrieval contract shared by the source
// adapters and the snapshot mirror.
package fetcher

import (
	"context"
	"net/http"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// ErrUnexpectedStatus marks a response whose status was not 200 OK.
var ErrUnexpectedStatus = crerr.New("unexpected status")

// Request describes a single GET.
type Request struct {
	URL     string
	Headers http.Header
}

// Response carries whatever the server answered. Non-2xx statuses are
// returned as data, not as errors.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a URL.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Get is a convenience for fetching a URL without extra headers.
func Get(ctx context.Context, f Fetcher, url string) (Response, error) {
	return f.Fetch(ctx, Request{URL: url})
}

// CheckStatus returns an error wrapping ErrUnexpectedStatus unless the
// response status is 200.
func CheckStatus(resp Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return crerr.Wrapf(ErrUnexpectedStatus, "GET %s: %d", resp.URL, resp.StatusCode)
}

// GetOK fetches url and treats any status other than 200 as a failure.
func GetOK(ctx context.Context, f Fetcher, url string) (Response, error) {
	resp, err := Get(ctx, f, url)
	if err != nil {
		return Response{}, err
	}
	if err := CheckStatus(resp); err != nil {
		return resp, err
	}
	return resp, nil
}
