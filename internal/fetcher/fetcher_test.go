package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckStatus(Response{StatusCode: http.StatusOK}))

	err := CheckStatus(Response{URL: "http://example.com/x", StatusCode: http.StatusNotFound})
	require.Error(t, err)
	assert.True(t, crerr.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "http://example.com/x")
}

func TestGetOK(t *testing.T) {
	t.Parallel()

	statuses := map[string]int{"/ok": http.StatusOK, "/missing": http.StatusNotFound}
	f := Func(func(_ context.Context, req Request) (Response, error) {
		if req.URL == "/broken" {
			return Response{}, errors.New("connection reset")
		}
		return Response{URL: req.URL, StatusCode: statuses[req.URL], Body: []byte("body")}, nil
	})

	resp, err := GetOK(context.Background(), f, "/ok")
	require.NoError(t, err)
	assert.Equal(t, "body", string(resp.Body))

	resp, err = GetOK(context.Background(), f, "/missing")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = GetOK(context.Background(), f, "/broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
}
