package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tournament-scraper/internal/app"
	"github.com/JakeFAU/tournament-scraper/internal/config"
	"github.com/JakeFAU/tournament-scraper/internal/fetcher/fetchertest"
)

func useTestApp(t *testing.T, f *fetchertest.Fetcher) string {
	t.Helper()
	dir := t.TempDir()
	original := newApp
	newApp = func(ctx context.Context, configPath string) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Snapshot.Dir = dir
		return app.New(ctx, cfg, nil, app.WithFetcher(f))
	}
	t.Cleanup(func() { newApp = original })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeSession(t, args...)
	return out, err
}

func executeSession(t *testing.T, args ...string) (string, *session, error) {
	t.Helper()
	var out bytes.Buffer
	root, sess := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := executeRoot(context.Background(), root, sess)
	return out.String(), sess, err
}

func TestGeocodeCommand(t *testing.T) {
	useTestApp(t, fetchertest.New())

	out, err := execute(t, "geocode", "Warszawa", "Atlantis")
	require.NoError(t, err)
	assert.Contains(t, out, "\"Warszawa\"\texact\tWarszawa\t")
	assert.Contains(t, out, "\"Atlantis\"\tmiss\n")
}

func TestGeocodeCommandRequiresArgs(t *testing.T) {
	useTestApp(t, fetchertest.New())

	_, err := execute(t, "geocode")
	require.Error(t, err)
}

func TestScrapeCommandWritesSnapshot(t *testing.T) {
	dir := useTestApp(t, fetchertest.New())

	out, err := execute(t, "scrape", "--year", "2024", "--month", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "tournaments-2024-3.json: 0 tournaments")

	// #nosec G304 -- reading from the test temp directory.
	data, err := os.ReadFile(filepath.Join(dir, "tournaments-2024-3.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestScrapeCommandRejectsBadMonth(t *testing.T) {
	useTestApp(t, fetchertest.New())

	_, err := execute(t, "scrape", "--year", "2024", "--month", "13")
	require.ErrorContains(t, err, "--month must be between 1 and 12")
}

func TestRunCommandScrapesRange(t *testing.T) {
	dir := useTestApp(t, fetchertest.New())
	t.Setenv("START_DATE", "2024-01")
	t.Setenv("END_DATE", "2024-02")

	_, err := execute(t, "run")
	require.NoError(t, err)

	for _, name := range []string{"tournaments-2024-1.json", "tournaments-2024-2.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestRunCommandWithMetricsServer(t *testing.T) {
	useTestApp(t, fetchertest.New())

	_, err := execute(t, "run", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	useTestApp(t, fetchertest.New())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  timeout_seconds: 0\n"), 0o600))

	_, err := execute(t, "--config", path, "geocode", "Warszawa")
	require.ErrorContains(t, err, "http.timeout_seconds must be > 0")
}

func TestFailedCommandStillReleasesServices(t *testing.T) {
	useTestApp(t, fetchertest.New())

	_, sess, err := executeSession(t, "scrape", "--month", "13", "--metrics-addr", "127.0.0.1:0")
	require.ErrorContains(t, err, "--month must be between 1 and 12")
	assert.True(t, sess.closed)
	require.NotEmpty(t, sess.serverAddr)

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + sess.serverAddr + "/healthz")
	if err == nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)

	require.NoError(t, sess.Close())
}
