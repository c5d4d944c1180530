package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tournament-scraper/internal/calendar"
	"github.com/JakeFAU/tournament-scraper/internal/clock"
	"github.com/JakeFAU/tournament-scraper/internal/source"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

type stubMirror struct {
	mu      sync.Mutex
	present map[string]bool
	fail    map[string]bool
	calls   []string
}

func (m *stubMirror) Fetch(_ context.Context, year, month int) (bool, error) {
	key := fmt.Sprintf("%d-%d", year, month)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, key)
	if m.fail[key] {
		return false, errors.New("mirror unavailable")
	}
	return m.present[key], nil
}

var march2024 = clock.Fixed(time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC))

func TestPlanMirrorWindow(t *testing.T) {
	t.Parallel()

	plan := Plan{MonthsAhead: 6, MonthsBack: 66}
	window := plan.MirrorWindow(calendar.Month{Year: 2024, Month: 3})
	require.Len(t, window, 66)
	assert.Equal(t, calendar.Month{Year: 2024, Month: 9}, window[0])
	assert.Equal(t, calendar.Month{Year: 2024, Month: 8}, window[1])
	assert.Equal(t, calendar.Month{Year: 2019, Month: 4}, window[65])

	assert.Empty(t, Plan{MonthsAhead: 1}.MirrorWindow(calendar.Month{Year: 2024, Month: 3}))
}

func TestBatchMirrorOnly(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	src := &stubSource{name: "a", build: records("a", "1")}
	mirror := &stubMirror{
		present: map[string]bool{"2024-4": true, "2024-3": true},
		fail:    map[string]bool{"2024-2": true},
	}
	b := NewBatch(New([]source.Source{src}, nil, store, nil), mirror, march2024, nil)

	res, err := b.Run(context.Background(), Plan{MonthsAhead: 1, MonthsBack: 4})
	require.NoError(t, err)
	_, err = uuid.Parse(res.RunID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Mirrored)
	assert.Equal(t, 1, res.MirrorMissing)
	assert.Equal(t, 1, res.MirrorFailed)
	assert.Empty(t, res.Scraped)
	assert.Empty(t, src.Calls())

	calls := append([]string(nil), mirror.calls...)
	sort.Strings(calls)
	assert.Equal(t, []string{"2024-1", "2024-2", "2024-3", "2024-4"}, calls)
}

func TestBatchScrapesRangeNewestFirst(t *testing.T) {
	t.Parallel()

	store, blobs := newStore()
	src := &stubSource{name: "a", build: records("a", "1")}
	b := NewBatch(New([]source.Source{src}, nil, store, nil), nil, march2024, nil)

	res, err := b.Run(context.Background(), Plan{
		Scrape: true,
		Start:  calendar.Month{Year: 2023, Month: 11},
		End:    calendar.Month{Year: 2024, Month: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-1", "2023-12", "2023-11"}, src.Calls())
	require.Len(t, res.Scraped, 3)
	assert.Equal(t, []string{
		"tournaments-2023-11.json",
		"tournaments-2023-12.json",
		"tournaments-2024-1.json",
	}, blobs.Keys())
}

func TestBatchSharesDeduperAcrossMonths(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	// The same (year, id) surfaces in two different months.
	src := &stubSource{name: "a", build: func(year, _ int) []*tournament.Tournament {
		return []*tournament.Tournament{tournament.New("a", "77", year)}
	}}
	b := NewBatch(New([]source.Source{src}, nil, store, nil), nil, march2024, nil)

	res, err := b.Run(context.Background(), Plan{
		Scrape: true,
		Start:  calendar.Month{Year: 2024, Month: 1},
		End:    calendar.Month{Year: 2024, Month: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.Scraped, 2)
	assert.Equal(t, 1, res.Scraped[0].Written)
	assert.Equal(t, 1, res.Scraped[1].Duplicates)
	assert.Empty(t, readMonth(t, store, 2024, 1))
}

func TestBatchSkipExisting(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	require.NoError(t, store.Write(context.Background(), 2024, 2, nil))
	src := &stubSource{name: "a", build: records("a", "1")}
	b := NewBatch(New([]source.Source{src}, nil, store, nil), nil, march2024, nil)

	res, err := b.Run(context.Background(), Plan{
		Scrape:       true,
		Start:        calendar.Month{Year: 2024, Month: 1},
		End:          calendar.Month{Year: 2024, Month: 2},
		SkipExisting: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"2024-1"}, src.Calls())
	assert.Empty(t, readMonth(t, store, 2024, 2))
}

func TestBatchContinuesAfterFailedMonth(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	src := &stubSource{name: "a", build: records("a", "1")}
	o := New([]source.Source{src}, nil, failingStore{Store: store, failMonth: 2}, nil)
	b := NewBatch(o, nil, march2024, nil)

	res, err := b.Run(context.Background(), Plan{
		Scrape: true,
		Start:  calendar.Month{Year: 2024, Month: 1},
		End:    calendar.Month{Year: 2024, Month: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Scraped, 2)
	assert.Equal(t, 3, res.Scraped[0].Month)
	assert.Equal(t, 1, res.Scraped[1].Month)
}

func TestBatchCanceled(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	src := &stubSource{name: "a", build: records("a", "1")}
	b := NewBatch(New([]source.Source{src}, nil, store, nil), nil, march2024, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Run(ctx, Plan{
		Scrape: true,
		Start:  calendar.Month{Year: 2024, Month: 1},
		End:    calendar.Month{Year: 2024, Month: 3},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.Calls())
}
