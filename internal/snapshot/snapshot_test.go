package snapshot

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tournament-scraper/internal/fetcher/fetchertest"
	"github.com/JakeFAU/tournament-scraper/internal/storage/memory"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

func sample() *tournament.Tournament {
	t := tournament.New("chessarbiter", "ti_1234", 2024)
	t.SetDate("2024-03-09")
	t.Title = "Turniej <A> & B"
	t.Link = "http://www.chessarbiter.com/turnieje/2024/ti_1234/"
	t.City = "Kraków"
	t.Players = append(t.Players, tournament.Player{Name: "Kowalski Jan", LocalID: "123"})
	t.Geo = &tournament.Geo{City: "Kraków", Lat: 50.0614, Lng: 19.9366}
	return t
}

func TestFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "tournaments-2024-3.json", FileName(2024, 3))
	assert.Equal(t, "tournaments-2023-12.json", FileName(2023, 12))
}

func TestEncode(t *testing.T) {
	t.Parallel()

	noDate := tournament.New("chessmanager", "42", 2024)
	noDate.Players = nil

	data, err := Encode([]*tournament.Tournament{sample(), nil, noDate})
	require.NoError(t, err)

	want := `[
  {
    "id": "ti_1234",
    "year": 2024,
    "date": "2024-03-09",
    "title": "Turniej <A> & B",
    "link": "http://www.chessarbiter.com/turnieje/2024/ti_1234/",
    "city": "Kraków",
    "players": [
      {
        "name": "Kowalski Jan",
        "localID": "123"
      }
    ],
    "geo": {
      "city": "Kraków",
      "lat": 50.0614,
      "lng": 19.9366
    }
  },
  {
    "id": "42",
    "year": 2024,
    "date": null,
    "title": "",
    "link": "",
    "players": []
  }
]`
	assert.Equal(t, want, string(data))
	assert.Nil(t, noDate.Players, "input must not be mutated")
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	data, err := Encode([]*tournament.Tournament{sample()})
	require.NoError(t, err)
	list, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ti_1234", list[0].ID)
	assert.Equal(t, "2024-03-09", list[0].DateString())

	list, err = Decode([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = Decode([]byte("<html>"))
	require.Error(t, err)
}

func TestStoreWriteRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	store := NewStore(blobs, nil)

	ok, err := store.Exists(ctx, 2024, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := store.Read(ctx, 2024, 3)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, store.Write(ctx, 2024, 3, []*tournament.Tournament{sample()}))
	assert.Equal(t, []string{"tournaments-2024-3.json"}, blobs.Keys())

	ok, err = store.Exists(ctx, 2024, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err = store.Read(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kraków", list[0].City)
}

func TestMirrorFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote, err := Encode([]*tournament.Tournament{sample()})
	require.NoError(t, err)

	f := fetchertest.New().
		Add("https://mirror.test/tournaments-2024-3.json", string(remote)).
		AddStatus("https://mirror.test/tournaments-2024-4.json", http.StatusInternalServerError, "").
		Add("https://mirror.test/tournaments-2024-5.json", "<html>oops</html>").
		Fail("https://mirror.test/tournaments-2024-6.json")
	blobs := memory.NewBlobStore()
	mirror := NewMirror("https://mirror.test/", f, NewStore(blobs, nil), nil)

	ok, err := mirror.Fetch(ctx, 2024, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := blobs.GetObject(ctx, "tournaments-2024-3.json")
	require.NoError(t, err)
	assert.Equal(t, remote, got)

	ok, err = mirror.Fetch(ctx, 2024, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, month := range []int{4, 5, 6} {
		ok, err = mirror.Fetch(ctx, 2024, month)
		require.Error(t, err, "month %d", month)
		assert.False(t, ok)
	}
	assert.Equal(t, []string{"tournaments-2024-3.json"}, blobs.Keys())
}
