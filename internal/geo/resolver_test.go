package geo

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDefaultResolver(t *testing.T) *Resolver {
	t.Helper()
	cities, err := DefaultGazetteer()
	require.NoError(t, err)
	require.NotEmpty(t, cities)
	return NewResolver(cities, zap.NewNop())
}

func TestFindStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		city  string
		stage Stage
	}{
		{name: "primary name", input: "Warszawa", city: "Warszawa", stage: StageExact},
		{name: "case insensitive", input: "GDAŃSK", city: "Gdańsk", stage: StageExact},
		{name: "ascii name", input: "Krakow", city: "Kraków", stage: StageExact},
		{name: "alternate name", input: "Breslau", city: "Wrocław", stage: StageExact},
		{name: "trimmed", input: " .Nakło nad Notecią.) ", city: "Nakło nad Notecią", stage: StageExact},
		{name: "street address", input: "Warszawa, ul. Marszałkowska 12", city: "Warszawa", stage: StageToken},
		{name: "dash separated", input: "Gliwice-Sośnica", city: "Gliwice", stage: StageToken},
		{name: "typo", input: "Warzsawa", city: "Warszawa", stage: StageFuzzy},
		{name: "missing diacritic and typo", input: "Bialystock", city: "Białystok", stage: StageFuzzy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newDefaultResolver(t)
			g, stage := r.Lookup(tt.input)
			require.NotNil(t, g)
			assert.Equal(t, tt.city, g.City)
			assert.Equal(t, tt.stage, stage)
		})
	}
}

func TestFindMisses(t *testing.T) {
	t.Parallel()

	r := newDefaultResolver(t)
	assert.Nil(t, r.Find("Xyzqwert"))
	assert.Nil(t, r.Find(""))
	assert.Nil(t, r.Find(" ..() "))

	_, stage := r.Lookup("Xyzqwert")
	assert.Equal(t, StageMemo, stage)
	assert.Equal(t, Stats{Memo: 1, Miss: 1}, r.Stats())
}

func TestFindMemoizesSamePointer(t *testing.T) {
	t.Parallel()

	r := newDefaultResolver(t)
	first := r.Find("Warszawa")
	second := r.Find(" Warszawa. ")
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.InDelta(t, 52.22977, first.Lat, 1e-6)
	assert.InDelta(t, 21.01178, first.Lng, 1e-6)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Exact)
	assert.Equal(t, int64(1), stats.Memo)
	assert.Zero(t, stats.Fuzzy)
}

func TestFindConcurrent(t *testing.T) {
	t.Parallel()

	r := newDefaultResolver(t)
	inputs := []string{"Warszawa", "Krakow", "Danzig", "Warzsawa", "Nowhere at all"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Find(inputs[i%len(inputs)])
		}()
	}
	wg.Wait()

	assert.Same(t, r.Find("Danzig"), r.Find("Gdansk"))
	s := r.Stats()
	assert.Equal(t, int64(52), s.Memo+s.Exact+s.Token+s.Fuzzy+s.Miss)
}

func TestFirstEntryWinsOnCollision(t *testing.T) {
	t.Parallel()

	cities, err := LoadGazetteer(strings.NewReader(
		"1\tNowa Wieś\tNowa Wies\t\t50.0\t19.0\n" +
			"2\tNowa Wieś\tNowa Wies\t\t53.0\t17.0\n"))
	require.NoError(t, err)
	r := NewResolver(cities, nil)
	g := r.Find("nowa wies")
	require.NotNil(t, g)
	assert.InDelta(t, 50.0, g.Lat, 1e-9)
}

func TestFuzzyTieKeepsFirst(t *testing.T) {
	t.Parallel()

	r := NewResolver([]City{
		{City: "Abcd", Lat: 1},
		{City: "Abce", Lat: 2},
	}, nil)
	g, stage := r.Lookup("Abcf")
	require.NotNil(t, g)
	assert.Equal(t, StageFuzzy, stage)
	assert.Equal(t, "Abcd", g.City)

	assert.Nil(t, r.Find("Axyz"))
}

func TestTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Warszawa", "Marszałkowska"}, Tokens("Warszawa, ul. Marszałkowska 12"))
	assert.Equal(t, []string{"Bielsko-Biała", "Bielsko", "Biała"}, Tokens("Bielsko-Biała"))
	assert.Equal(t, []string{"Łódź"}, Tokens("Łódź 1/2"))
	assert.Empty(t, Tokens("ab 12"))
}

func TestLoadGazetteer(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"1\t\"Warszawa\"\t\"Warszawa\"\t\"Warsaw,Varsovie\"\t\"52.2\"\t\"21.0\"",
		"\tHeaderless\tHeaderless\t\t1\t1",
		"3\tShort\tShort",
		"4\tBad\tBad\t\tnot-a-number\t1",
		"5\tSopot\tSopot\t\t54.4\t18.5\r",
		"",
	}, "\n")
	cities, err := LoadGazetteer(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, City{City: "Warszawa", ASCII: "Warszawa", Alt: []string{"Warsaw", "Varsovie"}, Lat: 52.2, Lng: 21.0}, cities[0])
	assert.Equal(t, "Sopot", cities[1].City)
	assert.Nil(t, cities[1].Alt)
}

func TestLoadGazetteerFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cities.tsv")
	require.NoError(t, os.WriteFile(path, []byte("1\tSopot\tSopot\tZoppot\t54.4\t18.5\n"), 0o600))
	cities, err := LoadGazetteerFile(path)
	require.NoError(t, err)
	require.Len(t, cities, 1)

	_, err = LoadGazetteerFile(filepath.Join(t.TempDir(), "missing.tsv"))
	require.Error(t, err)
}
