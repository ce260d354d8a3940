package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/radiovault/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func ptr(s string) *string { return &s }

func TestOpenReappliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	s.Close()

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CatalogStats{}, *stats)
}

func TestUpsertStationKeepsNameAndIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.UpsertStation(ctx, "Radio Paris", "http://stream.example/paris")
	require.NoError(t, err)
	id2, err := s.UpsertStation(ctx, "Paris Jazz", "http://stream.example/paris")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	st, err := s.GetStation(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Radio Paris", st.Name)
	assert.Equal(t, models.StatusUnchecked, st.Status)
	assert.False(t, st.HasLogo())

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Stations)
}

func TestCanonicalNamesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.GetOrCreateGenre(ctx, "Hip Hop")
	require.NoError(t, err)
	b, err := s.GetOrCreateGenre(ctx, "hip_hop")
	require.NoError(t, err)
	c, err := s.GetOrCreateGenre(ctx, " HIP-HOP ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	genres, err := s.ListGenres(ctx)
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "Hip Hop", genres[0].Name)
	assert.Equal(t, "hip-hop", genres[0].Slug)

	x, err := s.GetOrCreateCountry(ctx, "France")
	require.NoError(t, err)
	y, err := s.GetOrCreateCountry(ctx, "FRANCE")
	require.NoError(t, err)
	assert.Equal(t, x, y)

	_, err = s.GetOrCreateCountry(ctx, "  ")
	assert.Error(t, err)
}

func TestFillIfEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.UpsertStation(ctx, "Radio Paris", "http://stream.example/paris")
	require.NoError(t, err)
	france, err := s.GetOrCreateCountry(ctx, "France")
	require.NoError(t, err)
	italy, err := s.GetOrCreateCountry(ctx, "Italy")
	require.NoError(t, err)

	require.NoError(t, s.SetCountryIfEmpty(ctx, id, france))
	require.NoError(t, s.SetCountryIfEmpty(ctx, id, italy))
	require.NoError(t, s.SetCityIfEmpty(ctx, id, "Paris"))
	require.NoError(t, s.SetCityIfEmpty(ctx, id, "Lyon"))
	require.NoError(t, s.SetLogoHintIfEmpty(ctx, id, "http://img.example/a.png"))
	require.NoError(t, s.SetLogoHintIfEmpty(ctx, id, "http://img.example/b.png"))

	st, err := s.GetStation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, st.CountryID)
	assert.Equal(t, france, *st.CountryID)
	assert.Equal(t, "France", *st.CountryName)
	assert.Equal(t, "Paris", *st.City)
	assert.Equal(t, "http://img.example/a.png", *st.LogoHint)
}

func TestSetLogoAndStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.UpsertStation(ctx, "Radio Paris", "http://stream.example/paris")
	require.NoError(t, err)
	require.NoError(t, s.SetLogo(ctx, id, "http://img.example/one.png"))
	require.NoError(t, s.SetLogo(ctx, id, "http://img.example/two.png"))
	require.NoError(t, s.SetStatus(ctx, id, models.StatusOnline))

	st, err := s.GetStation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "http://img.example/two.png", *st.LogoURL)
	assert.Equal(t, models.StatusOnline, st.Status)

	assert.ErrorIs(t, s.SetLogo(ctx, 999, "x"), ErrNotFound)
	assert.ErrorIs(t, s.SetStatus(ctx, 999, models.StatusOffline), ErrNotFound)
	assert.Error(t, s.SetStatus(ctx, id, models.Status("bogus")))

	_, err = s.GetStation(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssociateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.UpsertStation(ctx, "Paris Jazz", "http://stream.example/paris")
	require.NoError(t, err)
	jazz, err := s.GetOrCreateGenre(ctx, "Jazz")
	require.NoError(t, err)
	require.NoError(t, s.Associate(ctx, id, jazz))
	require.NoError(t, s.Associate(ctx, id, jazz))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Associations)

	assert.Error(t, s.Associate(ctx, 999, jazz), "orphan station reference must be rejected")
	assert.Error(t, s.Associate(ctx, id, 999), "orphan genre reference must be rejected")
}

func seedCatalog(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	france, err := s.GetOrCreateCountry(ctx, "France")
	require.NoError(t, err)
	italy, err := s.GetOrCreateCountry(ctx, "Italy")
	require.NoError(t, err)
	jazz, err := s.GetOrCreateGenre(ctx, "Jazz")
	require.NoError(t, err)
	rock, err := s.GetOrCreateGenre(ctx, "Rock")
	require.NoError(t, err)

	for _, st := range []struct {
		name, url string
		country   int64
		genre     int64
	}{
		{"Zebra FM", "http://z.example/live", france, jazz},
		{"Alpha Radio", "http://a.example/live", france, rock},
		{"Roma 100%", "http://r.example/live", italy, jazz},
		{"alpha radio", "http://a2.example/live", 0, 0},
	} {
		id, err := s.UpsertStation(ctx, st.name, st.url)
		require.NoError(t, err)
		if st.country != 0 {
			require.NoError(t, s.SetCountryIfEmpty(ctx, id, st.country))
		}
		if st.genre != 0 {
			require.NoError(t, s.Associate(ctx, id, st.genre))
		}
	}
}

func names(stations []models.Station) []string {
	out := make([]string, len(stations))
	for i, st := range stations {
		out[i] = st.Name
	}
	return out
}

func TestListStationsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCatalog(t, s)

	all, err := s.ListStations(ctx, StationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Radio", "Roma 100%", "Zebra FM", "alpha radio"}, names(all))

	byCountry, err := s.ListStations(ctx, StationFilter{Country: ptr("france")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Radio", "Zebra FM"}, names(byCountry))
	assert.Equal(t, "France", *byCountry[0].CountryName)

	byBoth, err := s.ListStations(ctx, StationFilter{Country: ptr("France"), Genre: ptr("jazz")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zebra FM"}, names(byBoth))

	search, err := s.ListStations(ctx, StationFilter{Search: "ALPHA"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	literal, err := s.ListStations(ctx, StationFilter{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Roma 100%"}, names(literal))

	wildcard, err := s.ListStations(ctx, StationFilter{Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Roma 100%"}, names(wildcard))

	none, err := s.ListStations(ctx, StationFilter{Genre: ptr("Polka")})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestListStationsMissingLogo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCatalog(t, s)

	all, err := s.ListStations(ctx, StationFilter{})
	require.NoError(t, err)
	require.NoError(t, s.SetLogo(ctx, all[0].ID, "http://img.example/alpha.png"))

	missing, err := s.ListStations(ctx, StationFilter{MissingLogo: true})
	require.NoError(t, err)
	assert.Len(t, missing, len(all)-1)
	for _, st := range missing {
		assert.NotEqual(t, all[0].ID, st.ID)
	}
}

func TestCrossTaxonomyQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCatalog(t, s)

	countries, err := s.ListCountries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "France", countries[0].Name)

	genres, err := s.GenresForCountry(ctx, "France")
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, "Jazz", genres[0].Name)
	assert.Equal(t, "Rock", genres[1].Name)

	inJazz, err := s.CountriesForGenre(ctx, "jazz")
	require.NoError(t, err)
	require.Len(t, inJazz, 2)
	assert.Equal(t, "Italy", inJazz[1].Name)

	inRock, err := s.CountriesForGenre(ctx, "Rock")
	require.NoError(t, err)
	require.Len(t, inRock, 1)
	assert.Equal(t, "France", inRock[0].Name)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(w Writer) error {
		if _, err := w.UpsertStation(ctx, "Lost", "http://lost.example/"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.InTx(ctx, func(w Writer) error {
		_, err := w.UpsertStation(ctx, "Kept", "http://kept.example/")
		return err
	})
	require.NoError(t, err)

	all, err := s.ListStations(ctx, StationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kept"}, names(all))
}

func TestRecordSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.RecordSource(ctx, "file:///srv/playlists", "")
	require.NoError(t, err)
	b, err := s.RecordSource(ctx, "file:///srv/playlists", "europe")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "europe", sources[0].Folder)
	require.NotNil(t, sources[0].LastUpdated)
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "/tmp/a.db", SQLitePath("sqlite:///tmp/a.db"))
	assert.Equal(t, "a.db", SQLitePath("sqlite:a.db"))
	assert.Equal(t, "a.db", SQLitePath("a.db"))
	assert.True(t, IsPostgres("postgres://u@h/db"))
	assert.False(t, IsPostgres("catalog.db"))
}
