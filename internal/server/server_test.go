package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/radiovault/internal/config"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/store"
)

type fixture struct {
	srv   *Server
	store store.Store
	ids   map[string]int64
}

// newFixture seeds a SQLite catalog:
//
//	Alpha  France  Jazz  hint
//	Beta   France  Rock  logo
//	Gamma  Italy   Jazz  -
func newFixture(t *testing.T, streamURL string) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ids := map[string]int64{}
	err = s.InTx(ctx, func(w store.Writer) error {
		france, err := w.GetOrCreateCountry(ctx, "France")
		require.NoError(t, err)
		italy, err := w.GetOrCreateCountry(ctx, "Italy")
		require.NoError(t, err)
		jazz, err := w.GetOrCreateGenre(ctx, "Jazz")
		require.NoError(t, err)
		rock, err := w.GetOrCreateGenre(ctx, "Rock")
		require.NoError(t, err)

		seed := []struct {
			name, url      string
			country, genre int64
		}{
			{"Alpha", streamURL + "/alpha", france, jazz},
			{"Beta", streamURL + "/beta", france, rock},
			{"Gamma", streamURL + "/gamma", italy, jazz},
		}
		for _, st := range seed {
			id, err := w.UpsertStation(ctx, st.name, st.url)
			require.NoError(t, err)
			require.NoError(t, w.SetCountryIfEmpty(ctx, id, st.country))
			require.NoError(t, w.Associate(ctx, id, st.genre))
			ids[st.name] = id
		}
		require.NoError(t, w.SetLogoHintIfEmpty(ctx, ids["Alpha"], "http://img.example/alpha.png"))
		return w.SetLogo(ctx, ids["Beta"], "http://img.example/beta.png")
	})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.PersistProbeStatus = true
	p := resolve.New(s, resolve.Hint{})
	return &fixture{srv: New(s, cfg, p, nil), store: s, ids: ids}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func streamServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gamma" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthAndStats(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.CatalogStats](t, rec)
	assert.EqualValues(t, 3, st.Stations)
	assert.EqualValues(t, 2, st.Countries)
	assert.EqualValues(t, 2, st.Genres)
}

func TestTaxonomyRoutes(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	countries := decode[[]models.Country](t, f.do(t, http.MethodGet, "/api/countries", ""))
	require.Len(t, countries, 2)
	assert.Equal(t, "France", countries[0].Name)

	genres := decode[[]models.Genre](t, f.do(t, http.MethodGet, "/api/countries/italy/genres", ""))
	require.Len(t, genres, 1)
	assert.Equal(t, "Jazz", genres[0].Name)

	byGenre := decode[[]models.Country](t, f.do(t, http.MethodGet, "/api/genres/Jazz/countries", ""))
	assert.Len(t, byGenre, 2)

	rec := f.do(t, http.MethodGet, "/api/genres/Polka/countries", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

type stationPage struct {
	Stations []models.Station `json:"stations"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

func TestListStations(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	page := decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?country=France&genre=jazz", ""))
	require.Len(t, page.Stations, 1)
	assert.Equal(t, "Alpha", page.Stations[0].Name)

	page = decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?search=MM", ""))
	require.Len(t, page.Stations, 1)
	assert.Equal(t, "Gamma", page.Stations[0].Name)

	page = decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?limit=2&offset=1", ""))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Stations, 2)
	assert.Equal(t, "Beta", page.Stations[0].Name)

	page = decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?offset=99", ""))
	assert.Empty(t, page.Stations)

	page = decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?missing_logo=true", ""))
	assert.Len(t, page.Stations, 2)

	rec := f.do(t, http.MethodGet, "/api/stations?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Detail, "invalid limit")
}

func TestGetStation(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodGet, "/api/stations/"+itoa(f.ids["Beta"]), "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.Station](t, rec)
	assert.Equal(t, "Beta", st.Name)
	assert.Equal(t, "France", *st.CountryName)
	assert.Equal(t, models.StatusUnchecked, st.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/stations/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/stations/abc", "").Code)
}

func TestResolveLogo(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Beta"])+"/logo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	existing := decode[logoResponse](t, rec)
	assert.Equal(t, resolve.StageExisting, existing.Stage)

	rec = f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Alpha"])+"/logo?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[logoResponse](t, rec)
	assert.Equal(t, resolve.StateResolved, got.State)
	assert.Equal(t, resolve.StageHint, got.Stage)
	assert.Equal(t, "http://img.example/alpha.png", got.LogoURL)

	st, err := f.store.GetStation(context.Background(), f.ids["Alpha"])
	require.NoError(t, err)
	assert.Equal(t, "http://img.example/alpha.png", *st.LogoURL)

	rec = f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Gamma"])+"/logo?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resolve.StateExhausted, decode[logoResponse](t, rec).State)

	rec = f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Gamma"])+"/logo", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/stations/999/logo", "").Code)
}

func TestProbeStation(t *testing.T) {
	streams := streamServer(t)
	f := newFixture(t, streams.URL)

	rec := f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Alpha"])+"/probe?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "online", body["status"])

	st, err := f.store.GetStation(context.Background(), f.ids["Alpha"])
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, st.Status)

	rec = f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Gamma"])+"/probe?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "offline", decode[map[string]any](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/stations/"+itoa(f.ids["Gamma"]), "")
	assert.Equal(t, models.StatusOffline, decode[models.Station](t, rec).Status)
}

func TestStatusesListAndForget(t *testing.T) {
	streams := streamServer(t)
	f := newFixture(t, streams.URL)

	for _, name := range []string{"Alpha", "Gamma"} {
		rec := f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids[name])+"/probe?wait=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	// A slot left over from a station the rebuilt catalog no longer has.
	f.srv.statuses.Slot(999).Bind(models.StatusOnline)

	rec := f.do(t, http.MethodGet, "/api/statuses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]models.Status{
		itoa(f.ids["Alpha"]): models.StatusOnline,
		itoa(f.ids["Gamma"]): models.StatusOffline,
		"999":                models.StatusOnline,
	}, decode[map[string]models.Status](t, rec))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/stations/999", "").Code)

	rec = f.do(t, http.MethodGet, "/api/statuses", "")
	got := decode[map[string]models.Status](t, rec)
	assert.NotContains(t, got, "999")
	assert.Len(t, got, 2)
}

func TestProbeAcceptedShowsChecking(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })
	f := newFixture(t, srv.URL)

	rec := f.do(t, http.MethodPost, "/api/stations/"+itoa(f.ids["Beta"])+"/probe", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stations/"+itoa(f.ids["Beta"]), "")
	assert.Equal(t, models.StatusChecking, decode[models.Station](t, rec).Status)
}

func TestSweepInProcess(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodPost, "/api/logos/sweep", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.srv.Wait()

	st, err := f.store.GetStation(context.Background(), f.ids["Alpha"])
	require.NoError(t, err)
	require.NotNil(t, st.LogoURL)

	rec = f.do(t, http.MethodPost, "/api/logos/sweep", `{"station_ids": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSource(t *testing.T) {
	playlists := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/de.m3u" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:-1,Delta\nhttp://delta.example/\n"))
	}))
	t.Cleanup(playlists.Close)
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodPost, "/api/sources", `{"url": "`+playlists.URL+`/de.m3u", "folder": "europe"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["stations"])

	page := decode[stationPage](t, f.do(t, http.MethodGet, "/api/stations?country=Germany", ""))
	require.Len(t, page.Stations, 1)
	assert.Equal(t, "Delta", page.Stations[0].Name)

	sources := decode[[]models.Source](t, f.do(t, http.MethodGet, "/api/sources", ""))
	require.Len(t, sources, 1)
	assert.Equal(t, "europe", sources[0].Folder)

	assert.Equal(t, http.StatusBadGateway,
		f.do(t, http.MethodPost, "/api/sources", `{"url": "`+playlists.URL+`/missing.m3u"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/sources", `{"url": "ftp://x/y.m3u"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/sources", `{}`).Code)
}

func TestMiddlewareAndDocs(t *testing.T) {
	f := newFixture(t, "http://stream.example")

	rec := f.do(t, http.MethodOptions, "/api/stations", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	f.do(t, http.MethodGet, "/api/health", "")
	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "radiovault_http_requests_total")

	rec = f.do(t, http.MethodGet, "/api/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = f.do(t, http.MethodGet, "/api/docs/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi:")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
