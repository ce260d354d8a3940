package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/handoff"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/probe"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/service"
	"github.com/voyagen/radiovault/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.redis != nil {
		resp["redis"] = "ok"
		if err := s.redis.Ping(r.Context()); err != nil {
			resp["status"], resp["redis"] = "degraded", err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- taxonomy handlers ---

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.store.ListCountries(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if countries == nil {
		countries = []models.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

func (s *Server) handleGenresForCountry(w http.ResponseWriter, r *http.Request) {
	genres, err := s.store.GenresForCountry(r.Context(), r.PathValue("name"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.store.ListGenres(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (s *Server) handleCountriesForGenre(w http.ResponseWriter, r *http.Request) {
	countries, err := s.store.CountriesForGenre(r.Context(), r.PathValue("name"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if countries == nil {
		countries = []models.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

// --- station handlers ---

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.StationFilter{Search: q.Get("search")}
	if v := q.Get("country"); v != "" {
		filter.Country = &v
	}
	if v := q.Get("genre"); v != "" {
		filter.Genre = &v
	}
	if v := q.Get("missing_logo"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid missing_logo: %s (use true or false)", v))
			return
		}
		filter.MissingLogo = b
	}

	limit, offset := 50, 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid offset: %s", v))
			return
		}
		offset = n
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	stations, err := s.store.ListStations(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	total := len(stations)
	lo := min(offset, total)
	page := stations[lo:min(lo+limit, total)]
	for i := range page {
		s.overlayStatus(&page[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stations": page,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookupStation(w, r)
	if !ok {
		return
	}
	s.overlayStatus(st)
	writeJSON(w, http.StatusOK, st)
}

// lookupStation loads the {id} station, writing the error response itself
// when it cannot.
func (s *Server) lookupStation(w http.ResponseWriter, r *http.Request) (*models.Station, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return nil, false
	}
	st, err := s.store.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The catalog was rebuilt without it; stop reporting its probes.
			s.statuses.Forget(id)
			writeErr(w, http.StatusNotFound, fmt.Errorf("station %d not found", id))
			return nil, false
		}
		writeErr(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return st, true
}

// overlayStatus replaces the stored status with the latest probe seen by this process.
func (s *Server) overlayStatus(st *models.Station) {
	if status, ok := s.statuses.Get(st.ID); ok {
		st.Status = status
	}
}

type logoResponse struct {
	resolve.Outcome
	Error string `json:"error,omitempty"`
}

func newLogoResponse(o resolve.Outcome) logoResponse {
	resp := logoResponse{Outcome: o}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}

// handleResolveLogo starts lazy resolution. A stored logo is returned at
// once; otherwise the request is accepted and runs in the background, or
// with ?wait=true the outcome is returned when the waterfall finishes.
func (s *Server) handleResolveLogo(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookupStation(w, r)
	if !ok {
		return
	}
	if st.HasLogo() {
		writeJSON(w, http.StatusOK, newLogoResponse(resolve.Outcome{
			StationID: st.ID, Name: st.Name, State: resolve.StateResolved, Stage: resolve.StageExisting, LogoURL: *st.LogoURL,
		}))
		return
	}

	outcome := s.pipeline.Request(r.Context(), st.ID)
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"station_id": st.ID,
			"state":      resolve.StateNoAttempt,
			"pending":    true,
		})
		return
	}

	select {
	case o := <-outcome:
		writeJSON(w, http.StatusOK, newLogoResponse(o))
	case <-r.Context().Done():
	}
}

// handleProbeStation checks the stream in the background. The station is
// shown as checking until the newest probe for it reports; results of
// superseded probes are dropped.
func (s *Server) handleProbeStation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookupStation(w, r)
	if !ok {
		return
	}

	done := s.probe(st)
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"station_id": st.ID,
			"status":     models.StatusChecking,
		})
		return
	}

	select {
	case res := <-done:
		writeJSON(w, http.StatusOK, map[string]any{
			"station_id": st.ID,
			"status":     s.statuses.Slot(st.ID).Load(),
			"result":     res,
		})
	case <-r.Context().Done():
	}
}

func (s *Server) probe(st *models.Station) <-chan probe.Result {
	slot := s.statuses.Slot(st.ID)
	ticket := slot.Bind(models.StatusChecking)
	results := s.prober.ProbeAsync(context.Background(), st.URL)

	done := make(chan probe.Result, 1)
	go func() {
		defer close(done)
		res, applied := handoff.Deliver(context.Background(), slot, ticket, results,
			func(r probe.Result) models.Status { return r.Status })
		// A probe started after Apply owns the stored status too.
		if applied && s.cfg.PersistProbeStatus && slot.Holds(ticket) {
			if err := s.store.SetStatus(context.Background(), st.ID, res.Status); err != nil {
				log.Error().Err(err).Int64("station", st.ID).Msg("persist probe status")
			}
		}
		done <- res
	}()
	return done
}

// handleListStatuses returns the latest probe status of every station probed
// by this process, keyed by station id.
func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statuses.Snapshot())
}

type sweepRequest struct {
	StationIDs []int64 `json:"station_ids"`
}

// handleSweep queues a bulk sweep for the worker when Redis is configured,
// and otherwise runs it in the background of this process.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	if s.redis != nil {
		if cache.IsLocked(r.Context(), s.redis, cache.SweepLock) {
			writeErr(w, http.StatusConflict, resolve.ErrSweepRunning)
			return
		}
		job := cache.SweepJob{StationIDs: req.StationIDs, RequestedBy: r.RemoteAddr, RequestedAt: time.Now()}
		if err := cache.Enqueue(r.Context(), s.redis, cache.SweepQueue, job); err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("enqueue sweep: %w", err))
			return
		}
		n, _ := cache.Len(r.Context(), s.redis, cache.SweepQueue)
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "queue_length": n})
		return
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx := context.WithoutCancel(r.Context())
		var sum resolve.Summary
		var err error
		if len(req.StationIDs) > 0 {
			sum, err = s.pipeline.SweepIDs(ctx, req.StationIDs, nil)
		} else {
			sum, err = s.pipeline.Sweep(ctx, nil)
		}
		if err != nil {
			log.Warn().Err(err).Msg("sweep")
			return
		}
		log.Info().Msg("sweep: " + sum.String())
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": false, "started": true})
}

// --- source handlers ---

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

type addSourceRequest struct {
	URL    string `json:"url"`
	Folder string `json:"folder"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.URL == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}
	if u, err := url.ParseRequestURI(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url must be a valid http or https URL"))
		return
	}

	opts := service.Options{IncludeUnclassified: s.cfg.IncludeUnclassified}
	rep, err := service.IngestRemote(r.Context(), s.store, s.fetcher, req.URL, req.Folder, s.cfg.Timeout, opts)
	if err != nil {
		var se *httpfetch.StatusError
		if errors.As(err, &se) {
			writeErr(w, http.StatusBadGateway, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("ingest: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}
