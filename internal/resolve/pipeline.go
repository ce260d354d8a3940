// Package resolve finds artwork for stations that have none, by running an
// ordered waterfall of strategies and persisting the first success.
package resolve

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/store"
	"golang.org/x/sync/singleflight"
)

// Stage names a waterfall step.
type Stage string

const (
	StageExisting Stage = "existing" // logo already stored, pipeline skipped
	StageHint     Stage = "hint"
	StageAPI      Stage = "api"
	StageScrape   Stage = "scrape"
)

// State is a station's position in the resolution state machine:
// no_attempt -> hint_checked -> api_checked -> scrape_checked -> resolved | exhausted.
type State string

const (
	StateNoAttempt     State = "no_attempt"
	StateHintChecked   State = "hint_checked"
	StateAPIChecked    State = "api_checked"
	StateScrapeChecked State = "scrape_checked"
	StateResolved      State = "resolved"
	StateExhausted     State = "exhausted"
)

// checked is the state reached after the stage failed.
func (s Stage) checked() State {
	switch s {
	case StageHint:
		return StateHintChecked
	case StageAPI:
		return StateAPIChecked
	case StageScrape:
		return StateScrapeChecked
	}
	return State(string(s) + "_checked")
}

// Outcome is the terminal result of one resolution. Exhausted is a
// non-finding, not an error; Err is set only when the catalog failed or
// the run was cancelled, and State then records how far it got.
type Outcome struct {
	StationID int64  `json:"station_id"`
	Name      string `json:"name,omitempty"`
	State     State  `json:"state"`
	Stage     Stage  `json:"stage,omitempty"`
	LogoURL   string `json:"logo_url,omitempty"`
	Err       error  `json:"-"`
}

// Catalog is the part of the store the pipeline needs.
type Catalog interface {
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	ListStations(ctx context.Context, filter store.StationFilter) ([]models.Station, error)
	SetLogo(ctx context.Context, stationID int64, url string) error
}

// Pipeline runs the waterfall. It is safe for concurrent use; bulk sweeps
// are serialized by its Locker.
type Pipeline struct {
	catalog    Catalog
	strategies []Strategy
	lock       Locker
	group      singleflight.Group
}

// New returns a Pipeline trying strategies in order, with an in-process sweep lock.
func New(c Catalog, strategies ...Strategy) *Pipeline {
	return &Pipeline{catalog: c, strategies: strategies, lock: &localLocker{}}
}

// UseLocker replaces the sweep lock, e.g. with a Redis lock shared by replicas.
func (p *Pipeline) UseLocker(l Locker) {
	p.lock = l
}

// Resolve runs the waterfall for st. A station with a stored logo
// short-circuits without invoking any strategy. On success st.LogoURL is
// updated in place.
func (p *Pipeline) Resolve(ctx context.Context, st *models.Station) Outcome {
	out := Outcome{StationID: st.ID, Name: st.Name, State: StateNoAttempt}
	if st.HasLogo() {
		out.State, out.Stage, out.LogoURL = StateResolved, StageExisting, *st.LogoURL
		return out
	}

	for _, s := range p.strategies {
		logo, err := p.attempt(ctx, s, st)
		if err == nil && logo != "" {
			if err := p.catalog.SetLogo(ctx, st.ID, logo); err != nil {
				log.Error().Err(err).Int64("station", st.ID).Msg("store logo failed")
				out.Err = err
				return out
			}
			st.LogoURL = &logo
			out.State, out.Stage, out.LogoURL = StateResolved, s.Stage(), logo
			metrics.LogoResolutionsTotal.WithLabelValues(string(s.Stage()), string(StateResolved)).Inc()
			return out
		}
		out.State = s.Stage().checked()
		if ctx.Err() != nil {
			out.Err = ctx.Err()
			return out
		}
		if errors.Is(err, ErrNoLogo) {
			log.Debug().Int64("station", st.ID).Str("stage", string(s.Stage())).Msg("no logo")
		} else {
			log.Debug().Err(err).Int64("station", st.ID).Str("stage", string(s.Stage())).Msg("strategy failed")
		}
	}

	out.State = StateExhausted
	metrics.LogoResolutionsTotal.WithLabelValues("none", string(StateExhausted)).Inc()
	return out
}

func (p *Pipeline) attempt(ctx context.Context, s Strategy, st *models.Station) (string, error) {
	if t := s.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		metrics.LogoStrategyDuration.WithLabelValues(string(s.Stage())).Observe(time.Since(start).Seconds())
	}()
	return s.Resolve(ctx, st)
}

// ResolveID loads the station and resolves it.
func (p *Pipeline) ResolveID(ctx context.Context, id int64) Outcome {
	st, err := p.catalog.GetStation(ctx, id)
	if err != nil {
		return Outcome{StationID: id, State: StateNoAttempt, Err: err}
	}
	return p.Resolve(ctx, st)
}

// Request resolves one station in the background and delivers the outcome
// on the returned channel, which then closes. Concurrent requests for the
// same station share one run, which is detached from ctx's cancellation.
func (p *Pipeline) Request(ctx context.Context, id int64) <-chan Outcome {
	out := make(chan Outcome, 1)
	res := p.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return p.ResolveID(context.WithoutCancel(ctx), id), nil
	})
	go func() {
		defer close(out)
		r := <-res
		out <- r.Val.(Outcome)
	}()
	return out
}
