package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/store"
)

// ErrSweepRunning is returned when another sweep holds the lock.
var ErrSweepRunning = errors.New("logo sweep already running")

// Locker guards bulk sweeps. TryLock returns cache.ErrLocked when held.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

type localLocker struct {
	mu sync.Mutex
}

func (l *localLocker) TryLock(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, cache.ErrLocked
	}
	return l.mu.Unlock, nil
}

// Summary counts sweep outcomes.
type Summary struct {
	Total    int           `json:"total"`
	Existing int           `json:"existing"`
	ByHint   int           `json:"by_hint"`
	ByAPI    int           `json:"by_api"`
	ByScrape int           `json:"by_scrape"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Found is the number of newly resolved logos.
func (s Summary) Found() int {
	return s.ByHint + s.ByAPI + s.ByScrape
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	s.Total++
	switch {
	case o.State == StateResolved && o.Stage == StageExisting:
		s.Existing++
	case o.State == StateResolved && o.Stage == StageHint:
		s.ByHint++
	case o.State == StateResolved && o.Stage == StageAPI:
		s.ByAPI++
	case o.State == StateResolved && o.Stage == StageScrape:
		s.ByScrape++
	default:
		s.Failed++
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("scanned %s: existing %s, found %s (hint %s, api %s, scrape %s), failed %s in %s",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Existing)),
		humanize.Comma(int64(s.Found())), humanize.Comma(int64(s.ByHint)),
		humanize.Comma(int64(s.ByAPI)), humanize.Comma(int64(s.ByScrape)),
		humanize.Comma(int64(s.Failed)), s.Duration.Round(time.Second))
}

// Sweep walks every station sequentially, counting those that already have
// a logo and running the waterfall for the rest. report, when non-nil, is
// called after each station. Only one sweep runs at a time.
func (p *Pipeline) Sweep(ctx context.Context, report func(Outcome)) (Summary, error) {
	stations, err := p.catalog.ListStations(ctx, store.StationFilter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list stations: %w", err)
	}
	return p.sweep(ctx, stations, report)
}

// SweepIDs is Sweep restricted to the given stations. Unknown ids are
// counted as failed.
func (p *Pipeline) SweepIDs(ctx context.Context, ids []int64, report func(Outcome)) (Summary, error) {
	stations := make([]models.Station, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		st, err := p.catalog.GetStation(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return Summary{}, fmt.Errorf("get station %d: %w", id, err)
		}
		stations = append(stations, *st)
	}
	sum, err := p.sweep(ctx, stations, report)
	for _, id := range missing {
		o := Outcome{StationID: id, State: StateNoAttempt, Err: store.ErrNotFound}
		sum.Add(o)
		if report != nil {
			report(o)
		}
	}
	return sum, err
}

func (p *Pipeline) sweep(ctx context.Context, stations []models.Station, report func(Outcome)) (Summary, error) {
	unlock, err := p.lock.TryLock(ctx)
	if errors.Is(err, cache.ErrLocked) {
		return Summary{}, ErrSweepRunning
	}
	if err != nil {
		return Summary{}, fmt.Errorf("sweep lock: %w", err)
	}
	defer unlock()

	start := time.Now()
	var sum Summary
	for i := range stations {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
		o := p.Resolve(ctx, &stations[i])
		sum.Add(o)
		if o.Stage != StageExisting {
			log.Info().Int64("station", o.StationID).Str("name", o.Name).
				Str("state", string(o.State)).Str("stage", string(o.Stage)).
				Str("logo", o.LogoURL).Msgf("[%d/%d]", i+1, len(stations))
		}
		if report != nil {
			report(o)
		}
	}
	sum.Duration = time.Since(start)
	metrics.SweepRunsTotal.Inc()
	log.Info().Msg("logo sweep: " + sum.String())
	return sum, nil
}
