package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/server"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	pipeline := newPipeline(cfg, d)

	if d.redis != nil {
		go runSweepWorker(ctx, d.redis, pipeline)
	}

	if cfg.SweepSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.SweepSchedule, func() { scheduledSweep(ctx, pipeline) }); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info().Str("schedule", cfg.SweepSchedule).Msg("scheduled logo sweep enabled")
	}

	srv := server.New(d.store, cfg, pipeline, d.redis)
	return srv.ListenAndServe(ctx)
}

func scheduledSweep(ctx context.Context, p *resolve.Pipeline) {
	sum, err := p.Sweep(ctx, nil)
	if errors.Is(err, resolve.ErrSweepRunning) {
		log.Info().Msg("scheduled sweep skipped: another sweep is running")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("scheduled sweep")
		return
	}
	log.Info().Msg("scheduled sweep: " + sum.String())
}

// runSweepWorker continuously dequeues sweep jobs from Redis and runs them.
// It stops when ctx is cancelled (graceful shutdown).
func runSweepWorker(ctx context.Context, rds *cache.Redis, p *resolve.Pipeline) {
	log.Info().Msg("sweep worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweep worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, cache.SweepQueue, 5*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("sweep worker: dequeue")
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue // timeout, loop back to check ctx
		}

		log.Info().
			Int("stations", len(job.StationIDs)).
			Str("requested_by", job.RequestedBy).
			Time("requested_at", job.RequestedAt).
			Msg("sweep worker: processing job")

		var sum resolve.Summary
		if len(job.StationIDs) > 0 {
			sum, err = p.SweepIDs(ctx, job.StationIDs, nil)
		} else {
			sum, err = p.Sweep(ctx, nil)
		}
		if err != nil {
			log.Error().Err(err).Msg("sweep worker: sweep")
			continue
		}
		log.Info().Msg("sweep worker: " + sum.String())
	}
}
