package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/config"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/logger"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/store"
)

// sweepLockTTL bounds how long a crashed sweeper can block the next one.
const sweepLockTTL = 12 * time.Hour

const usage = `usage: radiovault <command> [flags]

commands:
  serve    run the HTTP API (optional cron sweep and Redis sweep worker)
  ingest   build the catalog from the playlist tree
  sweep    resolve logos for every station without one
  probe    check whether a stream URL is online
  index    ingest genre listings from the online index

Run "radiovault <command> -h" for command flags.
`

type command func(ctx context.Context, args []string) error

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	commands := map[string]command{
		"serve":  runServe,
		"ingest": runIngest,
		"sweep":  runSweep,
		"probe":  runProbe,
		"index":  runIndex,
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the YAML file when path is set and the environment
// otherwise, then installs the logger at the configured level.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.Setup(cfg.LogLevel)
	return cfg, nil
}

// deps are the shared runtime dependencies of the catalog commands.
type deps struct {
	store store.Store
	redis *cache.Redis // nil when REDIS_URL is not set
}

func (d *deps) Close() {
	d.store.Close()
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// openDeps migrates and opens the catalog, wrapping it in the Redis cache
// when REDIS_URL is configured.
func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	catalog, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	d := &deps{store: catalog}
	if cfg.RedisURL == "" {
		log.Info().Msg("redis disabled (REDIS_URL not set)")
		return d, nil
	}

	rds, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	d.redis = rds
	d.store = store.NewCachedStore(catalog, rds)
	log.Info().Msg("redis connected (caching enabled)")
	return d, nil
}

// newPipeline builds the logo waterfall with the default strategies. With
// Redis the sweep lock is shared by every process using the same server.
func newPipeline(cfg *config.Config, d *deps) *resolve.Pipeline {
	f := httpfetch.New(cfg.UserAgent)
	p := resolve.New(d.store, resolve.DefaultStrategies(f, resolve.Options{
		LookupEndpoint: cfg.LookupEndpoint,
		LookupTimeout:  cfg.LookupTimeout,
		ScrapeTimeout:  cfg.ScrapeTimeout,
		PoliteDelay:    cfg.PoliteDelay,
	})...)
	if d.redis != nil {
		p.UseLocker(cache.NewLocker(d.redis, cache.SweepLock, sweepLockTTL))
	}
	return p
}
