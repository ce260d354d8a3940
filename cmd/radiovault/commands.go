package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/voyagen/radiovault/internal/config"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/indexsite"
	"github.com/voyagen/radiovault/internal/logger"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/probe"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/service"
	"github.com/voyagen/radiovault/internal/taxonomy"
)

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	configPath := fs.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	root := fs.String("root", "", "Playlist tree to ingest (default SOURCE_ROOT)")
	includeUnclassified := fs.Bool("include-unclassified", false, "Ingest playlists with no country or genre as unlabelled stations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *root == "" {
		*root = cfg.SourceRoot
	}

	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	rep, err := service.IngestTree(ctx, d.store, *root, service.Options{
		IncludeUnclassified: *includeUnclassified || cfg.IncludeUnclassified,
	})
	if err != nil {
		return err
	}
	fmt.Println(rep.String())
	if st, err := d.store.Stats(ctx); err == nil {
		fmt.Printf("catalog: %d stations, %d countries, %d genres\n", st.Stations, st.Countries, st.Genres)
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	quiet := fs.Bool("q", false, "Print only the summary")
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

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	report := func(o resolve.Outcome) {
		if *quiet || o.Stage == resolve.StageExisting {
			return
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.StationID, o.Name, o.State, o.Stage, o.LogoURL)
		_ = tw.Flush()
	}
	sum, err := newPipeline(cfg, d).Sweep(ctx, report)
	if err != nil {
		return err
	}
	fmt.Println(sum.String())
	return nil
}

func runProbe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	configPath := fs.String("config", "", "Optional config file path (YAML); else use env")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one stream URL, got %d arguments", fs.NArg())
	}

	// The probe needs no catalog, so a missing DATABASE_URL is fine here.
	cfg, err := loadConfig(*configPath)
	if errors.Is(err, config.ErrMissingDatabaseURL) {
		cfg, err = config.Defaults(), nil
		logger.Setup(cfg.LogLevel)
	}
	if err != nil {
		return err
	}

	res := probe.New(cfg.ProbeTimeout).Probe(ctx, fs.Arg(0))
	fmt.Printf("%s\t%s\tHTTP %d\t%s\n", res.URL, res.Status, res.StatusCode, res.Latency.Round(time.Millisecond))
	if res.Status != models.StatusOnline {
		return fmt.Errorf("stream is %s", res.Status)
	}
	return nil
}

func runIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	configPath := fs.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	genres := fs.String("genres", "", "Comma-separated genres to ingest (default: the whole genre vocabulary)")
	baseURL := fs.String("base-url", "", "Index site base URL (default INDEX_BASE_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *baseURL == "" {
		*baseURL = cfg.IndexBaseURL
	}
	list := taxonomy.DefaultGenres
	if *genres != "" {
		list = strings.Split(*genres, ",")
	}

	idx, err := indexsite.New(*baseURL, httpfetch.New(cfg.UserAgent), cfg.Timeout, cfg.PoliteDelay)
	if err != nil {
		return err
	}
	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	rep, err := service.IngestIndex(ctx, d.store, idx, list, service.Options{})
	if err != nil {
		return err
	}
	fmt.Println(rep.String())
	return nil
}
