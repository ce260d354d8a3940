package service

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/indexsite"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/playlist"
	"github.com/voyagen/radiovault/internal/store"
	"github.com/voyagen/radiovault/internal/taxonomy"
)

// IngestRemote fetches one playlist URL and merges it like a tree file,
// classifying it by the last path element of the URL. Unlike tree files a
// remote playlist is merged even when unclassified, since it was named
// explicitly. The URL is recorded as a source under folder.
func IngestRemote(ctx context.Context, s store.Store, f httpfetch.Fetcher, playlistURL, folder string, timeout time.Duration, opts Options) (Report, error) {
	if playlistURL == "" {
		return Report{}, fmt.Errorf("playlist URL is required")
	}
	u, err := url.Parse(playlistURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Report{}, fmt.Errorf("playlist URL %q: must be http(s)", playlistURL)
	}

	resp, err := httpfetch.GetOK(ctx, f, playlistURL, timeout)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return Report{Failed: 1}, fmt.Errorf("fetch: %w", err)
	}

	name := path.Base(u.Path)
	labels := opts.classifier().Classify(name)
	malformed := 0
	entries := playlist.ParseWithSkips(resp.Body, playlist.Detect(name, resp.Body), func(sk playlist.Skip) {
		malformed++
		metrics.IngestMalformedEntries.Inc()
		log.Debug().Str("url", playlistURL).Int("line", sk.Line).Str("reason", sk.Reason).Msg("malformed entry")
	})
	n, err := merge(ctx, s, labels, entries)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return Report{Failed: 1, Malformed: malformed}, fmt.Errorf("merge: %w", err)
	}
	metrics.IngestFilesTotal.WithLabelValues("ingested").Inc()

	if _, err := s.RecordSource(ctx, playlistURL, folder); err != nil {
		return Report{Files: 1, Stations: n, Malformed: malformed}, fmt.Errorf("RecordSource: %w", err)
	}
	rep := Report{Files: 1, Stations: n, Malformed: malformed}
	log.Info().Str("url", playlistURL).Msg("ingest remote: " + rep.String())
	return rep, nil
}

// GenreLister is an online index listing stations per genre.
type GenreLister interface {
	GenreURL(genre string) string
	Genre(ctx context.Context, genre string) ([]indexsite.Entry, error)
}

// IngestIndex merges the index's listing for each genre, associating every
// listed station with that genre and keeping the listed logo as a hint.
// A genre that fails is counted and skipped. Each genre page set is
// recorded as a source.
func IngestIndex(ctx context.Context, s store.Store, idx GenreLister, genres []string, opts Options) (Report, error) {
	var rep Report
	cl := opts.classifier()
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		listed, err := idx.Genre(ctx, g)
		if err != nil {
			log.Error().Err(err).Str("genre", g).Msg("index genre")
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			rep.Failed++
			continue
		}
		display, ok := cl.Genre(g)
		if !ok {
			display = taxonomy.Display(g)
		}
		n, err := merge(ctx, s, taxonomy.Classification{Genre: &display}, indexEntries(listed))
		if err != nil {
			log.Error().Err(err).Str("genre", g).Msg("merge index genre")
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			rep.Failed++
			continue
		}
		metrics.IngestFilesTotal.WithLabelValues("ingested").Inc()
		rep.Files++
		rep.Stations += n
		if _, err := s.RecordSource(ctx, idx.GenreURL(g), g); err != nil {
			log.Error().Err(err).Str("genre", g).Msg("record source")
		}
	}
	log.Info().Msg("ingest index: " + rep.String())
	return rep, nil
}

func indexEntries(listed []indexsite.Entry) iter.Seq[playlist.Entry] {
	return func(yield func(playlist.Entry) bool) {
		for i, e := range listed {
			if !yield(playlist.Entry{Name: e.Name, URL: e.StreamURL, LogoHint: e.LogoHint, Line: i + 1}) {
				return
			}
		}
	}
}
