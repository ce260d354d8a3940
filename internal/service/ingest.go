// Package service holds the ingestion orchestrator: it walks playlist
// sources, classifies and parses them, and merges the entries into the
// catalog one file per transaction.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/playlist"
	"github.com/voyagen/radiovault/internal/store"
	"github.com/voyagen/radiovault/internal/taxonomy"
)

// Options tunes ingestion.
type Options struct {
	// Classifier maps file names to labels; nil means taxonomy.New().
	Classifier *taxonomy.Classifier
	// IncludeUnclassified ingests files with no country or genre as
	// unlabelled stations instead of skipping them.
	IncludeUnclassified bool
}

func (o Options) classifier() *taxonomy.Classifier {
	if o.Classifier != nil {
		return o.Classifier
	}
	return taxonomy.New()
}

// Report summarizes an ingestion run.
type Report struct {
	Files     int `json:"files"`     // playlists merged
	Skipped   int `json:"skipped"`   // unclassified playlists
	Excluded  int `json:"excluded"`  // playlists under exclusion markers
	Failed    int `json:"failed"`    // playlists that could not be read or committed
	Stations  int `json:"stations"`  // entries merged
	Malformed int `json:"malformed"` // entries dropped by the parser
}

func (r Report) String() string {
	return fmt.Sprintf("%s files (%s skipped, %s excluded, %s failed), %s stations, %s malformed entries",
		humanize.Comma(int64(r.Files)), humanize.Comma(int64(r.Skipped)),
		humanize.Comma(int64(r.Excluded)), humanize.Comma(int64(r.Failed)),
		humanize.Comma(int64(r.Stations)), humanize.Comma(int64(r.Malformed)))
}

func (r *Report) add(o Report) {
	r.Files += o.Files
	r.Skipped += o.Skipped
	r.Excluded += o.Excluded
	r.Failed += o.Failed
	r.Stations += o.Stations
	r.Malformed += o.Malformed
}

// IngestTree merges every playlist under root. Files under exclusion
// markers are ignored, unclassifiable files are skipped unless
// opts.IncludeUnclassified is set, and a file that fails is logged and
// counted without affecting files already committed. Only an unreadable
// root is fatal. The root is recorded as a file:// source.
func IngestTree(ctx context.Context, s store.Store, root string, opts Options) (Report, error) {
	var rep Report
	info, err := os.Stat(root)
	if err != nil {
		return rep, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return rep, fmt.Errorf("source root %s: not a directory", root)
	}
	cl := opts.classifier()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn().Err(err).Str("path", path).Msg("walk")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && taxonomy.Excluded(rel) {
				log.Debug().Str("dir", rel).Msg("excluded directory")
				return filepath.SkipDir
			}
			return nil
		}
		if !playlist.IsPlaylist(path) {
			return nil
		}
		if taxonomy.Excluded(rel) {
			rep.Excluded++
			metrics.IngestFilesTotal.WithLabelValues("excluded").Inc()
			return nil
		}
		rep.add(ingestFile(ctx, s, cl, path, rel, opts.IncludeUnclassified))
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("walk %s: %w", root, err)
	}

	if abs, err := filepath.Abs(root); err == nil {
		if _, err := s.RecordSource(ctx, "file://"+filepath.ToSlash(abs), ""); err != nil {
			log.Error().Err(err).Msg("record source")
		}
	}
	log.Info().Str("root", root).Msg("ingest: " + rep.String())
	return rep, nil
}

// ingestFile merges one playlist file and reports it as a one-file Report.
func ingestFile(ctx context.Context, s store.Store, cl *taxonomy.Classifier, path, rel string, includeUnclassified bool) Report {
	labels := cl.Classify(path)
	if labels.Empty() && !includeUnclassified {
		log.Debug().Str("file", rel).Msg("unclassified, skipped")
		metrics.IngestFilesTotal.WithLabelValues("unclassified").Inc()
		return Report{Skipped: 1}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", rel).Msg("read playlist")
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return Report{Failed: 1}
	}
	malformed := 0
	n, err := merge(ctx, s, labels, playlist.ParseWithSkips(data, playlist.Detect(path, data), func(sk playlist.Skip) {
		malformed++
		metrics.IngestMalformedEntries.Inc()
		log.Debug().Str("file", rel).Int("line", sk.Line).Str("reason", sk.Reason).Msg("malformed entry")
	}))
	if err != nil {
		log.Error().Err(err).Str("file", rel).Msg("merge playlist")
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return Report{Failed: 1, Malformed: malformed}
	}
	metrics.IngestFilesTotal.WithLabelValues("ingested").Inc()
	log.Debug().Str("file", rel).Int("stations", n).Msg("ingested")
	return Report{Files: 1, Stations: n, Malformed: malformed}
}

// merge writes entries and their labels in one transaction: every station
// is upserted by URL, associated with the genre, and given the country,
// city and logo hint only where none is stored yet.
func merge(ctx context.Context, s store.Store, labels taxonomy.Classification, entries iter.Seq[playlist.Entry]) (int, error) {
	stations := 0
	err := s.InTx(ctx, func(w store.Writer) error {
		var countryID, genreID int64
		var err error
		if labels.Country != nil {
			if countryID, err = w.GetOrCreateCountry(ctx, *labels.Country); err != nil {
				return err
			}
		}
		if labels.Genre != nil {
			if genreID, err = w.GetOrCreateGenre(ctx, *labels.Genre); err != nil {
				return err
			}
		}
		for e := range entries {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("ingest cancelled: %w", err)
			}
			id, err := w.UpsertStation(ctx, e.Name, e.URL)
			if err != nil {
				return err
			}
			if genreID != 0 {
				if err := w.Associate(ctx, id, genreID); err != nil {
					return err
				}
			}
			if countryID != 0 {
				if err := w.SetCountryIfEmpty(ctx, id, countryID); err != nil {
					return err
				}
			}
			if labels.City != nil {
				if err := w.SetCityIfEmpty(ctx, id, *labels.City); err != nil {
					return err
				}
			}
			if e.LogoHint != nil {
				if err := w.SetLogoHintIfEmpty(ctx, id, *e.LogoHint); err != nil {
					return err
				}
			}
			stations++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.IngestStationsTotal.Add(float64(stations))
	return stations, nil
}
