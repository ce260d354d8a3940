package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/radiovault/internal/models"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pgWriter
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pgWriter: pgWriter{q: pool}, pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (p *Postgres) InTx(ctx context.Context, fn func(w Writer) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgWriter{q: tx})
	})
}

func (p *Postgres) ListCountries(ctx context.Context) ([]models.Country, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, slug FROM countries ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ListCountries: %w", err)
	}
	return collectCountries(rows)
}

func (p *Postgres) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, slug FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ListGenres: %w", err)
	}
	return collectGenres(rows)
}

func (p *Postgres) GenresForCountry(ctx context.Context, country string) ([]models.Genre, error) {
	_, key, err := canonical("GenresForCountry", country)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT g.id, g.name, g.slug FROM genres g
		 JOIN station_genres sg ON sg.genre_id = g.id
		 JOIN stations s ON s.id = sg.station_id
		 JOIN countries c ON c.id = s.country_id
		 WHERE c.slug = $1
		 ORDER BY g.name, g.id`, key)
	if err != nil {
		return nil, fmt.Errorf("GenresForCountry: %w", err)
	}
	return collectGenres(rows)
}

func (p *Postgres) CountriesForGenre(ctx context.Context, genre string) ([]models.Country, error) {
	_, key, err := canonical("CountriesForGenre", genre)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT c.id, c.name, c.slug FROM countries c
		 JOIN stations s ON s.country_id = c.id
		 JOIN station_genres sg ON sg.station_id = s.id
		 JOIN genres g ON g.id = sg.genre_id
		 WHERE g.slug = $1
		 ORDER BY c.name, c.id`, key)
	if err != nil {
		return nil, fmt.Errorf("CountriesForGenre: %w", err)
	}
	return collectCountries(rows)
}

func (p *Postgres) ListStations(ctx context.Context, filter StationFilter) ([]models.Station, error) {
	where, args := stationWhere(filter, true)
	rows, err := p.pool.Query(ctx, "SELECT "+stationColumns+where+" ORDER BY s.name, s.id", args...)
	if err != nil {
		return nil, fmt.Errorf("ListStations: %w", err)
	}
	defer rows.Close()
	stations := []models.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStations scan: %w", err)
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStations: %w", err)
	}
	return stations, nil
}

func (p *Postgres) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	st, err := scanStation(p.pool.QueryRow(ctx, "SELECT "+stationColumns+" WHERE s.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetStation: %w", err)
	}
	return st, nil
}

func (p *Postgres) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, url, folder, last_updated FROM sources ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	defer rows.Close()
	sources := []models.Source{}
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.ID, &s.URL, &s.Folder, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("ListSources scan: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) (*models.CatalogStats, error) {
	var s models.CatalogStats
	err := p.pool.QueryRow(ctx, statsQuery).Scan(&s.Stations, &s.Countries, &s.Genres, &s.Associations, &s.Sources)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return &s, nil
}

// pgWriter implements Writer over a pool or a transaction.
type pgWriter struct {
	q pgQuerier
}

func (w *pgWriter) UpsertStation(ctx context.Context, name, url string) (int64, error) {
	var id int64
	err := w.q.QueryRow(ctx,
		`INSERT INTO stations (name, url) VALUES ($1, $2)
		 ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		 RETURNING id`,
		name, url,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertStation: %w", err)
	}
	return id, nil
}

func (w *pgWriter) GetOrCreateCountry(ctx context.Context, name string) (int64, error) {
	name, key, err := canonical("GetOrCreateCountry", name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = w.q.QueryRow(ctx,
		`INSERT INTO countries (name, slug) VALUES ($1, $2)
		 ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		 RETURNING id`,
		name, key,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("GetOrCreateCountry: %w", err)
	}
	return id, nil
}

func (w *pgWriter) GetOrCreateGenre(ctx context.Context, name string) (int64, error) {
	name, key, err := canonical("GetOrCreateGenre", name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = w.q.QueryRow(ctx,
		`INSERT INTO genres (name, slug) VALUES ($1, $2)
		 ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		 RETURNING id`,
		name, key,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("GetOrCreateGenre: %w", err)
	}
	return id, nil
}

func (w *pgWriter) Associate(ctx context.Context, stationID, genreID int64) error {
	_, err := w.q.Exec(ctx,
		`INSERT INTO station_genres (station_id, genre_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		stationID, genreID)
	if err != nil {
		return fmt.Errorf("Associate: %w", err)
	}
	return nil
}

func (w *pgWriter) SetCountryIfEmpty(ctx context.Context, stationID, countryID int64) error {
	_, err := w.q.Exec(ctx,
		`UPDATE stations SET country_id = $2 WHERE id = $1 AND country_id IS NULL`,
		stationID, countryID)
	if err != nil {
		return fmt.Errorf("SetCountryIfEmpty: %w", err)
	}
	return nil
}

func (w *pgWriter) SetCityIfEmpty(ctx context.Context, stationID int64, city string) error {
	_, err := w.q.Exec(ctx,
		`UPDATE stations SET city = $2 WHERE id = $1 AND (city IS NULL OR city = '')`,
		stationID, city)
	if err != nil {
		return fmt.Errorf("SetCityIfEmpty: %w", err)
	}
	return nil
}

func (w *pgWriter) SetLogoHintIfEmpty(ctx context.Context, stationID int64, hint string) error {
	_, err := w.q.Exec(ctx,
		`UPDATE stations SET logo_hint = $2 WHERE id = $1 AND (logo_hint IS NULL OR logo_hint = '')`,
		stationID, hint)
	if err != nil {
		return fmt.Errorf("SetLogoHintIfEmpty: %w", err)
	}
	return nil
}

func (w *pgWriter) SetLogo(ctx context.Context, stationID int64, url string) error {
	tag, err := w.q.Exec(ctx, `UPDATE stations SET logo_url = $2 WHERE id = $1`, stationID, url)
	if err != nil {
		return fmt.Errorf("SetLogo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (w *pgWriter) SetStatus(ctx context.Context, stationID int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("SetStatus: invalid status %q", status)
	}
	tag, err := w.q.Exec(ctx, `UPDATE stations SET status = $2 WHERE id = $1`, stationID, string(status))
	if err != nil {
		return fmt.Errorf("SetStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (w *pgWriter) RecordSource(ctx context.Context, url, folder string) (int64, error) {
	var id int64
	err := w.q.QueryRow(ctx,
		`INSERT INTO sources (url, folder, last_updated) VALUES ($1, $2, NOW())
		 ON CONFLICT (url) DO UPDATE SET folder = EXCLUDED.folder, last_updated = NOW()
		 RETURNING id`,
		url, folder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("RecordSource: %w", err)
	}
	return id, nil
}

func collectCountries(rows pgx.Rows) ([]models.Country, error) {
	defer rows.Close()
	out := []models.Country{}
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectGenres(rows pgx.Rows) ([]models.Genre, error) {
	defer rows.Close()
	out := []models.Genre{}
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
