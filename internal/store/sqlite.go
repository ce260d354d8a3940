package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voyagen/radiovault/internal/models"
	_ "modernc.org/sqlite"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite implements Store on a single-file SQLite database. The handle is
// limited to one connection, so writers are serialized.
type SQLite struct {
	sqliteWriter
	db *sql.DB
}

// NewSQLite opens the database file at path. Migrations must already be applied.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &SQLite{sqliteWriter: sqliteWriter{q: db}, db: db}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() {
	_ = s.db.Close()
}

// InTx runs fn inside a transaction, committing when fn returns nil.
// fn must only use the Writer it is given.
func (s *SQLite) InTx(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&sqliteWriter{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) ListCountries(ctx context.Context) ([]models.Country, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM countries ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ListCountries: %w", err)
	}
	return scanCountries(rows)
}

func (s *SQLite) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ListGenres: %w", err)
	}
	return scanGenres(rows)
}

func (s *SQLite) GenresForCountry(ctx context.Context, country string) ([]models.Genre, error) {
	_, key, err := canonical("GenresForCountry", country)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT g.id, g.name, g.slug FROM genres g
		 JOIN station_genres sg ON sg.genre_id = g.id
		 JOIN stations s ON s.id = sg.station_id
		 JOIN countries c ON c.id = s.country_id
		 WHERE c.slug = ?
		 ORDER BY g.name, g.id`, key)
	if err != nil {
		return nil, fmt.Errorf("GenresForCountry: %w", err)
	}
	return scanGenres(rows)
}

func (s *SQLite) CountriesForGenre(ctx context.Context, genre string) ([]models.Country, error) {
	_, key, err := canonical("CountriesForGenre", genre)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT c.id, c.name, c.slug FROM countries c
		 JOIN stations s ON s.country_id = c.id
		 JOIN station_genres sg ON sg.station_id = s.id
		 JOIN genres g ON g.id = sg.genre_id
		 WHERE g.slug = ?
		 ORDER BY c.name, c.id`, key)
	if err != nil {
		return nil, fmt.Errorf("CountriesForGenre: %w", err)
	}
	return scanCountries(rows)
}

func (s *SQLite) ListStations(ctx context.Context, filter StationFilter) ([]models.Station, error) {
	where, args := stationWhere(filter, false)
	rows, err := s.db.QueryContext(ctx, "SELECT "+stationColumns+where+" ORDER BY s.name, s.id", args...)
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

func (s *SQLite) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	st, err := scanStation(s.db.QueryRowContext(ctx, "SELECT "+stationColumns+" WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetStation: %w", err)
	}
	return st, nil
}

func (s *SQLite) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, folder, last_updated FROM sources ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	defer rows.Close()
	sources := []models.Source{}
	for rows.Next() {
		var src models.Source
		var updated sql.NullInt64
		if err := rows.Scan(&src.ID, &src.URL, &src.Folder, &updated); err != nil {
			return nil, fmt.Errorf("ListSources scan: %w", err)
		}
		if updated.Valid {
			t := time.Unix(updated.Int64, 0).UTC()
			src.LastUpdated = &t
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context) (*models.CatalogStats, error) {
	var st models.CatalogStats
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(&st.Stations, &st.Countries, &st.Genres, &st.Associations, &st.Sources)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return &st, nil
}

// sqliteWriter implements Writer over the database or a transaction.
type sqliteWriter struct {
	q sqlQuerier
}

func (w *sqliteWriter) UpsertStation(ctx context.Context, name, url string) (int64, error) {
	var id int64
	err := w.q.QueryRowContext(ctx,
		`INSERT INTO stations (name, url) VALUES (?, ?)
		 ON CONFLICT (url) DO UPDATE SET url = excluded.url
		 RETURNING id`,
		name, url,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertStation: %w", err)
	}
	return id, nil
}

func (w *sqliteWriter) GetOrCreateCountry(ctx context.Context, name string) (int64, error) {
	return w.getOrCreate(ctx, "GetOrCreateCountry", "countries", name)
}

func (w *sqliteWriter) GetOrCreateGenre(ctx context.Context, name string) (int64, error) {
	return w.getOrCreate(ctx, "GetOrCreateGenre", "genres", name)
}

func (w *sqliteWriter) getOrCreate(ctx context.Context, op, table, name string) (int64, error) {
	name, key, err := canonical(op, name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = w.q.QueryRowContext(ctx,
		`INSERT INTO `+table+` (name, slug) VALUES (?, ?)
		 ON CONFLICT (slug) DO UPDATE SET slug = excluded.slug
		 RETURNING id`,
		name, key,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (w *sqliteWriter) Associate(ctx context.Context, stationID, genreID int64) error {
	_, err := w.q.ExecContext(ctx,
		`INSERT INTO station_genres (station_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		stationID, genreID)
	if err != nil {
		return fmt.Errorf("Associate: %w", err)
	}
	return nil
}

func (w *sqliteWriter) SetCountryIfEmpty(ctx context.Context, stationID, countryID int64) error {
	_, err := w.q.ExecContext(ctx,
		`UPDATE stations SET country_id = ? WHERE id = ? AND country_id IS NULL`,
		countryID, stationID)
	if err != nil {
		return fmt.Errorf("SetCountryIfEmpty: %w", err)
	}
	return nil
}

func (w *sqliteWriter) SetCityIfEmpty(ctx context.Context, stationID int64, city string) error {
	_, err := w.q.ExecContext(ctx,
		`UPDATE stations SET city = ? WHERE id = ? AND (city IS NULL OR city = '')`,
		city, stationID)
	if err != nil {
		return fmt.Errorf("SetCityIfEmpty: %w", err)
	}
	return nil
}

func (w *sqliteWriter) SetLogoHintIfEmpty(ctx context.Context, stationID int64, hint string) error {
	_, err := w.q.ExecContext(ctx,
		`UPDATE stations SET logo_hint = ? WHERE id = ? AND (logo_hint IS NULL OR logo_hint = '')`,
		hint, stationID)
	if err != nil {
		return fmt.Errorf("SetLogoHintIfEmpty: %w", err)
	}
	return nil
}

func (w *sqliteWriter) SetLogo(ctx context.Context, stationID int64, url string) error {
	res, err := w.q.ExecContext(ctx, `UPDATE stations SET logo_url = ? WHERE id = ?`, url, stationID)
	if err != nil {
		return fmt.Errorf("SetLogo: %w", err)
	}
	return requireRow(res)
}

func (w *sqliteWriter) SetStatus(ctx context.Context, stationID int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("SetStatus: invalid status %q", status)
	}
	res, err := w.q.ExecContext(ctx, `UPDATE stations SET status = ? WHERE id = ?`, string(status), stationID)
	if err != nil {
		return fmt.Errorf("SetStatus: %w", err)
	}
	return requireRow(res)
}

func (w *sqliteWriter) RecordSource(ctx context.Context, url, folder string) (int64, error) {
	now := time.Now().Unix()
	var id int64
	err := w.q.QueryRowContext(ctx,
		`INSERT INTO sources (url, folder, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET folder = excluded.folder, last_updated = excluded.last_updated
		 RETURNING id`,
		url, folder, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("RecordSource: %w", err)
	}
	return id, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCountries(rows *sql.Rows) ([]models.Country, error) {
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

func scanGenres(rows *sql.Rows) ([]models.Genre, error) {
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
