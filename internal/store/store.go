package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/taxonomy"
)

// ErrNotFound is returned when a station or other row does not exist.
var ErrNotFound = errors.New("not found")

// Reader holds the catalog read queries.
type Reader interface {
	// ListCountries returns all countries sorted by name.
	ListCountries(ctx context.Context) ([]models.Country, error)
	// ListGenres returns all genres sorted by name.
	ListGenres(ctx context.Context) ([]models.Genre, error)
	// GenresForCountry returns genres having at least one station in the named country.
	GenresForCountry(ctx context.Context, country string) ([]models.Genre, error)
	// CountriesForGenre returns countries having at least one station in the named genre.
	CountriesForGenre(ctx context.Context, genre string) ([]models.Country, error)
	// ListStations returns stations matching the filter, sorted by name then id.
	ListStations(ctx context.Context, filter StationFilter) ([]models.Station, error)
	// GetStation returns a single station (with country name joined) or ErrNotFound.
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	// ListSources returns all provenance records.
	ListSources(ctx context.Context) ([]models.Source, error)
	// Stats returns row counts for the catalog tables.
	Stats(ctx context.Context) (*models.CatalogStats, error)
}

// Writer holds the catalog mutations. All of them are idempotent under
// repeated identical input; uniqueness conflicts are no-ops.
type Writer interface {
	// UpsertStation returns the id of the station with this stream URL,
	// creating it with name when absent. An existing name is never changed.
	UpsertStation(ctx context.Context, name, url string) (int64, error)
	// GetOrCreateCountry returns the id of the country whose canonical key
	// matches name. The first display name seen is kept.
	GetOrCreateCountry(ctx context.Context, name string) (int64, error)
	// GetOrCreateGenre is GetOrCreateCountry for genres.
	GetOrCreateGenre(ctx context.Context, name string) (int64, error)
	// Associate links a station to a genre. Duplicate links are no-ops.
	Associate(ctx context.Context, stationID, genreID int64) error
	// SetCountryIfEmpty assigns the country only when none is set.
	SetCountryIfEmpty(ctx context.Context, stationID, countryID int64) error
	// SetCityIfEmpty assigns the city only when none is set.
	SetCityIfEmpty(ctx context.Context, stationID int64, city string) error
	// SetLogoHintIfEmpty stores an inline playlist logo hint only when none is set.
	SetLogoHintIfEmpty(ctx context.Context, stationID int64, hint string) error
	// SetLogo unconditionally stores the resolved logo URL.
	SetLogo(ctx context.Context, stationID int64, url string) error
	// SetStatus stores the liveness status.
	SetStatus(ctx context.Context, stationID int64, status models.Status) error
	// RecordSource upserts a provenance record and bumps its last_updated.
	RecordSource(ctx context.Context, url, folder string) (int64, error)
}

// Store is the catalog. InTx runs fn's writes in a single transaction: all
// of them commit or none do.
type Store interface {
	Reader
	Writer
	InTx(ctx context.Context, fn func(w Writer) error) error
	Close()
}

// StationFilter holds optional filters for listing stations.
// Country and Genre match on the canonical key of the given name.
type StationFilter struct {
	Country     *string
	Genre       *string
	Search      string // case-insensitive substring match on station name
	MissingLogo bool   // only stations without a stored logo
}

// stationColumns selects a models.Station with its country name joined.
const stationColumns = `s.id, s.name, s.url, s.logo_url, s.logo_hint, s.country_id, c.name, s.city, s.status
	FROM stations s LEFT JOIN countries c ON c.id = s.country_id`

// stationWhere renders the filter as a WHERE clause. pg selects $n
// placeholders and ILIKE; otherwise ? and LIKE (case-insensitive for ASCII in SQLite).
func stationWhere(f StationFilter, pg bool) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		if pg {
			return "$" + strconv.Itoa(len(args))
		}
		return "?"
	}
	if f.Country != nil {
		conds = append(conds, "c.slug = "+arg(taxonomy.Key(*f.Country)))
	}
	if f.Genre != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM station_genres sg JOIN genres g ON g.id = sg.genre_id
			WHERE sg.station_id = s.id AND g.slug = `+arg(taxonomy.Key(*f.Genre))+`)`)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		if pg {
			conds = append(conds, "s.name ILIKE "+arg(likePattern(search)))
		} else {
			conds = append(conds, "s.name LIKE "+arg(likePattern(search))+` ESCAPE '\'`)
		}
	}
	if f.MissingLogo {
		conds = append(conds, "(s.logo_url IS NULL OR s.logo_url = '')")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// canonical trims a display name and returns it with its uniqueness key.
func canonical(op, name string) (string, string, error) {
	name = strings.TrimSpace(name)
	key := taxonomy.Key(name)
	if key == "" {
		return "", "", fmt.Errorf("%s: empty name %q", op, name)
	}
	return name, key, nil
}

const statsQuery = `SELECT
	(SELECT COUNT(*) FROM stations),
	(SELECT COUNT(*) FROM countries),
	(SELECT COUNT(*) FROM genres),
	(SELECT COUNT(*) FROM station_genres),
	(SELECT COUNT(*) FROM sources)`

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*models.Station, error) {
	var st models.Station
	var status string
	if err := row.Scan(&st.ID, &st.Name, &st.URL, &st.LogoURL, &st.LogoHint,
		&st.CountryID, &st.CountryName, &st.City, &status); err != nil {
		return nil, err
	}
	st.Status = models.Status(status)
	return &st, nil
}
