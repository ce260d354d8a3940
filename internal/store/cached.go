package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/taxonomy"
)

// Cache TTLs for different entity types.
const (
	ttlTaxonomy = 5 * time.Minute
	ttlStations = 1 * time.Minute
	ttlStation  = 5 * time.Minute
	ttlSources  = 2 * time.Minute
	ttlStats    = 30 * time.Second
)

const keyPrefix = "radiovault:"

// catalogPatterns covers every cached read; a committed transaction may
// touch any of them.
var catalogPatterns = []string{
	keyPrefix + "countries:*",
	keyPrefix + "genres:*",
	keyPrefix + "stations:*",
	keyPrefix + "station:*",
}

// CachedStore wraps a Store with a Redis caching layer.
// Read queries are served from cache when possible;
// writes invalidate the relevant cache keys.
type CachedStore struct {
	inner Store
	cache *cache.Redis
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

// cached serves key from Redis or fills it from load.
func cached[T any](ctx context.Context, c *CachedStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, err := cache.Get[T](ctx, c.cache, key); err == nil {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return v, nil
}

// --- cached read operations ---

func (c *CachedStore) ListCountries(ctx context.Context) ([]models.Country, error) {
	return cached(ctx, c, keyPrefix+"countries:all", ttlTaxonomy, func() ([]models.Country, error) {
		return c.inner.ListCountries(ctx)
	})
}

func (c *CachedStore) ListGenres(ctx context.Context) ([]models.Genre, error) {
	return cached(ctx, c, keyPrefix+"genres:all", ttlTaxonomy, func() ([]models.Genre, error) {
		return c.inner.ListGenres(ctx)
	})
}

func (c *CachedStore) GenresForCountry(ctx context.Context, country string) ([]models.Genre, error) {
	key := fmt.Sprintf("%scountries:%s:genres", keyPrefix, taxonomy.Key(country))
	return cached(ctx, c, key, ttlTaxonomy, func() ([]models.Genre, error) {
		return c.inner.GenresForCountry(ctx, country)
	})
}

func (c *CachedStore) CountriesForGenre(ctx context.Context, genre string) ([]models.Country, error) {
	key := fmt.Sprintf("%sgenres:%s:countries", keyPrefix, taxonomy.Key(genre))
	return cached(ctx, c, key, ttlTaxonomy, func() ([]models.Country, error) {
		return c.inner.CountriesForGenre(ctx, genre)
	})
}

func (c *CachedStore) ListStations(ctx context.Context, filter StationFilter) ([]models.Station, error) {
	// Missing-logo lists (the ?missing_logo=true backlog view) shrink with
	// every resolved logo, including ones written by other processes, so
	// they always read through.
	if filter.MissingLogo {
		return c.inner.ListStations(ctx, filter)
	}
	key := fmt.Sprintf("%sstations:%s", keyPrefix, filterHash(filter))
	return cached(ctx, c, key, ttlStations, func() ([]models.Station, error) {
		return c.inner.ListStations(ctx, filter)
	})
}

func (c *CachedStore) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	key := fmt.Sprintf("%sstation:%d", keyPrefix, id)
	return cached(ctx, c, key, ttlStation, func() (*models.Station, error) {
		return c.inner.GetStation(ctx, id)
	})
}

func (c *CachedStore) ListSources(ctx context.Context) ([]models.Source, error) {
	return cached(ctx, c, keyPrefix+"sources:all", ttlSources, func() ([]models.Source, error) {
		return c.inner.ListSources(ctx)
	})
}

func (c *CachedStore) Stats(ctx context.Context) (*models.CatalogStats, error) {
	return cached(ctx, c, keyPrefix+"stats", ttlStats, func() (*models.CatalogStats, error) {
		return c.inner.Stats(ctx)
	})
}

// --- write operations with cache invalidation ---

func (c *CachedStore) UpsertStation(ctx context.Context, name, url string) (int64, error) {
	id, err := c.inner.UpsertStation(ctx, name, url)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyPrefix+"stats")
	c.invalidatePattern(ctx, keyPrefix+"stations:*")
	return id, nil
}

func (c *CachedStore) GetOrCreateCountry(ctx context.Context, name string) (int64, error) {
	id, err := c.inner.GetOrCreateCountry(ctx, name)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyPrefix+"countries:all", keyPrefix+"stats")
	return id, nil
}

func (c *CachedStore) GetOrCreateGenre(ctx context.Context, name string) (int64, error) {
	id, err := c.inner.GetOrCreateGenre(ctx, name)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyPrefix+"genres:all", keyPrefix+"stats")
	return id, nil
}

func (c *CachedStore) Associate(ctx context.Context, stationID, genreID int64) error {
	if err := c.inner.Associate(ctx, stationID, genreID); err != nil {
		return err
	}
	c.invalidate(ctx, keyPrefix+"stats")
	c.invalidatePattern(ctx, catalogPatterns...)
	return nil
}

func (c *CachedStore) SetCountryIfEmpty(ctx context.Context, stationID, countryID int64) error {
	if err := c.inner.SetCountryIfEmpty(ctx, stationID, countryID); err != nil {
		return err
	}
	c.invalidatePattern(ctx, catalogPatterns...)
	return nil
}

func (c *CachedStore) SetCityIfEmpty(ctx context.Context, stationID int64, city string) error {
	if err := c.inner.SetCityIfEmpty(ctx, stationID, city); err != nil {
		return err
	}
	c.invalidateStation(ctx, stationID)
	return nil
}

func (c *CachedStore) SetLogoHintIfEmpty(ctx context.Context, stationID int64, hint string) error {
	if err := c.inner.SetLogoHintIfEmpty(ctx, stationID, hint); err != nil {
		return err
	}
	c.invalidateStation(ctx, stationID)
	return nil
}

func (c *CachedStore) SetLogo(ctx context.Context, stationID int64, url string) error {
	if err := c.inner.SetLogo(ctx, stationID, url); err != nil {
		return err
	}
	c.invalidateStation(ctx, stationID)
	return nil
}

func (c *CachedStore) SetStatus(ctx context.Context, stationID int64, status models.Status) error {
	if err := c.inner.SetStatus(ctx, stationID, status); err != nil {
		return err
	}
	c.invalidateStation(ctx, stationID)
	return nil
}

func (c *CachedStore) RecordSource(ctx context.Context, url, folder string) (int64, error) {
	id, err := c.inner.RecordSource(ctx, url, folder)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyPrefix+"sources:all", keyPrefix+"stats")
	return id, nil
}

// InTx runs fn against the uncached inner store and drops every catalog
// key once the transaction commits.
func (c *CachedStore) InTx(ctx context.Context, fn func(w Writer) error) error {
	if err := c.inner.InTx(ctx, fn); err != nil {
		return err
	}
	c.invalidate(ctx, keyPrefix+"sources:all", keyPrefix+"stats")
	c.invalidatePattern(ctx, catalogPatterns...)
	return nil
}

func (c *CachedStore) Close() {
	c.inner.Close()
}

// --- helpers ---

func (c *CachedStore) invalidateStation(ctx context.Context, id int64) {
	c.invalidate(ctx, fmt.Sprintf("%sstation:%d", keyPrefix, id))
	c.invalidatePattern(ctx, keyPrefix+"stations:*")
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache del failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			log.Warn().Err(err).Str("pattern", p).Msg("cache del pattern failed")
		}
	}
}

// filterHash produces a short deterministic hash for a StationFilter so it
// can be used as part of a cache key.
func filterHash(f StationFilter) string {
	var country, genre string
	if f.Country != nil {
		country = taxonomy.Key(*f.Country)
	}
	if f.Genre != nil {
		genre = taxonomy.Key(*f.Genre)
	}
	raw := fmt.Sprintf("%t:%s|%t:%s|%s|%v", f.Country != nil, country, f.Genre != nil, genre, f.Search, f.MissingLogo)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
