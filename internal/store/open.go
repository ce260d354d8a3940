package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsPostgres reports whether dsn selects the Postgres engine.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// SQLitePath strips the sqlite scheme from dsn. A bare path is returned unchanged.
func SQLitePath(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(dsn, prefix) {
			return strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// Open migrates the database named by dsn and returns a Store on it.
// postgres:// URLs select Postgres; anything else is a SQLite file.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsPostgres(dsn) {
		if err := EnsureExtension(dsn, "pg_trgm"); err != nil {
			return nil, fmt.Errorf("pg_trgm: %w", err)
		}
		if err := RunMigrations(dsn); err != nil {
			return nil, err
		}
		return NewPostgres(ctx, dsn)
	}
	path := SQLitePath(dsn)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure dir: %w", err)
		}
	}
	if err := RunMigrations("sqlite://" + path); err != nil {
		return nil, err
	}
	return NewSQLite(ctx, path)
}
