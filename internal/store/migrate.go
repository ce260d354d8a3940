package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations
var migrationsFS embed.FS

// EnsureExtension attempts to create a Postgres extension. If the current
// user lacks the privilege, it checks whether the extension already exists,
// so non-superuser roles can run the app once a DBA has created it.
func EnsureExtension(dsn, name string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	_, err = db.Exec("CREATE EXTENSION IF NOT EXISTS " + name)
	if err == nil {
		return nil
	}

	if strings.Contains(err.Error(), "permission denied") {
		var exists bool
		qErr := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = $1)", name).Scan(&exists)
		if qErr != nil {
			return fmt.Errorf("check %s: %w (original: %w)", name, qErr, err)
		}
		if exists {
			return nil
		}
		return fmt.Errorf("%s extension is not installed and the current database user lacks permission to create it; "+
			"ask your database admin to run: CREATE EXTENSION %s; (original: %w)", name, name, err)
	}

	return fmt.Errorf("create %s extension: %w", name, err)
}

// RunMigrations applies the embedded migrations for the engine named by the
// URL scheme (postgres:// or sqlite://).
func RunMigrations(databaseURL string) error {
	dir := "migrations/sqlite"
	if IsPostgres(databaseURL) {
		dir = "migrations/postgres"
	}
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("iofs.New: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}
