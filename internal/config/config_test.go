package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_env(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://radio.db")
	t.Setenv("LOGO_LOOKUP_TIMEOUT", "3s")
	t.Setenv("LOGO_POLITE_DELAY", "bogus")
	t.Setenv("PERSIST_PROBE_STATUS", "true")
	t.Setenv("SWEEP_SCHEDULE", "@daily")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://radio.db", c.DatabaseURL)
	assert.Equal(t, 3*time.Second, c.LookupTimeout)
	assert.Equal(t, 500*time.Millisecond, c.PoliteDelay, "unparsable duration keeps default")
	assert.Equal(t, 10*time.Second, c.ScrapeTimeout)
	assert.Equal(t, 2*time.Second, c.ProbeTimeout)
	assert.True(t, c.PersistProbeStatus)
	assert.Equal(t, "@daily", c.SweepSchedule)
	assert.Equal(t, DefaultUserAgent, c.UserAgent)
	assert.Equal(t, DefaultServerPort, c.ServerPort)
}

func TestLoad_missingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Chdir(t.TempDir())
	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestLoad_envFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(`
# comment
DATABASE_URL="sqlite://from-env-file.db"
`), 0o644))
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://from-env-file.db", c.DatabaseURL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radiovault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://radio@localhost/radio
redis_url: redis://localhost:6379/0
server_port: "9090"
scrape_timeout: 20s
source_root: /srv/playlists
include_unclassified: true
`), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://radio@localhost/radio", c.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, "9090", c.ServerPort)
	assert.Equal(t, 20*time.Second, c.ScrapeTimeout)
	assert.Equal(t, 5*time.Second, c.LookupTimeout)
	assert.Equal(t, "/srv/playlists", c.SourceRoot)
	assert.True(t, c.IncludeUnclassified)
	assert.Equal(t, DefaultLookupEndpoint, c.LookupEndpoint)
}

func TestLoadFromFile_requiresDatabaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radiovault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"9090\"\n"), 0o644))
	_, err := LoadFromFile(path)
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}
