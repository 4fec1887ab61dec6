package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/recipe"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, recipe.DefaultMaxLimit, cfg.Planner.MaxLimit)
	assert.Equal(t, cache.DefaultConfig(), cfg.CacheConfig())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "sqlite.yaml"))
	require.NoError(t, err)

	assert.Equal(t, StorageSQL, cfg.Storage.Backend)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.True(t, cfg.Storage.Migrate)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, cache.DefaultConfig().NumShards, cfg.Cache.NumShards, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.Planner.MaxLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid.yaml"))
	require.Error(t, err)
	assert.True(t, recipe.IsValidation(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	require.Error(t, err)
	assert.True(t, recipe.IsNotFound(err))
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, recipe.IsValidation(err))
}

func TestValidate_Sections(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown backend": func(c *Config) { c.Storage.Backend = "redis" },
		"unknown driver":  func(c *Config) { c.Storage = StorageConfig{Backend: StorageSQL, Driver: "mysql", DSN: "x"} },
		"sql without dsn": func(c *Config) { c.Storage = StorageConfig{Backend: StorageSQL, Driver: "postgres"} },
		"zero max limit":  func(c *Config) { c.Planner.MaxLimit = 0 },
		"unknown level":   func(c *Config) { c.Log.Level = "loud" },
		"zero capacity":   func(c *Config) { c.Cache.Capacity = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, recipe.IsValidation(err))
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	t.Setenv(EnvPath, filepath.Join("testdata", "sqlite.yaml"))
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorageSQL, cfg.Storage.Backend)
}
