// Package config loads the recipe engine configuration from YAML.
package config

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/recipe"
	"github.com/goliatone/go-recipe-cache/storage/bunstore"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "RECIPE_CACHE_CONFIG"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQL    = "sql"
)

// Config is the full engine configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Planner PlannerConfig `yaml:"planner"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects the recipe store.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	// Migrate creates missing tables on startup.
	Migrate bool `yaml:"migrate"`
}

// CacheConfig sizes the read cache.
type CacheConfig struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	EvictionInterval   time.Duration `yaml:"eviction_interval"`
}

type PlannerConfig struct {
	MaxLimit int `yaml:"max_limit"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	c := cache.DefaultConfig()
	return Config{
		Storage: StorageConfig{Backend: StorageMemory},
		Cache: CacheConfig{
			Capacity:           c.Capacity,
			NumShards:          c.NumShards,
			TTL:                c.TTL,
			EvictionPercentage: c.EvictionPercentage,
			EvictionInterval:   c.EvictionInterval,
		},
		Planner: PlannerConfig{MaxLimit: recipe.DefaultMaxLimit},
		Log:     LogConfig{Level: "info"},
	}
}

// CacheConfig converts the cache section for cache.NewStore.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.NumShards,
		TTL:                c.Cache.TTL,
		EvictionPercentage: c.Cache.EvictionPercentage,
		EvictionInterval:   c.Cache.EvictionInterval,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Storage),
		validation.Field(&c.Planner),
		validation.Field(&c.Log),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	if err := c.CacheConfig().Validate(); err != nil {
		return goerrors.New(err.Error(), goerrors.CategoryValidation).WithTextCode("INVALID_CACHE_CONFIG")
	}
	return nil
}

func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(StorageMemory, StorageSQL)),
		validation.Field(&s.Driver,
			validation.When(s.Backend == StorageSQL, validation.Required),
			validation.In(bunstore.DriverPostgres, bunstore.DriverSQLite),
		),
		validation.Field(&s.DSN, validation.When(s.Backend == StorageSQL, validation.Required)),
	)
}

func (p PlannerConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxLimit, validation.Required, validation.Min(1)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		wrapped := goerrors.New("read config "+path, goerrors.CategoryNotFound)
		wrapped.Source = err
		return Config{}, wrapped
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		wrapped := goerrors.New("parse config "+path, goerrors.CategoryValidation)
		wrapped.Source = err
		return Config{}, wrapped
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads the file named by RECIPE_CACHE_CONFIG, or the defaults when
// the variable is unset.
func FromEnv() (Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
