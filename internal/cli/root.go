// Package cli implements the recipectl commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-recipe-cache/config"
	"github.com/goliatone/go-recipe-cache/pkg/di"
	"github.com/goliatone/go-recipe-cache/recipe"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	SeedPath   string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for recipectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recipectl",
		Short: "Query a recipe store through the caching engine",
		Long: `recipectl lists, reads and picks recipes through the same planner,
cache and store the engine uses. The store is selected by the config file
named with --config or by ` + config.EnvPath + `.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (defaults to $"+config.EnvPath+")")
	cmd.PersistentFlags().StringVar(&opts.SeedPath, "seed", "", "JSON file of recipes to load before running")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine decisions to stderr")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewPickCommand(opts))

	return cmd
}

// openContainer loads configuration, builds the engine and applies the seed file.
func openContainer(ctx context.Context, opts *RootOptions) (*di.Container, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if opts.Verbose {
		if logger, err = di.NewLogger(config.LogConfig{Level: "debug", Development: true}); err != nil {
			return nil, err
		}
	}

	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	if opts.SeedPath != "" {
		if err := seed(ctx, container, opts.SeedPath); err != nil {
			container.Close()
			return nil, err
		}
	}
	return container, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

func seed(ctx context.Context, container *di.Container, path string) error {
	records, err := readSeed(path)
	if err != nil {
		return err
	}
	storage := container.Storage()
	for _, rec := range records {
		if _, err := storage.CreateRecipe(ctx, rec); err != nil && !recipe.IsConflict(err) {
			return fmt.Errorf("seed recipe %s: %w", rec.ID, err)
		}
	}
	container.Logger().Debug("seeded recipes", zap.Int("count", len(records)), zap.String("path", path))
	return nil
}

func readSeed(path string) ([]recipe.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recipes []recipe.Recipe
	if err := decodeJSON(data, &recipes); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	records := make([]recipe.Record, 0, len(recipes))
	for _, rc := range recipes {
		records = append(records, recipe.RecordFromRecipe(rc))
	}
	return records, nil
}
