package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-recipe-cache/recipe"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	Search      string
	Categories  []string
	Tags        []string
	MinTime     int
	MaxTime     int
	FavoritesOf string
	Owner       string
	Public      bool
	Sort        string
	Limit       int
	Offset      int
	Explain     bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of recipes",
		Long: `List one page of recipes matching the given filters.

Codes inside one --category dimension match any; separate dimensions must all
match. --explain prints the planned query instead of running it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := opts.filterSpec(cmd)
			if err != nil {
				return err
			}
			return runList(rootOpts, opts, spec, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "match text in title or description")
	cmd.Flags().StringArrayVar(&opts.Categories, "category", nil, "category filter as dimension=code (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "required tag (repeatable)")
	cmd.Flags().IntVar(&opts.MinTime, "min-time", 0, "minimum cooking time in minutes")
	cmd.Flags().IntVar(&opts.MaxTime, "max-time", 0, "maximum cooking time in minutes")
	cmd.Flags().StringVar(&opts.FavoritesOf, "favorites-of", "", "only recipes favorited by this user")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only recipes owned by this user")
	cmd.Flags().BoolVar(&opts.Public, "public", false, "only public recipes (false selects private ones)")
	cmd.Flags().StringVar(&opts.Sort, "sort", string(recipe.SortLatest), "sort mode")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", recipe.DefaultLimit, "page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the planned query and exit")

	return cmd
}

func (o *ListOptions) filterSpec(cmd *cobra.Command) (recipe.FilterSpec, error) {
	spec := recipe.FilterSpec{
		SearchText:  o.Search,
		Tags:        o.Tags,
		FavoritesOf: o.FavoritesOf,
		OwnerID:     o.Owner,
		Sort:        recipe.SortMode(o.Sort),
		Limit:       o.Limit,
		Offset:      o.Offset,
	}

	for _, raw := range o.Categories {
		dim, code, ok := strings.Cut(raw, "=")
		if !ok || dim == "" || code == "" {
			return spec, fmt.Errorf("invalid category %q: expected dimension=code", raw)
		}
		if spec.Categories == nil {
			spec.Categories = make(map[recipe.Dimension][]string)
		}
		d := recipe.Dimension(dim)
		spec.Categories[d] = append(spec.Categories[d], code)
	}

	flags := cmd.Flags()
	if flags.Changed("min-time") || flags.Changed("max-time") {
		spec.CookingTime = &recipe.TimeRange{}
		if flags.Changed("min-time") {
			spec.CookingTime.Min = &o.MinTime
		}
		if flags.Changed("max-time") {
			spec.CookingTime.Max = &o.MaxTime
		}
	}
	if flags.Changed("public") {
		spec.Public = &o.Public
	}
	return spec, nil
}

func runList(rootOpts *RootOptions, opts *ListOptions, spec recipe.FilterSpec, cmd *cobra.Command) error {
	ctx := cmd.Context()
	container, err := openContainer(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer container.Close()

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	if opts.Explain {
		q, err := container.Planner().Describe(spec)
		if err != nil {
			return err
		}
		if rootOpts.Format == "json" {
			return formatter.JSON(map[string]string{"query": q.String()})
		}
		_, err = fmt.Fprint(formatter.Writer, q.String())
		return err
	}

	page, err := container.Engine().List(ctx, "", spec)
	if err != nil {
		return err
	}
	return formatter.Page(page)
}
