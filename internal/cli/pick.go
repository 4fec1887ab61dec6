package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-recipe-cache/picker"
)

// NewPickCommand creates the pick command.
func NewPickCommand(rootOpts *RootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Show the recipe of the day",
		Long: `Show the recipe of the day. The choice is stable for a UTC calendar day
and changes when the number of recipes changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(picker.DateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid date %q: expected %s", date, picker.DateLayout)
				}
				day = parsed
			}

			ctx := cmd.Context()
			container, err := openContainer(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer container.Close()

			rc, err := container.Engine().TodaysPick(ctx, day)
			if err != nil {
				return err
			}
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Recipe(rc, "no recipe of the day")
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to pick for (YYYY-MM-DD, defaults to today)")

	return cmd
}
