package cli

import (
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get <recipe-id>",
		Short:         "Show one recipe",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := openContainer(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer container.Close()

			rc, err := container.Engine().Get(ctx, args[0])
			if err != nil {
				return err
			}
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Recipe(rc, "recipe "+args[0]+" not found")
		},
	}

	return cmd
}
