package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at link time with
// -ldflags "-X github.com/cellgrid/cellgrid/internal/cli.Version=v1.2.3".
var Version = "0.3.0"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cellgrid version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(map[string]string{"version": Version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cellgrid %s\n", Version)
			return nil
		},
	}
}
