package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/reident/reident/pkg/commands/flags"
	"github.com/reident/reident/render"
)

// newListCmd creates the "list" subcommand.
func newListCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := flags.Format(cmd)
			if err != nil {
				return usageError(err)
			}

			// Listing never touches the host, so the home directory is not resolved.
			reg, err := s.deps.Registry(s.cfg.IdentityOptions(""))
			if err != nil {
				return fmt.Errorf("build registry: %w", err)
			}

			out := cmd.OutOrStdout()

			return render.NewPrinter(out, format, s.deps.UseColor(out)).Operations(slices.Collect(reg.All()))
		},
	}
	flags.Output(cmd)

	return cmd
}
