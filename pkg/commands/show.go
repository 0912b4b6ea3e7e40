package commands

import (
	"github.com/spf13/cobra"

	"github.com/reident/reident/identity"
	"github.com/reident/reident/pkg/commands/flags"
	"github.com/reident/reident/render"
)

// newShowCmd creates the "show" subcommand that prints the current identifiers.
func newShowCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current host identifiers",
		Long: `Show the current host identifiers.

Identifiers that cannot be read are reported as unknown; show still succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := flags.Format(cmd)
			if err != nil {
				return usageError(err)
			}

			iface := s.cfg.MAC.Interface
			if cmd.Flags().Changed("interface") {
				iface = flags.MustString(cmd.Flags().GetString("interface"))
			}

			ids, err := identity.Snapshot(cmd.Context(), s.deps.System, iface)
			if err != nil {
				s.lggr.Warnw("Some identifiers could not be read", "error", err)
			}

			out := cmd.OutOrStdout()

			return render.NewPrinter(out, format, s.deps.UseColor(out)).Identifiers(ids)
		},
	}
	flags.Interface(cmd)
	flags.Output(cmd)

	return cmd
}
