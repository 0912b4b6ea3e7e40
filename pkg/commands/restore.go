package commands

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/reident/reident/backup"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/commands/flags"
	"github.com/reident/reident/render"
)

var restoreExample = `
  # Put back the values recorded by "reident run --backup"
  reident restore /var/lib/reident/backup.yaml

  # Restore without being asked
  reident restore --yes /var/lib/reident/backup.yaml`

// newRestoreCmd creates the "restore" subcommand that re-applies recorded prior values.
func newRestoreCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restore <backup-file>",
		Short:   "Restore identifiers from a backup file",
		Example: restoreExample,
		Args: func(cmd *cobra.Command, args []string) error {
			return usageError(cobra.ExactArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, s, args[0])
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	flags.Output(cmd)

	return cmd
}

// runRestore executes the restore command logic.
func runRestore(cmd *cobra.Command, s *session, path string) error {
	format, err := flags.Format(cmd)
	if err != nil {
		return usageError(err)
	}

	records, err := backup.Load(path)
	if err != nil {
		return usageError(err)
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s holds no records, nothing to restore.\n", path)
		return nil
	}

	reg, err := s.deps.Registry(s.cfg.IdentityOptions(s.home()))
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	var ops []*operations.Operation
	for _, r := range records {
		if op, ok := reg.Lookup(r.OperationName); ok && !slices.Contains(ops, op) {
			ops = append(ops, op)
		}
	}
	if check := s.deps.EnvironmentCheck(ops); check != nil {
		if err := check(cmd.Context(), s.deps.System); err != nil {
			var perr *operations.PrivilegeError
			if !errors.As(err, &perr) {
				perr = &operations.PrivilegeError{Reason: "host is not eligible", Err: err}
			}

			return perr
		}
	}

	if !flags.MustBool(cmd.Flags().GetBool("yes")) {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(),
			fmt.Sprintf("Restore %d recorded values from %s?", len(records), path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "No changes made.")
			return nil
		}
	}

	lock, err := operations.AcquireLock(s.cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.lggr.Warnw("Failed to release run lock", "path", s.cfg.LockFile, "error", err)
		}
	}()

	results, restoreErr := backup.Restore(cmd.Context(), s.lggr, s.deps.System, reg, records, s.cfg.Timeout)

	out := cmd.OutOrStdout()
	if err := render.NewPrinter(out, format, s.deps.UseColor(out)).Restore(results); err != nil {
		return fmt.Errorf("print restore results: %w", err)
	}

	return restoreErr
}
