package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reident/reident/backup"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/commands/flags"
	"github.com/reident/reident/render"
)

var runExample = `
  # Run every operation, keep going after failures
  reident run

  # Preview the plan, confirm, and watch progress
  reident run -i

  # Only change the hostname and machine-id, stop at the first failure
  reident run --include hostname,machine-id --mode abort --strict

  # Record prior values so they can be restored later
  reident run --backup -o json`

// newRunCmd creates the "run" subcommand that executes the selected operations.
func newRunCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the identity operations",
		Example: runExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, s)
		},
	}

	cmd.Flags().BoolP("interactive", "i", false, "Show the plan and ask before changing anything; print progress")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().String("mode", "", "Failure mode: abort or continue (default from config)")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any operation failed")
	cmd.Flags().Duration("timeout", 0, "Per-operation timeout (default from config)")
	cmd.Flags().Bool("backup", false, "Record prior values in the backup file")
	flags.Interface(cmd)
	flags.Selection(cmd)
	flags.Output(cmd)

	return cmd
}

// applyRunFlags overrides the configuration with the flags that were set.
func applyRunFlags(cmd *cobra.Command, s *session) {
	f := cmd.Flags()
	if f.Changed("mode") {
		s.cfg.Mode = flags.MustString(f.GetString("mode"))
	}
	if f.Changed("strict") {
		s.cfg.Strict = flags.MustBool(f.GetBool("strict"))
	}
	if f.Changed("timeout") {
		s.cfg.Timeout = flags.MustDuration(f.GetDuration("timeout"))
	}
	if f.Changed("backup") {
		s.cfg.Backup.Enabled = flags.MustBool(f.GetBool("backup"))
	}
	if f.Changed("interface") {
		s.cfg.MAC.Interface = flags.MustString(f.GetString("interface"))
	}
	if f.Changed("include") {
		s.cfg.Operations.Include = flags.MustStringSlice(f.GetStringSlice("include"))
	}
	if f.Changed("exclude") {
		s.cfg.Operations.Exclude = flags.MustStringSlice(f.GetStringSlice("exclude"))
	}
}

// runRun executes the run command logic.
func runRun(cmd *cobra.Command, s *session) error {
	applyRunFlags(cmd, s)
	if err := s.cfg.Validate(); err != nil {
		return usageError(fmt.Errorf("invalid configuration: %w", err))
	}

	format, err := flags.Format(cmd)
	if err != nil {
		return usageError(err)
	}
	mode, err := operations.ParseMode(s.cfg.Mode)
	if err != nil {
		return usageError(err)
	}

	reg, err := s.deps.Registry(s.cfg.IdentityOptions(s.home()))
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	ops, err := reg.Select(s.cfg.Operations.Include, s.cfg.Operations.Exclude)
	if err != nil {
		return usageError(err)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	interactive := flags.MustBool(cmd.Flags().GetBool("interactive"))
	assumeYes := flags.MustBool(cmd.Flags().GetBool("yes"))

	if interactive && !assumeYes {
		fmt.Fprintln(errOut, "The following operations will change this host:")
		if err := render.NewPrinter(errOut, render.FormatTable, s.deps.UseColor(errOut)).Operations(ops); err != nil {
			return err
		}

		ok, err := confirm(cmd.InOrStdin(), errOut, "Proceed?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(errOut, "No changes made.")
			return nil
		}
	}

	opts := []operations.SequencerOption{
		operations.WithTimeout(s.cfg.Timeout),
		operations.WithLock(s.cfg.LockFile),
		operations.WithEnvironmentCheck(s.deps.EnvironmentCheck(ops)),
	}
	if s.cfg.Backup.Enabled {
		opts = append(opts, operations.WithBackup(backup.NewFile(s.cfg.Backup.Path)))
	}
	if interactive {
		opts = append(opts, operations.WithReporter(render.NewProgress(errOut, len(ops), s.deps.UseColor(errOut))))
	}

	if p, err := s.deps.System.Platform(cmd.Context()); err != nil {
		s.lggr.Debugw("Could not read host platform", "error", err)
	} else {
		s.lggr.Debugw("Host platform", "distribution", p.Distribution, "kernel", p.Kernel, "virtualization", p.Virtualization)
	}

	started := time.Now()
	report, err := operations.NewSequencer(s.lggr, s.deps.System, opts...).Run(cmd.Context(), ops, mode)
	if err != nil {
		return err
	}
	s.lggr.Debugw("Run complete", "run_id", report.RunID, "elapsed", time.Since(started))

	if err := render.NewPrinter(out, format, s.deps.UseColor(out)).Report(report); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	if s.cfg.Backup.Enabled {
		s.lggr.Infow("Prior values recorded", "path", s.cfg.Backup.Path)
	}

	if report.Status == operations.RunCancelled {
		return ErrInterrupted
	}
	if summary := operations.Summarize(report); !summary.OK(s.cfg.Strict) {
		return fmt.Errorf("%w: %d of %d", ErrFailedOperations, summary.Failed, summary.Total())
	}

	return nil
}
