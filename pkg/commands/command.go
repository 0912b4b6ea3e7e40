// Package commands provides the reident command tree.
//
// Commands are built from a Config whose Deps can be overridden, which lets tests run every
// command against a fake host:
//
//	cmd := commands.NewCommand(commands.Config{
//	    Deps: commands.Deps{System: hosttest.New()},
//	})
//	cmd.SetArgs([]string{"run", "--include", "hostname"})
//	err := cmd.ExecuteContext(ctx)
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reident/reident/config"
	"github.com/reident/reident/pkg/commands/flags"
	"github.com/reident/reident/pkg/logger"
)

// Config holds the configuration for reident commands.
type Config struct {
	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// session is the state every subcommand shares once the root has loaded the configuration.
type session struct {
	deps *Deps
	cfg  *config.Config
	lggr logger.Logger
}

// NewCommand creates the reident root command with all subcommands.
//
// Usage:
//
//	rootCmd := commands.NewCommand(commands.Config{})
//	if err := rootCmd.ExecuteContext(ctx); err != nil {
//	    os.Exit(exitCode(err))
//	}
func NewCommand(cfg Config) *cobra.Command {
	s := &session{deps: cfg.deps()}

	cmd := &cobra.Command{
		Use:   "reident",
		Short: "Give a cloned Linux host a fresh identity",
		Long: strings.TrimSpace(`
Change the identifiers that make a cloned Linux host recognizable: the MAC address of a
network interface, /etc/machine-id, the UUID of the root filesystem and the static hostname.
Per-user caches that hold a copy of these identifiers can be purged as well.

Each change runs as a separate operation that checks its preconditions first, records the
prior value and reports its own outcome.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if s.lggr != nil {
				_ = s.lggr.Sync()
			}
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags.Config(cmd)
	flags.EnvFile(cmd)
	flags.LogLevel(cmd)

	cmd.AddCommand(
		newRunCmd(s),
		newListCmd(s),
		newShowCmd(s),
		newRestoreCmd(s),
	)

	return cmd
}

// load exports the env file, reads the configuration and builds the logger. Flag overrides that only one command
// knows about are applied by that command.
func (s *session) load(cmd *cobra.Command) error {
	envFile := flags.MustString(cmd.Flags().GetString("env-file"))
	if err := s.deps.EnvFileLoader(envFile); err != nil {
		return usageError(err)
	}

	path := flags.MustString(cmd.Flags().GetString("config"))
	cfg, err := s.deps.ConfigLoader(path)
	if err != nil {
		return usageError(err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.MustString(cmd.Flags().GetString("log-level"))
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return usageError(err)
	}
	lggr, err := s.deps.NewLogger(lvl, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	s.cfg, s.lggr = cfg, lggr
	s.lggr.Debugw("Loaded configuration", "path", path, "mode", cfg.Mode, "strict", cfg.Strict)

	return nil
}

// home resolves the directory used by cache-purge. A resolution failure is logged and leaves
// the operation without a home, which its precondition reports.
func (s *session) home() string {
	if s.cfg.Cache.Home != "" {
		return s.cfg.Cache.Home
	}

	home, err := s.deps.HomeResolver()
	if err != nil {
		s.lggr.Warnw("Could not resolve the invoking user's home directory", "error", err)
		return ""
	}

	return home
}

// confirm asks question on out and reads the answer from in. Only "y" and "yes" confirm.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		if errors.Is(err, io.EOF) {
			return false, nil
		}

		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
