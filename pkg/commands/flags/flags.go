// Package flags provides the flag helpers shared by reident's commands.
//
// Flags that more than one command reads live here so their names, shorthands and help text
// stay the same everywhere. Flags only one command uses are defined next to that command.
package flags

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reident/reident/config"
	"github.com/reident/reident/render"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustStringSlice returns the slice value, ignoring the error.
func MustStringSlice(s []string, _ error) []string { return s }

// MustDuration returns the duration value, ignoring the error.
func MustDuration(d time.Duration, _ error) time.Duration { return d }

// Config adds the persistent --config/-c flag naming the configuration file.
//
// Usage:
//
//	flags.Config(rootCmd)
//	// later in a subcommand:
//	path, _ := cmd.Flags().GetString("config")
func Config(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Configuration file (YAML or TOML)")
}

// EnvFile adds the persistent --env-file flag naming a dotenv file with REIDENT_* variables.
func EnvFile(cmd *cobra.Command) {
	cmd.PersistentFlags().String("env-file", config.DefaultEnvFile, "Dotenv file with REIDENT_* variables")
}

// LogLevel adds the persistent --log-level flag. It overrides log_level from the configuration
// when set.
func LogLevel(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// Output adds the --output/-o flag selecting the output format (default: table).
// Also accepts --format as an alias.
//
// Usage:
//
//	flags.Output(cmd)
//	// later in RunE:
//	format, err := flags.Format(cmd)
func Output(cmd *cobra.Command) {
	names := make([]string, len(render.Formats))
	for i, f := range render.Formats {
		names[i] = string(f)
	}
	cmd.Flags().StringP("output", "o", string(render.FormatTable), "Output format: "+strings.Join(names, ", "))

	existingNormalize := cmd.Flags().GetNormalizeFunc()
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "format" {
			return pflag.NormalizedName("output")
		}
		if existingNormalize != nil {
			return existingNormalize(f, name)
		}

		return pflag.NormalizedName(name)
	})
}

// Format parses the value of the --output flag.
func Format(cmd *cobra.Command) (render.Format, error) {
	return render.ParseFormat(MustString(cmd.Flags().GetString("output")))
}

// Selection adds the --include and --exclude flags. Both take operation IDs and may be repeated
// or comma separated.
func Selection(cmd *cobra.Command) {
	cmd.Flags().StringSlice("include", nil, "Only run these operations")
	cmd.Flags().StringSlice("exclude", nil, "Do not run these operations")
}

// Interface adds the --interface flag naming the network interface to work on.
func Interface(cmd *cobra.Command) {
	cmd.Flags().String("interface", "", "Network interface (default: first eligible ethernet interface)")
}
