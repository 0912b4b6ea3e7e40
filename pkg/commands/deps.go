package commands

import (
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"

	"github.com/reident/reident/config"
	"github.com/reident/reident/host"
	"github.com/reident/reident/identity"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/logger"
)

// ConfigLoaderFunc loads the configuration from path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// EnvFileLoaderFunc exports the variables of a dotenv file.
type EnvFileLoaderFunc func(path string) error

// LoggerFunc builds the logger used for a command. w is the command's error output.
type LoggerFunc func(level zapcore.Level, w io.Writer) (logger.Logger, error)

// RegistryFunc builds the registry of operations from the resolved options.
type RegistryFunc func(opts identity.Options) (*operations.Registry, error)

// EnvironmentCheckFunc returns the check run before the selected operations.
type EnvironmentCheckFunc func(ops []*operations.Operation) operations.EnvironmentCheck

// HomeResolverFunc returns the home directory whose caches are purged.
type HomeResolverFunc func() (string, error)

// ColorFunc reports whether output written to w should be colored.
type ColorFunc func(w io.Writer) bool

func defaultLogger(level zapcore.Level, w io.Writer) (logger.Logger, error) {
	cfg := logger.Config{Level: level, Output: w}

	return cfg.New()
}

// defaultUseColor colors terminals unless NO_COLOR is set.
func defaultUseColor(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok || color.NoColor {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Deps holds the injectable dependencies for reident commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// EnvFileLoader exports the dotenv file before the configuration is loaded.
	// Default: config.LoadEnvFile
	EnvFileLoader EnvFileLoaderFunc

	// ConfigLoader loads the configuration file and environment.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// NewLogger builds the logger once the log level is known.
	// Default: a console logger writing to the command's error output
	NewLogger LoggerFunc

	// System is the host the operations run against.
	// Default: host.NewLocal()
	System host.System

	// Registry builds the operations.
	// Default: identity.DefaultRegistry
	Registry RegistryFunc

	// EnvironmentCheck gates runs and restores.
	// Default: identity.DefaultEnvironmentCheck
	EnvironmentCheck EnvironmentCheckFunc

	// HomeResolver finds the home directory when cache.home is not configured.
	// Default: identity.InvokingUserHome
	HomeResolver HomeResolverFunc

	// UseColor decides whether tables and progress lines are colored.
	// Default: color on terminals unless NO_COLOR is set
	UseColor ColorFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.EnvFileLoader == nil {
		d.EnvFileLoader = config.LoadEnvFile
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.NewLogger == nil {
		d.NewLogger = defaultLogger
	}
	if d.System == nil {
		d.System = host.NewLocal()
	}
	if d.Registry == nil {
		d.Registry = identity.DefaultRegistry
	}
	if d.EnvironmentCheck == nil {
		d.EnvironmentCheck = identity.DefaultEnvironmentCheck
	}
	if d.HomeResolver == nil {
		d.HomeResolver = identity.InvokingUserHome
	}
	if d.UseColor == nil {
		d.UseColor = defaultUseColor
	}
}
