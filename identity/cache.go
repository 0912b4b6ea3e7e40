package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

// CachePurgeID is the ID of the cache purge operation.
const CachePurgeID = "cache-purge"

// DefaultCacheGlobs are the editor cache directories purged when no globs are configured. They
// hold installation and telemetry ids of VS Code, Cursor and Augment.
var DefaultCacheGlobs = []string{
	".config/Code*",
	".vscode*",
	".config/cursor",
	".cursor",
	".cache/augment*",
}

// CacheOptions configures the cache purge operation.
type CacheOptions struct {
	// Home is the directory the globs are resolved against.
	Home string
	// Globs are filepath.Match patterns relative to Home.
	Globs []string
}

// ValidateGlob rejects patterns that could reach outside the home directory.
func ValidateGlob(pattern string) error {
	switch {
	case strings.TrimSpace(pattern) == "":
		return errors.New("empty cache glob")
	case filepath.IsAbs(pattern):
		return fmt.Errorf("cache glob %q must be relative to the home directory", pattern)
	case !filepath.IsLocal(filepath.Clean(pattern)):
		return fmt.Errorf("cache glob %q escapes the home directory", pattern)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("cache glob %q: %w", pattern, err)
	}

	return nil
}

// InvokingUserHome returns the home directory of the user who invoked the program. Under sudo
// that is SUDO_USER's home rather than root's.
func InvokingUserHome() (string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" && name != "root" {
		u, err := user.Lookup(name)
		if err != nil {
			return "", fmt.Errorf("lookup sudo user %s: %w", name, err)
		}

		return u.HomeDir, nil
	}

	return os.UserHomeDir()
}

func cacheMatches(sys host.System, opts CacheOptions) ([]string, error) {
	var matches []string
	for _, g := range opts.Globs {
		if err := ValidateGlob(g); err != nil {
			return nil, err
		}
		m, err := sys.Glob(filepath.Join(opts.Home, g))
		if err != nil {
			return nil, err
		}
		matches = append(matches, m...)
	}

	return matches, nil
}

// CachePurge returns the operation that removes every path matching the configured globs under
// the home directory. No paths are purged unless globs are configured.
func CachePurge(opts CacheOptions) *operations.Operation {
	check := func(_ context.Context, sys host.System) operations.Verdict {
		if len(opts.Globs) == 0 {
			return operations.Unsatisfied("no cache globs configured")
		}
		if opts.Home == "" {
			return operations.Unsatisfied("home directory is not set")
		}
		fi, err := sys.Stat(opts.Home)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return operations.Unsatisfiedf("home directory %s does not exist", opts.Home)
		case err != nil:
			return operations.ProbeFailed(err)
		case !fi.IsDir():
			return operations.Unsatisfiedf("%s is not a directory", opts.Home)
		}

		matches, err := cacheMatches(sys, opts)
		if err != nil {
			return operations.ProbeFailed(err)
		}
		if len(matches) == 0 {
			return operations.AlreadyApplied("no cache paths found")
		}

		return operations.Satisfied()
	}

	apply := func(_ context.Context, sys host.System, _ string) (operations.Change, error) {
		matches, err := cacheMatches(sys, opts)
		if err != nil {
			return operations.Change{}, err
		}

		var errs []error
		removed := 0
		for _, path := range matches {
			if err := sys.RemoveAll(path); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
				continue
			}
			removed++
		}
		if err := errors.Join(errs...); err != nil {
			return operations.Change{}, err
		}

		return operations.Change{Detail: fmt.Sprintf("removed %d cache paths", removed)}, nil
	}

	return operations.NewOperation(CachePurgeID, semver.MustParse("1.0.0"),
		"Purge configured cache directories under the home directory", apply,
		operations.WithPrecondition(check),
	)
}
