// Package host is the only place reident touches the running machine. Every read, write and
// external command goes through a [System] so operations can be exercised against a fake.
package host

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// System is the capability object handed to preconditions and mutations.
type System interface {
	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces the contents of the named file.
	WriteFile(name string, data []byte, perm fs.FileMode) error
	// Remove deletes a single file. A missing file is not an error.
	Remove(name string) error
	// RemoveAll deletes path and everything below it.
	RemoveAll(path string) error
	// Stat describes the named file.
	Stat(name string) (fs.FileInfo, error)
	// Glob returns the paths matching pattern, as filepath.Glob does.
	Glob(pattern string) ([]string, error)
	// Run executes an external program and returns its trimmed stdout. A non-zero exit is
	// returned as a *CommandError.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// LookPath reports where the named program is installed.
	LookPath(file string) (string, error)
	// ReadOnly reports whether the filesystem holding path is mounted read-only.
	ReadOnly(path string) (bool, error)
	// Geteuid returns the effective user id of the process.
	Geteuid() int
	// OS returns the operating system name in GOOS form.
	OS() string
	// Platform describes the distribution, kernel and virtualization of the machine.
	Platform(ctx context.Context) (Platform, error)
}

// CommandError is returned by System.Run when a program exits unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", e.Command)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := e.Output(); out != "" {
		msg += ": " + out
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Output returns the diagnostic output of the command, preferring stderr.
func (e *CommandError) Output() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}

	return strings.TrimSpace(e.Stdout)
}

// CommandLine renders a program and its arguments the way they are logged.
func CommandLine(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
