package host

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Local is the System backed by the real machine.
type Local struct{}

var _ System = Local{}

// NewLocal returns the System for the machine reident runs on.
func NewLocal() Local { return Local{} }

func (Local) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (Local) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (Local) Remove(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func (Local) RemoveAll(path string) error { return os.RemoveAll(path) }

func (Local) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (Local) Glob(pattern string) ([]string, error) { return filepath.Glob(pattern) }

func (Local) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (Local) Geteuid() int { return os.Geteuid() }

func (Local) OS() string { return runtime.GOOS }

// Run executes name with args. The command is killed when ctx is done.
func (Local) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Command: CommandLine(name, args...),
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cerr.Err = ctxErr
		}

		return "", cerr
	}

	return strings.TrimSpace(stdout.String()), nil
}
