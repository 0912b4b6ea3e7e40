// Package hosttest provides an in-memory host.System for tests.
package hosttest

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/reident/reident/host"
)

// Handler scripts the behaviour of a fake program.
type Handler func(ctx context.Context, args []string) (string, error)

type response struct {
	out string
	err error
}

// Fake is an in-memory host.System. Files and directories live in maps, programs are
// scripted with Handle or Respond, and every Run call is recorded.
// A Fake is safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	files     map[string][]byte
	dirs      map[string]bool
	readOnly  []string
	programs  map[string]bool
	handlers  map[string]Handler
	responses map[string]response
	calls     []string
	euid      int
	goos      string
	platform  host.Platform
}

var _ host.System = (*Fake)(nil)

// New returns a Fake Linux host running as root with nothing installed.
func New() *Fake {
	return &Fake{
		files:     map[string][]byte{},
		dirs:      map[string]bool{"/": true},
		programs:  map[string]bool{},
		handlers:  map[string]Handler{},
		responses: map[string]response{},
		euid:      0,
		goos:      "linux",
		platform:  host.Platform{OS: "linux"},
	}
}

// SetFile stores content under name, creating parent directories.
func (f *Fake) SetFile(name, content string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[name] = []byte(content)
	f.mkdirAllLocked(filepath.Dir(name))

	return f
}

// File returns the content stored under name.
func (f *Fake) File(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.files[name]

	return string(b), ok
}

// MkdirAll records path and its parents as directories.
func (f *Fake) MkdirAll(path string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mkdirAllLocked(path)

	return f
}

func (f *Fake) mkdirAllLocked(path string) {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		f.dirs[p] = true
		if p == "/" || p == "." {
			return
		}
	}
}

// Install makes programs visible to LookPath. Unscripted programs print nothing and succeed.
func (f *Fake) Install(programs ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range programs {
		f.programs[p] = true
	}

	return f
}

// Handle installs program and scripts every invocation of it with h.
func (f *Fake) Handle(program string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.programs[program] = true
	f.handlers[program] = h

	return f
}

// Respond scripts the exact command line (program plus arguments joined by spaces). It takes
// precedence over a Handler registered for the same program.
func (f *Fake) Respond(cmdline, out string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, _, _ := strings.Cut(cmdline, " ")
	f.programs[name] = true
	f.responses[cmdline] = response{out: out, err: err}

	return f
}

// SetReadOnly marks the filesystem holding path (and everything below it) read-only.
func (f *Fake) SetReadOnly(path string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readOnly = append(f.readOnly, filepath.Clean(path))

	return f
}

// SetEuid sets the effective user id returned by Geteuid.
func (f *Fake) SetEuid(uid int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.euid = uid

	return f
}

// SetOS sets the value returned by OS.
func (f *Fake) SetOS(goos string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.goos = goos

	return f
}

// SetPlatform sets the value returned by Platform.
func (f *Fake) SetPlatform(p host.Platform) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.platform = p

	return f
}

// Calls returns the command lines passed to Run, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.calls)
}

func (f *Fake) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	return slices.Clone(b), nil
}

func (f *Fake) WriteFile(name string, data []byte, _ fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnlyLocked(name) {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	f.files[name] = slices.Clone(data)
	f.mkdirAllLocked(filepath.Dir(name))

	return nil
}

func (f *Fake) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnlyLocked(name) {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrPermission}
	}
	delete(f.files, name)

	return nil
}

func (f *Fake) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = filepath.Clean(path)
	if f.readOnlyLocked(path) {
		return &fs.PathError{Op: "unlinkat", Path: path, Err: fs.ErrPermission}
	}
	prefix := path + "/"
	for name := range f.files {
		if name == path || strings.HasPrefix(name, prefix) {
			delete(f.files, name)
		}
	}
	for name := range f.dirs {
		if name == path || strings.HasPrefix(name, prefix) {
			delete(f.dirs, name)
		}
	}

	return nil
}

func (f *Fake) Stat(name string) (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	if b, ok := f.files[name]; ok {
		return fileInfo{name: filepath.Base(name), size: int64(len(b))}, nil
	}
	if f.dirs[name] {
		return fileInfo{name: filepath.Base(name), dir: true}, nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (f *Fake) Glob(pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	var matches []string
	for _, set := range []iter.Seq[string]{maps.Keys(f.files), maps.Keys(f.dirs)} {
		for name := range set {
			if ok, _ := filepath.Match(pattern, name); ok {
				matches = append(matches, name)
			}
		}
	}
	slices.Sort(matches)

	return slices.Compact(matches), nil
}

func (f *Fake) LookPath(file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.programs[file] {
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}

	return "/usr/bin/" + file, nil
}

func (f *Fake) ReadOnly(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.readOnlyLocked(path), nil
}

func (f *Fake) Geteuid() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.euid
}

func (f *Fake) OS() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.goos
}

func (f *Fake) Platform(context.Context) (host.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.platform, nil
}

// Run records the call and dispatches it to the scripted response or handler. The lock is
// released before a handler runs so handlers may modify the Fake.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmdline := host.CommandLine(name, args...)

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	resp, scripted := f.responses[cmdline]
	handler := f.handlers[name]
	installed := f.programs[name]
	f.mu.Unlock()

	switch {
	case scripted:
		if resp.err != nil {
			return "", &host.CommandError{Command: cmdline, ExitCode: 1, Stderr: resp.err.Error(), Err: resp.err}
		}

		return resp.out, nil
	case handler != nil:
		out, err := handler(ctx, args)
		if err != nil {
			return "", &host.CommandError{Command: cmdline, ExitCode: 1, Stderr: err.Error(), Err: err}
		}

		return strings.TrimSpace(out), nil
	case !installed:
		return "", &host.CommandError{
			Command: cmdline,
			Err:     fmt.Errorf("%s: %w", name, exec.ErrNotFound),
		}
	default:
		return "", nil
	}
}

func (f *Fake) readOnlyLocked(path string) bool {
	path = filepath.Clean(path)
	for _, ro := range f.readOnly {
		if ro == "/" || path == ro || strings.HasPrefix(path, ro+"/") {
			return true
		}
	}

	return false
}

// Block returns a Handler that waits until ctx is done or release is closed.
func Block(release <-chan struct{}) Handler {
	return func(ctx context.Context, _ []string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "", nil
		}
	}
}

// Sleep returns a Handler that takes d to complete and ignores ctx.
func Sleep(d time.Duration, out string) Handler {
	return func(context.Context, []string) (string, error) {
		time.Sleep(d)
		return out, nil
	}
}

type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (i fileInfo) Name() string { return i.name }
func (i fileInfo) Size() int64  { return i.size }
func (i fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}

	return 0o644
}
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return i.dir }
func (i fileInfo) Sys() any           { return nil }
