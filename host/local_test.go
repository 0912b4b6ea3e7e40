package host

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Run(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	sys := NewLocal()

	t.Run("stdout is trimmed", func(t *testing.T) {
		t.Parallel()

		out, err := sys.Run(t.Context(), "sh", "-c", "echo '  hello  '")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()

		_, err := sys.Run(t.Context(), "sh", "-c", "echo boom >&2; exit 3")
		require.Error(t, err)

		var cerr *CommandError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, 3, cerr.ExitCode)
		assert.Equal(t, "boom", cerr.Output())
		assert.Equal(t, "sh -c echo boom >&2; exit 3", cerr.Command)
		assert.Contains(t, err.Error(), "(exit 3)")
	})
}

func TestLocal_Files(t *testing.T) {
	t.Parallel()

	sys := NewLocal()
	dir := t.TempDir()
	name := filepath.Join(dir, "machine-id")

	require.NoError(t, sys.WriteFile(name, []byte("abc\n"), 0o444))
	b, err := sys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", string(b))

	matches, err := sys.Glob(filepath.Join(dir, "machine-*"))
	require.NoError(t, err)
	assert.Equal(t, []string{name}, matches)

	require.NoError(t, sys.Remove(name))
	require.NoError(t, sys.Remove(name), "removing a missing file is not an error")

	_, err = sys.Stat(name)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	inner := errors.New("exit status 1")
	err := &CommandError{
		Command:  "ip link set dev eth0 down",
		ExitCode: 1,
		Stdout:   "ignored",
		Stderr:   "RTNETLINK answers: Operation not permitted\n",
		Err:      inner,
	}

	assert.Equal(t, "RTNETLINK answers: Operation not permitted", err.Output())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t,
		`command "ip link set dev eth0 down" failed (exit 1): exit status 1: RTNETLINK answers: Operation not permitted`,
		err.Error())

	assert.Equal(t, "hostnamectl set-hostname box", CommandLine("hostnamectl", "set-hostname", "box"))
	assert.Equal(t, "true", CommandLine("true"))
}

func TestLocal_Platform(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("platform details are only read on linux")
	}

	p, err := NewLocal().Platform(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "linux", p.OS)
	assert.NotEmpty(t, p.Kernel)
}

func TestPlatform_Guest(t *testing.T) {
	t.Parallel()

	assert.False(t, Platform{OS: "linux"}.Guest())
	assert.True(t, Platform{OS: "linux", Virtualization: "kvm"}.Guest())
}
