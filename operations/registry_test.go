package operations_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/operations"
	"github.com/reident/reident/operations/optest"
)

func ids(ops []*operations.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID()
	}

	return out
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg, err := operations.NewRegistry(optest.Succeed("a", nil), optest.Succeed("b", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	err = reg.Register(optest.Succeed("a", nil))
	require.ErrorIs(t, err, operations.ErrDuplicateName)
	assert.ErrorContains(t, err, "register a")
	assert.Equal(t, 2, reg.Len(), "a rejected registration leaves the registry unchanged")

	require.Error(t, reg.Register(nil))
	require.Error(t, reg.Register(optest.Succeed("", nil)))

	_, err = operations.NewRegistry(optest.Succeed("x", nil), optest.Fail("x", "boom", nil))
	require.ErrorIs(t, err, operations.ErrDuplicateName)
}

func TestRegistry_Register_DoesNotInvoke(t *testing.T) {
	t.Parallel()

	var c optest.Counter
	_, err := operations.NewRegistry(optest.Succeed("a", &c), optest.Fail("b", "boom", &c))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Calls())
}

func TestRegistry_All(t *testing.T) {
	t.Parallel()

	var reg operations.Registry
	for _, id := range []string{"mac-address", "machine-id", "hostname"} {
		require.NoError(t, reg.Register(optest.Succeed(id, nil)))
	}

	first := ids(slices.Collect(reg.All()))
	second := ids(slices.Collect(reg.All()))
	assert.Equal(t, []string{"mac-address", "machine-id", "hostname"}, first)
	assert.Equal(t, first, second, "the sequence is restartable")

	// stopping early is honoured
	var seen []string
	for op := range reg.All() {
		seen = append(seen, op.ID())
		break
	}
	assert.Equal(t, []string{"mac-address"}, seen)

	op, ok := reg.Lookup("machine-id")
	require.True(t, ok)
	assert.Equal(t, "machine-id", op.ID())
	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_Select(t *testing.T) {
	t.Parallel()

	reg, err := operations.NewRegistry(
		optest.Succeed("mac-address", nil),
		optest.Succeed("machine-id", nil),
		optest.Succeed("filesystem-uuid", nil),
		optest.Succeed("hostname", nil),
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
		wantErr error
	}{
		{
			name: "everything",
			want: []string{"mac-address", "machine-id", "filesystem-uuid", "hostname"},
		},
		{
			name:    "exclude filesystem uuid",
			exclude: []string{"filesystem-uuid"},
			want:    []string{"mac-address", "machine-id", "hostname"},
		},
		{
			name:    "include keeps registration order",
			include: []string{"hostname", "mac-address"},
			want:    []string{"mac-address", "hostname"},
		},
		{
			name:    "include and exclude",
			include: []string{"hostname", "mac-address"},
			exclude: []string{"hostname"},
			want:    []string{"mac-address"},
		},
		{
			name:    "unknown include",
			include: []string{"bios-serial"},
			wantErr: operations.ErrUnknownOperation,
		},
		{
			name:    "unknown exclude",
			exclude: []string{"bios-serial"},
			wantErr: operations.ErrUnknownOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := reg.Select(tt.include, tt.exclude)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
