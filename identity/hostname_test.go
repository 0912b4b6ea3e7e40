package identity_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/host/hosttest"
	"github.com/reident/reident/identity"
	"github.com/reident/reident/operations"
)

// hostnamectl emulates `hostnamectl set-hostname` by rewriting /etc/hostname.
func hostnamectl(sys *hosttest.Fake) hosttest.Handler {
	var mu sync.Mutex
	return func(_ context.Context, args []string) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		sys.SetFile("/etc/hostname", args[1]+"\n")

		return "", nil
	}
}

func TestHostname_Apply(t *testing.T) {
	t.Parallel()

	sys := hosttest.New().SetFile("/etc/hostname", "template-vm\n")
	sys.Handle("hostnamectl", hostnamectl(sys))
	op := identity.Hostname(identity.HostnameOptions{Value: "build-runner-7"})

	res := runOne(t, sys, op)
	require.Equal(t, operations.StatusSuccess, res.Status, res.Detail)
	assert.Equal(t, "template-vm", res.PriorValue)
	assert.Equal(t, "build-runner-7", res.NewValue)
	assert.Equal(t, "hostname set to build-runner-7", res.Detail)
	assert.Equal(t, []string{"hostnamectl set-hostname build-runner-7"}, sys.Calls())

	again := runOne(t, sys, op)
	assert.Equal(t, operations.DetailNoop, again.Detail)
}

func TestHostname_Random(t *testing.T) {
	t.Parallel()

	sys := hosttest.New().Respond("hostname", "template-vm", nil)
	sys.Handle("hostnamectl", hostnamectl(sys))

	res := runOne(t, sys, identity.Hostname(identity.HostnameOptions{}))
	require.Equal(t, operations.StatusSuccess, res.Status, res.Detail)
	assert.Equal(t, "template-vm", res.PriorValue, "falls back to the hostname command")
	assert.Regexp(t, regexp.MustCompile(`^sandbox-[1-9][0-9]{3}$`), res.NewValue)
}

func TestHostname_Precondition(t *testing.T) {
	t.Parallel()

	v := operations.Check(t.Context(), identity.Hostname(identity.HostnameOptions{}), hosttest.New())
	assert.Equal(t, operations.Unsatisfied("hostnamectl command not found"), v)

	sys := hosttest.New().Install("hostnamectl").SetFile("/etc/hostname", "box\n")
	res := runOne(t, sys, identity.Hostname(identity.HostnameOptions{Value: "-bad-"}))
	assert.Equal(t, operations.StatusFailed, res.Status)
	assert.Equal(t, `resolve target value: invalid hostname "-bad-"`, res.Detail)
}

func TestRandomHostname(t *testing.T) {
	t.Parallel()

	for range 500 {
		name := identity.RandomHostname()
		require.Regexp(t, `^sandbox-\d{4}$`, name)
		require.NoError(t, identity.ValidateHostname(name))
	}
}

func TestValidateHostname(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"a", "sandbox-1234", "Node01"} {
		assert.NoError(t, identity.ValidateHostname(ok), ok)
	}
	for _, bad := range []string{"", "-lead", "trail-", "has.dot", "under_score", strings.Repeat("a", 64)} {
		assert.Error(t, identity.ValidateHostname(bad), bad)
	}
}
