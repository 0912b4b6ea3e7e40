package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/host"
	"github.com/reident/reident/host/hosttest"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/operations/optest"
	"github.com/reident/reident/pkg/logger"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func def(id string) operations.Definition {
	return operations.Definition{ID: id, Version: semver.MustParse("1.0.0")}
}

func Test_File_Record(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "backup.yaml")
	f := NewFile(path)
	f.now = fixedClock()

	require.NoError(t, f.Record(t.Context(), def("hostname"), "template-vm"))
	require.NoError(t, f.Record(t.Context(), def("machine-id"), "0f1e2d3c4b5a69788796a5b4c3d2e1f0"))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{OperationName: "hostname", PriorValue: "template-vm", Timestamp: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)},
		{OperationName: "machine-id", PriorValue: "0f1e2d3c4b5a69788796a5b4c3d2e1f0", Timestamp: time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)},
	}, got)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "operation_name: hostname")
	assert.Contains(t, string(raw), "prior_value: template-vm")
}

func Test_Load(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("records: {"), 0o600))
	_, err = Load(bad)
	require.ErrorContains(t, err, "parse backup")
}

func Test_File_RecordCorruptBackup(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("records: ["), 0o600))

	err := NewFile(path).Record(t.Context(), def("hostname"), "x")
	require.ErrorContains(t, err, "parse backup")
}

func Test_File_AsSequencerHook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backup.yaml")
	op := optest.Succeed("hostname", nil,
		operations.WithCapture(func(context.Context, host.System) (string, error) { return "template-vm", nil }))

	_, err := optest.NewSequencer(t, hosttest.New(), operations.WithBackup(NewFile(path))).
		Run(t.Context(), []*operations.Operation{op}, operations.ContinueOnFailure)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hostname", got[0].OperationName)
	assert.Equal(t, "template-vm", got[0].PriorValue)
	assert.False(t, got[0].Timestamp.IsZero())
}

func Test_Restore(t *testing.T) {
	t.Parallel()

	var restored []string
	restorable := func(id string, fail bool) *operations.Operation {
		return optest.Succeed(id, nil, operations.WithRestore(func(_ context.Context, _ host.System, prior string) error {
			if fail {
				return errors.New("device busy")
			}
			restored = append(restored, id+"="+prior)

			return nil
		}))
	}
	reg, err := operations.NewRegistry(
		restorable("hostname", false),
		restorable("machine-id", false),
		restorable("filesystem-uuid", true),
		optest.Succeed("cache-purge", nil),
	)
	require.NoError(t, err)

	records := []Record{
		{OperationName: "hostname", PriorValue: "template-vm"},
		{OperationName: "machine-id", PriorValue: "aaaa"},
		{OperationName: "hostname", PriorValue: "sandbox-1234"},
		{OperationName: "filesystem-uuid", PriorValue: "6f1c1a43-2b9e-4d6a-9a1e-1f3c5b7d9e21"},
		{OperationName: "cache-purge"},
		{OperationName: "bios-serial", PriorValue: "X"},
	}

	results, err := Restore(t.Context(), logger.Test(t), hosttest.New(), reg, records, time.Second)
	require.ErrorContains(t, err, "restore filesystem-uuid: device busy")

	assert.Equal(t, []string{"machine-id=aaaa", "hostname=template-vm"}, restored,
		"oldest value wins and the last change is undone first")

	statuses := map[string]operations.Status{}
	for _, r := range results {
		statuses[r.OperationName] = r.Status
	}
	assert.Equal(t, map[string]operations.Status{
		"bios-serial":     operations.StatusSkipped,
		"cache-purge":     operations.StatusSkipped,
		"filesystem-uuid": operations.StatusFailed,
		"machine-id":      operations.StatusSuccess,
		"hostname":        operations.StatusSuccess,
	}, statuses)
	assert.Equal(t, "bios-serial", results[0].OperationName)
}

func Test_Restore_Timeout(t *testing.T) {
	t.Parallel()

	sys := hosttest.New().Handle("tune2fs", hosttest.Block(nil))
	op := optest.Succeed("filesystem-uuid", nil, operations.WithRestore(
		func(ctx context.Context, sys host.System, prior string) error {
			_, err := sys.Run(ctx, "tune2fs", "-U", prior, "/dev/sda1")
			return err
		}))
	reg, err := operations.NewRegistry(op)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	start := time.Now()
	results, err := Restore(ctx, logger.Test(t), sys, reg,
		[]Record{{OperationName: "filesystem-uuid", PriorValue: "6f1c1a43-2b9e-4d6a-9a1e-1f3c5b7d9e21"}},
		50*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded, "a cancelled caller does not interrupt the restore")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.Len(t, results, 1)
	assert.Equal(t, operations.StatusFailed, results[0].Status)
}
