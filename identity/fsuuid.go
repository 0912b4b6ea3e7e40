package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

const (
	// FilesystemUUIDID is the ID of the root filesystem UUID operation.
	FilesystemUUIDID = "filesystem-uuid"

	fstabPath    = "/etc/fstab"
	crypttabPath = "/etc/crypttab"
)

// FilesystemOptions configures the filesystem UUID operation.
type FilesystemOptions struct {
	// UUID to assign. Empty generates a random one.
	UUID string
}

// rootFS describes the filesystem mounted at /.
type rootFS struct {
	Source string
	Type   string
	UUID   string
}

func findmnt(ctx context.Context, sys host.System, column string) (string, error) {
	out, err := sys.Run(ctx, "findmnt", "-no", column, "/")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

func lookupRootFS(ctx context.Context, sys host.System) (rootFS, error) {
	var (
		root rootFS
		err  error
	)
	if root.Source, err = findmnt(ctx, sys, "SOURCE"); err != nil {
		return rootFS{}, err
	}
	if root.Source == "" {
		return rootFS{}, errors.New("root filesystem source is empty")
	}
	if root.Type, err = findmnt(ctx, sys, "FSTYPE"); err != nil {
		return rootFS{}, err
	}
	if root.UUID, err = findmnt(ctx, sys, "UUID"); err != nil {
		return rootFS{}, err
	}
	root.UUID = strings.ToLower(root.UUID)

	return root, nil
}

// tuneCommand returns the program and arguments that assign id to the filesystem on dev.
func tuneCommand(fstype, dev, id string) (string, []string, error) {
	switch fstype {
	case "ext4":
		return "tune2fs", []string{"-U", id, dev}, nil
	case "btrfs":
		return "btrfstune", []string{"-f", "-U", id, dev}, nil
	default:
		return "", nil, fmt.Errorf("unsupported filesystem type %q", fstype)
	}
}

// FilesystemUUID returns the operation that assigns a new UUID to the root filesystem and
// rewrites the references to it in /etc/fstab and /etc/crypttab.
func FilesystemUUID(opts FilesystemOptions) *operations.Operation {
	check := func(ctx context.Context, sys host.System) operations.Verdict {
		if goos := sys.OS(); goos != "linux" {
			return operations.Unsatisfiedf("requires linux, running on %s", goos)
		}
		for _, tool := range []string{"findmnt", "blkid"} {
			if _, err := sys.LookPath(tool); err != nil {
				return operations.Unsatisfiedf("%s command not found", tool)
			}
		}

		root, err := lookupRootFS(ctx, sys)
		if err != nil {
			return operations.ProbeFailed(err)
		}
		tool, _, err := tuneCommand(root.Type, root.Source, "")
		if err != nil {
			return operations.Unsatisfied(err.Error())
		}
		if _, err := sys.LookPath(tool); err != nil {
			return operations.Unsatisfiedf("%s command not found", tool)
		}

		ro, err := sys.ReadOnly("/etc")
		switch {
		case errors.Is(err, errors.ErrUnsupported):
		case err != nil:
			return operations.ProbeFailed(err)
		case ro:
			return operations.Unsatisfied("/etc is mounted read-only")
		}

		return operations.Satisfied()
	}

	capture := func(ctx context.Context, sys host.System) (string, error) {
		id, err := findmnt(ctx, sys, "UUID")
		return strings.ToLower(id), err
	}

	target := func(context.Context, host.System) (string, error) {
		if opts.UUID == "" {
			return uuid.New().String(), nil
		}
		id, err := uuid.Parse(opts.UUID)
		if err != nil {
			return "", fmt.Errorf("invalid filesystem UUID %q: %w", opts.UUID, err)
		}

		return id.String(), nil
	}

	restore := func(ctx context.Context, sys host.System, prior string) error {
		_, err := changeRootUUID(ctx, sys, prior)
		return err
	}

	return operations.NewOperation(FilesystemUUIDID, semver.MustParse("1.0.0"),
		"Assign a new UUID to the root filesystem", changeRootUUID,
		operations.WithRisk(operations.RiskHigh),
		operations.RequiresReboot(),
		operations.WithPrecondition(check),
		operations.WithCapture(capture),
		operations.WithTarget(target),
		operations.WithRestore(restore),
	)
}

func changeRootUUID(ctx context.Context, sys host.System, id string) (operations.Change, error) {
	root, err := lookupRootFS(ctx, sys)
	if err != nil {
		return operations.Change{}, err
	}
	name, args, err := tuneCommand(root.Type, root.Source, id)
	if err != nil {
		return operations.Change{}, err
	}
	if _, err := sys.Run(ctx, name, args...); err != nil {
		return operations.Change{}, err
	}

	err = readBack(ctx, id, func() (string, error) {
		out, err := sys.Run(ctx, "blkid", "-s", "UUID", "-o", "value", root.Source)
		return strings.ToLower(strings.TrimSpace(out)), err
	})
	if err != nil {
		return operations.Change{}, err
	}

	var updated []string
	if root.UUID != "" && root.UUID != id {
		for _, path := range []string{fstabPath, crypttabPath} {
			n, err := replaceUUID(sys, path, root.UUID, id)
			if err != nil {
				return operations.Change{}, fmt.Errorf("filesystem UUID changed but %s was not updated: %w", path, err)
			}
			if n > 0 {
				updated = append(updated, path)
			}
		}
	}

	detail := fmt.Sprintf("%s now has UUID %s", root.Source, id)
	if len(updated) > 0 {
		detail += "; updated " + strings.Join(updated, ", ")
	}

	return operations.Change{Detail: detail, NewValue: id}, nil
}

// replaceUUID rewrites every UUID=old reference in path. A missing file is left alone.
func replaceUUID(sys host.System, path, old, id string) (int, error) {
	b, err := sys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	re := regexp.MustCompile(`(?i)UUID=` + regexp.QuoteMeta(old))
	n := len(re.FindAllIndex(b, -1))
	if n == 0 {
		return 0, nil
	}

	var mode fs.FileMode = 0o644
	if fi, err := sys.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	return n, sys.WriteFile(path, re.ReplaceAllLiteral(b, []byte("UUID="+id)), mode)
}
