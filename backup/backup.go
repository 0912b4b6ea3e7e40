// Package backup records the value of every identifier right before reident changes it, so a
// run can be undone with Restore.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reident/reident/operations"
)

// DefaultPath is where the CLI keeps the backup file unless configured otherwise.
const DefaultPath = "/var/lib/reident/backup.yaml"

// Record is one prior value captured before a mutation.
type Record struct {
	OperationName string    `json:"operation_name" yaml:"operation_name" toml:"operation_name"`
	PriorValue    string    `json:"prior_value" yaml:"prior_value" toml:"prior_value"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
}

type document struct {
	Records []Record `yaml:"records"`
}

// File is an operations.BackupHook that appends records to a YAML file. Each Record call
// rewrites the file through a temporary file and a rename, so a crash never leaves a truncated
// backup behind.
type File struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ operations.BackupHook = (*File)(nil)

// NewFile returns a File writing to path.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// Path returns the location of the backup file.
func (f *File) Path() string { return f.path }

// Record appends the prior value of def to the backup file.
func (f *File) Record(_ context.Context, def operations.Definition, prior string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := Load(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	records = append(records, Record{
		OperationName: def.ID,
		PriorValue:    prior,
		Timestamp:     f.now().UTC(),
	})

	return write(f.path, records)
}

// Load reads every record from the backup file at path.
func Load(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", path, err)
	}

	return doc.Records, nil
}

func write(path string, records []Record) error {
	b, err := yaml.Marshal(document{Records: records})
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace backup: %w", err)
	}

	return nil
}
