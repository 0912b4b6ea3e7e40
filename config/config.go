// Package config loads reident's configuration from an optional YAML or TOML file and
// REIDENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/reident/reident/backup"
	"github.com/reident/reident/identity"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/logger"
)

// DefaultPath is the configuration file read when no other is given.
const DefaultPath = "/etc/reident/config.yaml"

// BackupConfig controls recording of prior values.
type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // Where the backup records are written
}

// MACConfig is the configuration of the mac-address operation.
type MACConfig struct {
	Interface string `mapstructure:"interface" yaml:"interface"` // Empty picks the first eligible interface
	Address   string `mapstructure:"address" yaml:"address"`     // Empty generates a random address
}

// MachineIDConfig is the configuration of the machine-id operation.
type MachineIDConfig struct {
	Value string `mapstructure:"value" yaml:"value"` // Empty lets systemd generate the id
}

// FilesystemConfig is the configuration of the filesystem-uuid operation.
type FilesystemConfig struct {
	UUID string `mapstructure:"uuid" yaml:"uuid"` // Empty generates a random UUID
}

// HostnameConfig is the configuration of the hostname operation.
type HostnameConfig struct {
	Value string `mapstructure:"value" yaml:"value"` // Empty picks sandbox-NNNN
}

// CacheConfig is the configuration of the cache-purge operation.
type CacheConfig struct {
	Home  string   `mapstructure:"home" yaml:"home"`   // Empty resolves the invoking user's home
	Globs []string `mapstructure:"globs" yaml:"globs"` // Patterns relative to home, identity.DefaultCacheGlobs when unset
}

// SelectionConfig narrows the operations that run.
type SelectionConfig struct {
	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// Config is the entire reident configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level"`
	Mode       string           `mapstructure:"mode" yaml:"mode"`
	Strict     bool             `mapstructure:"strict" yaml:"strict"`
	Timeout    time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	LockFile   string           `mapstructure:"lock_file" yaml:"lock_file"`
	Backup     BackupConfig     `mapstructure:"backup" yaml:"backup"`
	MAC        MACConfig        `mapstructure:"mac" yaml:"mac"`
	MachineID  MachineIDConfig  `mapstructure:"machine_id" yaml:"machine_id"`
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem"`
	Hostname   HostnameConfig   `mapstructure:"hostname" yaml:"hostname"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Operations SelectionConfig  `mapstructure:"operations" yaml:"operations"`
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", filePath, err)
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file, ignoring the environment.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("mode", string(operations.ContinueOnFailure))
	v.SetDefault("timeout", operations.DefaultTimeout)
	v.SetDefault("lock_file", operations.DefaultLockPath)
	v.SetDefault("backup.path", backup.DefaultPath)
	v.SetDefault("cache.globs", slices.Clone(identity.DefaultCacheGlobs))

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

var (
	// envBindings maps each config key to the environment variables that can provide it. Viper
	// checks the variables in order and uses the first one that is set.
	envBindings = map[string][]string{
		"log_level":          {"REIDENT_LOG_LEVEL"},
		"mode":               {"REIDENT_MODE"},
		"strict":             {"REIDENT_STRICT"},
		"timeout":            {"REIDENT_TIMEOUT"},
		"lock_file":          {"REIDENT_LOCK_FILE"},
		"backup.enabled":     {"REIDENT_BACKUP_ENABLED", "REIDENT_BACKUP"},
		"backup.path":        {"REIDENT_BACKUP_PATH"},
		"mac.interface":      {"REIDENT_MAC_INTERFACE", "REIDENT_INTERFACE"},
		"mac.address":        {"REIDENT_MAC_ADDRESS"},
		"machine_id.value":   {"REIDENT_MACHINE_ID"},
		"filesystem.uuid":    {"REIDENT_FILESYSTEM_UUID"},
		"hostname.value":     {"REIDENT_HOSTNAME"},
		"cache.home":         {"REIDENT_CACHE_HOME"},
		"cache.globs":        {"REIDENT_CACHE_GLOBS"},
		"operations.include": {"REIDENT_INCLUDE"},
		"operations.exclude": {"REIDENT_EXCLUDE"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the config key to the list of env names
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the values that cannot be decided at decode time.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := operations.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Backup.Enabled && c.Backup.Path == "" {
		errs = append(errs, errors.New("backup.path is required when backup is enabled"))
	}
	if c.MAC.Address != "" {
		if err := identity.ValidateMAC(c.MAC.Address); err != nil {
			errs = append(errs, fmt.Errorf("mac.address: %w", err))
		}
	}
	if c.MachineID.Value != "" {
		if err := identity.ValidateMachineID(c.MachineID.Value); err != nil {
			errs = append(errs, fmt.Errorf("machine_id.value: %w", err))
		}
	}
	if c.Filesystem.UUID != "" {
		if err := uuid.Validate(c.Filesystem.UUID); err != nil {
			errs = append(errs, fmt.Errorf("filesystem.uuid: %w", err))
		}
	}
	if c.Hostname.Value != "" {
		if err := identity.ValidateHostname(c.Hostname.Value); err != nil {
			errs = append(errs, fmt.Errorf("hostname.value: %w", err))
		}
	}
	for _, g := range c.Cache.Globs {
		if err := identity.ValidateGlob(g); err != nil {
			errs = append(errs, fmt.Errorf("cache.globs: %w", err))
		}
	}

	return errors.Join(errs...)
}

// IdentityOptions converts the per-operation settings into identity.Options. home is used
// when cache.home is not set.
func (c *Config) IdentityOptions(home string) identity.Options {
	if c.Cache.Home != "" {
		home = c.Cache.Home
	}

	return identity.Options{
		MAC:        identity.MACOptions{Interface: c.MAC.Interface, Address: c.MAC.Address},
		MachineID:  identity.MachineIDOptions{Value: c.MachineID.Value},
		Filesystem: identity.FilesystemOptions{UUID: c.Filesystem.UUID},
		Hostname:   identity.HostnameOptions{Value: c.Hostname.Value},
		Cache:      identity.CacheOptions{Home: home, Globs: c.Cache.Globs},
	}
}
