package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	syncerrors "github.com/alexjbarnes/replica-sync/internal/errors"
)

// Config holds all environment-based configuration for replica-sync. It is
// immutable for the process lifetime: the engine receives a validated copy
// at construction and never consults the environment again.
type Config struct {
	// SourceDir is the directory tree being mirrored from. Never mutated.
	SourceDir string `env:"SOURCE_DIR"`

	// ReplicaDir is the directory tree kept in correspondence with the
	// source. The only writable side.
	ReplicaDir string `env:"REPLICA_DIR"`

	// IntervalSeconds is the delay between reconciliation passes.
	IntervalSeconds int `env:"SYNC_INTERVAL" envDefault:"60"`

	// JournalFile is the append-only event log recording every copy,
	// overwrite, delete, directory creation, and caught error.
	JournalFile string `env:"SYNC_LOG_FILE"`

	// Overwrite controls whether replica files that already exist may be
	// replaced when their content differs from the source. When false,
	// existing replica files are never touched.
	Overwrite bool `env:"OVERWRITE_EXISTING" envDefault:"true"`

	// WatchSource enables fsnotify-driven early passes: a change under the
	// source triggers a reconciliation without waiting for the next tick.
	WatchSource bool `env:"WATCH_SOURCE" envDefault:"false"`

	// DryRun plans and journals actions without mutating the replica.
	DryRun bool `env:"DRY_RUN" envDefault:"false"`

	// Exclude lists glob patterns (doublestar syntax) for paths that are
	// invisible to the mirror: never copied, never deleted.
	Exclude []string `env:"EXCLUDE" envSeparator:","`

	// ExcludeFile optionally points to a YAML file holding additional
	// exclude patterns, one list entry per pattern.
	ExcludeFile string `env:"EXCLUDE_FILE"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from environment variables. It first attempts
// to load a .env file if present, then parses env vars, validates, and
// resolves both directory paths to absolute form. Downstream code relies
// on absolute paths for the nested-path check and for replica traversal
// guards, which use string prefix comparison.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	absSource, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving source dir to absolute path: %w", err)
	}

	cfg.SourceDir = absSource

	absReplica, err := filepath.Abs(cfg.ReplicaDir)
	if err != nil {
		return nil, fmt.Errorf("resolving replica dir to absolute path: %w", err)
	}

	cfg.ReplicaDir = absReplica

	if err := checkNotNested(cfg.SourceDir, cfg.ReplicaDir); err != nil {
		return nil, err
	}

	if cfg.ExcludeFile != "" {
		patterns, err := loadExcludeFile(cfg.ExcludeFile)
		if err != nil {
			return nil, fmt.Errorf("loading exclude file: %w", err)
		}

		cfg.Exclude = append(cfg.Exclude, patterns...)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("SOURCE_DIR: %w", syncerrors.ErrEmptyPath)
	}

	if c.ReplicaDir == "" {
		return fmt.Errorf("REPLICA_DIR: %w", syncerrors.ErrEmptyPath)
	}

	if c.JournalFile == "" {
		return fmt.Errorf("SYNC_LOG_FILE: %w", syncerrors.ErrEmptyPath)
	}

	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("SYNC_INTERVAL=%d: %w", c.IntervalSeconds, syncerrors.ErrInvalidInterval)
	}

	return nil
}

// Interval returns the tick interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// checkNotNested rejects configurations where one directory contains the
// other. A replica nested under the source would be mirrored into itself
// on every pass; a source under the replica would be deleted as stray.
// Both paths must already be absolute.
func checkNotNested(source, replica string) error {
	if source == replica {
		return fmt.Errorf("source and replica are the same directory %s: %w", source, syncerrors.ErrNestedPaths)
	}

	sep := string(os.PathSeparator)
	if strings.HasPrefix(replica+sep, source+sep) || strings.HasPrefix(source+sep, replica+sep) {
		return fmt.Errorf("%s and %s: %w", source, replica, syncerrors.ErrNestedPaths)
	}

	return nil
}

// excludeFile is the YAML shape of an exclude-rules file:
//
//	exclude:
//	  - "**/*.tmp"
//	  - ".cache/**"
type excludeFile struct {
	Exclude []string `yaml:"exclude"`
}

func loadExcludeFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var ef excludeFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return ef.Exclude, nil
}
