// Package config loads graphctl settings from a YAML file and the
// environment and turns them into graph options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"git.canoozie.net/riddling/propgraph/pkg/graph"
	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/storage"
)

// Environment variables that override file settings.
const (
	EnvPath            = "PROPGRAPH_PATH"
	EnvLogLevel        = "PROPGRAPH_LOG_LEVEL"
	EnvCompression     = "PROPGRAPH_COMPRESSION"
	EnvSyncWrites      = "PROPGRAPH_SYNC_WRITES"
	EnvCheckpointBytes = "PROPGRAPH_CHECKPOINT_BYTES"
)

// DefaultPath is the graph location used when none is configured.
const DefaultPath = "./data/graph"

// Indexes lists the property keys to index per target.
type Indexes struct {
	Nodes []string `yaml:"nodes"`
	Edges []string `yaml:"edges"`
}

// Config is the on-disk configuration.
type Config struct {
	Path            string        `yaml:"path"`
	LogLevel        string        `yaml:"log_level"`
	Compression     string        `yaml:"compression"`
	SyncWrites      bool          `yaml:"sync_writes"`
	CheckpointBytes int64         `yaml:"checkpoint_bytes"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	Indexes         Indexes       `yaml:"indexes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	opts := graph.DefaultOptions()
	return Config{
		Path:            DefaultPath,
		LogLevel:        logrus.InfoLevel.String(),
		Compression:     opts.Compression.String(),
		SyncWrites:      opts.SyncWrites,
		CheckpointBytes: opts.CheckpointBytes,
		LockTimeout:     opts.LockTimeout,
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(model.ErrIO, "read config %s: %v", path, err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config %s: %v", model.ErrInvalidArgument, path, err)
		}
	}
	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv overrides cfg with the PROPGRAPH_* environment variables that are
// set.
func FromEnv(cfg *Config) error {
	if v := os.Getenv(EnvPath); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvCompression); v != "" {
		cfg.Compression = v
	}
	if v := os.Getenv(EnvSyncWrites); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", model.ErrInvalidArgument, EnvSyncWrites, v)
		}
		cfg.SyncWrites = b
	}
	if v := os.Getenv(EnvCheckpointBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", model.ErrInvalidArgument, EnvCheckpointBytes, v)
		}
		cfg.CheckpointBytes = n
	}
	return nil
}

// Validate checks every field without opening anything.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: empty graph path", model.ErrInvalidArgument)
	}
	if _, err := model.NewLogger(c.LogLevel); err != nil {
		return err
	}
	if _, err := storage.ParseCodec(c.Compression); err != nil {
		return err
	}
	if c.CheckpointBytes < 0 {
		return fmt.Errorf("%w: negative checkpoint_bytes %d", model.ErrInvalidArgument, c.CheckpointBytes)
	}
	for _, keys := range [][]string{c.Indexes.Nodes, c.Indexes.Edges} {
		for _, k := range keys {
			if err := model.ValidateKey(k); err != nil {
				return err
			}
		}
	}
	return nil
}

// Logger builds the logger named by LogLevel.
func (c Config) Logger() (*logrus.Logger, error) {
	return model.NewLogger(c.LogLevel)
}

// Options converts c into options for graph.Open. The logger is passed in
// so callers can share one across components.
func (c Config) Options(logger logrus.FieldLogger) ([]func(*graph.Options), error) {
	codec, err := storage.ParseCodec(c.Compression)
	if err != nil {
		return nil, err
	}
	return []func(*graph.Options){
		graph.WithLogger(logger),
		graph.WithCompression(codec),
		graph.WithCheckpointBytes(c.CheckpointBytes),
		graph.WithNodeIndexes(c.Indexes.Nodes...),
		graph.WithEdgeIndexes(c.Indexes.Edges...),
		func(o *graph.Options) {
			o.SyncWrites = c.SyncWrites
			if c.LockTimeout > 0 {
				o.LockTimeout = c.LockTimeout
			}
		},
	}, nil
}
