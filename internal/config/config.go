package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "HUMPTY_CONFIG"

// DefaultBufferSize is the streaming buffer used when the config does not set one.
const DefaultBufferSize = 64 << 10

// Config is the optional humpty configuration file.
type Config struct {
	// ChunkSize is used by split when --chunk-size is not given.
	ChunkSize  string        `yaml:"chunk_size"`
	BufferSize int           `yaml:"buffer_size"`
	Catalog    string        `yaml:"catalog"`
	Logging    LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects the zap encoder, level and sink.
type LoggingConfig struct {
	Type   string `yaml:"type"`   // text | json
	Level  string `yaml:"level"`  // debug | info | warn | error
	Output string `yaml:"output"` // console | file
	Target string `yaml:"target"` // directory for file output
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		Logging: LoggingConfig{
			Type:   "text",
			Level:  "warn",
			Output: "console",
			Target: os.TempDir(),
		},
	}
}

// Load reads path (or $HUMPTY_CONFIG when path is empty) over the defaults and
// applies environment overrides. No file at all is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.ChunkSize, "HUMPTY_CHUNK_SIZE")
	override(&c.Catalog, "HUMPTY_CATALOG")
	override(&c.Logging.Type, "LOGGING_TYPE")
	override(&c.Logging.Level, "LOGGING_LEVEL")
	override(&c.Logging.Output, "LOGGING_OUTPUT")
	override(&c.Logging.Target, "LOGGING_TARGET")
}

// Validate rejects values the rest of the program cannot honor.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.ChunkSize != "" {
		if _, err := ParseSize(c.ChunkSize); err != nil {
			return fmt.Errorf("config: chunk_size %q: %w", c.ChunkSize, err)
		}
	}
	switch strings.ToLower(c.Logging.Type) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging type %q", c.Logging.Type)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file":
	default:
		return fmt.Errorf("config: unknown logging output %q", c.Logging.Output)
	}
	return nil
}

// DefaultChunkSize returns the configured chunk size, or 0 when unset.
func (c Config) DefaultChunkSize() uint64 {
	if c.ChunkSize == "" {
		return 0
	}
	size, err := ParseSize(c.ChunkSize)
	if err != nil {
		return 0
	}
	return size
}
