// Package config loads tool router settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g. TOOL_ROUTER_PORT.
const EnvPrefix = "tool_router"

// Config holds process-level settings. Scoring and RemoteTools are only
// read from the YAML file named by ConfigFile.
type Config struct {
	ConfigFile      string        `envconfig:"CONFIG_FILE"`
	Port            string        `envconfig:"PORT" default:"8090"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ClickHouseDSN   string        `envconfig:"CLICKHOUSE_DSN"`
	PostgresDSN     string        `envconfig:"POSTGRES_DSN"`
	MaxHistorySize  int           `envconfig:"MAX_HISTORY_SIZE" default:"1000"`
	EnableTracing   bool          `envconfig:"ENABLE_TRACING" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RemoteTimeout   time.Duration `envconfig:"REMOTE_TIMEOUT" default:"15s"`
	ExecuteTimeout  time.Duration `envconfig:"EXECUTE_TIMEOUT" default:"30s"`
	MaxParallelism  int           `envconfig:"MAX_PARALLELISM" default:"8"`
	LoadSampleEvery time.Duration `envconfig:"LOAD_SAMPLE_INTERVAL" default:"1s"`
	SearchEndpoint  string        `envconfig:"SEARCH_ENDPOINT"`
	AuthCacheTTL    time.Duration `envconfig:"AUTH_CACHE_TTL" default:"30s"`
	AuthFailOpen    bool          `envconfig:"AUTH_FAIL_OPEN" default:"true"`
	SnapshotOnExit  bool          `envconfig:"SNAPSHOT_ON_EXIT" default:"true"`

	Scoring     Scoring      `ignored:"true"`
	RemoteTools []RemoteTool `ignored:"true"`
}

// RemoteTool declares a tool served by a gRPC endpoint.
type RemoteTool struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Category        string         `yaml:"category"`
	Complexity      string         `yaml:"complexity"`
	Capabilities    []string       `yaml:"capabilities"`
	RequiredContext []string       `yaml:"required_context"`
	OptimalContext  []string       `yaml:"optimal_context"`
	Target          string         `yaml:"target"`
	Method          string         `yaml:"method"`
	Schema          map[string]any `yaml:"schema"`
}

// fileConfig is the YAML document layout.
type fileConfig struct {
	Scoring     Scoring      `yaml:"scoring"`
	RemoteTools []RemoteTool `yaml:"remote_tools"`
}

// Load reads the environment, then the YAML file if one is configured.
// Scoring keys missing from the file keep their defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	file := fileConfig{Scoring: DefaultScoring()}
	if cfg.ConfigFile != "" {
		if err := loadFile(cfg.ConfigFile, &file); err != nil {
			return nil, err
		}
	}
	cfg.Scoring = file.Scoring
	cfg.RemoteTools = file.RemoteTools

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, out *fileConfig) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid config path %q: path traversal detected", path)
	}
	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", cleanPath, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal config file %q: %w", cleanPath, err)
	}
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.MaxHistorySize <= 0 {
		return fmt.Errorf("MAX_HISTORY_SIZE must be positive, got %d", c.MaxHistorySize)
	}
	if c.MaxParallelism <= 0 {
		return fmt.Errorf("MAX_PARALLELISM must be positive, got %d", c.MaxParallelism)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	seen := make(map[string]bool, len(c.RemoteTools))
	for i, rt := range c.RemoteTools {
		if rt.ID == "" || rt.Target == "" || rt.Method == "" {
			return fmt.Errorf("remote_tools[%d]: id, target and method are required", i)
		}
		if seen[rt.ID] {
			return fmt.Errorf("remote_tools[%d]: duplicate id %q", i, rt.ID)
		}
		seen[rt.ID] = true
	}
	return nil
}
