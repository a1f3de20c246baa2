// Package config provides unified configuration loading for depcorr.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/depcorr/internal/constants"
	"gopkg.in/yaml.v3"
)

// DepcorrConfig contains all depcorr configuration settings.
type DepcorrConfig struct {
	Input   InputConfig   `json:"input" yaml:"input"`
	Pairs   PairsConfig   `json:"pairs" yaml:"pairs"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Results ResultsConfig `json:"results" yaml:"results"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// InputConfig describes how gene-effect files are read.
type InputConfig struct {
	// GenesAsRows is true for gene x cell-line files, which are transposed
	// on load. DepMap portal downloads have cell lines as rows.
	GenesAsRows bool `json:"genes_as_rows" yaml:"genes_as_rows"`

	// NormalizeLabels rewrites "SYMBOL (ENTREZ)" gene labels to "SYMBOL".
	NormalizeLabels bool `json:"normalize_labels" yaml:"normalize_labels"`

	DropDuplicates bool `json:"drop_duplicates" yaml:"drop_duplicates"`

	// DropNaN removes genes with any missing value before correlating.
	DropNaN bool `json:"dropna" yaml:"dropna"`

	// Delimiter overrides the delimiter chosen from the file extension.
	// One of "", ",", "tab".
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
}

// PairsConfig holds the pair filter defaults.
type PairsConfig struct {
	Threshold     float64 `json:"threshold" yaml:"threshold"`
	KeepSymmetric bool    `json:"keep_symmetric" yaml:"keep_symmetric"`
	DropUnit      bool    `json:"drop_unit" yaml:"drop_unit"`
	Scope         string  `json:"scope" yaml:"scope"`
	Limit         int     `json:"limit" yaml:"limit"`
}

// CacheConfig selects where correlation matrices are cached.
type CacheConfig struct {
	// Driver is "fs" (default), "s3" or "memory".
	Driver string `json:"driver" yaml:"driver"`

	// Dir is the fs cache directory. Empty means .depcorr/cache under the
	// project root.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	S3 S3Config `json:"s3" yaml:"s3"`

	// Keep is the entry count `cache prune` keeps by default.
	Keep int `json:"keep" yaml:"keep"`
}

// S3Config configures the s3 cache driver. Credentials come from the
// standard AWS chain.
type S3Config struct {
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style" yaml:"path_style"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ResultsConfig selects the run ledger backend.
type ResultsConfig struct {
	// Driver is "sqlite" (default), "postgres" or "memory".
	Driver string `json:"driver" yaml:"driver"`

	// SQLitePath defaults to .depcorr/depcorr.db under the project root.
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`

	// PostgresDSN supports ${VAR} syntax for env vars.
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
}

// RedactedDSN hides the password of a postgres URL.
func (c ResultsConfig) RedactedDSN() string {
	if c.PostgresDSN == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(c.PostgresDSN, "://")
	if !ok {
		return "(set)"
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return c.PostgresDSN
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return c.PostgresDSN
	}
	return scheme + "://" + user + ":***@" + host
}

// String implements fmt.Stringer to keep the DSN password out of logs.
func (c ResultsConfig) String() string {
	return fmt.Sprintf("ResultsConfig{Driver:%s, SQLitePath:%s, PostgresDSN:%s}",
		c.Driver, c.SQLitePath, c.RedactedDSN())
}

// MetricsConfig configures the Prometheus textfile dump.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics of every run in the
	// node-exporter textfile format.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// LoggingConfig configures depcorr's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" and "trace" also write stage events to .depcorr/trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a DepcorrConfig with sensible defaults.
func Default() *DepcorrConfig {
	return &DepcorrConfig{
		Input: InputConfig{
			GenesAsRows:     true,
			NormalizeLabels: true,
			DropDuplicates:  true,
		},
		Pairs: PairsConfig{
			Threshold: constants.DefaultPairThreshold,
			Scope:     constants.DefaultPairScope,
		},
		Cache: CacheConfig{
			Driver: constants.DefaultCacheDriver,
			Keep:   constants.DefaultCacheKeep,
		},
		Results: ResultsConfig{
			Driver: constants.DefaultResultsDriver,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns ~/.depcorr/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".depcorr", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.depcorr/config.yaml -> environment variables
func Load() (*DepcorrConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*DepcorrConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Results.PostgresDSN = expandEnvVars(config.Results.PostgresDSN)
	config.Cache.Dir = expandEnvVars(config.Cache.Dir)
	config.Results.SQLitePath = expandEnvVars(config.Results.SQLitePath)

	return config, nil
}

// Save writes the configuration to path with owner-only permissions.
func Save(cfg *DepcorrConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *DepcorrConfig) Validate() error {
	if c.Pairs.Threshold < 0 || c.Pairs.Threshold >= 1 {
		return fmt.Errorf("pairs.threshold must be in [0, 1), got %v", c.Pairs.Threshold)
	}
	if c.Pairs.Limit < 0 {
		return fmt.Errorf("pairs.limit must be non-negative, got %d", c.Pairs.Limit)
	}
	validScopes := map[string]bool{"": true, "both": true, "either": true}
	if !validScopes[c.Pairs.Scope] {
		return fmt.Errorf("invalid pairs.scope: %s (valid: both, either)", c.Pairs.Scope)
	}

	validDelimiters := map[string]bool{"": true, ",": true, "tab": true}
	if !validDelimiters[c.Input.Delimiter] {
		return fmt.Errorf("invalid input.delimiter: %q (valid: \",\", tab, or empty for auto)", c.Input.Delimiter)
	}

	switch c.Cache.Driver {
	case "", "fs", "memory":
	case "s3":
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("cache.s3.bucket is required for the s3 cache driver")
		}
	default:
		return fmt.Errorf("invalid cache.driver: %s (valid: fs, s3, memory)", c.Cache.Driver)
	}
	if c.Cache.Keep < 0 {
		return fmt.Errorf("cache.keep must be non-negative, got %d", c.Cache.Keep)
	}

	switch c.Results.Driver {
	case "", "sqlite", "memory":
	case "postgres":
		if c.Results.PostgresDSN == "" {
			return fmt.Errorf("results.postgres_dsn is required for the postgres results driver")
		}
	default:
		return fmt.Errorf("invalid results.driver: %s (valid: sqlite, postgres, memory)", c.Results.Driver)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// DelimiterRune returns the configured delimiter, or 0 for auto.
func (c InputConfig) DelimiterRune() rune {
	switch c.Delimiter {
	case ",":
		return ','
	case "tab":
		return '\t'
	}
	return 0
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *DepcorrConfig) {
	if v := os.Getenv("DEPCORR_GENES_AS_ROWS"); v != "" {
		config.Input.GenesAsRows = parseBool(v)
	}
	if v := os.Getenv("DEPCORR_DROPNA"); v != "" {
		config.Input.DropNaN = parseBool(v)
	}

	if v := os.Getenv("DEPCORR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Pairs.Threshold = f
		}
	}

	if v := os.Getenv("DEPCORR_CACHE_DRIVER"); v != "" {
		config.Cache.Driver = v
	}
	if v := os.Getenv("DEPCORR_CACHE_DIR"); v != "" {
		config.Cache.Dir = v
	}
	if v := os.Getenv("DEPCORR_S3_BUCKET"); v != "" {
		config.Cache.S3.Bucket = v
	}
	if v := os.Getenv("DEPCORR_S3_ENDPOINT"); v != "" {
		config.Cache.S3.Endpoint = v
	}
	// the AWS SDK reads AWS_REGION itself; this only fills an unset value
	if v := os.Getenv("AWS_REGION"); v != "" && config.Cache.S3.Region == "" {
		config.Cache.S3.Region = v
	}

	if v := os.Getenv("DEPCORR_RESULTS_DRIVER"); v != "" {
		config.Results.Driver = v
	}
	if v := os.Getenv("DEPCORR_POSTGRES_DSN"); v != "" {
		config.Results.PostgresDSN = v
	}

	if v := os.Getenv("DEPCORR_METRICS_TEXTFILE"); v != "" {
		config.Metrics.Textfile = v
	}

	if v := os.Getenv("DEPCORR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
