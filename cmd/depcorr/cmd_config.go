package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage depcorr configuration",
		Long: `View and modify depcorr configuration settings.

Configuration is stored in ~/.depcorr/config.yaml. DEPCORR_* environment
variables override the file, and command flags override both.

Examples:
  depcorr config list                          # Show all settings
  depcorr config get pairs.threshold           # Get a specific setting
  depcorr config set pairs.threshold 0.6       # Set a setting
  depcorr config set cache.keep 5`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				// keep the DSN password out of the output
				redacted := *cfg
				redacted.Results.PostgresDSN = cfg.Results.RedactedDSN()
				return json.NewEncoder(out).Encode(redacted)
			}

			fmt.Fprintln(out, "Configuration (~/.depcorr/config.yaml):")
			for _, section := range configKeys {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s:\n", section.title)
				for _, key := range section.keys {
					value, _ := getConfigValue(cfg, key)
					fmt.Fprintf(out, "  %-24s %s\n", key+":", displayValue(value))
				}
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return err
			}
			// start from the file alone so env overrides are not persisted
			cfg, err := config.LoadFromFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				cfg, err = config.Default(), nil
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(out, "Set %s = %s\n", key, value)
			return nil
		},
	}
}

var configKeys = []struct {
	title string
	keys  []string
}{
	{"Input", []string{"input.genes_as_rows", "input.normalize_labels", "input.drop_duplicates", "input.dropna", "input.delimiter"}},
	{"Pairs", []string{"pairs.threshold", "pairs.keep_symmetric", "pairs.drop_unit", "pairs.scope", "pairs.limit"}},
	{"Cache", []string{"cache.driver", "cache.dir", "cache.keep", "cache.s3.bucket", "cache.s3.region", "cache.s3.endpoint", "cache.s3.path_style", "cache.s3.prefix"}},
	{"Results", []string{"results.driver", "results.sqlite_path", "results.postgres_dsn"}},
	{"Metrics", []string{"metrics.textfile"}},
	{"Logging", []string{"logging.level"}},
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.DepcorrConfig, key string) (interface{}, bool) {
	switch key {
	case "input.genes_as_rows":
		return cfg.Input.GenesAsRows, true
	case "input.normalize_labels":
		return cfg.Input.NormalizeLabels, true
	case "input.drop_duplicates":
		return cfg.Input.DropDuplicates, true
	case "input.dropna":
		return cfg.Input.DropNaN, true
	case "input.delimiter":
		return cfg.Input.Delimiter, true
	case "pairs.threshold":
		return cfg.Pairs.Threshold, true
	case "pairs.keep_symmetric":
		return cfg.Pairs.KeepSymmetric, true
	case "pairs.drop_unit":
		return cfg.Pairs.DropUnit, true
	case "pairs.scope":
		return cfg.Pairs.Scope, true
	case "pairs.limit":
		return cfg.Pairs.Limit, true
	case "cache.driver":
		return cfg.Cache.Driver, true
	case "cache.dir":
		return cfg.Cache.Dir, true
	case "cache.keep":
		return cfg.Cache.Keep, true
	case "cache.s3.bucket":
		return cfg.Cache.S3.Bucket, true
	case "cache.s3.region":
		return cfg.Cache.S3.Region, true
	case "cache.s3.endpoint":
		return cfg.Cache.S3.Endpoint, true
	case "cache.s3.path_style":
		return cfg.Cache.S3.PathStyle, true
	case "cache.s3.prefix":
		return cfg.Cache.S3.Prefix, true
	case "results.driver":
		return cfg.Results.Driver, true
	case "results.sqlite_path":
		return cfg.Results.SQLitePath, true
	case "results.postgres_dsn":
		return cfg.Results.RedactedDSN(), true
	case "metrics.textfile":
		return cfg.Metrics.Textfile, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. Range
// checks are left to DepcorrConfig.Validate.
func setConfigValue(cfg *config.DepcorrConfig, key, value string) error {
	switch key {
	case "input.genes_as_rows":
		return setBool(&cfg.Input.GenesAsRows, value)
	case "input.normalize_labels":
		return setBool(&cfg.Input.NormalizeLabels, value)
	case "input.drop_duplicates":
		return setBool(&cfg.Input.DropDuplicates, value)
	case "input.dropna":
		return setBool(&cfg.Input.DropNaN, value)
	case "input.delimiter":
		cfg.Input.Delimiter = value
	case "pairs.threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold: %s (must be a number in [0, 1))", value)
		}
		cfg.Pairs.Threshold = f
	case "pairs.keep_symmetric":
		return setBool(&cfg.Pairs.KeepSymmetric, value)
	case "pairs.drop_unit":
		return setBool(&cfg.Pairs.DropUnit, value)
	case "pairs.scope":
		cfg.Pairs.Scope = value
	case "pairs.limit":
		return setInt(&cfg.Pairs.Limit, value)
	case "cache.driver":
		cfg.Cache.Driver = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.keep":
		return setInt(&cfg.Cache.Keep, value)
	case "cache.s3.bucket":
		cfg.Cache.S3.Bucket = value
	case "cache.s3.region":
		cfg.Cache.S3.Region = value
	case "cache.s3.endpoint":
		cfg.Cache.S3.Endpoint = value
	case "cache.s3.path_style":
		return setBool(&cfg.Cache.S3.PathStyle, value)
	case "cache.s3.prefix":
		cfg.Cache.S3.Prefix = value
	case "results.driver":
		cfg.Results.Driver = value
	case "results.sqlite_path":
		cfg.Results.SQLitePath = value
	case "results.postgres_dsn":
		cfg.Results.PostgresDSN = value
	case "metrics.textfile":
		cfg.Metrics.Textfile = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean: %s", value)
	}
	*dst = b
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %s", value)
	}
	*dst = n
	return nil
}

func displayValue(v interface{}) string {
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return fmt.Sprint(v)
}
