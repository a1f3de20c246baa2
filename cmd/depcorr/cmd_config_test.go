package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/depcorr/internal/config"
)

func TestConfigCmds(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	got := executeJSON(t, newConfigCmd(), "config", "get", "pairs.threshold")
	if got["value"] != 0.5 {
		t.Errorf("default pairs.threshold = %v, want 0.5", got["value"])
	}

	if _, err := execute(t, newConfigCmd(), "config", "set", "pairs.threshold", "0.7"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	got = executeJSON(t, newConfigCmd(), "config", "get", "pairs.threshold")
	if got["value"] != 0.7 {
		t.Errorf("pairs.threshold after set = %v, want 0.7", got["value"])
	}

	path := filepath.Join(tmpDir, "home", ".depcorr", "config.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	out, err := execute(t, newConfigCmd(), "config", "list")
	if err != nil {
		t.Fatalf("config list error = %v", err)
	}
	for _, want := range []string{"pairs.threshold:", "0.7", "results.postgres_dsn:", "(not set)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config list output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigSetCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "llm.provider", "anthropic"},
		{"threshold out of range", "pairs.threshold", "1.5"},
		{"threshold not a number", "pairs.threshold", "high"},
		{"bad bool", "input.dropna", "maybe"},
		{"bad int", "cache.keep", "ten"},
		{"bad driver", "cache.driver", "ftp"},
		{"s3 without bucket", "cache.driver", "s3"},
		{"bad scope", "pairs.scope", "neither"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, newConfigCmd(), "config", "set", tt.key, tt.value); err == nil {
				t.Errorf("config set %s %s succeeded, want error", tt.key, tt.value)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "home", ".depcorr", "config.yaml")); !os.IsNotExist(err) {
		t.Errorf("rejected values were saved: %v", err)
	}
	if _, err := execute(t, newConfigCmd(), "config", "get", "nope"); err == nil {
		t.Error("config get nope succeeded, want error")
	}
}

func TestConfigSetCmd_EnvNotPersisted(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	t.Setenv("DEPCORR_THRESHOLD", "0.8")

	if _, err := execute(t, newConfigCmd(), "config", "set", "pairs.limit", "25"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	cfg, err := config.LoadFromFile(filepath.Join(tmpDir, "home", ".depcorr", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Pairs.Limit != 25 {
		t.Errorf("saved pairs.limit = %d, want 25", cfg.Pairs.Limit)
	}
	if cfg.Pairs.Threshold != 0.5 {
		t.Errorf("saved pairs.threshold = %v, want the file value 0.5", cfg.Pairs.Threshold)
	}
}

func TestConfigKeysRoundTrip(t *testing.T) {
	values := map[string]string{
		"input.genes_as_rows":    "false",
		"input.normalize_labels": "false",
		"input.drop_duplicates":  "false",
		"input.dropna":           "true",
		"input.delimiter":        "tab",
		"pairs.threshold":        "0.25",
		"pairs.keep_symmetric":   "true",
		"pairs.drop_unit":        "true",
		"pairs.scope":            "either",
		"pairs.limit":            "7",
		"cache.driver":           "memory",
		"cache.dir":              "/data/cache",
		"cache.keep":             "3",
		"cache.s3.bucket":        "screens",
		"cache.s3.region":        "eu-west-1",
		"cache.s3.endpoint":      "http://localhost:9000",
		"cache.s3.path_style":    "true",
		"cache.s3.prefix":        "depcorr/",
		"results.driver":         "memory",
		"results.sqlite_path":    "/data/depcorr.db",
		"results.postgres_dsn":   "postgres://depcorr@db/depcorr",
		"metrics.textfile":       "/data/depcorr.prom",
		"logging.level":          "debug",
	}

	cfg := config.Default()
	for _, section := range configKeys {
		for _, key := range section.keys {
			value, ok := values[key]
			if !ok {
				t.Errorf("no test value for %s", key)
				continue
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				t.Errorf("setConfigValue(%s, %s) error = %v", key, value, err)
				continue
			}
			got, found := getConfigValue(cfg, key)
			if !found {
				t.Errorf("getConfigValue(%s) not found", key)
				continue
			}
			if s := displayValue(got); s != value {
				t.Errorf("getConfigValue(%s) = %s, want %s", key, s, value)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after setting every key = %v", err)
	}
}

func TestGetConfigValue_RedactsDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Results.PostgresDSN = "postgres://depcorr:hunter2@db:5432/depcorr"
	got, _ := getConfigValue(cfg, "results.postgres_dsn")
	if strings.Contains(got.(string), "hunter2") {
		t.Errorf("getConfigValue leaked the password: %v", got)
	}
}
