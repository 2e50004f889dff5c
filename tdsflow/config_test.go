package tdsflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers <= 0 || cfg.LockShards <= 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MaxReassembly != MaxBuf || cfg.MaxColumns != MaxCols {
		t.Fatalf("cfg caps diverge from package defaults: %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tdsflow.json")
	if err := os.WriteFile(path, []byte(`{"workers":8,"log_level":"DEBUG"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Workers)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.LockShards != DefaultConfig().LockShards {
		t.Fatalf("unset field should keep default, got %d", cfg.LockShards)
	}
}

func TestParentDir(t *testing.T) {
	if got := parentDir("/a/b/c.json"); got != "/a/b" {
		t.Fatalf("got %q", got)
	}
	if got := parentDir("c.json"); got != "." {
		t.Fatalf("got %q", got)
	}
}
