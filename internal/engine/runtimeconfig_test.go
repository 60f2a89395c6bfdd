package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRuntimeConfig_Missing(t *testing.T) {
	orig := RuntimeConfigPath
	defer func() { RuntimeConfigPath = orig }()

	RuntimeConfigPath = func() (string, error) {
		return filepath.Join(t.TempDir(), "nonexistent", "config.yml"), nil
	}

	cfg, err := LoadRuntimeConfig()
	if err != nil {
		t.Fatalf("expected nil error for missing config, got: %v", err)
	}
	if cfg.LoaderRoot != "" || cfg.Backend != "" {
		t.Errorf("expected zero-value config, got %+v", cfg)
	}
}

func TestSaveAndLoadRuntimeConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")

	orig := RuntimeConfigPath
	defer func() { RuntimeConfigPath = orig }()
	RuntimeConfigPath = func() (string, error) { return configPath, nil }

	cfg := &RuntimeConfig{
		LoaderRoot: "/mnt/mods",
		Backend:    "penumbra-ipc",
		WorkerPool: 8,
	}
	if err := SaveRuntimeConfig(cfg); err != nil {
		t.Fatalf("SaveRuntimeConfig() error: %v", err)
	}

	loaded, err := LoadRuntimeConfig()
	if err != nil {
		t.Fatalf("LoadRuntimeConfig() error: %v", err)
	}
	if loaded.LoaderRoot != "/mnt/mods" {
		t.Errorf("LoaderRoot = %q, want %q", loaded.LoaderRoot, "/mnt/mods")
	}
	if loaded.WorkerPool != 8 {
		t.Errorf("WorkerPool = %d, want 8", loaded.WorkerPool)
	}
}

func TestResolveRuntime_Defaults(t *testing.T) {
	orig := RuntimeConfigPath
	defer func() { RuntimeConfigPath = orig }()
	RuntimeConfigPath = func() (string, error) {
		return filepath.Join(t.TempDir(), "config.yml"), nil
	}

	os.Unsetenv("AETH_BACKEND")
	os.Unsetenv("AETH_WORKER_POOL")

	rt, err := ResolveRuntime()
	if err != nil {
		t.Fatalf("ResolveRuntime() error: %v", err)
	}
	if rt.Backend != "penumbra-ipc" {
		t.Errorf("Backend = %q, want %q", rt.Backend, "penumbra-ipc")
	}
	if rt.WorkerPool != 4 {
		t.Errorf("WorkerPool = %d, want 4", rt.WorkerPool)
	}
	if rt.ViewedSeconds != 5 || rt.IdleSeconds != 30 {
		t.Errorf("auto-apply thresholds = %d/%d, want 5/30", rt.ViewedSeconds, rt.IdleSeconds)
	}
}

func TestResolveRuntime_EnvOverridesConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")

	orig := RuntimeConfigPath
	defer func() { RuntimeConfigPath = orig }()
	RuntimeConfigPath = func() (string, error) { return configPath, nil }

	cfg := &RuntimeConfig{WorkerPool: 2}
	SaveRuntimeConfig(cfg)

	os.Setenv("AETH_WORKER_POOL", "16")
	defer os.Unsetenv("AETH_WORKER_POOL")

	rt, err := ResolveRuntime()
	if err != nil {
		t.Fatalf("ResolveRuntime() error: %v", err)
	}
	if rt.WorkerPool != 16 {
		t.Errorf("WorkerPool = %d, want 16 (env should override config)", rt.WorkerPool)
	}
}

func TestResolveRuntime_InvalidBackend(t *testing.T) {
	orig := RuntimeConfigPath
	defer func() { RuntimeConfigPath = orig }()
	RuntimeConfigPath = func() (string, error) {
		return filepath.Join(t.TempDir(), "config.yml"), nil
	}

	os.Setenv("AETH_BACKEND", "modio")
	defer os.Unsetenv("AETH_BACKEND")

	_, err := ResolveRuntime()
	if err == nil {
		t.Error("expected error for invalid backend")
	}
}

func TestResolveValue(t *testing.T) {
	tests := []struct {
		env, cfg, def, want string
	}{
		{"penumbra-ipc", "other", "other", "penumbra-ipc"},
		{"", "penumbra-ipc", "other", "penumbra-ipc"},
		{"", "", "penumbra-ipc", "penumbra-ipc"},
	}
	for _, tt := range tests {
		got := resolveValue(tt.env, tt.cfg, tt.def)
		if got != tt.want {
			t.Errorf("resolveValue(%q, %q, %q) = %q, want %q", tt.env, tt.cfg, tt.def, got, tt.want)
		}
	}
}
