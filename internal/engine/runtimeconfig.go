package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the user-level configuration (~/.config/aetherment/config.yml).
type RuntimeConfig struct {
	LoaderRoot    string `yaml:"loader_root,omitempty"`
	Backend       string `yaml:"backend,omitempty"`
	WorkerPool    int    `yaml:"worker_pool,omitempty"`
	ViewedSeconds int    `yaml:"auto_apply_viewed_seconds,omitempty"`
	IdleSeconds   int    `yaml:"auto_apply_idle_seconds,omitempty"`
}

// ResolvedRuntime holds the fully resolved runtime configuration.
type ResolvedRuntime struct {
	LoaderRoot    string
	ConfigDir     string // per-mod settings root, independent of the config file's own directory
	Backend       string // "penumbra-ipc"
	WorkerPool    int
	ViewedSeconds int
	IdleSeconds   int
}

// RuntimeConfigPath returns the path to the user's runtime config file.
var RuntimeConfigPath = defaultRuntimeConfigPath

func defaultRuntimeConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determining config directory: %w", err)
	}
	return filepath.Join(configDir, "aetherment", "config.yml"), nil
}

// LoadRuntimeConfig reads the runtime config file. Returns zero-value config if missing.
func LoadRuntimeConfig() (*RuntimeConfig, error) {
	path, err := RuntimeConfigPath()
	if err != nil {
		return &RuntimeConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuntimeConfig{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveRuntimeConfig writes the runtime config file, creating directories as needed.
func SaveRuntimeConfig(cfg *RuntimeConfig) error {
	path, err := RuntimeConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveRuntime resolves the runtime configuration: env vars > config file > defaults.
func ResolveRuntime() (*ResolvedRuntime, error) {
	cfg, err := LoadRuntimeConfig()
	if err != nil {
		return nil, err
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("determining config directory: %w", err)
	}

	rt := &ResolvedRuntime{
		LoaderRoot:    resolveValue(os.Getenv("AETH_LOADER_ROOT"), cfg.LoaderRoot, defaultLoaderRoot()),
		ConfigDir:     filepath.Join(configDir, "aetherment"),
		Backend:       resolveValue(os.Getenv("AETH_BACKEND"), cfg.Backend, "penumbra-ipc"),
		WorkerPool:    resolveInt(os.Getenv("AETH_WORKER_POOL"), cfg.WorkerPool, 4),
		ViewedSeconds: resolveInt("", cfg.ViewedSeconds, 5),
		IdleSeconds:   resolveInt("", cfg.IdleSeconds, 30),
	}

	if err := validateBackend(rt.Backend); err != nil {
		return nil, err
	}

	return rt, nil
}

func defaultLoaderRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".xlcore", "installedPlugins", "Penumbra", "mods")
}

// resolveValue returns the first non-empty value from the chain.
func resolveValue(envVal, cfgVal, defaultVal string) string {
	if envVal != "" {
		return envVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	return defaultVal
}

func resolveInt(envVal string, cfgVal, defaultVal int) int {
	if envVal != "" {
		var n int
		if _, err := fmt.Sscanf(envVal, "%d", &n); err == nil {
			return n
		}
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return defaultVal
}

func validateBackend(value string) error {
	if value != "penumbra-ipc" {
		return fmt.Errorf("backend must be \"penumbra-ipc\", got %q", value)
	}
	return nil
}
