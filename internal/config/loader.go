package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".crewclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. CREWCLAW_CONFIG
// overrides the default ~/.crewclaw/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CREWCLAW_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. A missing file is not an
// error; the defaults apply.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	envconfig.Process("CREWCLAW_PATHS", &cfg.Paths)
	envconfig.Process("CREWCLAW_MODEL", &cfg.Model)
	envconfig.Process("CREWCLAW_PROVIDER", &cfg.Provider)
	envconfig.Process("CREWCLAW_POLICY", &cfg.Policy)
	envconfig.Process("CREWCLAW_STORE", &cfg.Store)
	envconfig.Process("CREWCLAW_TRACE", &cfg.Trace)

	applyDerivedDefaults(cfg)
	return cfg, nil
}

// Save writes the configuration to the config file, creating the
// directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDerivedDefaults fills path defaults that depend on the home
// directory, so DefaultConfig stays side-effect free.
func applyDerivedDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	if cfg.Paths.Workspace == "" {
		cfg.Paths.Workspace = filepath.Join(home, ConfigDir, "workspace")
	}
	if cfg.Paths.SessionDir == "" {
		cfg.Paths.SessionDir = filepath.Join(home, ConfigDir, "sessions")
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(home, ConfigDir, "crewclaw.db")
	}
}
