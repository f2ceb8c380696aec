package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CREWCLAW_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.MaxTurns != 100 || cfg.Model.CompactThreshold != 0.8 {
		t.Fatalf("model defaults = %+v", cfg.Model)
	}
	if cfg.Policy.Mode != "default" {
		t.Fatalf("policy mode = %q", cfg.Policy.Mode)
	}
	if !cfg.Store.Enabled || cfg.Store.DBPath == "" {
		t.Fatalf("store defaults = %+v", cfg.Store)
	}
	if cfg.Paths.Workspace == "" || cfg.Paths.SessionDir == "" {
		t.Fatalf("path defaults = %+v", cfg.Paths)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "model": {"name": "gpt-4o", "maxTurns": 7},
  "policy": {"mode": "plan", "deny": ["Exec(rm *)"]},
  "trace": {"enabled": true, "brokers": ["localhost:9092"]}
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREWCLAW_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o" || cfg.Model.MaxTurns != 7 {
		t.Fatalf("model = %+v", cfg.Model)
	}
	if cfg.Policy.Mode != "plan" || len(cfg.Policy.Deny) != 1 {
		t.Fatalf("policy = %+v", cfg.Policy)
	}
	if !cfg.Trace.Enabled || len(cfg.Trace.Brokers) != 1 {
		t.Fatalf("trace = %+v", cfg.Trace)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"model": {"name": "from-file"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREWCLAW_CONFIG", path)
	t.Setenv("CREWCLAW_MODEL_MODEL", "from-env")
	t.Setenv("CREWCLAW_POLICY_MODE", "dontAsk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Fatalf("model name = %q, want env override", cfg.Model.Name)
	}
	if cfg.Policy.Mode != "dontAsk" {
		t.Fatalf("policy mode = %q", cfg.Policy.Mode)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREWCLAW_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundtrip(t *testing.T) {
	t.Setenv("CREWCLAW_CONFIG", filepath.Join(t.TempDir(), "nested", "config.json"))

	cfg := DefaultConfig()
	cfg.Model.Name = "persisted"
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Model.Name != "persisted" {
		t.Fatalf("model name = %q", loaded.Model.Name)
	}
}
