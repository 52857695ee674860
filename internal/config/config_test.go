package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CFM_BASE_URL", "CFM_LOG_LEVEL", "CFM_DATA_DIR", "CFM_OWNER_UUID", "CFM_OWNER_USERNAME"} {
		t.Setenv(k, "")
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}
	if cfg.Owner.UUID != "admin-uuid" || cfg.Owner.Username != "admin" {
		t.Errorf("unexpected owner defaults: %+v", cfg.Owner)
	}
	if cfg.Chat.PreviewLength != 200 {
		t.Errorf("expected preview_length=200, got %d", cfg.Chat.PreviewLength)
	}
	if !cfg.Chat.ResolveBuildIDs {
		t.Error("expected resolve_build_ids=true by default")
	}
	if cfg.Chat.ModeSyncAttempts != 1 {
		t.Errorf("expected a single mode sync attempt, got %d", cfg.Chat.ModeSyncAttempts)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Timeout())
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	original := Default()
	original.DataDir = "/tmp/test-data"
	original.LogLevel = "debug"
	original.Backend.BaseURL = "http://mc.example:9000"
	original.Backend.TimeoutSeconds = 15
	original.Owner.UUID = "owner-1"
	original.Chat.PreviewLength = 80
	original.Chat.ResolveBuildIDs = false
	original.UI.Theme = "dark"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", original, loaded)
	}
	if loaded.Timeout() != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", loaded.Timeout())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{"log_level":"warn","backend":{"base_url":"http://x"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Backend.BaseURL != "http://x" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Owner.UUID != "admin-uuid" {
		t.Errorf("default owner lost: %q", cfg.Owner.UUID)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("CFM_BASE_URL", "http://env:1234")
	t.Setenv("CFM_LOG_LEVEL", "error")
	t.Setenv("CFM_DATA_DIR", "/tmp/env-data")
	t.Setenv("CFM_OWNER_UUID", "env-uuid")
	t.Setenv("CFM_OWNER_USERNAME", "steve")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env:1234" {
		t.Errorf("expected env base url, got %q", cfg.Backend.BaseURL)
	}
	if cfg.LogLevel != "error" || cfg.DataDir != "/tmp/env-data" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Owner.UUID != "env-uuid" || cfg.Owner.Username != "steve" {
		t.Errorf("owner overrides not applied: %+v", cfg.Owner)
	}
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("CFM_OWNER_USERNAME")
	path := tempConfigPath(t)
	env := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(env, []byte("CFM_OWNER_USERNAME=alex\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CFM_OWNER_USERNAME") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Owner.Username != "alex" {
		t.Errorf("expected username from .env, got %q", cfg.Owner.Username)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)
	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.json")
	if err := Save(path, &Config{LogLevel: "warn"}); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}

func TestListValues(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "http://x"

	flat, err := ListValues(cfg)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["backend.base_url"] != "http://x" {
		t.Errorf("expected backend.base_url=http://x, got %v", flat["backend.base_url"])
	}
	if flat["chat.preview_length"] != float64(200) {
		t.Errorf("expected chat.preview_length=200, got %v (%T)", flat["chat.preview_length"], flat["chat.preview_length"])
	}
	if flat["chat.resolve_build_ids"] != true {
		t.Errorf("expected chat.resolve_build_ids=true, got %v", flat["chat.resolve_build_ids"])
	}
}

func TestGetValue(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	cfg := Default()
	cfg.LogLevel = "debug"
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug, got %v", v)
	}

	_, err = GetValue(path, "nonexistent.key")
	if err == nil || err.Error() != "unknown config key: nonexistent.key" {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestGetValue_NonexistentFile(t *testing.T) {
	clearEnv(t)
	v, err := GetValue(tempConfigPath(t), "log_level")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	if v != "info" {
		t.Errorf("expected default log_level=info, got %v", v)
	}
}

func TestSetValue_Types(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	tests := []struct {
		key  string
		raw  string
		want any
	}{
		{"backend.base_url", "http://mc:8080", "http://mc:8080"},
		{"chat.preview_length", "120", float64(120)},
		{"chat.resolve_build_ids", "false", false},
		{"custom.setting", "value", "value"},
	}
	for _, tc := range tests {
		if err := SetValue(path, tc.key, tc.raw); err != nil {
			t.Fatalf("SetValue(%s) failed: %v", tc.key, err)
		}
		v, err := GetValue(path, tc.key)
		if tc.key == "custom.setting" {
			// Unknown keys survive in the file but are not part of Config.
			if err == nil {
				t.Errorf("expected custom.setting to be unknown to Config")
			}
			continue
		}
		if err != nil {
			t.Fatalf("GetValue(%s) failed: %v", tc.key, err)
		}
		if v != tc.want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", tc.key, tc.want, tc.want, v, v)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if Flatten(m)["custom.setting"] != "value" {
		t.Errorf("custom.setting not preserved in file")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.PreviewLength != 120 || cfg.Chat.ResolveBuildIDs {
		t.Errorf("typed values not loaded: %+v", cfg.Chat)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}
