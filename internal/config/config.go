package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Backend  struct {
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"backend"`
	Owner struct {
		UUID     string `json:"uuid"`
		Username string `json:"username"`
	} `json:"owner"`
	Chat struct {
		PreviewLength      int  `json:"preview_length"`
		ResolveBuildIDs    bool `json:"resolve_build_ids"`
		MaxConcurrentSyncs int  `json:"max_concurrent_syncs"`
		ModeSyncAttempts   int  `json:"mode_sync_attempts"`
	} `json:"chat"`
	UI struct {
		Theme string `json:"theme"`
	} `json:"ui"`
}

// DefaultPath returns ~/.cfm/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".cfm", "config.json")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	cfg := &Config{
		DataDir:  filepath.Join(home, ".cfm"),
		LogLevel: "info",
	}
	cfg.Backend.BaseURL = "http://localhost:8080"
	cfg.Backend.TimeoutSeconds = 60
	cfg.Owner.UUID = "admin-uuid"
	cfg.Owner.Username = "admin"
	cfg.Chat.PreviewLength = 200
	cfg.Chat.ResolveBuildIDs = true
	cfg.Chat.MaxConcurrentSyncs = 2
	cfg.Chat.ModeSyncAttempts = 1
	cfg.UI.Theme = "auto"
	return cfg
}

// Load reads the config at path, writing defaults when it does not exist.
// Variables from .env files next to the config and in the working
// directory are loaded first; the environment takes precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	// Override from env (highest precedence)
	if v := os.Getenv("CFM_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("CFM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CFM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CFM_OWNER_UUID"); v != "" {
		cfg.Owner.UUID = v
	}
	if v := os.Getenv("CFM_OWNER_USERNAME"); v != "" {
		cfg.Owner.Username = v
	}

	return cfg, nil
}

// loadDotEnv loads each existing file. Variables already set win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Timeout returns the backend request timeout.
func (c *Config) Timeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// LogPath is where interactive sessions write their log.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "cfm.log")
}

func writeDefaults(path string, cfg *Config) error {
	if err := Save(path, cfg); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
