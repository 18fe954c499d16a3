// ABOUTME: Configuration management for accounts, data directory, and preferences
// ABOUTME: JSON config under XDG config home; accounts decide the authoritative sync service

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/skein/internal/storage"
)

// GReaderAccount holds credentials for a FreshRSS / Google Reader API server.
type GReaderAccount struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Token     string `json:"token,omitempty"` // ClientLogin auth token
}

// MinifluxAccount holds credentials for a Miniflux server.
type MinifluxAccount struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// Config stores skein configuration.
type Config struct {
	// DataDir is the root directory for data storage. Supports ~ expansion.
	// Defaults to ~/.local/share/skein.
	DataDir string `json:"data_dir,omitempty"`

	GReader  *GReaderAccount  `json:"greader,omitempty"`
	Miniflux *MinifluxAccount `json:"miniflux,omitempty"`

	// SnapshotSync enables device-to-device sync through Charm Cloud when no
	// aggregator account is signed in.
	SnapshotSync bool `json:"snapshot_sync,omitempty"`

	// NotifyOnNewArticles enables the new-article notification derivation.
	NotifyOnNewArticles bool `json:"notify_on_new_articles,omitempty"`
}

// HasGReader reports whether a usable GReader account is configured.
func (c *Config) HasGReader() bool {
	return c.GReader != nil && c.GReader.ServerURL != "" && c.GReader.Token != ""
}

// HasMiniflux reports whether a usable Miniflux account is configured.
func (c *Config) HasMiniflux() bool {
	return c.Miniflux != nil && c.Miniflux.Endpoint != "" && c.Miniflux.APIKey != ""
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the SQLite store in the configured data directory.
func (c *Config) OpenStorage() (storage.Store, error) {
	dbPath := filepath.Join(c.GetDataDir(), "skein.db")
	return storage.NewSQLiteStore(dbPath)
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "skein", "config.json")
}

// Load reads config from disk. A missing file yields the default config.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk atomically.
func (c *Config) Save() error {
	path := GetConfigPath()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "skein")
}
