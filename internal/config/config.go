// Package config handles TOML-based configuration loading and validation.
// TOML is parsed as data only, so a config file can never run code.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	UserAgent         string   `toml:"user_agent"`
	Timeout           string   `toml:"timeout"`
	MaxBodyMB         int      `toml:"max_body_mb"`
	InvidiousInstance string   `toml:"invidious_instance"`
	InvidiousHosts    []string `toml:"invidious_hosts"`
	PeerTubeHosts     []string `toml:"peertube_hosts"`
	PipedHosts        []string `toml:"piped_hosts"`
	PipedAPIHosts     []string `toml:"piped_api_hosts"`
	Disabled          []string `toml:"disabled"`
	Output            string   `toml:"output"`
	LogLevel          string   `toml:"log_level"`
	LogFormat         string   `toml:"log_format"`
	ManifestDir       string   `toml:"manifest_dir"`
	SubsLanguage      string   `toml:"subs_language"`
	Debug             bool     `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Timeout:           "30s",
		MaxBodyMB:         10,
		InvidiousInstance: "yewtu.be",
		PeerTubeHosts:     []string{"framatube.org"},
		PipedHosts:        []string{"piped.video", "piped.kavin.rocks"},
		PipedAPIHosts:     []string{"pipedapi.kavin.rocks"},
		Output:            "text",
		LogLevel:          "warn",
		LogFormat:         "text",
		ManifestDir:       "~/Videos/tuber",
		SubsLanguage:      "",
		Debug:             false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tuber"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tuber"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at the XDG path and merges it with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path and merges it with defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validOutputs := map[string]bool{"text": true, "json": true}
	if !validOutputs[strings.ToLower(c.Output)] {
		return fmt.Errorf("unsupported output %q (valid: text, json)", c.Output)
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("unsupported log level %q (valid: trace, debug, info, warn, error)", c.LogLevel)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("unsupported log format %q (valid: text, json)", c.LogFormat)
	}

	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}

	if c.MaxBodyMB <= 0 || c.MaxBodyMB > 512 {
		return fmt.Errorf("max_body_mb must be between 1 and 512, got %d", c.MaxBodyMB)
	}

	if c.InvidiousInstance == "" {
		return fmt.Errorf("invidious instance cannot be empty")
	}
	if strings.Contains(c.InvidiousInstance, "/") {
		return fmt.Errorf("invidious instance %q must be a bare host name", c.InvidiousInstance)
	}

	hostLists := map[string][]string{
		"invidious_hosts": c.InvidiousHosts,
		"peertube_hosts":  c.PeerTubeHosts,
		"piped_hosts":     c.PipedHosts,
		"piped_api_hosts": c.PipedAPIHosts,
	}
	for key, hosts := range hostLists {
		for _, h := range hosts {
			if h = strings.TrimSpace(h); h == "" || strings.ContainsAny(h, "/ ") {
				return fmt.Errorf("%s entry %q must be a bare host name", key, h)
			}
		}
	}

	return nil
}

// TimeoutDuration parses the per-resolution timeout. Zero disables it.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	return d, nil
}

// MaxBodyBytes returns the response body cap in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.MaxBodyMB) * 1024 * 1024
}

// IsDisabled reports whether the named plugin is switched off.
func (c *Config) IsDisabled(plugin string) bool {
	for _, d := range c.Disabled {
		if strings.EqualFold(strings.TrimSpace(d), plugin) {
			return true
		}
	}
	return false
}

// ExpandManifestDir resolves ~ in the manifest directory path.
func (c *Config) ExpandManifestDir() (string, error) {
	dir := c.ManifestDir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}
