// Package config loads the YAML settings shared by the tilawah binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tilawah/internal/quran"
	"tilawah/pkg/spec"
)

const CurrentVersion = 1

type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Editions quran.Editions `yaml:"editions"`

	Audio struct {
		SampleRate int `yaml:"sample_rate"`
		BufferMs   int `yaml:"buffer_ms"`
		// Volume is a base-2 exponent: 0 is unchanged, -1 is half.
		Volume float64 `yaml:"volume"`
	} `yaml:"audio"`

	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Path    string        `yaml:"path"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Server struct {
		Socket   string `yaml:"socket"`
		HTTPAddr string `yaml:"http_addr"`
		MDNS     bool   `yaml:"mdns"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		File        string `yaml:"file"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Version int `yaml:"config_version"`

	path string
}

// Default returns the settings used when no file exists.
func Default() *Config {
	c := &Config{}

	c.API.BaseURL = spec.APIBaseURL
	c.API.Timeout = 15 * time.Second

	c.Editions = quran.Editions{
		Text:        spec.DefaultTextEdition,
		Translation: spec.DefaultTranslationEdition,
		Audio:       spec.DefaultAudioEdition,
	}

	c.Audio.SampleRate = spec.SampleRate
	c.Audio.BufferMs = spec.SpeakerBufferMs

	c.Cache.Enabled = true
	c.Cache.Path = filepath.Join(dataDir(), spec.CacheFile)
	c.Cache.TTL = 30 * 24 * time.Hour

	c.Server.Socket = spec.SocketFile
	c.Server.HTTPAddr = spec.HTTPAddr

	c.Log.Level = "info"

	c.Version = CurrentVersion
	return c
}

// DefaultPath is $XDG_CONFIG_HOME/tilawah/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, spec.ConfigDir, "config.yaml")
}

func dataDir() string {
	if d := os.Getenv("XDG_CACHE_HOME"); d != "" {
		return filepath.Join(d, spec.ConfigDir)
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, spec.ConfigDir)
}

// Load reads path over the defaults. A missing file is not an error. Env
// overrides are applied before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// ApplyEnv overrides fields from TILAWAH_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("TILAWAH_API_URL", &c.API.BaseURL)
	str("TILAWAH_TRANSLATION", &c.Editions.Translation)
	str("TILAWAH_RECITER", &c.Editions.Audio)
	str("TILAWAH_SOCKET", &c.Server.Socket)
	str("TILAWAH_HTTP_ADDR", &c.Server.HTTPAddr)
	str("TILAWAH_LOG_LEVEL", &c.Log.Level)
	str("TILAWAH_CACHE_PATH", &c.Cache.Path)

	if v, ok := lookup("TILAWAH_CACHE"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Cache.Enabled = b
		}
	}
}

func (c *Config) normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Path != "" {
		c.Cache.Path = filepath.Clean(c.Cache.Path)
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://"):
		return fmt.Errorf("api.base_url %q is not an http(s) url", c.API.BaseURL)
	case c.API.Timeout <= 0:
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	case !quran.ValidEdition(c.Editions.Text):
		return fmt.Errorf("editions.text %q is not a valid edition", c.Editions.Text)
	case !quran.ValidEdition(c.Editions.Translation):
		return fmt.Errorf("editions.translation %q is not a valid edition", c.Editions.Translation)
	case !quran.ValidEdition(c.Editions.Audio):
		return fmt.Errorf("editions.audio %q is not a valid edition", c.Editions.Audio)
	case c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000:
		return fmt.Errorf("audio.sample_rate %d out of range 8000-192000", c.Audio.SampleRate)
	case c.Audio.BufferMs <= 0:
		return fmt.Errorf("audio.buffer_ms must be positive, got %d", c.Audio.BufferMs)
	case c.Cache.Enabled && c.Cache.Path == "":
		return errors.New("cache.path is required when the cache is enabled")
	case c.Cache.TTL < 0:
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	case c.Server.Socket == "":
		return errors.New("server.socket is required")
	case !logLevels[c.Log.Level]:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Save writes the config to path atomically.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.path
	}
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.path = path
	return nil
}
