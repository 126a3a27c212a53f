package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileName is the settings file kept in the data directory.
const FileName = "tailplane.config"

// Config holds the tool settings.
type Config struct {
	DataDir        string `json:"data_dir"`
	ListenAddr     string `json:"listen_addr"`
	DescriptorPath string `json:"descriptor_path,omitempty"`
	PollInterval   string `json:"poll_interval"`
	HistoryLimit   int    `json:"history_limit"`
}

func Default() Config {
	return Config{
		DataDir:        ".",
		ListenAddr:     ":8080",
		DescriptorPath: "",
		PollInterval:   "2s",
		HistoryLimit:   200,
	}
}

func Load(dataDir string) (Config, error) {
	cfgPath := filepath.Join(dataDir, FileName)

	f, err := os.Open(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.DataDir = dataDir
			return cfg, nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", cfgPath, err)
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.PollInterval == "" {
		cfg.PollInterval = def.PollInterval
	}

	return cfg, nil
}

func Save(cfg Config) error {
	cfgPath := filepath.Join(cfg.DataDir, FileName)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	tmp := cfgPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, cfgPath)
}

// Interval parses PollInterval, falling back to the default on error.
func (c Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(Default().PollInterval)
	}
	return d
}

// Validate checks the configuration for errors and returns helpful messages.
func (c Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.ListenAddr == "" {
		errs = append(errs, "listen_addr is required")
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil {
		errs = append(errs, fmt.Sprintf("poll_interval %q is not a duration", c.PollInterval))
	} else if d < 100*time.Millisecond {
		errs = append(errs, "poll_interval must be at least 100ms")
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, "history_limit must not be negative")
	}
	if c.DescriptorPath != "" {
		if info, err := os.Stat(c.DescriptorPath); err != nil {
			errs = append(errs, fmt.Sprintf("descriptor file not found: %s", c.DescriptorPath))
		} else if info.IsDir() {
			errs = append(errs, fmt.Sprintf("descriptor path is a directory: %s", c.DescriptorPath))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}
