package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the settings file.
const (
	EnvDataDir      = "TAILPLANE_DATA_DIR"
	EnvListen       = "TAILPLANE_LISTEN"
	EnvDescriptor   = "TAILPLANE_DESCRIPTOR"
	EnvPollInterval = "TAILPLANE_POLL_INTERVAL"
	EnvHistoryLimit = "TAILPLANE_HISTORY_LIMIT"
)

// LoadDotEnv reads the given .env files into the process environment.
// Missing files are not an error; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// DataDirFromEnv returns TAILPLANE_DATA_DIR or fallback.
func DataDirFromEnv(fallback string) string {
	return getEnvOrDefault(EnvDataDir, fallback)
}

// ApplyEnv overrides cfg fields from TAILPLANE_* variables.
func ApplyEnv(cfg Config) Config {
	cfg.ListenAddr = getEnvOrDefault(EnvListen, cfg.ListenAddr)
	cfg.DescriptorPath = getEnvOrDefault(EnvDescriptor, cfg.DescriptorPath)
	cfg.PollInterval = getEnvOrDefault(EnvPollInterval, cfg.PollInterval)
	if v := getEnvOrDefault(EnvHistoryLimit, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
