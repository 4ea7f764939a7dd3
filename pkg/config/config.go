package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Project directories
	Paths PathsConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// PathsConfig holds the managed data directories
type PathsConfig struct {
	DataRaw     string
	DataCurated string
	Reports     string
}

// Directories returns the managed directories in creation order
func (p PathsConfig) Directories() []string {
	return []string{p.DataRaw, p.DataCurated, p.Reports}
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Paths: PathsConfig{
			DataRaw:     getEnv("DATA_RAW_DIR", "data/raw"),
			DataCurated: getEnv("DATA_CURATED_DIR", "data/curated"),
			Reports:     getEnv("REPORTS_DIR", "reports"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// EnsureDirectories creates the managed directories if they do not exist
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.Paths.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	for _, dir := range c.Paths.Directories() {
		if dir == "" {
			return fmt.Errorf("data directories must not be empty")
		}
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
