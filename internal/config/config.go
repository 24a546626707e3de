package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAPIBase = "http://localhost:8000"

// Config holds all configuration for the DNASpecies server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Backend  BackendConfig
	Workflow WorkflowConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
	ResultCacheTTL  time.Duration
	ModelsCacheTTL  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// BackendConfig describes the external prediction API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WorkflowConfig tunes intake and the poll loop.
type WorkflowConfig struct {
	RequestedK     int
	MaxUploadBytes int64
	PollInterval   time.Duration
	MaxAttempts    int
	MaxNotFound    int
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env.local file in the working directory or its parent is applied first;
// variables already present in the environment win.
func Load() (*Config, error) {
	loadEnvFile()

	backend, workflow := loadClientSections()
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("DNASPECIES_PORT", 8080),
			Env:             envString("DNASPECIES_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 30),
			ResultCacheTTL:  envDuration("RESULT_CACHE_TTL", 30*time.Minute),
			ModelsCacheTTL:  envDuration("MODELS_CACHE_TTL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Backend:  backend,
		Workflow: workflow,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ClientConfig is the subset of configuration used by the command-line client.
type ClientConfig struct {
	Backend  BackendConfig
	Workflow WorkflowConfig
}

// LoadClient reads only the backend and workflow sections. It does not
// require database or cache settings.
func LoadClient() (*ClientConfig, error) {
	loadEnvFile()

	backend, workflow := loadClientSections()
	cfg := &ClientConfig{Backend: backend, Workflow: workflow}
	if err := validateBackend(cfg.Backend); err != nil {
		return nil, err
	}
	if err := validateWorkflow(cfg.Workflow); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadClientSections() (BackendConfig, WorkflowConfig) {
	backend := BackendConfig{
		BaseURL: strings.TrimRight(apiBase(), "/"),
		Timeout: envDuration("BACKEND_TIMEOUT", 30*time.Second),
	}
	workflow := WorkflowConfig{
		RequestedK:     envInt("REQUESTED_K", 10),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_MB", 25)) * 1024 * 1024,
		PollInterval:   envDuration("POLL_INTERVAL", time.Second),
		MaxAttempts:    envInt("POLL_MAX_ATTEMPTS", 180),
		MaxNotFound:    envInt("POLL_MAX_NOT_FOUND", 60),
	}
	return backend, workflow
}

// apiBase honours the frontend-era variable names so existing .env files keep working.
func apiBase() string {
	for _, key := range []string{"API_BASE", "VITE_API_BASE", "REACT_APP_API_BASE"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return defaultAPIBase
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if err := validateBackend(c.Backend); err != nil {
		return err
	}
	if err := validateWorkflow(c.Workflow); err != nil {
		return err
	}

	if c.Server.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", c.Server.RateLimitPerMin)
	}

	return nil
}

func validateBackend(b BackendConfig) error {
	if !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		return fmt.Errorf("API_BASE must start with http:// or https://, got %q", b.BaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	return nil
}

func validateWorkflow(w WorkflowConfig) error {
	if w.RequestedK < 1 {
		return fmt.Errorf("REQUESTED_K must be at least 1, got %d", w.RequestedK)
	}
	if w.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if w.MaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1, got %d", w.MaxAttempts)
	}
	if w.MaxNotFound < 0 {
		return fmt.Errorf("POLL_MAX_NOT_FOUND must not be negative, got %d", w.MaxNotFound)
	}
	return nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
