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

type Config struct {
	Storage StorageConfig
	GitLab  GitLabConfig
	Lock    LockConfig
	OTel    OTelConfig
	Env     string
	Port    string
	NodeID  int64

	// LogLevel is debug, info, warn or error; empty picks by environment.
	LogLevel string
}

type StorageConfig struct {
	PrimaryPath  string
	FallbackPath string
	Timeout      time.Duration
	// Order lists backend names by priority: "remote", "local", "fallback".
	Order []string
}

type GitLabConfig struct {
	BaseURL     string
	Token       string
	Project     string
	Branch      string
	FilePath    string
	AuthorName  string
	AuthorEmail string
}

type LockConfig struct {
	Mode     LockMode
	RedisURL string
	TTL      time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type LockMode string

const (
	LockModeNone  LockMode = "none"
	LockModeLocal LockMode = "local"
	LockModeRedis LockMode = "redis"
)

const (
	BackendRemote   = "remote"
	BackendLocal    = "local"
	BackendFallback = "fallback"
)

// Load reads configuration from the environment. In development a .env file
// in the working directory is loaded first when present.
func Load() (Config, error) {
	if getEnv("QNA_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:      getEnv("QNA_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		NodeID:   getEnvInt64("NODE_ID", 1),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "")),
		Storage: StorageConfig{
			PrimaryPath:  getEnv("DATA_PATH", filepath.Join("data", "questions.json")),
			FallbackPath: getEnv("FALLBACK_DATA_PATH", filepath.Join(os.TempDir(), "qna", "questions.json")),
			Timeout:      getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
		},
		GitLab: GitLabConfig{
			BaseURL:     getEnv("GITLAB_BASE_URL", "https://gitlab.com"),
			Token:       getEnv("GITLAB_TOKEN", ""),
			Project:     getEnv("GITLAB_PROJECT", ""),
			Branch:      getEnv("GITLAB_BRANCH", "main"),
			FilePath:    getEnv("GITLAB_FILE_PATH", "data/questions.json"),
			AuthorName:  getEnv("GITLAB_AUTHOR_NAME", "qna-bot"),
			AuthorEmail: getEnv("GITLAB_AUTHOR_EMAIL", ""),
		},
		Lock: LockConfig{
			Mode:     LockMode(strings.ToLower(getEnv("MUTATION_LOCK", string(LockModeNone)))),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			TTL:      getEnvDuration("LOCK_TTL", 10*time.Second),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "qna"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}

	order, err := parseOrder(getEnv("STORAGE_ORDER", ""), cfg.GitLab.Enabled())
	if err != nil {
		return Config{}, err
	}
	cfg.Storage.Order = order

	switch cfg.Lock.Mode {
	case LockModeNone, LockModeLocal, LockModeRedis:
	default:
		return Config{}, fmt.Errorf("MUTATION_LOCK must be one of none, local, redis (got %q)", cfg.Lock.Mode)
	}

	if cfg.Storage.Timeout <= 0 {
		return Config{}, fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}

	return cfg, nil
}

// parseOrder validates an explicit STORAGE_ORDER or derives the default one:
// remote, local, fallback when GitLab is configured (local is the remote's
// mirror and the first place to read during an outage), local then fallback
// otherwise.
func parseOrder(raw string, remoteEnabled bool) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		if remoteEnabled {
			return []string{BackendRemote, BackendLocal, BackendFallback}, nil
		}
		return []string{BackendLocal, BackendFallback}, nil
	}

	seen := make(map[string]bool)
	var order []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		switch name {
		case BackendRemote, BackendLocal, BackendFallback:
		default:
			return nil, fmt.Errorf("STORAGE_ORDER: unknown backend %q", name)
		}
		if name == BackendRemote && !remoteEnabled {
			return nil, fmt.Errorf("STORAGE_ORDER includes remote but GITLAB_TOKEN and GITLAB_PROJECT are not set")
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("STORAGE_ORDER must name at least one backend")
	}
	return order, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c GitLabConfig) Enabled() bool {
	return c.Token != "" && c.Project != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
