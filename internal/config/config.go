package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendGitHub = "github"
	BackendMemory = "memory"
	BackendR2     = "r2"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Remote tree
	TreeBackend    string `json:"tree_backend"`
	GitHubToken    string `json:"-"`
	GitHubOwner    string `json:"github_owner"`
	GitHubRepo     string `json:"github_repo"`
	GitHubBranch   string `json:"github_branch"`
	GitHubAPIURL   string `json:"github_api_url"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`

	// Content layout
	ArticlesDir       string `json:"articles_dir"`
	AssetsDir         string `json:"assets_dir"`
	AssetPublicPrefix string `json:"asset_public_prefix"`
	DefaultAuthor     string `json:"default_author"`
	MaxConcurrency    int    `json:"max_concurrency"`
	MaxFileSize       int64  `json:"max_file_size"`

	// CloudFlare R2 Configuration
	AssetBackend string        `json:"asset_backend"`
	R2Endpoint   string        `json:"r2_endpoint"`
	R2AccessKey  string        `json:"-"`
	R2SecretKey  string        `json:"-"`
	R2Bucket     string        `json:"r2_bucket"`
	R2AccountID  string        `json:"r2_account_id"`
	R2PublicURL  string        `json:"r2_public_url"`
	R2PresignTTL time.Duration `json:"r2_presign_ttl"`
	R2KeyPrefix  string        `json:"r2_key_prefix"`

	// Publishing
	BuildHookURL     string        `json:"build_hook_url"`
	BuildHookTimeout time.Duration `json:"build_hook_timeout"`

	// Redis configuration
	RedisURL    string `json:"redis_url"`
	RedisPrefix string `json:"redis_prefix"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey   string   `json:"-"`
	AllowedEmails []string `json:"allowed_emails"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Remote tree
		TreeBackend:    strings.ToLower(getEnv("TREE_BACKEND", BackendGitHub)),
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),
		GitHubOwner:    getEnv("GITHUB_OWNER", ""),
		GitHubRepo:     getEnv("GITHUB_REPO", ""),
		GitHubBranch:   getEnv("GITHUB_BRANCH", "main"),
		GitHubAPIURL:   getEnv("GITHUB_API_URL", "https://api.github.com"),
		CommitterName:  getEnv("COMMITTER_NAME", "Red Flag CMS"),
		CommitterEmail: getEnv("COMMITTER_EMAIL", "cms@redflagsecurity.example"),

		// Content layout
		ArticlesDir:       getEnv("ARTICLES_DIR", "content/blog"),
		AssetsDir:         getEnv("ASSETS_DIR", "public/images"),
		AssetPublicPrefix: getEnv("ASSET_PUBLIC_PREFIX", "/images"),
		DefaultAuthor:     getEnv("DEFAULT_AUTHOR", "Red Flag Security Team"),
		MaxConcurrency:    getEnvAsInt("MAX_CONCURRENCY", 5),
		MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 10<<20), // 10MB

		// CloudFlare R2 Configuration
		AssetBackend: strings.ToLower(getEnv("ASSET_BACKEND", BackendGitHub)),
		R2Endpoint:   getEnv("R2_ENDPOINT", ""),
		R2AccessKey:  getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:  getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:     getEnv("R2_BUCKET", ""),
		R2AccountID:  getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		R2PresignTTL: getEnvAsDuration("R2_PRESIGN_TTL", time.Hour),
		R2KeyPrefix:  getEnv("R2_KEY_PREFIX", "images"),

		// Publishing
		BuildHookURL:     getEnv("BUILD_HOOK_URL", ""),
		BuildHookTimeout: getEnvAsDuration("BUILD_HOOK_TIMEOUT", 10*time.Second),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "redflag-cms:"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),

		// Security
		AdminAPIKey:   getEnv("ADMIN_API_KEY", ""),
		AllowedEmails: getEnvAsList("ALLOWED_EMAILS", nil),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected backends have their credentials.
func (c *Config) Validate() error {
	var errs []error

	switch c.TreeBackend {
	case BackendGitHub:
		if c.GitHubToken == "" {
			errs = append(errs, errors.New("GITHUB_TOKEN is required"))
		}
		if c.GitHubOwner == "" || c.GitHubRepo == "" {
			errs = append(errs, errors.New("GITHUB_OWNER and GITHUB_REPO are required"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown TREE_BACKEND %q", c.TreeBackend))
	}

	switch c.AssetBackend {
	case BackendGitHub:
	case BackendR2:
		if c.R2AccessKey == "" || c.R2SecretKey == "" {
			errs = append(errs, errors.New("R2_ACCESS_KEY and R2_SECRET_ACCESS_KEY are required"))
		}
		if c.R2Bucket == "" {
			errs = append(errs, errors.New("R2_BUCKET is required"))
		}
		if c.R2Endpoint == "" && c.R2AccountID == "" {
			errs = append(errs, errors.New("R2_ENDPOINT or CLOUDFLARE_ACCOUNT_ID is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_BACKEND %q", c.AssetBackend))
	}

	if c.IsProduction() && c.AdminAPIKey == "" {
		errs = append(errs, errors.New("ADMIN_API_KEY is required in production"))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("MAX_CONCURRENCY must be positive"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(name string, defaultVal []string) []string {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
