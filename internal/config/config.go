// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port        int
	BaseURL     string
	Environment string // "development" or "production"

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	EncryptionKey []byte // 32-byte key for code-at-rest encryption
	AdminUserIDs  []string

	// Clerk Authentication
	ClerkIssuerURL     string // e.g., "https://xxx.clerk.accounts.dev"
	ClerkWebhookSecret string // Svix signing secret for Clerk webhooks

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// CORS
	CORSOrigins []string

	// Rate limits in requests per minute; zero disables
	IPRateLimit        int
	ExecutionRateLimit int // per user, on code execution only

	// Execution gateway
	ExecutorURL     string
	ExecutorSecret  string // HMAC secret for signing gateway requests
	ExecutorTimeout time.Duration
	ExecutorRPS     int
	ExecutorBurst   int

	// Background sweeps
	ActivationSweepInterval time.Duration
	RenewalSweepInterval    time.Duration
	PromotionSweepInterval  time.Duration

	// Object Storage (S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	PlanCatalogKey   string // Object key of the optional plan override file

	// Telemetry
	OTLPEndpoint string

	Billing BillingConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: getEnv("DATABASE_URL", "file:codecredit.db?_journal=WAL&_timeout=5000"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		AdminUserIDs: getEnvSlice("ADMIN_USER_IDS", nil),

		ClerkIssuerURL:     getEnv("CLERK_ISSUER_URL", ""),
		ClerkWebhookSecret: getEnv("CLERK_WEBHOOK_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		IPRateLimit:        getEnvInt("IP_RATE_LIMIT", 100),
		ExecutionRateLimit: getEnvInt("EXECUTION_RATE_LIMIT", 30),

		ExecutorURL:     getEnv("EXECUTOR_URL", "http://gateway:8080"),
		ExecutorSecret:  getEnv("EXECUTOR_SECRET", ""),
		ExecutorTimeout: getEnvDuration("EXECUTOR_TIMEOUT", 30*time.Second),
		ExecutorRPS:     getEnvInt("EXECUTOR_RPS", 20),
		ExecutorBurst:   getEnvInt("EXECUTOR_BURST", 40),

		ActivationSweepInterval: getEnvDuration("ACTIVATION_SWEEP_INTERVAL", time.Hour),
		RenewalSweepInterval:    getEnvDuration("RENEWAL_SWEEP_INTERVAL", 24*time.Hour),
		PromotionSweepInterval:  getEnvDuration("PROMOTION_SWEEP_INTERVAL", 24*time.Hour),

		StorageEndpoint:  getEnvWithFallback("STORAGE_ENDPOINT", "AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnvWithFallback("STORAGE_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnvWithFallback("STORAGE_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("STORAGE_BUCKET", "BUCKET_NAME", ""),
		StorageRegion:    getEnvWithFallback("STORAGE_REGION", "AWS_REGION", "auto"),
		PlanCatalogKey:   getEnv("PLAN_CATALOG_KEY", "config/plans.json"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	billing, err := loadBillingConfig()
	if err != nil {
		return nil, err
	}
	cfg.Billing = billing

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveKey(cfg.JWTSecret, "aes-256-gcm-encryption")
	}

	if cfg.ExecutorSecret == "" {
		cfg.ExecutorSecret = base64.RawURLEncoding.EncodeToString(deriveKey(cfg.JWTSecret, "executor-request-signing"))
	}

	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" && c.ClerkIssuerURL == "" {
		return errors.New("JWT_SECRET or CLERK_ISSUER_URL is required in production")
	}
	if c.ExecutorTimeout <= 0 {
		return errors.New("EXECUTOR_TIMEOUT must be positive")
	}
	return c.Billing.Validate()
}

// IsProduction returns true when running in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsAdmin reports whether userID is listed in ADMIN_USER_IDS.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveKey creates a 32-byte key from a secret string using HKDF-SHA256.
// info binds the key to one purpose so the same secret yields unrelated keys.
func deriveKey(secret, info string) []byte {
	salt := []byte("codecredit-api-key-v1")
	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, []byte(info))

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}
	return key
}
