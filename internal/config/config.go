package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Secrets  SecretsConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds NMI gateway configuration
type GatewayConfig struct {
	// Environment selects the credential set and token partition: "production" or "sandbox"
	Environment string

	// APIMethod is "direct_post" (raw card fields) or "collect_js" (client tokenization)
	APIMethod string

	// Direct-post credentials; mutually exclusive with SecurityKey
	Username string
	Password string

	// Collect.js / private-key credential
	SecurityKey string

	// Names of the secrets holding the credentials when a secrets backend is
	// configured; plain values above win when both are set.
	UsernameSecret    string
	PasswordSecret    string
	SecurityKeySecret string

	// TransactionType is "charge" (immediate capture) or "authorization"
	TransactionType string

	// ProcessorMode is "validate" or "auth"; controls the vault-create call type
	ProcessorMode string

	Currency string

	// Timeout for a single gateway call; no retries are attempted
	Timeout time.Duration

	// Tokenization enables saving cards to the customer vault
	Tokenization bool

	// RequireCSC makes the security code mandatory, including a verify-only
	// call before charging a saved token
	RequireCSC bool

	// DetailedDeclineMessages surfaces mapped decline reasons to the shopper
	// instead of the generic apology
	DetailedDeclineMessages bool

	// AcceptedBrands limits which card brands may be vaulted; empty = all
	AcceptedBrands []string

	// SendReceipt asks the gateway to email the customer a receipt
	SendReceipt bool

	// MaxWeeklyRetries caps failed attempts per subject per ISO week; 0 disables
	MaxWeeklyRetries int
}

// SecretsConfig selects the secrets backend for gateway credentials
type SecretsConfig struct {
	// Provider is "env", "local", "aws" or "vault"
	Provider string

	// Local filesystem backend
	LocalPath string

	// AWS Secrets Manager backend
	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	// Vault backend
	VaultAddress string
	VaultToken   string
	VaultMount   string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "nmi_gateway"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateway: GatewayConfig{
			Environment:             getEnv("NMI_ENVIRONMENT", "sandbox"),
			APIMethod:               getEnv("NMI_API_METHOD", "collect_js"),
			Username:                getEnv("NMI_USERNAME", ""),
			Password:                getEnv("NMI_PASSWORD", ""),
			SecurityKey:             getEnv("NMI_SECURITY_KEY", ""),
			UsernameSecret:          getEnv("NMI_USERNAME_SECRET", ""),
			PasswordSecret:          getEnv("NMI_PASSWORD_SECRET", ""),
			SecurityKeySecret:       getEnv("NMI_SECURITY_KEY_SECRET", ""),
			TransactionType:         getEnv("NMI_TRANSACTION_TYPE", "charge"),
			ProcessorMode:           getEnv("NMI_PROCESSOR_MODE", "auth"),
			Currency:                getEnv("NMI_CURRENCY", "USD"),
			Timeout:                 time.Duration(getEnvAsInt("NMI_TIMEOUT_SECONDS", 60)) * time.Second,
			Tokenization:            getEnvAsBool("NMI_TOKENIZATION", true),
			RequireCSC:              getEnvAsBool("NMI_REQUIRE_CSC", false),
			DetailedDeclineMessages: getEnvAsBool("NMI_DETAILED_DECLINE_MESSAGES", true),
			AcceptedBrands:          getEnvAsSlice("NMI_ACCEPTED_BRANDS"),
			SendReceipt:             getEnvAsBool("NMI_SEND_RECEIPT", false),
			MaxWeeklyRetries:        getEnvAsInt("NMI_MAX_WEEKLY_RETRIES", 0),
		},
		Secrets: SecretsConfig{
			Provider:     getEnv("SECRETS_PROVIDER", "env"),
			LocalPath:    getEnv("SECRETS_LOCAL_PATH", ""),
			AWSRegion:    getEnv("SECRETS_AWS_REGION", "us-east-1"),
			AWSProfile:   getEnv("SECRETS_AWS_PROFILE", ""),
			AWSEndpoint:  getEnv("SECRETS_AWS_ENDPOINT", ""),
			VaultAddress: getEnv("SECRETS_VAULT_ADDRESS", ""),
			VaultToken:   getEnv("SECRETS_VAULT_TOKEN", ""),
			VaultMount:   getEnv("SECRETS_VAULT_MOUNT", "secret"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Gateway.Environment != string(domain.EnvironmentProduction) &&
		cfg.Gateway.Environment != string(domain.EnvironmentSandbox) {
		return nil, fmt.Errorf("NMI_ENVIRONMENT must be production or sandbox, got %q", cfg.Gateway.Environment)
	}
	if cfg.Secrets.Provider == "env" {
		hasDirectPost := cfg.Gateway.Username != "" && cfg.Gateway.Password != ""
		if cfg.Gateway.SecurityKey == "" && !hasDirectPost {
			return nil, fmt.Errorf("NMI_SECURITY_KEY or NMI_USERNAME+NMI_PASSWORD is required")
		}
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
