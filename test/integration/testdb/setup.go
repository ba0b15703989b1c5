package testdb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDBConfig holds test database configuration
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// GetTestDBConfig returns test database configuration from environment or defaults
func GetTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnv("TEST_DB_PORT", "5434"),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "nmi_gateway_test"),
	}
}

// SetupTestDB creates a test database connection pool and runs migrations
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	cfg := GetTestDBConfig()

	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse database config: %v", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Clean all tables for fresh test state
	CleanDatabase(t, pool)

	t.Logf("Test database setup complete: %s", cfg.Database)

	return pool
}

// CleanDatabase truncates all tables for a fresh test state
func CleanDatabase(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	tables := []string{"orders", "order_payment_meta", "order_notes", "payment_tokens", "payment_retries"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}

// TeardownTestDB closes the database connection pool
func TeardownTestDB(t *testing.T, pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
		t.Log("Test database connection closed")
	}
}

// runMigrations applies the schema. Kept in sync with
// internal/db/migrations/001_init.sql.
func runMigrations(pool *pgxpool.Pool) error {
	ctx := context.Background()

	migrationSQL := `
CREATE TABLE IF NOT EXISTS orders (
    id VARCHAR(64) PRIMARY KEY,
    number VARCHAR(64) NOT NULL,
    user_id BIGINT NOT NULL DEFAULT 0,
    total NUMERIC(19, 4) NOT NULL DEFAULT 0,
    currency VARCHAR(3) NOT NULL DEFAULT 'USD',
    failed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT orders_total_non_negative CHECK (total >= 0)
);

CREATE TABLE IF NOT EXISTS order_payment_meta (
    order_id VARCHAR(64) NOT NULL,
    meta_key VARCHAR(128) NOT NULL,
    meta_value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (order_id, meta_key)
);

CREATE TABLE IF NOT EXISTS order_notes (
    id BIGSERIAL PRIMARY KEY,
    order_id VARCHAR(64) NOT NULL,
    note TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_order_notes_order_id ON order_notes (order_id);

CREATE TABLE IF NOT EXISTS payment_tokens (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    vault_customer_id VARCHAR(64) NOT NULL,
    environment VARCHAR(16) NOT NULL,
    last_four VARCHAR(4) NOT NULL DEFAULT '',
    brand VARCHAR(32) NOT NULL DEFAULT '',
    exp_month VARCHAR(2) NOT NULL DEFAULT '',
    exp_year VARCHAR(4) NOT NULL DEFAULT '',
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT payment_tokens_vault_unique UNIQUE (user_id, environment, vault_customer_id)
);

CREATE INDEX IF NOT EXISTS idx_payment_tokens_user_env ON payment_tokens (user_id, environment);

CREATE TABLE IF NOT EXISTS payment_retries (
    scope VARCHAR(16) NOT NULL,
    subject_id VARCHAR(64) NOT NULL,
    week_key VARCHAR(16) NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (scope, subject_id, week_key)
);
`

	_, err := pool.Exec(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("failed to execute migrations: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
