// Command migrate runs goose schema migrations against the gateway
// database. Connection settings come from the same DB_* environment
// variables the server reads; gateway credentials are not required.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kevin07696/nmi-gateway/internal/config"
)

func main() {
	dir := flag.String("dir", "internal/db/migrations", "directory with migration files")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *dir, flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(command, dir string, args []string) error {
	dbCfg := databaseConfigFromEnv()

	db, err := sql.Open("pgx", dbCfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect to %s: %w", dbCfg.Database, err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Run(command, db, dir, args...); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// databaseConfigFromEnv mirrors the server's DB_* variables without
// pulling in the rest of its configuration, which would insist on
// gateway credentials.
func databaseConfigFromEnv() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOrInt("DB_PORT", 5432),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		Database: envOr("DB_NAME", "nmi_gateway"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: migrate [-dir DIR] COMMAND [ARGS]

Commands:
    up                   Apply all pending migrations
    up-to VERSION        Migrate up to VERSION
    down                 Roll back one migration
    down-to VERSION      Roll back to VERSION
    status               Show applied and pending migrations
    version              Print the current schema version
    create NAME sql      Create a timestamped migration file
`)
	flag.PrintDefaults()
}
