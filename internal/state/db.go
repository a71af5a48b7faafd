package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     uint64
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS action_records (
			record_id SERIAL PRIMARY KEY,
			action_id UUID NOT NULL,
			kind VARCHAR(32) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			success BOOLEAN NOT NULL,
			error_class VARCHAR(64),
			error_message TEXT,
			tx_hashes TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_action_records_created_at ON action_records(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_action_records_kind ON action_records(kind, created_at DESC);

		CREATE TABLE IF NOT EXISTS sync_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			collateral NUMERIC(78, 0) NOT NULL,
			loan NUMERIC(78, 0) NOT NULL,
			ltc_ratio NUMERIC(78, 0) NOT NULL,
			is_healthy BOOLEAN NOT NULL,
			borrowable NUMERIC(78, 0) NOT NULL,
			pool_available_borrow NUMERIC(78, 0) NOT NULL,
			synced_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sync_snapshots_synced_at ON sync_snapshots(synced_at DESC);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Database schema is up to date.")
	return nil
}
