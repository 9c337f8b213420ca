package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	DSN string
}

// LoadDBConfig loads database configuration from environment variables
func LoadDBConfig() (*DBConfig, error) {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	if dbHost == "" || dbPort == "" || dbUser == "" || dbName == "" {
		return nil, fmt.Errorf("database environment variables not set (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbHost, dbPort, dbUser, dbPassword, dbName, sslMode)

	return &DBConfig{DSN: dsn}, nil
}

// ConnectDB establishes a connection to the PostgreSQL database
func ConnectDB(ctx context.Context, cfg *DBConfig) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	maxRetries := 5
	retryInterval := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.New(ctx, cfg.DSN)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				log.Println("Successfully connected to PostgreSQL!")
				return pool, nil
			}
			pool.Close()
		}
		log.Printf("Failed to connect to database (attempt %d/%d): %v. Retrying in %v...", i+1, maxRetries, err, retryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxRetries, err)
}

// Execer is the part of a pool AutoMigrate needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AutoMigrate creates tables if they don't exist
func AutoMigrate(ctx context.Context, db Execer) error {
	sql := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		phone_number TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		points BIGINT NOT NULL DEFAULT 0,
		referral_code TEXT UNIQUE NOT NULL,
		referred_by TEXT REFERENCES users(id) ON DELETE SET NULL,
		bonus_balance BIGINT NOT NULL DEFAULT 0,
		is_activated BOOLEAN NOT NULL DEFAULT FALSE,
		pending_activation BOOLEAN NOT NULL DEFAULT FALSE,
		has_used_free_spin BOOLEAN NOT NULL DEFAULT FALSE,
		role TEXT NOT NULL CHECK (role IN ('user', 'admin')) DEFAULT 'user',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS point_ledger (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind VARCHAR(32) NOT NULL CHECK (kind IN ('referral_bonus', 'free_spin', 'spin', 'withdrawal', 'adjustment')),
		delta BIGINT NOT NULL DEFAULT 0,       -- signed change of points
		bonus_delta BIGINT NOT NULL DEFAULT 0, -- signed change of bonus_balance
		balance_after BIGINT NOT NULL,
		reference TEXT, -- withdrawal id, referred/referring user id
		description TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by);
	CREATE INDEX IF NOT EXISTS idx_point_ledger_user_id ON point_ledger(user_id);
	CREATE INDEX IF NOT EXISTS idx_point_ledger_kind ON point_ledger(kind);
	CREATE INDEX IF NOT EXISTS idx_point_ledger_reference ON point_ledger(reference);
	CREATE INDEX IF NOT EXISTS idx_point_ledger_created_at ON point_ledger(created_at);

    CREATE OR REPLACE FUNCTION update_updated_at_column()
    RETURNS TRIGGER AS $$
    BEGIN
       NEW.updated_at = NOW();
       RETURN NEW;
    END;
    $$ language 'plpgsql';

    DO $$
    BEGIN
        IF NOT EXISTS (
            SELECT 1
            FROM pg_trigger
            WHERE tgname = 'set_users_updated_at' AND tgrelid = 'users'::regclass
        ) THEN
            CREATE TRIGGER set_users_updated_at
            BEFORE UPDATE ON users
            FOR EACH ROW
            EXECUTE FUNCTION update_updated_at_column();
        END IF;
    END
    $$;
	`
	_, err := db.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}

	log.Println("AutoMigrate applied successfully")
	return nil
}
