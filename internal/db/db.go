package db

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
)

// DB is the global database connection.
var DB *sqlx.DB

// InitDB initializes the database connection and ensures the schema exists.
func InitDB() {
	var err error
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	DB, err = sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err = DB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err = CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Database connection established")
}

// CreateTables creates the catalog tables if they do not exist. The
// uniqueness of (podcast_id, fingerprint) lives in the schema, so duplicate
// suppression holds under concurrent or restarted passes.
func CreateTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS podcasts (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			feed_url TEXT NOT NULL,
			folder_name TEXT NOT NULL,
			drive_folder_id TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			keep_count INTEGER NOT NULL DEFAULT -1,
			delete_remote BOOLEAN NOT NULL DEFAULT FALSE,
			last_checked TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id SERIAL PRIMARY KEY,
			podcast_id INTEGER NOT NULL REFERENCES podcasts(id),
			fingerprint TEXT NOT NULL,
			title TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			media_url TEXT NOT NULL,
			size_hint BIGINT NOT NULL DEFAULT 0,
			local_path TEXT,
			drive_file_id TEXT,
			drive_file_url TEXT,
			bytes_transferred BIGINT NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			last_error TEXT,
			state_changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (podcast_id, fingerprint)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_podcast_state ON episodes(podcast_id, state)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id SERIAL PRIMARY KEY,
			run_type TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range schema {
		if _, err := DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
