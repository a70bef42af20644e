package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table (directory mirror of the external identity provider)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			username VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create itineraries table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS itineraries (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			owner_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			start_date VARCHAR(10),
			end_date VARCHAR(10),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create itinerary_places table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS itinerary_places (
			id VARCHAR(36) PRIMARY KEY,
			itinerary_id VARCHAR(36) NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
			place_id VARCHAR(36) NOT NULL,
			visit_date VARCHAR(10),
			visit_time VARCHAR(8),
			visit_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
			estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			notes TEXT,
			order_index INTEGER NOT NULL,
			suggestion_status VARCHAR(10) NOT NULL,
			created_by VARCHAR(36) NOT NULL REFERENCES users(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create itinerary_users table (for sharing)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS itinerary_users (
			itinerary_id VARCHAR(36) NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (itinerary_id, user_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create place_participants table (tap-in attendance)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS place_participants (
			place_id VARCHAR(36) NOT NULL REFERENCES itinerary_places(id) ON DELETE CASCADE,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (place_id, user_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create itinerary_changes table (append-only change log)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS itinerary_changes (
			id VARCHAR(36) PRIMARY KEY,
			itinerary_id VARCHAR(36) NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			sequence_number BIGINT NOT NULL,
			field VARCHAR(255) NOT NULL,
			new_value TEXT NOT NULL,
			previous_value TEXT NOT NULL,
			change_type VARCHAR(20) NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			UNIQUE (itinerary_id, sequence_number)
		)
	`)
	if err != nil {
		return err
	}

	// Create itinerary_sequences table (per-itinerary change ordering)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS itinerary_sequences (
			itinerary_id VARCHAR(36) PRIMARY KEY REFERENCES itineraries(id) ON DELETE CASCADE,
			current_sequence BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_itinerary_places_itinerary ON itinerary_places(itinerary_id, order_index)",
		"CREATE INDEX IF NOT EXISTS idx_itinerary_changes_itinerary ON itinerary_changes(itinerary_id)",
		"CREATE INDEX IF NOT EXISTS idx_itinerary_changes_seq ON itinerary_changes(itinerary_id, sequence_number)",
		"CREATE INDEX IF NOT EXISTS idx_itinerary_users_user ON itinerary_users(user_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
