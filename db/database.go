package db

import (
	"database/sql"
	"fmt"
	"log"

	"musedb/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the catalog schema, creating tables if they don't exist.
// The edit/moderation tables are managed separately through GORM (see gorm.go).
func InitDB() error {
	if err := createUsersTable(); err != nil {
		return err
	}
	if err := createArtistCreditsTable(); err != nil {
		return err
	}
	if err := createRecordingsTable(); err != nil {
		return err
	}
	if err := createReleasesTable(); err != nil {
		return err
	}
	if err := createMediumsTable(); err != nil {
		return err
	}
	if err := createTracksTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	log.Println("Users table initialized successfully (or already exists).")
	return nil
}

func createArtistCreditsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS artist_credits (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create artist_credits table: %w", err)
	}
	return nil
}

func createRecordingsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS recordings (
		id INT AUTO_INCREMENT PRIMARY KEY,
		gid CHAR(36) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		length_ms INT,
		artist_credit_id INT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_recording_ac FOREIGN KEY (artist_credit_id) REFERENCES artist_credits(id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create recordings table: %w", err)
	}
	return nil
}

func createReleasesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS releases (
		id INT AUTO_INCREMENT PRIMARY KEY,
		gid CHAR(36) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'official',
		artist_credit_id INT,
		cover_art_path VARCHAR(767),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_release_ac FOREIGN KEY (artist_credit_id) REFERENCES artist_credits(id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create releases table: %w", err)
	}
	return nil
}

func createMediumsTable() error {
	// Unique (release_id, position): medium positions are unique per release.
	query := `
	CREATE TABLE IF NOT EXISTS mediums (
		id INT AUTO_INCREMENT PRIMARY KEY,
		release_id INT NOT NULL,
		position INT NOT NULL,
		name VARCHAR(255),
		format VARCHAR(32),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_medium_release FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
		CONSTRAINT uq_release_position UNIQUE (release_id, position)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create mediums table: %w", err)
	}
	return nil
}

func createTracksTable() error {
	// Unique (medium_id, position): track positions are unique per medium.
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id INT AUTO_INCREMENT PRIMARY KEY,
		medium_id INT NOT NULL,
		position INT NOT NULL,
		title VARCHAR(255) NOT NULL,
		length_ms INT,
		recording_id INT NOT NULL,
		artist_credit_id INT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_track_medium FOREIGN KEY (medium_id) REFERENCES mediums(id) ON DELETE CASCADE,
		CONSTRAINT fk_track_recording FOREIGN KEY (recording_id) REFERENCES recordings(id),
		CONSTRAINT fk_track_ac FOREIGN KEY (artist_credit_id) REFERENCES artist_credits(id),
		CONSTRAINT uq_medium_position UNIQUE (medium_id, position)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}
