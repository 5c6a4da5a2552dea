package main

import (
	"database/sql"
	"fmt"
	"log"
)

func runMigrate(config *Config) {
	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}
	fmt.Println("✅ Database schema is up to date")
}

// initSchema creates the tables behind a db_version row so future
// migrations can be applied incrementally. Cascades along the
// calendar -> event -> exception chain are done by the store itself,
// so no foreign key pragmas are needed here.
func initSchema(db *sql.DB) error {
	var dbVersion int
	err := db.QueryRow("SELECT version FROM db_version WHERE name='calfeed'").Scan(&dbVersion)
	if err != nil {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
			name TEXT PRIMARY KEY,
			version INTEGER
		)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(`INSERT INTO db_version (name, version) VALUES ('calfeed', 0)`)
		if err != nil {
			return err
		}
		dbVersion = 0
	}

	if dbVersion == 0 {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS calendars (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_modified TEXT NOT NULL
		)`)
		if err != nil {
			return err
		}

		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			url TEXT,
			dtstart_initial TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			rrule TEXT,
			sequence INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_modified TEXT NOT NULL
		)`)
		if err != nil {
			return err
		}

		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events (calendar_id)`)
		if err != nil {
			return err
		}

		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS event_exceptions (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			original_date TEXT NOT NULL,
			new_date TEXT,
			new_summary TEXT,
			new_description TEXT,
			UNIQUE (event_id, original_date)
		)`)
		if err != nil {
			return err
		}

		dbVersion = 1
		_, err = db.Exec(`UPDATE db_version SET version = 1 WHERE name = 'calfeed'`)
		if err != nil {
			return err
		}
	}
	return nil
}
