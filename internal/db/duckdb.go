package db

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS client_state (
		key   VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_snapshot (
		user_id     VARCHAR NOT NULL,
		position    INTEGER NOT NULL,
		task_id     VARCHAR NOT NULL,
		title       VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		status      VARCHAR NOT NULL,
		created_at  TIMESTAMP,
		updated_at  TIMESTAMP,
		captured_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, position)
	)`,
}

// Open opens a DuckDB database at path and applies the client schema.
// An empty path opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}
