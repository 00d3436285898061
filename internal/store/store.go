// Package store persists client state in the local DuckDB database: the
// session key/value pairs and the last task collection seen per user.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rtms/taskboard/internal/db"
	"github.com/rtms/taskboard/pkg/models"
)

const (
	lockRetries = 20
	lockBackoff = 50 * time.Millisecond
)

// ErrInUse reports that another process kept the state file locked for
// longer than an operation is willing to wait.
var ErrInUse = errors.New("state database is in use by another taskboard process")

// Store is the DuckDB backed client state. A file backed store opens the
// database for each operation only, so several taskboard processes can share
// one state file. An in-memory store keeps its handle until Close.
type Store struct {
	path string
	mu   sync.Mutex
	mem  *sql.DB
}

// Open prepares the state database at path. An empty path keeps it in memory.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		database, err := db.Open("")
		if err != nil {
			return nil, err
		}
		s.mem = database
		return s, nil
	}

	// Create the file and schema up front
	if err := s.with(context.Background(), func(*sql.DB) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the in-memory database. File backed stores hold nothing open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem == nil {
		return nil
	}
	err := s.mem.Close()
	s.mem = nil
	return err
}

func (s *Store) with(ctx context.Context, fn func(*sql.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem != nil {
		return fn(s.mem)
	}

	database, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

// open retries while another process holds the file lock.
func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	for attempt := 0; ; attempt++ {
		database, err := db.Open(s.path)
		if err == nil {
			return database, nil
		}
		if !lockConflict(err) {
			return nil, err
		}
		if attempt == lockRetries {
			return nil, fmt.Errorf("%w: %v", ErrInUse, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
}

func lockConflict(err error) bool {
	return strings.Contains(err.Error(), "Could not set lock")
}

// Get returns the value stored under key. The bool is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool
	err := s.with(ctx, func(database *sql.DB) error {
		err := database.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.with(ctx, func(database *sql.DB) error {
		if _, err := database.ExecContext(ctx, `INSERT OR REPLACE INTO client_state (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to write %q: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.with(ctx, func(database *sql.DB) error {
		if _, err := database.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete %q: %w", key, err)
		}
		return nil
	})
}

// SaveTasks replaces the snapshot for userID with tasks, keeping their order.
func (s *Store) SaveTasks(ctx context.Context, userID string, tasks []models.Task) error {
	return s.with(ctx, func(database *sql.DB) error {
		return saveTasks(ctx, database, userID, tasks)
	})
}

func saveTasks(ctx context.Context, database *sql.DB, userID string, tasks []models.Task) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_snapshot WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	capturedAt := time.Now().UTC()
	for i, task := range tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_snapshot
				(user_id, position, task_id, title, description, status, created_at, updated_at, captured_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, i, task.ID, task.Title, task.Description, task.Status,
			nullTime(task.CreatedAt), nullTime(task.UpdatedAt), capturedAt)
		if err != nil {
			return fmt.Errorf("failed to store task %q: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadTasks returns the last snapshot for userID and when it was captured.
// An empty snapshot returns a nil slice and a zero time.
func (s *Store) LoadTasks(ctx context.Context, userID string) ([]models.Task, time.Time, error) {
	var tasks []models.Task
	var capturedAt time.Time
	err := s.with(ctx, func(database *sql.DB) error {
		var err error
		tasks, capturedAt, err = loadTasks(ctx, database, userID)
		return err
	})
	return tasks, capturedAt, err
}

func loadTasks(ctx context.Context, database *sql.DB, userID string) ([]models.Task, time.Time, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT task_id, title, description, status, created_at, updated_at, captured_at
		FROM task_snapshot
		WHERE user_id = ?
		ORDER BY position ASC`, userID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	var capturedAt time.Time
	for rows.Next() {
		var task models.Task
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &createdAt, &updatedAt, &capturedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if createdAt.Valid {
			task.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			task.UpdatedAt = updatedAt.Time
		}
		task.UserID = userID
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return tasks, capturedAt, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
