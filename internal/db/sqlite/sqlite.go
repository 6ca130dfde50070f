package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ukane-philemon/gradebook/internal/db"
	"github.com/ukane-philemon/gradebook/internal/student"

	_ "modernc.org/sqlite"
)

// Check that *SQLite implements student.Persister.
var _ student.Persister = (*SQLite)(nil)

// SQLite persists the student list in a sqlite database. Every Save rewrites
// the students table inside one transaction.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("os.MkdirAll error: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open error: %w", err)
	}

	// A single connection keeps ":memory:" databases shared between calls.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("journal_mode pragma error: %w", err)
	}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLite{db: sqlDB}, nil
}

func migrate(sqlDB *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			scores_json TEXT NOT NULL,
			average REAL NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_students_position ON students(position);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := sqlDB.Exec(s); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}
	}
	return nil
}

// Load returns nil if Save has never been called on this database.
func (s *SQLite) Load(ctx context.Context) ([]*student.Student, error) {
	var saved string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved'`).Scan(&saved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("meta query error: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, scores_json, average, status
		 FROM students
		 ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("students query error: %w", err)
	}
	defer rows.Close()

	students := []*student.Student{}
	for rows.Next() {
		var st student.Student
		var scoresJSON, status string
		if err := rows.Scan(&st.ID, &st.Name, &scoresJSON, &st.Average, &status); err != nil {
			return nil, fmt.Errorf("rows.Scan error: %w", err)
		}

		if err := json.Unmarshal([]byte(scoresJSON), &st.Scores); err != nil {
			return nil, fmt.Errorf("%w: scores of student %d: %v", db.ErrorCorruptState, st.ID, err)
		}
		st.Status = student.Status(status)
		students = append(students, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return students, nil
}

// Save implements student.Persister.
func (s *SQLite) Save(ctx context.Context, students []*student.Student) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTx error: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM students`); err != nil {
		return fmt.Errorf("delete students error: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO students (id, position, name, scores_json, average, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("tx.Prepare error: %w", err)
	}
	defer stmt.Close()

	for position, st := range students {
		scoresJSON, err := json.Marshal(st.Scores)
		if err != nil {
			return fmt.Errorf("json.Marshal error: %w", err)
		}

		_, err = stmt.ExecContext(ctx, st.ID, position, st.Name, string(scoresJSON), st.Average, string(st.Status))
		if err != nil {
			return fmt.Errorf("insert student %d error: %w", st.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('saved', '1')`)
	if err != nil {
		return fmt.Errorf("meta update error: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
